// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"bufio"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// parseSource is a small helper that runs [Parse] over a string and
// fails the test on error.
func parseSource(tb testing.TB, source string) *Prototype {
	tb.Helper()
	got, err := Parse(Source("@test.lua"), bufio.NewReader(strings.NewReader(source)))
	if err != nil {
		tb.Fatal("Parse:", err)
	}
	return got
}

// TestParseGlobalAssignment exercises §4.4's GETGLOBAL/SETGLOBAL pair,
// which replaces 5.2+'s _ENV-upvalue indirection.
func TestParseGlobalAssignment(t *testing.T) {
	got := parseSource(t, "x = 1\n")

	want := []Instruction{
		ABxInstruction(OpLoadK, 0, 1),
		ABxInstruction(OpSetGlobal, 0, 0),
		ABCInstruction(OpReturn, 0, 1, 0),
	}
	if diff := cmp.Diff(want, got.Code); diff != "" {
		t.Errorf("Code (-want +got):\n%s", diff)
	}

	wantConstants := []Value{StringValue("x"), NumberValue(1)}
	if diff := cmp.Diff(wantConstants, got.Constants); diff != "" {
		t.Errorf("Constants (-want +got):\n%s", diff)
	}
}

// TestParseLocalDeclaration checks that a local's initializer lands
// directly in the register the variable will occupy, with no
// redundant MOVE (the single-pass register allocator's "close last
// expression" behavior).
func TestParseLocalDeclaration(t *testing.T) {
	got := parseSource(t, "local x = 1\n")

	want := []Instruction{
		ABxInstruction(OpLoadK, 0, 0),
		ABCInstruction(OpReturn, 1, 1, 0),
	}
	if diff := cmp.Diff(want, got.Code); diff != "" {
		t.Errorf("Code (-want +got):\n%s", diff)
	}

	wantConstants := []Value{NumberValue(1)}
	if diff := cmp.Diff(wantConstants, got.Constants); diff != "" {
		t.Errorf("Constants (-want +got):\n%s", diff)
	}
}

// TestParseFunctionCall checks a statement-position call: the call's
// C operand is rewritten to 1 (discard all results) after parsing.
func TestParseFunctionCall(t *testing.T) {
	got := parseSource(t, "print(1)\n")

	want := []Instruction{
		ABxInstruction(OpGetGlobal, 0, 0),
		ABxInstruction(OpLoadK, 1, 1),
		ABCInstruction(OpCall, 0, 2, 1),
		ABCInstruction(OpReturn, 0, 1, 0),
	}
	if diff := cmp.Diff(want, got.Code); diff != "" {
		t.Errorf("Code (-want +got):\n%s", diff)
	}

	wantConstants := []Value{StringValue("print"), NumberValue(1)}
	if diff := cmp.Diff(wantConstants, got.Constants); diff != "" {
		t.Errorf("Constants (-want +got):\n%s", diff)
	}
}

// TestParseTableConstructor checks the NEWTABLE placeholder is
// back-patched with the array/hash size hints once the constructor
// finishes, and that array items are bulk-stored with SETLIST.
func TestParseTableConstructor(t *testing.T) {
	got := parseSource(t, "local t = {1, 2}\n")

	want := []Instruction{
		ABCInstruction(OpNewTable, 0, uint16(FloatingByte(0)), uint16(FloatingByte(2))),
		ABxInstruction(OpLoadK, 1, 0),
		ABxInstruction(OpLoadK, 2, 1),
		ABCInstruction(OpSetList, 0, 2, 1),
		ABCInstruction(OpReturn, 1, 1, 0),
	}
	if diff := cmp.Diff(want, got.Code); diff != "" {
		t.Errorf("Code (-want +got):\n%s", diff)
	}

	wantConstants := []Value{NumberValue(1), NumberValue(2)}
	if diff := cmp.Diff(wantConstants, got.Constants); diff != "" {
		t.Errorf("Constants (-want +got):\n%s", diff)
	}
}

// TestParseNumericFor checks the classic FORPREP/FORLOOP pair (§4.4):
// FORPREP computes init-=step then jumps straight to FORLOOP, which
// tests bounds and, on success, jumps backward into the body. Both
// jumps share the same dest-(pc+1) displacement convention as a plain
// JMP — confirmed against the VM's PC update (fetch increments pc,
// then ArgSBx is added on top).
func TestParseNumericFor(t *testing.T) {
	got := parseSource(t, "for i = 1, 10 do end\n")

	want := []Instruction{
		ABxInstruction(OpLoadK, 0, 0),
		ABxInstruction(OpLoadK, 1, 1),
		ABxInstruction(OpLoadK, 2, 0), // default step reuses the constant for 1
		ABxInstruction(OpForPrep, 0, 0),
		ABxInstruction(OpForLoop, 0, -1),
		ABCInstruction(OpReturn, 0, 1, 0),
	}
	if diff := cmp.Diff(want, got.Code); diff != "" {
		t.Errorf("Code (-want +got):\n%s", diff)
	}

	wantConstants := []Value{NumberValue(1), NumberValue(10)}
	if diff := cmp.Diff(wantConstants, got.Constants); diff != "" {
		t.Errorf("Constants (-want +got):\n%s", diff)
	}
}

// TestParseGenericFor checks the single TFORLOOP instruction that
// itself performs the iterator call (confirmed against the VM's
// dispatch: there is no separate CALL, unlike upstream 5.4's
// TFORPREP/TFORCALL split), and that missing control values (here,
// "next, t" only supplies 2 of the 3 hidden control slots) are padded
// with LOADNIL.
func TestParseGenericFor(t *testing.T) {
	got := parseSource(t, "for k, v in next, t do end\n")

	want := []Instruction{
		ABxInstruction(OpGetGlobal, 0, 0),
		ABxInstruction(OpGetGlobal, 1, 1),
		ABCInstruction(OpLoadNil, 2, 2, 0),
		ABxInstruction(OpJmp, 0, 0),
		ABCInstruction(OpTForLoop, 0, 0, 2),
		ABxInstruction(OpJmp, 0, -2),
		ABCInstruction(OpReturn, 0, 1, 0),
	}
	if diff := cmp.Diff(want, got.Code); diff != "" {
		t.Errorf("Code (-want +got):\n%s", diff)
	}

	wantConstants := []Value{StringValue("next"), StringValue("t")}
	if diff := cmp.Diff(wantConstants, got.Constants); diff != "" {
		t.Errorf("Constants (-want +got):\n%s", diff)
	}
}

// TestParseBreak checks that "break" compiles to a forward JMP that
// the enclosing loop's block-exit patches to the instruction right
// after the loop, per the breakList mechanism on [blockControl] (Lua
// 5.1 has no goto/label machinery to build break on top of, unlike
// upstream 5.4). The loop's back-jump lands on that break JMP, so
// [funcState.finish] threads it straight to the same exit.
func TestParseBreak(t *testing.T) {
	got := parseSource(t, "while true do break end\n")

	want := []Instruction{
		ABxInstruction(OpJmp, 0, 1),
		ABxInstruction(OpJmp, 0, 0),
		ABCInstruction(OpReturn, 0, 1, 0),
	}
	if diff := cmp.Diff(want, got.Code); diff != "" {
		t.Errorf("Code (-want +got):\n%s", diff)
	}
	if len(got.Constants) != 0 {
		t.Errorf("Constants = %v; want none (constant 'true' condition emits no test)", got.Constants)
	}
}

// TestParseRepeatUntil checks that "repeat ... until cond" evaluates
// the condition in the scope of the block's own locals (§4.3), that
// GT compiles by swapping operands into LT (5.1 has no GT/GE
// opcodes), and that the loop-back jump targets the start of the
// block rather than the condition check.
func TestParseRepeatUntil(t *testing.T) {
	got := parseSource(t, "repeat local x = 1 until x > 0\n")

	want := []Instruction{
		ABxInstruction(OpLoadK, 0, 0),
		ABCInstruction(OpLt, 0, ConstantRK(1), RegisterRK(0)),
		ABxInstruction(OpJmp, 0, -3),
		ABCInstruction(OpReturn, 0, 1, 0),
	}
	if diff := cmp.Diff(want, got.Code); diff != "" {
		t.Errorf("Code (-want +got):\n%s", diff)
	}

	wantConstants := []Value{NumberValue(1), NumberValue(0)}
	if diff := cmp.Diff(wantConstants, got.Constants); diff != "" {
		t.Errorf("Constants (-want +got):\n%s", diff)
	}
}

// TestMaxVariables ensures the local-variable limit stays small
// enough that a count always fits the bytecode format's local-count
// fields.
func TestMaxVariables(t *testing.T) {
	const limit = 250
	if maxVariables >= limit {
		t.Errorf("maxVariables = %d; want <%d due to bytecode format", maxVariables, limit)
	}
}
