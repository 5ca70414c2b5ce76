// Copyright (C) 1994-2026 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"errors"
	"fmt"
)

// noJump is a sentinel pc meaning "no pending jump" (the sBx value a
// jump list terminates on).
const noJump = -1

// funcState is the mutable state associated with a [Prototype] while
// it is being compiled, per §4.6's single-pass design: no AST, just a
// stack of these threaded through the recursive-descent parser.
type funcState struct {
	*Prototype

	// prev is the enclosing function, or nil for the main chunk.
	prev *funcState
	// blocks is the chain of active blocks, innermost first.
	blocks *blockControl

	// lastTarget is the pc of the last instruction marked as a jump
	// target via [funcState.label].
	lastTarget int
	// previousLine is the line most recently recorded in LineInfo.
	previousLine int
	lineInfo     lineInfoBuilder
	// firstLocal is the index of the first local variable belonging to
	// this function in the parser's activeVariables stack.
	firstLocal         int
	numActiveVariables uint8
	// firstFreeRegister is the first register not holding a live value.
	firstFreeRegister registerIndex
	// needClose is true once some enclosing block has had a local
	// captured as an upvalue, so RETURN must close it on the way out.
	needClose bool
}

// blockControl is a linked list of active lexical blocks (loops, do
// blocks, if-branches), innermost first.
type blockControl struct {
	prev               *blockControl
	numActiveVariables uint8
	isLoop             bool
	// upval is true if some local declared in this block has been
	// captured as an upvalue by a nested closure.
	upval bool
	// breakList is the jump list of pending "break" statements that
	// target the end of this block; only meaningful when isLoop.
	breakList int
}

// finish resolves any JUMP-to-JUMP chains left over from compilation
// and records the final line info.
func (fs *funcState) finish() error {
	fs.LineInfo = fs.lineInfo.build()
	for i, instruction := range fs.Code {
		if instruction.OpCode() != OpJmp {
			continue
		}
		target := i
		for count := 0; count < 100; count++ {
			curr := fs.Code[target]
			if curr.OpCode() != OpJmp {
				break
			}
			next := target + 1 + int(curr.ArgSBx())
			if next == target {
				break
			}
			target = next
		}
		if target != i {
			if err := fs.fixJump(i, target); err != nil {
				return err
			}
		}
	}
	return nil
}

// label marks the next instruction to be added as a jump target, to
// prevent peephole optimizations from crossing into a different basic
// block, and returns its pc.
func (fs *funcState) label() int {
	pc := len(fs.Code)
	fs.lastTarget = pc
	return pc
}

// emit appends instruction to the code array at the given source line
// and returns its pc.
func (fs *funcState) emit(instruction Instruction, line int) int {
	fs.Code = append(fs.Code, instruction)
	fs.lineInfo.extend(len(fs.Code)-1, line)
	fs.previousLine = line
	return len(fs.Code) - 1
}

// removeLastInstruction removes the last instruction emitted and its
// associated line info.
func (fs *funcState) removeLastInstruction() {
	fs.lineInfo.truncate(len(fs.Code) - 1)
	fs.Code = fs.Code[:len(fs.Code)-1]
}

// fixLineInfo changes the line associated with the last instruction.
func (fs *funcState) fixLineInfo(line int) {
	fs.lineInfo.truncate(len(fs.Code) - 1)
	fs.lineInfo.extend(len(fs.Code)-1, line)
	fs.previousLine = line
}

// reserveRegister reserves a single register and returns it.
func (fs *funcState) reserveRegister() (registerIndex, error) {
	if err := fs.checkStack(1); err != nil {
		return noRegister, err
	}
	reg := fs.firstFreeRegister
	fs.firstFreeRegister++
	return reg, nil
}

// reserveRegisters reserves n additional registers.
func (fs *funcState) reserveRegisters(n int) error {
	if err := fs.checkStack(n); err != nil {
		return err
	}
	fs.firstFreeRegister += registerIndex(n)
	return nil
}

// checkStack verifies there is room to add n more registers, growing
// MaxStackSize (the Prototype's high watermark) as needed.
func (fs *funcState) checkStack(n int) error {
	newStack := int(fs.firstFreeRegister) + n
	if newStack <= int(fs.MaxStackSize) {
		return nil
	}
	if newStack > maxRegisters {
		return errors.New("function or expression needs too many registers")
	}
	fs.MaxStackSize = uint8(newStack)
	return nil
}

// concatJumpList appends jump list l2 onto the end of jump list l1.
func (fs *funcState) concatJumpList(l1, l2 int) (int, error) {
	switch {
	case l2 == noJump:
		return l1, nil
	case l1 == noJump:
		return l2, nil
	default:
		list := l1
		for {
			next, ok := fs.jumpDestination(list)
			if !ok {
				break
			}
			list = next
		}
		err := fs.fixJump(list, l2)
		return l1, err
	}
}

// patchList walks jump list "list", patching each jump's destination:
// a jump whose controlling TESTSET is rewritten to store into reg
// targets vtarget, every other jump targets dtarget. reg may be
// [noRegister] to mean "discard the value".
func (fs *funcState) patchList(list, vtarget int, reg registerIndex, dtarget int) error {
	if vtarget > len(fs.Code) || dtarget > len(fs.Code) {
		return errors.New("patchList target cannot be a forward address")
	}
	for list != noJump {
		next, hasNext := fs.jumpDestination(list)

		var target int
		if fs.patchTestRegister(list, reg) {
			target = vtarget
		} else {
			target = dtarget
		}
		if err := fs.fixJump(list, target); err != nil {
			return err
		}

		if !hasNext {
			break
		}
		list = next
	}
	return nil
}

// patchToHere patches jump list "list" to target the next instruction
// to be emitted.
func (fs *funcState) patchToHere(list int) error {
	here := fs.label()
	return fs.patchList(list, here, noRegister, here)
}

// patchTestRegister patches the destination register of the TESTSET
// instruction controlling the jump at pc "node". If reg is
// [noRegister], the instruction is downgraded to a plain TEST (which
// produces no register value). Reports false and no-ops if the
// controlling instruction is not a TESTSET.
func (fs *funcState) patchTestRegister(node int, reg registerIndex) bool {
	i := fs.findJumpControl(node)
	if i.OpCode() != OpTestSet {
		return false
	}
	if reg != noRegister && reg != registerIndex(i.ArgA()) {
		*i = ABCInstruction(OpTestSet, uint8(reg), i.ArgB(), i.ArgC())
	} else {
		*i = ABCInstruction(OpTest, uint8(i.ArgB()), 0, i.ArgC())
	}
	return true
}

// jumpDestination returns the pc a JMP instruction at pc targets.
func (fs *funcState) jumpDestination(pc int) (newPC int, ok bool) {
	offset := fs.Code[pc].ArgSBx()
	if offset == noJump {
		// A self-referential offset marks the end of a jump list.
		return noJump, false
	}
	return pc + 1 + int(offset), true
}

// findJumpControl returns a pointer to the instruction that controls
// the jump at pc: the preceding TEST/TESTSET/EQ/LT/LE if one
// immediately precedes an unconditional JMP, or the jump itself.
func (fs *funcState) findJumpControl(pc int) *Instruction {
	if pc >= 1 && fs.Code[pc-1].OpCode().isTest() {
		return &fs.Code[pc-1]
	}
	return &fs.Code[pc]
}

// fixJump rewrites the JMP instruction at pc to target dest.
func (fs *funcState) fixJump(pc int, dest int) error {
	jmp := &fs.Code[pc]
	if jmp.OpCode() != OpJmp {
		return fmt.Errorf("fixJump called on %v", jmp.OpCode())
	}
	offset := dest - (pc + 1)
	if offset < -offsetSBx || offset > maxArgBx-offsetSBx {
		return errors.New("control structure too long")
	}
	*jmp = ABxInstruction(OpJmp, 0, int32(offset))
	return nil
}

// negateCondition inverts the comparison instruction controlling the
// jump at pc by flipping its expected-boolean A operand.
func (fs *funcState) negateCondition(pc int) error {
	i := fs.findJumpControl(pc)
	op := i.OpCode()
	if !op.isTest() || op == OpTestSet || op == OpTest {
		return fmt.Errorf("instruction at %d is not a comparison (got %v)", pc, op)
	}
	*i = ABCInstruction(op, boolToUint8(i.ArgA() == 0), i.ArgB(), i.ArgC())
	return nil
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// previousInstruction returns a pointer to the last emitted
// instruction, or nil if a jump target may lie between it and the
// next instruction to be emitted (which would make peephole folding
// across the two unsafe).
func (fs *funcState) previousInstruction() *Instruction {
	if len(fs.Code) == 0 || fs.lastTarget == len(fs.Code) {
		return nil
	}
	return &fs.Code[len(fs.Code)-1]
}

// searchUpvalue returns the index of the upvalue with the given name
// already registered on fs, if any.
func (fs *funcState) searchUpvalue(name string) (i upvalueIndex, found bool) {
	for i := range fs.Upvalues {
		if fs.Upvalues[i].Name == name {
			return upvalueIndex(i), true
		}
	}
	return 0, false
}

// markUpvalue marks the block in which the local variable at the
// given activeVariables level was declared as needing to close
// upvalues, so the compiler emits CLOSE when the block exits.
func (fs *funcState) markUpvalue(level int) {
	bl := fs.blocks
	for int(bl.numActiveVariables) > level {
		bl = bl.prev
	}
	bl.upval = true
	fs.needClose = true
}
