// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"fmt"
	"io"

	"lunamoth.dev/lua/internal/luacode"
)

// listProto writes a disassembly of proto and every function nested
// inside it to w, in the style of internal/luac's -l flag but
// targeting 5.1 opcodes and this module's Prototype shape. This is a
// debugging convenience, not a normative bytecode format.
func listProto(w io.Writer, proto *luacode.Prototype) error {
	bw := bufio.NewWriter(w)
	printProto(bw, proto)
	return bw.Flush()
}

func printProto(w *bufio.Writer, proto *luacode.Prototype) {
	kind := "function"
	if proto.IsMainChunk() {
		kind = "main chunk"
	}
	fmt.Fprintf(w, "%s <%s:%d,%d> (%d instructions)\n",
		kind, proto.Source, proto.LineDefined, proto.LastLineDefined, len(proto.Code))
	fmt.Fprintf(w, "%d param%s, %d upvalue%s, %d stack slot%s\n",
		proto.NumParams, plural(int(proto.NumParams)),
		len(proto.Upvalues), plural(len(proto.Upvalues)),
		proto.MaxStackSize, plural(int(proto.MaxStackSize)))

	for pc, inst := range proto.Code {
		fmt.Fprintf(w, "\t%d\t[%d]\t%s\n", pc+1, proto.LineInfo.At(pc), inst)
	}

	if len(proto.Constants) > 0 {
		fmt.Fprintln(w, "constants:")
		for i, k := range proto.Constants {
			fmt.Fprintf(w, "\t%d\t%s\n", i, constantString(k))
		}
	}

	if len(proto.Upvalues) > 0 {
		fmt.Fprintln(w, "upvalues:")
		for i, uvd := range proto.Upvalues {
			origin := "upvalue"
			if uvd.InStack {
				origin = "local"
			}
			fmt.Fprintf(w, "\t%d\t%s\t%s %d\n", i, uvd.Name, origin, uvd.Index)
		}
	}

	for _, child := range proto.Functions {
		fmt.Fprintln(w)
		printProto(w, child)
	}
}

func constantString(k luacode.Value) string {
	if k.IsString() {
		return fmt.Sprintf("%q", k.String())
	}
	return k.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
