// Copyright (C) 1994-2026 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import "slices"

// Prototype represents a compiled Lua function: its instructions,
// constants, nested functions, and the debug metadata needed to
// attribute errors and stack traces to source lines, per §3's
// "Prototype (Chunk)" description.
//
// Binary (de)serialization is deliberately not provided: bytecode
// compatibility with reference Lua dump files is out of scope.
type Prototype struct {
	// NumParams is the number of fixed (named) parameters.
	NumParams uint8
	IsVararg  bool
	// MaxStackSize is the number of registers needed by this function.
	MaxStackSize uint8

	Constants []Value
	Code      []Instruction
	Functions []*Prototype
	Upvalues  []UpvalueDescriptor

	// Debug information:

	Source Source
	// LocalVariables is the function's local variables in declaration
	// order; LocalVariables[i].StartPC <= LocalVariables[i+1].StartPC.
	LocalVariables  []LocalVariable
	LineInfo        LineInfo
	LineDefined     int
	LastLineDefined int
}

// IsMainChunk reports whether the prototype represents a parsed
// source file (as opposed to a function nested inside one).
func (f *Prototype) IsMainChunk() bool {
	return f.LineDefined == 0
}

// LocalName returns the name of the local variable the given register
// represents during execution of the given instruction, or the empty
// string if the register is not a named local variable at that pc.
func (f *Prototype) LocalName(register uint8, pc int) string {
	for _, v := range f.LocalVariables {
		if v.StartPC > pc {
			break
		}
		if pc < v.EndPC {
			if register == 0 {
				return v.Name
			}
			register--
		}
	}
	return ""
}

// addConstant interns k into the constant table, returning its index;
// an existing equal constant (per [Value.Equal]) is reused rather
// than duplicated.
func (f *Prototype) addConstant(k Value) int {
	if i := slices.IndexFunc(f.Constants, k.Equal); i >= 0 {
		return i
	}
	f.Constants = append(f.Constants, k)
	return len(f.Constants) - 1
}

// UpvalueDescriptor records how a closure's upvalue is initialized
// when instantiated, per §4.6's "Closure emission".
type UpvalueDescriptor struct {
	Name string
	// InStack is true if the upvalue captures a local variable of the
	// enclosing function; otherwise it copies one of the enclosing
	// function's own upvalues.
	InStack bool
	// Index is the register (if InStack) or upvalue index (otherwise)
	// to capture.
	Index uint8
}

// LocalVariable describes the lifetime of one named local variable
// for debugging purposes.
type LocalVariable struct {
	Name string
	// StartPC is the first instruction where the variable is active.
	StartPC int
	// EndPC is the first instruction where the variable is dead.
	EndPC int
}

// Source describes the chunk that produced a [Prototype].
// The zero value describes an empty literal string.
type Source string

// UnknownSource is a placeholder for an unknown [Source].
const UnknownSource Source = "=?"

// FilenameSource returns a [Source] for a filesystem path.
func FilenameSource(path string) Source {
	return Source("@" + path)
}

// LiteralSource returns a [Source] for an in-memory chunk with no
// backing file, such as one passed to "load" from a string.
func LiteralSource(description string) Source {
	return Source("=" + description)
}

// String formats the source the way error messages and "chunkname"
// queries present it: a filename without its leading "@", a literal
// description without its leading "=", or a quoted, truncated
// rendering of a raw chunk (source passed to load with no special
// prefix).
func (src Source) String() string {
	s := string(src)
	switch {
	case len(s) == 0:
		return `[string ""]`
	case s[0] == '@':
		return s[1:]
	case s[0] == '=':
		return s[1:]
	default:
		const maxLen = 45
		firstLine, _, multiline := cutNewline(s)
		if !multiline && len(firstLine) <= maxLen {
			return `[string "` + firstLine + `"]`
		}
		if len(firstLine) > maxLen {
			firstLine = firstLine[:maxLen] + "..."
		} else {
			firstLine += "..."
		}
		return `[string "` + firstLine + `"]`
	}
}

// maxRegisters is the maximum number of registers in a Lua function
// (an 8-bit register field, per §4.4's ABC/AsBx instruction formats).
const maxRegisters = 255

type registerIndex uint8

// noRegister is a sentinel for an invalid or elided register.
const noRegister registerIndex = maxRegisters

func (ridx registerIndex) isValid() bool {
	return ridx < maxRegisters
}

// maxUpvalues is the maximum number of upvalues a closure may capture.
const maxUpvalues = 255

type upvalueIndex uint8

func (vidx upvalueIndex) isValid() bool {
	return vidx < maxUpvalues
}

func cutNewline(s string) (before, after string, found bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
