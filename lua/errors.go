// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import "fmt"

// ErrorKind classifies a Lua-level error, per SPEC_FULL.md's ambient
// error-handling section.
type ErrorKind int

const (
	// SyntaxError reports a failure to parse a chunk (§4.6).
	SyntaxError ErrorKind = iota
	// RuntimeError reports a failure during execution: a type error,
	// an arithmetic error on a non-coercible operand, an out-of-range
	// table index, and so on (§4.7).
	RuntimeError
	// MemoryError reports [gc.ErrMemory] surfacing through a
	// protected call (§4.1).
	MemoryError
	// UserError reports a value passed to Lua's error() function,
	// which need not even be a string (§4.8).
	UserError
)

func (k ErrorKind) String() string {
	switch k {
	case SyntaxError:
		return "syntax error"
	case RuntimeError:
		return "runtime error"
	case MemoryError:
		return "memory error"
	case UserError:
		return "error"
	default:
		return "error"
	}
}

// Error is the error type raised by protected calls and returned by
// [State] operations that can fail at the Lua level. Value carries
// the original Lua error value (often but not always a string,
// per §4.8's "error need not be a string").
type Error struct {
	Kind  ErrorKind
	Value Value
	// Source and Line are a best-effort "source:line: " style location
	// prefix already folded into Value when Value is a string, kept
	// separately only for host code that wants the raw components.
	Source string
	Line    int
}

func (e *Error) Error() string {
	if s, ok := tostringValue(e.Value); ok {
		return s
	}
	return fmt.Sprintf("(error object is a %s value)", valueType(e.Value))
}

// newRuntimeError builds a [*Error] whose value is a string of the
// form "<source>:<line>: <msg>", matching auxlib's luaL_error
// convention (§4.7's error attribution, SPEC_FULL.md's ambient-stack
// section).
func (s *State) newRuntimeError(format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	src, line := s.where(1)
	if src != "" {
		msg = fmt.Sprintf("%s:%d: %s", src, line, msg)
	}
	return &Error{
		Kind:   RuntimeError,
		Value:  s.global.intern(msg),
		Source: src,
		Line:   line,
	}
}

// where returns the source name and current line of the Lua call
// frame level levels above the top (0 is the currently executing
// frame), or "", 0 if that frame is a Go closure or doesn't exist.
func (s *State) where(level int) (string, int) {
	idx := s.frameDepth() - 1 - level
	if idx < 0 {
		return "", 0
	}
	var f *Frame
	for i, fr := range s.frames.All() {
		if i == idx {
			f = fr
		}
	}
	if f == nil || f.closure == nil || f.closure.IsGo() {
		return "", 0
	}
	proto := f.proto()
	return proto.Source.String(), proto.LineInfo.At(f.pc - 1)
}
