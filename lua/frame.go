// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"lunamoth.dev/lua/internal/luacode"
)

// Frame is one activation record on the call stack (§3 "Call frame"):
// the executing closure, its register window into the value stack,
// and the saved instruction pointer to resume a caller once a callee
// returns.
type Frame struct {
	closure *Closure
	// base is the index into [State.stack] of register 0 for this
	// call; registers occupy stack[base:base+int(closure.proto.MaxStackSize)].
	base int
	// pc is the index of the next [luacode.Instruction] to execute,
	// valid only for Lua closures.
	pc int
	// resultBase/wantResults describe where the caller wants this
	// frame's eventual return values placed, and how many (-1 meaning
	// "however many the callee produces", per CALL/RETURN's B/C=0
	// convention, §4.4).
	resultBase   int
	wantResults  int
	isTailOrigin bool
}

func (f *Frame) proto() *luacode.Prototype { return f.closure.proto }

// pushFrame activates a new call frame for closure, whose register
// window starts at base, returning the frame so the caller (typically
// [State.call]) can finish wiring arguments before dispatch begins.
func (s *State) pushFrame(closure *Closure, base, resultBase, wantResults int) *Frame {
	f := &Frame{
		closure:     closure,
		base:        base,
		resultBase:  resultBase,
		wantResults: wantResults,
	}
	s.frames.PushBack(f)
	return f
}

// popFrame removes and returns the topmost call frame.
func (s *State) popFrame() *Frame {
	f, _ := s.frames.Back()
	s.frames.PopBack(1)
	return f
}

// currentFrame returns the topmost (currently executing) call frame,
// or nil if the call stack is empty.
func (s *State) currentFrame() *Frame {
	f, ok := s.frames.Back()
	if !ok {
		return nil
	}
	return f
}

// frameDepth reports the number of active call frames.
func (s *State) frameDepth() int {
	return s.frames.Len()
}
