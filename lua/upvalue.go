// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"lunamoth.dev/lua/internal/gc"
)

// Upvalue is a reference cell shared between a closure and the stack
// slot it was captured from, per §3 "Upvalue" and §4.7's closing
// rules. While open, it points into a live frame's register array; a
// frame that returns closes every upvalue pointing into it by copying
// the value out and switching the cell to its own storage.
type Upvalue struct {
	gc.Header

	// stack and index locate the captured register while open; index
	// is meaningless once closed.
	stack *[]Value
	index int

	closed bool
	value  Value // valid only once closed

	// next chains this upvalue into its owning [State]'s open list,
	// kept sorted by descending stack index so [State.closeUpvalues]
	// can stop at the first upvalue below the target level.
	next *Upvalue
}

func (uv *Upvalue) valueType() Type { return TypeNone } // not a first-class Value

func (uv *Upvalue) Trace(mark func(gc.Collectable)) {
	if uv.closed {
		markValue(mark, uv.value)
	}
}

func (uv *Upvalue) Free() {}

func (uv *Upvalue) ByteSize() int { return 40 }

// get reads the upvalue's current value.
func (uv *Upvalue) get() Value {
	if uv.closed {
		return uv.value
	}
	return (*uv.stack)[uv.index]
}

// set writes the upvalue's current value.
func (uv *Upvalue) set(v Value) {
	if uv.closed {
		uv.value = v
		return
	}
	(*uv.stack)[uv.index] = v
}

// findOrCreateUpvalue returns the open upvalue already pointing at
// stack[index], or creates and links a new one, maintaining the open
// list's descending-index order (§4.7: "identity is shared: two
// closures capturing the same local share one Upvalue object so
// writes are mutually visible").
func (s *State) findOrCreateUpvalue(stack *[]Value, index int) *Upvalue {
	var prev *Upvalue
	cur := s.openUpvalues
	for cur != nil && cur.index > index {
		prev = cur
		cur = cur.next
	}
	if cur != nil && !cur.closed && cur.index == index {
		return cur
	}
	uv := &Upvalue{stack: stack, index: index}
	s.global.noteAllocation(s.global.gc.Register(uv))
	uv.next = cur
	if prev == nil {
		s.openUpvalues = uv
	} else {
		prev.next = uv
	}
	return uv
}

// closeUpvalues closes every open upvalue at or above level, copying
// each one's value out of the stack and detaching it from the open
// list (§4.7's CLOSE instruction and end-of-scope/return handling).
func (s *State) closeUpvalues(level int) {
	for s.openUpvalues != nil && s.openUpvalues.index >= level {
		uv := s.openUpvalues
		s.openUpvalues = uv.next
		uv.value = (*uv.stack)[uv.index]
		uv.closed = true
		uv.stack = nil
		uv.next = nil
	}
}
