// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package gc

// Color is the mark color of a collectable object.
// It encodes one of {white, gray, black, fixed} as described in
// the data model's object header invariant:
// at most one of {white, black} holds at a time; gray means neither.
type Color uint8

const (
	// White objects have not been reached this cycle and are swept
	// if they remain white at sweep time.
	White Color = iota
	// Gray objects have been reached but not yet traced:
	// they sit on the gray worklist awaiting [GC.trace].
	Gray
	// Black objects have been reached and fully traced.
	Black
	// Fixed objects (interned keywords, the canonical memory-error
	// string) are permanently reachable and are never swept.
	Fixed
)

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Gray:
		return "gray"
	case Black:
		return "black"
	case Fixed:
		return "fixed"
	default:
		return "invalid"
	}
}

// Header is the common object header embedded in every collectable
// heap object. It carries the object's place in the collector's
// intrusive object list and its current mark color.
//
// A zero Header is a white, unregistered object; callers must pass
// newly-allocated objects through [GC.Register] before they can be
// reached by [GC.Collect].
type Header struct {
	next  Collectable
	color Color
}

// Color returns the object's current mark color.
func (h *Header) Color() Color {
	return h.color
}

// header implements the unexported half of [Collectable]: the
// collector can reach any embedding type's [Header] through method
// promotion without that type needing to expose its internals.
func (h *Header) header() *Header {
	return h
}

// Collectable is implemented by every heap object the collector
// manages. Implementations embed [Header] to pick up the unexported
// header() accessor by promotion.
type Collectable interface {
	header() *Header

	// Trace calls mark for every Collectable this object directly
	// references. Trace must not itself recurse into those objects;
	// the collector handles the work list.
	Trace(mark func(Collectable))

	// Free releases any memory the object owns beyond its own struct
	// (slice backing arrays, open file handles, and so on). Free is
	// called once, during sweep, for objects that did not survive
	// the cycle.
	Free()

	// ByteSize estimates the object's heap footprint in bytes, used
	// for GC-threshold accounting. It need not be exact.
	ByteSize() int
}

// MakeFixed marks an object as permanently reachable: it is never
// swept, regardless of whether anything still references it. Used for
// interned keyword strings and the canonical out-of-memory string,
// per the data model's object-header invariant.
func MakeFixed(c Collectable) {
	c.header().color = Fixed
}
