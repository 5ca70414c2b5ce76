// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package gc

import (
	"errors"
	"math"

	"lunamoth.dev/lua/internal/deque"
)

// ErrMemory is returned (possibly wrapped) when the allocator rejects
// a growing allocation. Hosts should treat it exactly like the
// Lua memory-error kind in §7 of the data model: the canonical
// out-of-memory string, not a freshly allocated one.
var ErrMemory = errors.New("lua: not enough memory")

// GrowFactor is the default multiplier applied to bytesAllocated to
// compute the next collection threshold (spec §4.1 step 5).
const GrowFactor = 2.0

// Allocator observes every allocation and deallocation that changes
// the heap's logical size. It mirrors the single allocator callback
// in §4.1 ((ptr, old_size, new_size, ud) -> ptr): Go performs the
// actual allocation, so Allocator's role is purely to let a host
// track or cap memory use and fail a growing request. Returning a
// non-nil error fails the allocation with [ErrMemory].
type Allocator func(oldSize, newSize int) error

// GC is the collector state shared by every Lua object created from a
// single VM: the allocator hook, the intrusive object list, the gray
// worklist, and the byte-accounting threshold that decides when a
// collection cycle runs.
type GC struct {
	alloc    Allocator
	objects  Collectable
	gray     deque.Deque[Collectable]
	bytes    int64
	threshold int64
	stress   bool
}

// New returns a GC with the given allocator hook (nil is equivalent to
// an allocator that never fails) and an initial threshold.
func New(alloc Allocator) *GC {
	if alloc == nil {
		alloc = func(oldSize, newSize int) error { return nil }
	}
	return &GC{
		alloc:     alloc,
		threshold: 1 << 20, // 1 MiB before the first cycle, matching common Lua default starting thresholds
	}
}

// SetStress enables or disables stress mode, which forces a
// collection on every growing allocation (§4.1 "A 'stress' mode").
// Required for correctness testing: it exercises paths that rarely
// trigger under the normal threshold-doubling schedule.
func (g *GC) SetStress(stress bool) {
	g.stress = stress
}

// Pause disables automatic collection by setting the threshold to the
// maximum representable size, matching §4.1's description of a paused
// collector.
func (g *GC) Pause() {
	g.threshold = math.MaxInt64
}

// BytesAllocated reports the collector's current logical heap size.
func (g *GC) BytesAllocated() int64 {
	return g.bytes
}

// Register adds a newly allocated object to the collector's object
// list (white, unless the caller subsequently calls [MakeFixed]) and
// accounts for its size. needsCollect reports whether the caller
// should run a collection cycle before continuing (stress mode, or
// the threshold was exceeded).
func (g *GC) Register(c Collectable) (needsCollect bool, err error) {
	size := c.ByteSize()
	if err := g.account(0, size); err != nil {
		return false, err
	}
	h := c.header()
	h.color = White
	h.next = g.objects
	g.objects = c
	return g.stress || g.bytes > g.threshold, nil
}

// account applies a resize to the byte counter via the allocator hook.
func (g *GC) account(oldSize, newSize int) error {
	if newSize > oldSize {
		if err := g.alloc(oldSize, newSize); err != nil {
			return ErrMemory
		}
	}
	g.bytes += int64(newSize - oldSize)
	if g.bytes < 0 {
		g.bytes = 0
	}
	return nil
}

// Resize reports a change in size of an already-registered object's
// owned allocations (e.g. a table growing its hash part).
func (g *GC) Resize(oldSize, newSize int) error {
	return g.account(oldSize, newSize)
}

// Collect runs one full non-incremental mark-sweep cycle (§4.1 steps
// 1-5):
//
//  1. markRoots is called once; it must call mark for every root
//     (stack slots, call-frame functions, open upvalues, the globals
//     table, and any active compiler roots).
//  2. Gray objects are traced to black, discovering new gray objects
//     via their own Trace method, until the gray worklist is empty.
//  3. sweepHook is called once per object that did not survive the
//     cycle (color still White after tracing), in object-list order,
//     so that owners can perform kind-specific cleanup (e.g. unlinking
//     a dead string from the intern table) before the object is
//     unlinked from the GC's own list and Free is called.
//
// Surviving objects are recolored White for the next cycle, per step
// 4. The collector is implicitly non-reentrant for the duration of
// Collect: a half-collected heap is never observable by caller code,
// matching §5's "GC is disabled implicitly while mark or sweep is in
// progress".
func (g *GC) Collect(markRoots func(mark func(Collectable)), sweepHook func(Collectable)) {
	markRoots(g.mark)
	g.trace()
	g.sweep(sweepHook)
	g.threshold = int64(float64(g.bytes) * GrowFactor)
}

// mark transitions a white object to gray and appends it to the tail
// of the gray worklist, per §4.1 step 2 ("New children discovered
// during trace are appended at the tail so iteration is not
// invalidated"). Already gray/black/fixed objects are left alone.
func (g *GC) mark(c Collectable) {
	if c == nil {
		return
	}
	h := c.header()
	if h.color != White {
		return
	}
	h.color = Gray
	g.gray.PushBack(c)
}

// trace drains the gray worklist, coloring each object black after
// visiting its referents.
func (g *GC) trace() {
	for g.gray.Len() > 0 {
		c, _ := g.gray.Front()
		g.gray.PopFront(1)
		c.Trace(g.mark)
		c.header().color = Black
	}
}

// sweep walks the global object list once. Black (reachable) objects
// are recolored white for the next cycle and kept; fixed objects are
// always kept and left untouched; white (unreachable) objects are
// reported to sweepHook, unlinked, and freed.
func (g *GC) sweep(sweepHook func(Collectable)) {
	var keep Collectable
	var prevNext *Collectable
	for c := g.objects; c != nil; {
		h := c.header()
		next := h.next
		switch h.color {
		case Fixed:
			linkKept(&keep, prevNext, c)
			prevNext = &h.next
		case Black:
			h.color = White
			linkKept(&keep, prevNext, c)
			prevNext = &h.next
		default: // White, Gray (unreachable gray is impossible post-trace, treat as unreachable)
			if sweepHook != nil {
				sweepHook(c)
			}
			g.bytes -= int64(c.ByteSize())
			if g.bytes < 0 {
				g.bytes = 0
			}
			c.Free()
		}
		c = next
	}
	g.objects = keep
}

// linkKept appends c to the surviving list built during sweep.
func linkKept(head *Collectable, prevNext *Collectable, c Collectable) {
	if prevNext == nil {
		*head = c
	} else {
		*prevNext = c
	}
	c.header().next = nil
}
