// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"github.com/google/uuid"

	"lunamoth.dev/lua/internal/deque"
	"lunamoth.dev/lua/internal/gc"
)

// Global holds the state shared by every [State] (coroutine/thread)
// running against one VM instance: the object heap, the string
// intern table, the registry, and the panic hook (§3 "VM state").
// Lua 5.1 coroutines are out of this module's scope (see
// SPEC_FULL.md's Non-goals), so in practice exactly one [State] ever
// exists per [Global], but the split mirrors the reference
// architecture and leaves room for that extension.
type Global struct {
	gc      *gc.GC
	strings *internTable
	// registry is the table backing the "C registry" pseudo-index:
	// host code stashes values here that must survive across calls
	// but shouldn't be reachable from Lua (§4.8).
	registry *Table

	// id is the next allocation-order id handed out by nextID, used
	// to hash and compare tables and closures (§4.3's hash part).
	id uint64

	// memErr is the fixed, pre-allocated error string returned when
	// the allocator reports [gc.ErrMemory] and no further allocation
	// can be risked to build a richer message (§4.1).
	memErr *OString

	panicHook func(*State, error)

	// liveStates lists every [State] opened against this [Global], so
	// [Global.markRoots] can trace all of their stacks.
	liveStates []*State

	// pendingCollect latches true when an allocation reports that the
	// collector's threshold was crossed. It is consulted (and
	// cleared) only at safe points where every just-allocated object
	// is already anchored to a root, never inside the allocation
	// itself (see [Global.NewTable]'s comment).
	pendingCollect bool

	// instanceID identifies this VM instance for log correlation when
	// a host process runs more than one (§5 "Multiple VM objects are
	// independent").
	instanceID uuid.UUID
}

// NewGlobal creates a fresh VM instance with its own heap, backed by
// alloc for memory accounting (§4.1's "Allocator"). A nil alloc uses
// an allocator with no budget.
func NewGlobal(alloc gc.Allocator) *Global {
	if alloc == nil {
		alloc = func(oldSize, newSize int) error { return nil }
	}
	g := &Global{
		gc:         gc.New(alloc),
		strings:    newInternTable(),
		instanceID: uuid.New(),
	}
	g.registry = g.NewTable(0, 0)
	g.memErr = g.fixedString("not enough memory")
	return g
}

// InstanceID returns the UUID identifying this VM instance, stable for
// its lifetime. Intended for log correlation, not persistence.
func (g *Global) InstanceID() uuid.UUID {
	return g.instanceID
}

func (g *Global) nextID() uint64 {
	g.id++
	return g.id
}

// SetPanicHook installs fn to be called instead of panicking when an
// error escapes a protected call boundary with no handler left on the
// stack (§4.7's "panic hook").
func (g *Global) SetPanicHook(fn func(*State, error)) {
	g.panicHook = fn
}

// markRoots and sweepHook together implement [gc.GC.Collect]'s two
// callbacks for this VM: markRoots walks every GC root (the registry,
// each live [State]'s stack and open upvalues), and sweepHook detaches
// a dying [*OString] from the intern table before it is freed.
func (g *Global) markRoots(mark func(gc.Collectable)) {
	mark(g.registry)
	mark(g.memErr)
	for _, s := range g.liveStates {
		s.markRoots(mark)
	}
}

func (g *Global) sweepHook(c gc.Collectable) {
	if os, ok := c.(*OString); ok {
		g.sweepString(os)
	}
}

// Collect runs a full mark-sweep GC cycle (§4.1).
func (g *Global) Collect() {
	g.gc.Collect(g.markRoots, g.sweepHook)
}

// SetGCStress enables or disables stress mode, which forces a full
// collection on every allocation instead of waiting for the threshold
// to be crossed. Intended for tests and the command-line driver's
// `--gc-stress` flag, not production use.
func (g *Global) SetGCStress(stress bool) {
	g.gc.SetStress(stress)
}

// noteAllocation latches pendingCollect if the most recent
// [gc.GC.Register] call reported the threshold was crossed.
func (g *Global) noteAllocation(needsCollect bool) {
	if needsCollect {
		g.pendingCollect = true
	}
}

// checkGC runs a collection cycle if one is pending, per the safe
// points documented at [Global.NewTable].
func (s *State) checkGC() {
	if s.global.pendingCollect {
		s.global.pendingCollect = false
		s.global.Collect()
	}
}

// State is one Lua execution context: a value stack, a call-frame
// stack, the chain of open upvalues pointing into that stack, and the
// globals table it executes against (§3 "VM state", §4.8).
//
// A State is not safe for concurrent use; the VM is single-threaded
// by design.
type State struct {
	global *Global

	stack []Value
	// top is the index one past the last valid stack slot, i.e. the
	// stack's logical length; [State.stack] may have extra, unused
	// capacity beyond top.
	top int

	frames deque.Deque[*Frame]

	openUpvalues *Upvalue

	globals *Table
}

const initialStackSize = 256

// NewState opens a fresh execution context against g, with an empty
// globals table.
func (g *Global) NewState() *State {
	s := &State{
		global:  g,
		stack:   make([]Value, initialStackSize),
		globals: g.NewTable(0, 0),
	}
	g.liveStates = append(g.liveStates, s)
	return s
}

// Close detaches s from its [Global], allowing its stack contents to
// be collected on the next cycle.
func (s *State) Close() {
	g := s.global
	for i, other := range g.liveStates {
		if other == s {
			g.liveStates = append(g.liveStates[:i], g.liveStates[i+1:]...)
			break
		}
	}
}

func (s *State) markRoots(mark func(gc.Collectable)) {
	for i := 0; i < s.top; i++ {
		markValue(mark, s.stack[i])
	}
	mark(s.globals)
	for f := range s.frames.Values() {
		if f.closure != nil {
			mark(f.closure)
		}
	}
	for uv := s.openUpvalues; uv != nil; uv = uv.next {
		mark(uv)
	}
}
