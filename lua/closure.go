// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"lunamoth.dev/lua/internal/gc"
	"lunamoth.dev/lua/internal/luacode"
)

// GoFunction is a host function callable from Lua, in the embedding
// API's stack-based convention (§4.8): arguments and results pass
// through the [State]'s value stack rather than as Go parameters and
// return values.
type GoFunction func(s *State) (int, error)

// Closure is a callable [Value]: either a Lua closure pairing a
// compiled [*luacode.Prototype] with its captured [*Upvalue]s, or a
// Go closure wrapping a [GoFunction] with its own captured values.
// Both shapes share one object header so a [Value] never needs to
// distinguish them except when calling (§3 "Closure").
type Closure struct {
	gc.Header
	id uint64

	proto     *luacode.Prototype // nil for a Go closure
	upvalues  []*Upvalue         // Lua closure: one live Upvalue per descriptor
	constants []Value            // proto.Constants resolved to runtime Values once

	goFn     GoFunction // nil for a Lua closure
	upvalsGo []Value    // Go closure: captured values, read-only after creation

	name string // best-effort, for error messages and debug info
}

func (c *Closure) valueType() Type { return TypeFunction }

// IsGo reports whether c wraps a host [GoFunction] rather than a
// compiled Lua prototype.
func (c *Closure) IsGo() bool { return c.proto == nil }

func (c *Closure) Trace(mark func(gc.Collectable)) {
	for _, uv := range c.upvalues {
		mark(uv)
	}
	for _, v := range c.upvalsGo {
		markValue(mark, v)
	}
	for _, v := range c.constants {
		markValue(mark, v)
	}
}

func (c *Closure) Free() {}

func (c *Closure) ByteSize() int {
	return 48 + len(c.upvalues)*8 + len(c.upvalsGo)*16
}

// newLuaClosure allocates a closure over proto with every upvalue
// slot initialized to nil; the VM's execution of OP_CLOSURE (in
// [State.callLua]) fills each
// slot in by either capturing a parent-frame local as an open
// [Upvalue] or sharing one of the enclosing closure's own upvalues,
// per each [luacode.UpvalueDescriptor] (§4.6).
func (g *Global) newLuaClosure(proto *luacode.Prototype) *Closure {
	constants := make([]Value, len(proto.Constants))
	for i, k := range proto.Constants {
		switch {
		case k.IsNil():
			constants[i] = nil
		case k.IsBool():
			constants[i] = Boolean(k.Bool())
		case k.IsNumber():
			constants[i] = Number(k.Number())
		case k.IsString():
			constants[i] = g.intern(k.String())
		}
	}
	c := &Closure{
		id:        g.nextID(),
		proto:     proto,
		upvalues:  make([]*Upvalue, len(proto.Upvalues)),
		constants: constants,
	}
	g.noteAllocation(g.gc.Register(c))
	return c
}

// newGoClosure allocates a closure wrapping fn, capturing upvals by
// value (§4.8 "Go/C function" closures carry their own constants,
// not stack-linked upvalues).
func (g *Global) newGoClosure(name string, fn GoFunction, upvals ...Value) *Closure {
	c := &Closure{
		id:       g.nextID(),
		goFn:     fn,
		upvalsGo: append([]Value(nil), upvals...),
		name:     name,
	}
	g.noteAllocation(g.gc.Register(c))
	return c
}
