// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

// Package lua implements a from-scratch Lua 5.1 compiler and virtual
// machine: a register-based bytecode VM with a tri-color mark-sweep
// collector, embedded in Go programs through a stack-based API
// modeled on the reference C API (§4.8).
package lua

import (
	"bufio"
	"fmt"
	"io"

	"lunamoth.dev/lua/internal/luacode"
)

// stackIndex translates a 1-based or negative API index into an
// absolute index into s.stack, relative to the current call frame's
// base (§4.8's indexing convention). It returns ok == false only for
// index 0; it does not check the result against the stack's bounds.
func (s *State) stackIndex(idx int) (int, bool) {
	base := 0
	if f := s.currentFrame(); f != nil {
		base = f.base
	}
	switch {
	case idx > 0:
		return base + idx - 1, true
	case idx < 0:
		return s.top + idx, true
	default:
		return 0, false
	}
}

// AbsIndex converts idx to an equivalent non-negative index relative
// to the current frame, as the top of stack stood when called.
func (s *State) AbsIndex(idx int) int {
	if idx > 0 {
		return idx
	}
	base := 0
	if f := s.currentFrame(); f != nil {
		base = f.base
	}
	return s.top - base + idx + 1
}

// Top returns the number of values on the stack above the current
// call frame's base.
func (s *State) Top() int {
	base := 0
	if f := s.currentFrame(); f != nil {
		base = f.base
	}
	return s.top - base
}

// SetTop sets the number of values above the current frame's base,
// filling any newly-exposed slots with nil.
func (s *State) SetTop(idx int) {
	base := 0
	if f := s.currentFrame(); f != nil {
		base = f.base
	}
	n := idx
	if idx < 0 {
		n = s.Top() + idx + 1
	}
	s.setTop(base + n)
}

// Pop removes the top n values from the stack.
func (s *State) Pop(n int) {
	s.SetTop(-n - 1)
}

func (s *State) valueAt(idx int) Value {
	i, ok := s.stackIndex(idx)
	if !ok || i < 0 || i >= s.top {
		return nil
	}
	return s.stack[i]
}

// PushNil pushes nil.
func (s *State) PushNil() { s.rawPush(nil) }

// PushBoolean pushes a boolean.
func (s *State) PushBoolean(b bool) { s.rawPush(Boolean(b)) }

// PushNumber pushes a number.
func (s *State) PushNumber(n float64) { s.rawPush(Number(n)) }

// PushString interns and pushes a string.
func (s *State) PushString(str string) {
	s.rawPush(s.global.intern(str))
	s.checkGC()
}

// PushValue pushes a copy of the value at idx.
func (s *State) PushValue(idx int) { s.rawPush(s.valueAt(idx)) }

// PushGoFunction pushes a host function as a callable Lua value
// (§4.8's "Go/C function" closure shape).
func (s *State) PushGoFunction(name string, fn GoFunction) {
	s.rawPush(s.global.newGoClosure(name, fn))
	s.checkGC()
}

// Type reports the type of the value at idx, or [TypeNone] if idx is
// not an acceptable, currently-valid index.
func (s *State) Type(idx int) Type {
	i, ok := s.stackIndex(idx)
	if !ok || i < 0 || i >= s.top {
		return TypeNone
	}
	return valueType(s.stack[i])
}

// IsNil reports whether the value at idx is nil (or absent).
func (s *State) IsNil(idx int) bool { return s.Type(idx) == TypeNil || s.Type(idx) == TypeNone }

// IsNone reports whether idx is not a valid, currently-occupied
// index.
func (s *State) IsNone(idx int) bool { return s.Type(idx) == TypeNone }

// ToBoolean reports the truthiness of the value at idx (§4.2).
func (s *State) ToBoolean(idx int) bool { return toBoolean(s.valueAt(idx)) }

// ToNumber coerces the value at idx to a float64, reporting ok=false
// if it is neither a number nor a numeral string.
func (s *State) ToNumber(idx int) (float64, bool) {
	n, ok := toNumber(s.valueAt(idx))
	return float64(n), ok
}

// ToString coerces the value at idx to a string the way tostring()
// without a __tostring metamethod would (nil, booleans, numbers and
// strings only; it does not call metamethods — use
// [State.ToStringMeta] for that).
func (s *State) ToString(idx int) (string, bool) {
	return tostringValue(s.valueAt(idx))
}

// ToStringMeta renders the value at idx as tostring() would,
// consulting __tostring if present (§4.7/§4.8).
func (s *State) ToStringMeta(idx int) (string, error) {
	v := s.valueAt(idx)
	if t, ok := v.(*Table); ok && t.meta != nil {
		if mm := t.meta.Get(s.global.intern("__tostring")); mm != nil {
			r, err := s.call1(mm, v)
			if err != nil {
				return "", err
			}
			str, _ := tostringValue(r)
			return str, nil
		}
	}
	if str, ok := tostringValue(v); ok {
		return str, nil
	}
	return typeAddressString(v), nil
}

func typeAddressString(v Value) string {
	switch v := v.(type) {
	case *Table:
		return "table: 0x" + hexID(v.id)
	case *Closure:
		return "function: 0x" + hexID(v.id)
	default:
		return valueType(v).String()
	}
}

func hexID(id uint64) string {
	const digits = "0123456789abcdef"
	if id == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = digits[id%16]
		id /= 16
	}
	return string(buf[i:])
}

// RawEqual reports whether the values at idx1 and idx2 are raw-equal
// (no metamethods, §4.3).
func (s *State) RawEqual(idx1, idx2 int) bool {
	return rawEqual(s.valueAt(idx1), s.valueAt(idx2))
}

// RawLen returns the raw length of the value at idx (string byte
// length or table border, never consulting __len).
func (s *State) RawLen(idx int) int {
	switch v := s.valueAt(idx).(type) {
	case *OString:
		return v.len()
	case *Table:
		return v.Len()
	default:
		return 0
	}
}

// CreateTable pushes a new table with the given array/hash size
// hints.
func (s *State) CreateTable(narr, nrec int) {
	s.rawPush(s.global.NewTable(narr, nrec))
	s.checkGC()
}

// RawGet replaces the table at idx's raw value for the key popped
// from the top of the stack with the table's raw lookup of that key.
func (s *State) RawGet(idx int) Type {
	t, _ := s.valueAt(idx).(*Table)
	k := s.valueAt(-1)
	s.Pop(1)
	var v Value
	if t != nil {
		v = t.Get(k)
	}
	s.rawPush(v)
	return valueType(v)
}

// RawSet pops a value and a key (in that order) and performs a raw
// assignment on the table at idx.
func (s *State) RawSet(idx int) {
	t, _ := s.valueAt(idx).(*Table)
	v := s.valueAt(-1)
	k := s.valueAt(-2)
	s.Pop(2)
	if t != nil {
		t.Set(k, v)
	}
}

// GetField pushes t[name] for the table (or __index-bearing value)
// at idx.
func (s *State) GetField(idx int, name string) (Type, error) {
	v, err := s.index(s.valueAt(idx), s.global.intern(name))
	if err != nil {
		return TypeNone, err
	}
	s.rawPush(v)
	return valueType(v), nil
}

// SetField pops a value and assigns it to t[name] for the value at
// idx, consulting __newindex.
func (s *State) SetField(idx int, name string) error {
	v := s.valueAt(-1)
	s.Pop(1)
	return s.newIndex(s.valueAt(idx), s.global.intern(name), v)
}

// GetGlobal pushes the value of the named global.
func (s *State) GetGlobal(name string) Type {
	v := s.globals.Get(s.global.intern(name))
	s.rawPush(v)
	return valueType(v)
}

// SetGlobal pops a value and assigns it to the named global.
func (s *State) SetGlobal(name string) {
	v := s.valueAt(-1)
	s.Pop(1)
	s.globals.Set(s.global.intern(name), v)
}

// Metatable pushes the metatable of the value at idx, reporting false
// (and pushing nothing) if it has none.
func (s *State) Metatable(idx int) bool {
	t, ok := s.valueAt(idx).(*Table)
	if !ok || t.meta == nil {
		return false
	}
	s.rawPush(t.meta)
	return true
}

// SetMetatable pops a table (or nil) and installs it as the
// metatable of the value at idx.
func (s *State) SetMetatable(idx int) {
	m, _ := s.valueAt(-1).(*Table)
	s.Pop(1)
	if t, ok := s.valueAt(idx).(*Table); ok {
		t.SetMetatable(m)
	}
}

// Call calls a function value with nargs arguments already pushed
// (the function itself pushed before them), replacing them all with
// however many results the callee produces, or exactly nresults if
// nresults >= 0 (§4.8). Errors propagate to the caller uncaught; use
// [State.PCall] to trap them. An error escaping with no protected
// call anywhere on the Go call stack also runs the panic hook
// installed by [Global.SetPanicHook], mirroring real Lua's
// lua_atpanic without aborting the host process.
func (s *State) Call(nargs, nresults int) error {
	fnIdx := s.top - nargs - 1
	fn := s.stack[fnIdx]
	args := append([]Value(nil), s.stack[fnIdx+1:s.top]...)
	s.setTop(fnIdx)
	results, err := s.call(fn, args)
	if err != nil {
		if s.global.panicHook != nil {
			s.global.panicHook(s, err)
		}
		return err
	}
	if nresults >= 0 && len(results) > nresults {
		results = results[:nresults]
	}
	for _, r := range results {
		s.rawPush(r)
	}
	for len(results) < nresults {
		s.rawPush(nil)
		results = append(results, nil)
	}
	return nil
}

// PCall is [State.Call] with errors trapped and reported as an error
// return rather than propagated, restoring the stack to its
// pre-call depth on failure (§4.7's protected-call handler chain).
func (s *State) PCall(nargs, nresults int) (err error) {
	savedTop := s.top - nargs - 1
	savedFrames := s.frameDepth()
	// Errors trapped here are not uncaught, so the panic hook is
	// suspended for the duration of the protected call.
	hook := s.global.panicHook
	s.global.panicHook = nil
	defer func() { s.global.panicHook = hook }()
	defer func() {
		if r := recover(); r != nil {
			// A bug or resource exhaustion deep in the dispatch loop
			// (e.g. a Go-level slice panic) still honors the
			// protected-call boundary, matching the reference
			// implementation's setjmp/longjmp-based error handling.
			s.unwindTo(savedTop, savedFrames)
			lerr := &Error{Kind: RuntimeError, Value: s.global.intern(panicMessage(r))}
			s.rawPush(lerr.Value)
			err = lerr
		}
	}()
	if callErr := s.Call(nargs, nresults); callErr != nil {
		s.unwindTo(savedTop, savedFrames)
		if lerr, ok := callErr.(*Error); ok {
			s.rawPush(lerr.Value)
		} else {
			s.rawPush(s.global.intern(callErr.Error()))
		}
		return callErr
	}
	return nil
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(r)
}

func (s *State) unwindTo(top, frameDepth int) {
	for s.frameDepth() > frameDepth {
		s.popFrame()
	}
	s.setTop(top)
}

// Load compiles a chunk from r, pushing the resulting function (or,
// on failure, an error value) per §4.8's "load" semantics.
func (s *State) Load(r io.Reader, chunkName luacode.Source) error {
	br, ok := r.(io.ByteScanner)
	if !ok {
		br = bufio.NewReader(r)
	}
	proto, err := luacode.Parse(chunkName, br)
	if err != nil {
		s.rawPush(s.global.intern(err.Error()))
		return &Error{Kind: SyntaxError, Value: s.valueAt(-1)}
	}
	s.rawPush(s.global.newLuaClosure(proto))
	return nil
}
