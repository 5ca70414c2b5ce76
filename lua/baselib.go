// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import "fmt"

// OpenBase installs the basic library (print, type, tostring,
// tonumber, pairs, ipairs, next, raw*, (set|get)metatable, assert,
// error, pcall, xpcall, select) into the globals table, trimmed to
// what a freestanding Lua 5.1 program's control flow and table
// manipulation need (SPEC_FULL.md §3's "Supplemented" base library).
func (s *State) OpenBase() {
	s.RegisterGlobal("print", basePrint)
	s.RegisterGlobal("type", baseType)
	s.RegisterGlobal("tostring", baseToString)
	s.RegisterGlobal("tonumber", baseToNumber)
	s.RegisterGlobal("pairs", basePairs)
	s.RegisterGlobal("ipairs", baseIPairs)
	s.RegisterGlobal("next", baseNext)
	s.RegisterGlobal("rawget", baseRawGet)
	s.RegisterGlobal("rawset", baseRawSet)
	s.RegisterGlobal("rawequal", baseRawEqual)
	s.RegisterGlobal("rawlen", baseRawLen)
	s.RegisterGlobal("setmetatable", baseSetMetatable)
	s.RegisterGlobal("getmetatable", baseGetMetatable)
	s.RegisterGlobal("assert", baseAssert)
	s.RegisterGlobal("error", baseError)
	s.RegisterGlobal("pcall", basePCall)
	s.RegisterGlobal("xpcall", baseXPCall)
	s.RegisterGlobal("select", baseSelect)
	s.RegisterGlobal("unpack", baseUnpack)
	s.rawPush(s.globals)
	s.SetGlobal("_G")
	s.PushString("Lua 5.1")
	s.SetGlobal("_VERSION")
}

func basePrint(s *State) (int, error) {
	n := s.Top()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		str, err := s.ToStringMeta(i)
		if err != nil {
			return 0, err
		}
		parts[i-1] = str
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\t"
		}
		out += p
	}
	fmt.Println(out)
	return 0, nil
}

func baseType(s *State) (int, error) {
	s.PushString(s.Type(1).String())
	return 1, nil
}

func baseToString(s *State) (int, error) {
	str, err := s.ToStringMeta(1)
	if err != nil {
		return 0, err
	}
	s.PushString(str)
	return 1, nil
}

func baseToNumber(s *State) (int, error) {
	n, ok := s.ToNumber(1)
	if !ok {
		s.PushNil()
		return 1, nil
	}
	s.PushNumber(n)
	return 1, nil
}

func baseNext(s *State) (int, error) {
	t, err := s.CheckTable(1)
	if err != nil {
		return 0, err
	}
	key := s.valueAt(2)
	nk, nv, err := t.Next(key)
	if err != nil {
		return 0, s.Errorf("%s", err)
	}
	if nk == nil {
		s.PushNil()
		return 1, nil
	}
	s.rawPush(nk)
	s.rawPush(nv)
	return 2, nil
}

func basePairs(s *State) (int, error) {
	if _, err := s.CheckTable(1); err != nil {
		return 0, err
	}
	s.PushGoFunction("next", baseNext)
	s.PushValue(1)
	s.PushNil()
	return 3, nil
}

func ipairsAux(s *State) (int, error) {
	t, err := s.CheckTable(1)
	if err != nil {
		return 0, err
	}
	i, err := s.CheckInt(2)
	if err != nil {
		return 0, err
	}
	i++
	v := t.Get(Number(i))
	if v == nil {
		s.PushNil()
		return 1, nil
	}
	s.PushNumber(float64(i))
	s.rawPush(v)
	return 2, nil
}

func baseIPairs(s *State) (int, error) {
	if _, err := s.CheckTable(1); err != nil {
		return 0, err
	}
	s.PushGoFunction("ipairs_aux", ipairsAux)
	s.PushValue(1)
	s.PushNumber(0)
	return 3, nil
}

func baseRawGet(s *State) (int, error) {
	if _, err := s.CheckTable(1); err != nil {
		return 0, err
	}
	s.RawGet(1)
	return 1, nil
}

func baseRawSet(s *State) (int, error) {
	if _, err := s.CheckTable(1); err != nil {
		return 0, err
	}
	s.RawSet(1)
	s.PushValue(1)
	return 1, nil
}

func baseRawEqual(s *State) (int, error) {
	s.PushBoolean(s.RawEqual(1, 2))
	return 1, nil
}

func baseRawLen(s *State) (int, error) {
	s.PushNumber(float64(s.RawLen(1)))
	return 1, nil
}

func baseSetMetatable(s *State) (int, error) {
	t, err := s.CheckTable(1)
	if err != nil {
		return 0, err
	}
	if !s.IsNil(2) {
		if _, err := s.CheckTable(2); err != nil {
			return 0, err
		}
	}
	if t.meta != nil && t.meta.Get(s.global.intern("__metatable")) != nil {
		return 0, s.Errorf("cannot change a protected metatable")
	}
	s.SetMetatable(1)
	s.PushValue(1)
	return 1, nil
}

func baseGetMetatable(s *State) (int, error) {
	if !s.Metatable(1) {
		s.PushNil()
		return 1, nil
	}
	if prot := s.valueAt(-1).(*Table).Get(s.global.intern("__metatable")); prot != nil {
		s.Pop(1)
		s.rawPush(prot)
	}
	return 1, nil
}

func baseAssert(s *State) (int, error) {
	if !s.ToBoolean(1) {
		if s.Top() >= 2 {
			msg, _ := s.ToString(2)
			return 0, s.Errorf("%s", msg)
		}
		return 0, s.Errorf("assertion failed!")
	}
	return s.Top(), nil
}

func baseError(s *State) (int, error) {
	level, _ := s.OptInt(2, 1)
	v := s.valueAt(1)
	if str, ok := v.(*OString); ok && level > 0 {
		src, line := s.where(level)
		if src != "" {
			v = s.global.intern(fmt.Sprintf("%s:%d: %s", src, line, str.s))
		}
	}
	return 0, &Error{Kind: UserError, Value: v}
}

func basePCall(s *State) (int, error) {
	n := s.Top()
	if n < 1 {
		return 0, s.Errorf("bad argument #1 to 'pcall' (value expected)")
	}
	err := s.PCall(n-1, -1)
	if err != nil {
		errVal := s.valueAt(-1)
		s.Pop(1)
		s.PushBoolean(false)
		s.rawPush(errVal)
		return 2, nil
	}
	results := s.Top()
	s.insertTrueAtBottom(results)
	return results + 1, nil
}

func baseXPCall(s *State) (int, error) {
	n := s.Top()
	if n < 2 {
		return 0, s.Errorf("bad argument #2 to 'xpcall' (value expected)")
	}
	handler := s.valueAt(2)
	rest := make([]Value, 0, n-2)
	for i := 3; i <= n; i++ {
		rest = append(rest, s.valueAt(i))
	}
	fn := s.valueAt(1)
	s.SetTop(0)
	s.rawPush(fn)
	for _, v := range rest {
		s.rawPush(v)
	}
	err := s.PCall(len(rest), -1)
	if err != nil {
		errVal := s.valueAt(-1)
		s.Pop(1)
		hres, herr := s.call1(handler, errVal)
		s.PushBoolean(false)
		if herr != nil {
			s.rawPush(s.global.intern(herr.Error()))
		} else {
			s.rawPush(hres)
		}
		return 2, nil
	}
	results := s.Top()
	s.insertTrueAtBottom(results)
	return results + 1, nil
}

// insertTrueAtBottom shifts the n values currently on the stack up by
// one slot and writes Boolean(true) underneath them, turning a raw
// result list into pcall/xpcall's "true, result..." convention.
func (s *State) insertTrueAtBottom(n int) {
	s.rawPush(nil)
	base := s.top - n - 1
	copy(s.stack[base+1:s.top], s.stack[base:s.top-1])
	s.stack[base] = Boolean(true)
}

func baseSelect(s *State) (int, error) {
	if str, ok := s.valueAt(1).(*OString); ok && str.s == "#" {
		s.PushNumber(float64(s.Top() - 1))
		return 1, nil
	}
	i, err := s.CheckInt(1)
	if err != nil {
		return 0, err
	}
	n := s.Top()
	if i < 0 {
		i = n + i
	}
	if i < 1 {
		return 0, s.ArgError(1, "index out of range")
	}
	if i > n {
		return 0, nil
	}
	for j := i + 1; j <= n; j++ {
		s.PushValue(j)
	}
	return n - i, nil
}

func baseUnpack(s *State) (int, error) {
	t, err := s.CheckTable(1)
	if err != nil {
		return 0, err
	}
	i, err := s.OptInt(2, 1)
	if err != nil {
		return 0, err
	}
	j, err := s.OptInt(3, t.Len())
	if err != nil {
		return 0, err
	}
	if i > j {
		return 0, nil
	}
	for k := i; k <= j; k++ {
		s.rawPush(t.Get(Number(k)))
	}
	return j - i + 1, nil
}
