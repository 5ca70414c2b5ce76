// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua_test

import (
	"strings"
	"testing"

	"lunamoth.dev/lua/internal/luacode"
	"lunamoth.dev/lua/lua"
)

func newTestState(t *testing.T) *lua.State {
	t.Helper()
	g := lua.NewGlobal(nil)
	s := g.NewState()
	s.OpenBase()
	t.Cleanup(s.Close)
	return s
}

func runScript(t *testing.T, s *lua.State, src string) {
	t.Helper()
	if err := s.Load(strings.NewReader(src), luacode.LiteralSource(src)); err != nil {
		t.Fatalf("Load(%q) = %v", src, err)
	}
	if err := s.Call(0, 0); err != nil {
		t.Fatalf("Call() running %q = %v", src, err)
	}
}

func TestArithmetic(t *testing.T) {
	s := newTestState(t)
	runScript(t, s, `x = 2 + 3 * 4`)
	s.GetGlobal("x")
	got, ok := s.ToNumber(-1)
	if !ok || got != 14 {
		t.Errorf("x = %v, %v; want 14, true", got, ok)
	}
}

func TestStringConcat(t *testing.T) {
	s := newTestState(t)
	runScript(t, s, `s = "hello" .. " " .. "world"`)
	s.GetGlobal("s")
	got, ok := s.ToString(-1)
	if !ok || got != "hello world" {
		t.Errorf("s = %q, %v; want %q, true", got, ok, "hello world")
	}
}

func TestIfElse(t *testing.T) {
	s := newTestState(t)
	runScript(t, s, `
		if 1 < 2 then
			result = "less"
		else
			result = "not less"
		end
	`)
	s.GetGlobal("result")
	got, _ := s.ToString(-1)
	if got != "less" {
		t.Errorf("result = %q; want %q", got, "less")
	}
}

func TestWhileLoop(t *testing.T) {
	s := newTestState(t)
	runScript(t, s, `
		local i = 0
		local sum = 0
		while i < 10 do
			i = i + 1
			sum = sum + i
		end
		total = sum
	`)
	s.GetGlobal("total")
	got, ok := s.ToNumber(-1)
	if !ok || got != 55 {
		t.Errorf("total = %v, %v; want 55, true", got, ok)
	}
}

func TestNumericForLoop(t *testing.T) {
	s := newTestState(t)
	runScript(t, s, `
		local sum = 0
		for i = 1, 10 do
			sum = sum + i
		end
		total = sum
	`)
	s.GetGlobal("total")
	got, ok := s.ToNumber(-1)
	if !ok || got != 55 {
		t.Errorf("total = %v, %v; want 55, true", got, ok)
	}
}

func TestTableConstructorAndIndex(t *testing.T) {
	s := newTestState(t)
	runScript(t, s, `
		local t = {10, 20, 30, name = "tbl"}
		sum = t[1] + t[2] + t[3]
		name = t.name
		count = #t
	`)
	s.GetGlobal("sum")
	if got, ok := s.ToNumber(-1); !ok || got != 60 {
		t.Errorf("sum = %v, %v; want 60, true", got, ok)
	}
	s.GetGlobal("name")
	if got, ok := s.ToString(-1); !ok || got != "tbl" {
		t.Errorf("name = %q, %v; want %q, true", got, ok, "tbl")
	}
	s.GetGlobal("count")
	if got, ok := s.ToNumber(-1); !ok || got != 3 {
		t.Errorf("count = %v, %v; want 3, true", got, ok)
	}
}

func TestFunctionCallAndClosure(t *testing.T) {
	s := newTestState(t)
	runScript(t, s, `
		function makeCounter()
			local n = 0
			return function()
				n = n + 1
				return n
			end
		end
		local counter = makeCounter()
		a = counter()
		b = counter()
		c = counter()
	`)
	for name, want := range map[string]float64{"a": 1, "b": 2, "c": 3} {
		s.GetGlobal(name)
		got, ok := s.ToNumber(-1)
		if !ok || got != want {
			t.Errorf("%s = %v, %v; want %v, true", name, got, ok, want)
		}
	}
}

func TestRecursiveFunction(t *testing.T) {
	s := newTestState(t)
	runScript(t, s, `
		function fact(n)
			if n <= 1 then
				return 1
			end
			return n * fact(n - 1)
		end
		result = fact(10)
	`)
	s.GetGlobal("result")
	got, ok := s.ToNumber(-1)
	if !ok || got != 3628800 {
		t.Errorf("result = %v, %v; want 3628800, true", got, ok)
	}
}

func TestPCallCatchesError(t *testing.T) {
	s := newTestState(t)
	runScript(t, s, `
		ok, err = pcall(function() error("boom") end)
	`)
	s.GetGlobal("ok")
	if s.ToBoolean(-1) {
		t.Error("ok = true; want false")
	}
	s.Pop(1)
	s.GetGlobal("err")
	got, _ := s.ToString(-1)
	if !strings.Contains(got, "boom") {
		t.Errorf("err = %q; want substring %q", got, "boom")
	}
}

func TestMetatableIndexFallback(t *testing.T) {
	s := newTestState(t)
	runScript(t, s, `
		local base = {greeting = "hi"}
		local derived = setmetatable({}, {__index = base})
		result = derived.greeting
	`)
	s.GetGlobal("result")
	got, ok := s.ToString(-1)
	if !ok || got != "hi" {
		t.Errorf("result = %q, %v; want %q, true", got, ok, "hi")
	}
}

func TestIpairs(t *testing.T) {
	s := newTestState(t)
	runScript(t, s, `
		local sum = 0
		for i, v in ipairs({5, 6, 7}) do
			sum = sum + v
		end
		total = sum
	`)
	s.GetGlobal("total")
	got, ok := s.ToNumber(-1)
	if !ok || got != 18 {
		t.Errorf("total = %v, %v; want 18, true", got, ok)
	}
}
