// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import "testing"

func TestEmptyTable(t *testing.T) {
	g := NewGlobal(nil)
	tab := g.NewTable(0, 0)
	if got, want := tab.valueType(), TypeTable; got != want {
		t.Errorf("valueType = %v; want %v", got, want)
	}
	if got := tab.Len(); got != 0 {
		t.Errorf("Len() = %d; want 0", got)
	}
	if got := tab.Get(g.intern("missing")); got != nil {
		t.Errorf("Get(missing) = %#v; want nil", got)
	}
}

func TestTableArrayPart(t *testing.T) {
	g := NewGlobal(nil)
	tab := g.NewTable(0, 0)
	for i := 1; i <= 5; i++ {
		if err := tab.Set(Number(i), Number(i*10)); err != nil {
			t.Fatalf("Set(%d) = %v", i, err)
		}
	}
	if got, want := tab.Len(), 5; got != want {
		t.Errorf("Len() = %d; want %d", got, want)
	}
	for i := 1; i <= 5; i++ {
		want := Number(i * 10)
		if got := tab.Get(Number(i)); got != want {
			t.Errorf("Get(%d) = %#v; want %#v", i, got, want)
		}
	}
}

func TestTableHashPart(t *testing.T) {
	g := NewGlobal(nil)
	tab := g.NewTable(0, 0)
	foo := g.intern("foo")
	bar := g.intern("bar")
	if err := tab.Set(foo, Number(1)); err != nil {
		t.Fatal(err)
	}
	if err := tab.Set(bar, Number(2)); err != nil {
		t.Fatal(err)
	}
	if got, want := tab.Get(foo), Value(Number(1)); got != want {
		t.Errorf("Get(foo) = %#v; want %#v", got, want)
	}
	if got, want := tab.Get(bar), Value(Number(2)); got != want {
		t.Errorf("Get(bar) = %#v; want %#v", got, want)
	}
}

func TestTableSetNilValueRemoves(t *testing.T) {
	g := NewGlobal(nil)
	tab := g.NewTable(0, 0)
	k := g.intern("key")
	if err := tab.Set(k, Number(1)); err != nil {
		t.Fatal(err)
	}
	if err := tab.Set(k, nil); err != nil {
		t.Fatal(err)
	}
	if got := tab.Get(k); got != nil {
		t.Errorf("Get(key) after delete = %#v; want nil", got)
	}
}

func TestTableSetNilKeyErrors(t *testing.T) {
	g := NewGlobal(nil)
	tab := g.NewTable(0, 0)
	if err := tab.Set(nil, Number(1)); err == nil {
		t.Error("Set(nil, 1) succeeded; want error")
	}
}

func TestTableRehashGrowsHash(t *testing.T) {
	g := NewGlobal(nil)
	tab := g.NewTable(0, 0)
	const n = 100
	for i := 0; i < n; i++ {
		k := g.intern(string(rune('a' + i%26)) + string(rune('0'+i/26)))
		if err := tab.Set(k, Number(i)); err != nil {
			t.Fatalf("Set(%d) = %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		k := g.intern(string(rune('a'+i%26)) + string(rune('0'+i/26)))
		if got, want := tab.Get(k), Value(Number(i)); got != want {
			t.Errorf("Get(%d) = %#v; want %#v", i, got, want)
		}
	}
}

func TestTableNext(t *testing.T) {
	g := NewGlobal(nil)
	tab := g.NewTable(0, 0)
	if err := tab.Set(Number(1), Number(10)); err != nil {
		t.Fatal(err)
	}
	if err := tab.Set(Number(2), Number(20)); err != nil {
		t.Fatal(err)
	}

	seen := make(map[float64]float64)
	var k Value
	for {
		nk, nv, err := tab.Next(k)
		if err != nil {
			t.Fatalf("Next(%#v) = %v", k, err)
		}
		if nk == nil {
			break
		}
		seen[float64(nk.(Number))] = float64(nv.(Number))
		k = nk
	}
	want := map[float64]float64{1: 10, 2: 20}
	if len(seen) != len(want) {
		t.Fatalf("Next iteration saw %v; want %v", seen, want)
	}
	for wk, wv := range want {
		if seen[wk] != wv {
			t.Errorf("seen[%v] = %v; want %v", wk, seen[wk], wv)
		}
	}
}

func TestTableMetatable(t *testing.T) {
	g := NewGlobal(nil)
	tab := g.NewTable(0, 0)
	if got := tab.Metatable(); got != nil {
		t.Errorf("Metatable() = %v; want nil", got)
	}
	meta := g.NewTable(0, 0)
	tab.SetMetatable(meta)
	if got := tab.Metatable(); got != meta {
		t.Errorf("Metatable() = %v; want %v", got, meta)
	}
}
