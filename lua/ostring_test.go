// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import "testing"

func TestInternIdentity(t *testing.T) {
	g := NewGlobal(nil)
	a := g.intern("hello")
	b := g.intern("hello")
	if a != b {
		t.Errorf("intern(%q) returned distinct objects: %p != %p", "hello", a, b)
	}
	c := g.intern("world")
	if a == c {
		t.Errorf("intern(%q) and intern(%q) returned the same object", "hello", "world")
	}
}

func TestInternGrowsTable(t *testing.T) {
	g := NewGlobal(nil)
	const n = internTableInitialSize * 2
	// NewGlobal has already interned its fixed strings.
	before := g.strings.count
	for i := 0; i < n; i++ {
		g.intern(string(rune('a'+i%26)) + string(rune('A'+i/26)))
	}
	if got, want := g.strings.count, before+n; got != want {
		t.Errorf("strings.count = %d; want %d", got, want)
	}
	// Every interned string must still be findable after growth.
	for i := 0; i < n; i++ {
		s := string(rune('a'+i%26)) + string(rune('A'+i/26))
		if got := g.intern(s); got.s != s {
			t.Errorf("intern(%q).s = %q", s, got.s)
		}
	}
}
