// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"lunamoth.dev/lua/internal/gc"
)

// OString is an interned, immutable Lua string (§3 "String (OString)").
// Every string with the same bytes in one VM shares a single OString,
// so string equality is pointer equality (invariant I1).
//
// Keyword recognition (§4.5) happens in [internal/lualex] at compile
// time without consulting this intern table: the lexer's reserved-word
// lookup is purely lexical and never needs a live VM, so it keeps its
// own keyword map rather than reaching into the runtime string table.
type OString struct {
	gc.Header
	s    string
	hash uint32

	next *OString // intern-table chain, owned by internTable
}

func (s *OString) valueType() Type { return TypeString }

// String returns the string's bytes.
func (s *OString) String() string { return s.s }

func (s *OString) len() int { return len(s.s) }

func (s *OString) Trace(mark func(gc.Collectable)) {}

func (s *OString) Free() {}

func (s *OString) ByteSize() int {
	return 32 + len(s.s)
}

// fnv1a hashes bytes per §4.2's "ostring_new(bytes) hashes ... with
// FNV-1a".
func fnv1a(s string) uint32 {
	const (
		offsetBasis = 2166136261
		prime       = 16777619
	)
	h := uint32(offsetBasis)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}

// internTable is the VM-global chained hash table mapping
// (hash, length, bytes) to a single canonical [OString], per §4.2.
type internTable struct {
	buckets []*OString
	count   int
}

const internTableInitialSize = 32

func newInternTable() *internTable {
	return &internTable{buckets: make([]*OString, internTableInitialSize)}
}

// intern returns the canonical [OString] for s, allocating and
// registering a new one with the collector if none already exists.
func (g *Global) intern(s string) *OString {
	h := fnv1a(s)
	it := g.strings
	bucket := h & uint32(len(it.buckets)-1)
	for os := it.buckets[bucket]; os != nil; os = os.next {
		if os.hash == h && os.s == s {
			return os
		}
	}

	os := &OString{s: s, hash: h}
	os.next = it.buckets[bucket]
	it.buckets[bucket] = os
	it.count++
	g.noteAllocation(g.gc.Register(os))

	// Grow when count exceeds 75% of capacity (§4.2 "grows when count
	// exceeds 75% of capacity; growth rehashes preserving order-
	// agnostic chain membership").
	if it.count > len(it.buckets)*3/4 {
		g.growInternTable()
	}
	return os
}

func (g *Global) growInternTable() {
	old := g.strings
	newBuckets := make([]*OString, len(old.buckets)*2)
	for _, head := range old.buckets {
		for os := head; os != nil; {
			next := os.next
			b := os.hash & uint32(len(newBuckets)-1)
			os.next = newBuckets[b]
			newBuckets[b] = os
			os = next
		}
	}
	old.buckets = newBuckets
}

// sweepString unlinks a string from the intern table; called by the
// collector's sweep hook for strings that did not survive a cycle
// (§4.1 step 3, "string-table sweep").
func (g *Global) sweepString(os *OString) {
	it := g.strings
	bucket := os.hash & uint32(len(it.buckets)-1)
	prev := &it.buckets[bucket]
	for cur := *prev; cur != nil; cur = *prev {
		if cur == os {
			*prev = cur.next
			it.count--
			return
		}
		prev = &cur.next
	}
}

// fixedString interns s and marks it [gc.Fixed] so it is never swept,
// matching the object-header invariant for "keywords, the canonical
// memory-error string".
func (g *Global) fixedString(s string) *OString {
	os := g.intern(s)
	gc.MakeFixed(os)
	return os
}
