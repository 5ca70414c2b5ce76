// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"errors"
	"math"

	"lunamoth.dev/lua/internal/bitset"
	"lunamoth.dev/lua/internal/gc"
)

// Table is the hybrid array+hash container described in §4.3: a
// contiguous array part holding keys 1..len(array), and an
// open-addressed hash part (with tombstones) for everything else.
type Table struct {
	gc.Header
	id uint64

	array []Value
	hash  []tableEntry
	// hashOccupied counts hash slots that are not genuinely empty
	// (a live key or a tombstone), used against the load-factor
	// threshold — tombstones occupy a slot until the next rehash
	// reclaims it.
	hashOccupied int

	meta *Table
	// flags caches which metamethods are confirmed absent from meta,
	// indexed by [luacode.TagMethod] (§3 "flags").
	flags bitset.Set
}

type tableEntry struct {
	// A tombstone is represented by a nil key with a non-nil value
	// (invariant I4); a genuinely empty slot has both nil.
	key, value Value
}

// NewTable allocates a table with the given initial array and hash
// size hints, matching the NEW_TABLE instruction's contract (§4.4).
func (g *Global) NewTable(arraySize, hashSize int) *Table {
	t := &Table{id: g.nextID()}
	if arraySize > 0 {
		t.array = make([]Value, arraySize)
	}
	if hashSize > 0 {
		t.hash = make([]tableEntry, nextPow2(hashSize))
	}
	// Collection is never triggered synchronously from inside an
	// allocation: t isn't reachable from any root yet (it hasn't been
	// stored into a register or the stack), so an immediate cycle
	// could sweep it before the caller anchors it. The VM instead
	// polls the pending-collection flag via [State.checkGC] at safe
	// points — after a freshly
	// allocated value lands in a register (§4.1's collection timing).
	g.noteAllocation(g.gc.Register(t))
	return t
}

func (t *Table) valueType() Type { return TypeTable }

func (t *Table) Trace(mark func(gc.Collectable)) {
	for _, v := range t.array {
		markValue(mark, v)
	}
	for _, e := range t.hash {
		if e.key != nil {
			markValue(mark, e.key)
		}
		markValue(mark, e.value)
	}
	if t.meta != nil {
		mark(t.meta)
	}
}

func (t *Table) Free() {}

func (t *Table) ByteSize() int {
	return 48 + len(t.array)*16 + len(t.hash)*32
}

var (
	errTableIndexNil = errors.New("table index is nil")
	errTableIndexNaN = errors.New("table index is NaN")
)

// Get performs a raw lookup (no metamethods), returning nil if the
// key is absent.
func (t *Table) Get(key Value) Value {
	if t == nil || key == nil {
		return nil
	}
	if n, ok := key.(Number); ok {
		if i, ok := numberToArrayIndex(n); ok && i <= len(t.array) {
			return t.array[i-1]
		}
	}
	if idx, found := t.findKey(key); found {
		return t.hash[idx].value
	}
	return nil
}

// Set performs a raw assignment (no metamethods), per the insertion
// algorithm in §4.3.
func (t *Table) Set(key, val Value) error {
	switch k := key.(type) {
	case nil:
		return errTableIndexNil
	case Number:
		if math.IsNaN(float64(k)) {
			return errTableIndexNaN
		}
	}

	if n, ok := key.(Number); ok {
		if i, ok := numberToArrayIndex(n); ok && i <= len(t.array) {
			t.array[i-1] = val
			return nil
		}
	}

	if val == nil {
		if idx, found := t.findKey(key); found {
			t.hash[idx] = tableEntry{key: nil, value: Boolean(true)}
		}
		return nil
	}

	if idx, found := t.findKey(key); found {
		t.hash[idx].value = val
		return nil
	}

	if t.hashOccupied+1 > t.hashCapacityThreshold() {
		t.rehash(key)
		// The rehash may have grown the array to now cover key.
		if n, ok := key.(Number); ok {
			if i, ok := numberToArrayIndex(n); ok && i <= len(t.array) {
				t.array[i-1] = val
				return nil
			}
		}
	}

	idx, found := t.findSlotForInsert(key)
	if idx < 0 {
		t.rehash(key)
		idx, found = t.findSlotForInsert(key)
	}
	if !found && t.hash[idx].value == nil {
		t.hashOccupied++
	}
	t.hash[idx] = tableEntry{key: key, value: val}
	return nil
}

// hashCapacityThreshold reports the occupied-slot count that triggers
// a rehash: 75% of capacity above 8 slots, 100% (i.e. completely
// full) at or below it, per §4.3.
func (t *Table) hashCapacityThreshold() int {
	cap := len(t.hash)
	if cap > 8 {
		return cap * 3 / 4
	}
	return cap
}

// findKey locates an existing live entry for key, scanning past
// tombstones until a genuinely empty slot (never written) ends the
// probe sequence.
func (t *Table) findKey(key Value) (idx int, found bool) {
	if len(t.hash) == 0 {
		return 0, false
	}
	mask := uint64(len(t.hash) - 1)
	start := hashValue(key) & mask
	for i := start; ; i = (i + 1) & mask {
		e := &t.hash[i]
		if e.key == nil && e.value == nil {
			return 0, false
		}
		if e.key != nil && rawEqual(e.key, key) {
			return int(i), true
		}
		if i == (start-1)&mask {
			return 0, false
		}
	}
}

// findSlotForInsert locates either the existing entry for key or the
// first free slot (preferring a tombstone over an untouched slot) to
// receive it. It returns idx == -1 if the hash part has no free slot
// at all (callers must rehash and retry).
func (t *Table) findSlotForInsert(key Value) (idx int, found bool) {
	if len(t.hash) == 0 {
		return -1, false
	}
	mask := uint64(len(t.hash) - 1)
	start := hashValue(key) & mask
	tomb := -1
	for i := start; ; i = (i + 1) & mask {
		e := &t.hash[i]
		switch {
		case e.key == nil && e.value == nil:
			if tomb >= 0 {
				return tomb, false
			}
			return int(i), false
		case e.key == nil:
			if tomb < 0 {
				tomb = int(i)
			}
		case rawEqual(e.key, key):
			return int(i), true
		}
		if i == (start-1)&mask {
			if tomb >= 0 {
				return tomb, false
			}
			return -1, false
		}
	}
}

// maxIntBits bounds the power-of-two range scan in [Table.rehash];
// keys past 2^maxIntBits all collapse into the last bucket, matching
// real Lua's similarly bounded MAXABITS.
const maxIntBits = 30

// rehash recomputes the optimal array/hash split considering every
// currently-live key plus the about-to-be-inserted incoming key, per
// §4.3's "Rehash algorithm". It resizes the array in place, filling
// holes with nil, and reinserts every surviving hash entry (and any
// array tail that no longer fits) into a freshly sized hash segment,
// discarding tombstones along the way.
func (t *Table) rehash(incoming Value) {
	var nums [maxIntBits + 1]int
	totalKeys := 0

	count := func(i int) {
		b := intBucket(i)
		if b > maxIntBits {
			b = maxIntBits
		}
		nums[b]++
	}
	for i, v := range t.array {
		if v != nil {
			totalKeys++
			count(i + 1)
		}
	}
	for _, e := range t.hash {
		if e.key != nil {
			totalKeys++
			if n, ok := e.key.(Number); ok {
				if i, ok := numberToArrayIndex(n); ok {
					count(i)
				}
			}
		}
	}
	totalKeys++ // the incoming key, not yet stored anywhere
	if n, ok := incoming.(Number); ok {
		if i, ok := numberToArrayIndex(n); ok {
			count(i)
		}
	}

	bestSize, bestCount, acc := 0, 0, 0
	for b := 0; b <= maxIntBits; b++ {
		twoToB := 1 << uint(b)
		acc += nums[b]
		if acc > twoToB/2 {
			bestSize, bestCount = twoToB, acc
		}
	}

	oldArray, oldHash := t.array, t.hash
	newArray := make([]Value, bestSize)
	copy(newArray, oldArray)
	var vanished []tableEntry
	for i := bestSize; i < len(oldArray); i++ {
		if oldArray[i] != nil {
			vanished = append(vanished, tableEntry{key: Number(i + 1), value: oldArray[i]})
		}
	}
	t.array = newArray

	remaining := totalKeys - bestCount
	newHashSize := 0
	if remaining > 0 {
		newHashSize = nextPow2(remaining)
		if newHashSize < 4 {
			newHashSize = 4
		}
	}
	t.hash = make([]tableEntry, newHashSize)
	t.hashOccupied = 0

	reinsert := func(k, v Value) {
		if n, ok := k.(Number); ok {
			if i, ok := numberToArrayIndex(n); ok && i <= len(t.array) {
				t.array[i-1] = v
				return
			}
		}
		idx, _ := t.findSlotForInsert(k)
		t.hash[idx] = tableEntry{key: k, value: v}
		t.hashOccupied++
	}
	for _, e := range vanished {
		reinsert(e.key, e.value)
	}
	for _, e := range oldHash {
		if e.key != nil {
			reinsert(e.key, e.value)
		}
	}
}

// intBucket returns the power-of-two range index (§4.3) containing
// the positive integer i: bucket 0 covers (0,1], bucket b>=1 covers
// (2^(b-1), 2^b].
func intBucket(i int) int {
	if i <= 1 {
		return 0
	}
	b, x := 0, i-1
	for x > 0 {
		x >>= 1
		b++
	}
	return b
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// numberToArrayIndex reports whether n denotes a positive integer
// small enough to plausibly live in an array part.
func numberToArrayIndex(n Number) (int, bool) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < 1 || f > 1<<maxIntBits {
		return 0, false
	}
	return int(f), true
}

// Len implements the "#t" operator: the border-search algorithm of
// §4.3 (binary search within the array part, falling through to an
// unbound doubling search over the hash part when the array is
// entirely full).
func (t *Table) Len() int {
	n := len(t.array)
	if n > 0 && t.array[n-1] == nil {
		lo, hi := 0, n
		for hi-lo > 1 {
			mid := (lo + hi) / 2
			if t.array[mid-1] == nil {
				hi = mid
			} else {
				lo = mid
			}
		}
		return lo
	}
	i, j := n, n+1
	for t.Get(Number(j)) != nil {
		i = j
		if j > math.MaxInt32 {
			for t.Get(Number(i+1)) != nil {
				i++
			}
			return i
		}
		j *= 2
	}
	for j-i > 1 {
		mid := (i + j) / 2
		if t.Get(Number(mid)) == nil {
			j = mid
		} else {
			i = mid
		}
	}
	return i
}

// Next implements the "next" iteration primitive (§4.3): given a
// previously-returned key (or nil to start), returns the following
// live key/value pair, scanning the array part before the hash part.
// An unrecognized key is a runtime error (invariant: callers must not
// mutate the table's shape between calls).
func (t *Table) Next(key Value) (Value, Value, error) {
	arrayStart := 0
	if key != nil {
		i, ok := -1, false
		if n, isNum := key.(Number); isNum {
			i, ok = numberToArrayIndex(n)
		}
		if ok && i <= len(t.array) {
			arrayStart = i
		} else {
			idx, found := t.findKey(key)
			if !found {
				return nil, nil, errors.New("invalid key to 'next'")
			}
			nk, nv, _ := t.nextInHash(idx + 1)
			return nk, nv, nil
		}
	}
	for i := arrayStart; i < len(t.array); i++ {
		if t.array[i] != nil {
			return Number(i + 1), t.array[i], nil
		}
	}
	nk, nv, _ := t.nextInHash(0)
	return nk, nv, nil
}

func (t *Table) nextInHash(from int) (Value, Value, bool) {
	for i := from; i < len(t.hash); i++ {
		if t.hash[i].key != nil {
			return t.hash[i].key, t.hash[i].value, true
		}
	}
	return nil, nil, false
}

// Metatable returns the table's metatable, or nil if it has none.
func (t *Table) Metatable() *Table { return t.meta }

// SetMetatable installs m as t's metatable and clears the absent-
// metamethod cache, since entries that used to be confirmed missing
// may now resolve through the new metatable.
func (t *Table) SetMetatable(m *Table) {
	t.meta = m
	t.flags.Clear()
}
