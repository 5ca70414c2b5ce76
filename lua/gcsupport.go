// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"math"

	"lunamoth.dev/lua/internal/gc"
)

// markValue marks v's collectable payload, if it has one, as a GC
// root or as a child reference during trace. Non-collectable kinds
// (nil, Boolean, Number, LightUserdata) are no-ops.
func markValue(mark func(gc.Collectable), v Value) {
	switch v := v.(type) {
	case *OString:
		mark(v)
	case *Table:
		mark(v)
	case *Closure:
		mark(v)
	}
}

// rawEqual reports whether a and b are the same Lua value with no
// metamethod consultation (§4.3's table-key equality, and the
// non-metamethod half of the EQ instruction). Strings compare by
// pointer because every string is interned (invariant I1); tables
// and closures compare by identity.
func rawEqual(a, b Value) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case Boolean:
		bb, ok := b.(Boolean)
		return ok && a == bb
	case Number:
		bb, ok := b.(Number)
		return ok && float64(a) == float64(bb)
	case *OString:
		bb, ok := b.(*OString)
		return ok && a == bb
	case *Table:
		bb, ok := b.(*Table)
		return ok && a == bb
	case *Closure:
		bb, ok := b.(*Closure)
		return ok && a == bb
	case LightUserdata:
		bb, ok := b.(LightUserdata)
		return ok && a == bb
	default:
		return false
	}
}

// hashValue computes a table hash-part bucket key for v. Strings
// reuse their precomputed FNV-1a hash (§4.2); tables and closures
// hash by their allocation-order id, which is stable for the
// object's lifetime and collision-free within one VM.
func hashValue(v Value) uint64 {
	switch v := v.(type) {
	case nil:
		return 0
	case Boolean:
		if v {
			return 1
		}
		return 2
	case Number:
		return math.Float64bits(float64(v))
	case *OString:
		return uint64(v.hash)
	case *Table:
		return v.id * 0x9E3779B97F4A7C15
	case *Closure:
		return v.id * 0x9E3779B97F4A7C15
	case LightUserdata:
		return uint64(uintptr(v))
	default:
		return 0
	}
}
