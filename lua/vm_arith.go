// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"strings"

	"lunamoth.dev/lua/internal/luacode"
)

// metamethod looks up tm on v's metatable, respecting the
// absent-metamethod cache bitmap for tables (§3 "flags", §4.7). Only
// tables and, in principle, userdata carry metatables in this module;
// every other kind simply has none.
func (s *State) metamethod(v Value, tm luacode.TagMethod) Value {
	t, ok := v.(*Table)
	if !ok || t.meta == nil {
		return nil
	}
	if tm <= luacode.TagMethodEQ && t.flags.Has(uint(tm)) {
		return nil
	}
	mm := t.meta.Get(s.global.intern(tm.String()))
	if mm == nil && tm <= luacode.TagMethodEQ {
		t.flags.Add(uint(tm))
	}
	return mm
}

// binaryMetamethod finds tm on either operand's metatable, preferring
// the left operand's (§4.7's fallback order).
func (s *State) binaryMetamethod(a, b Value, tm luacode.TagMethod) Value {
	if mm := s.metamethod(a, tm); mm != nil {
		return mm
	}
	return s.metamethod(b, tm)
}

// arith evaluates a binary arithmetic operator, coercing string
// operands to numbers and falling back to the matching metamethod
// when neither operand coerces (§4.7 "Arithmetic").
func (s *State) arith(op luacode.ArithmeticOperator, a, b Value) (Value, error) {
	na, aok := toNumber(a)
	nb, bok := toNumber(b)
	if aok && bok {
		f, err := luacode.Arithmetic(op, float64(na), float64(nb))
		if err != nil {
			return nil, s.newRuntimeError("%s", err)
		}
		return Number(f), nil
	}
	if mm := s.binaryMetamethod(a, b, op.TagMethod()); mm != nil {
		return s.call1(mm, a, b)
	}
	bad := a
	if aok {
		bad = b
	}
	return nil, s.newRuntimeError("attempt to perform arithmetic on a %s value", valueType(bad))
}

// unm evaluates unary minus (§4.7).
func (s *State) unm(a Value) (Value, error) {
	if n, ok := toNumber(a); ok {
		f, _ := luacode.Arithmetic(luacode.UnaryMinus, float64(n), 0)
		return Number(f), nil
	}
	if mm := s.metamethod(a, luacode.TagMethodUNM); mm != nil {
		return s.call1(mm, a, a)
	}
	return nil, s.newRuntimeError("attempt to perform arithmetic on a %s value", valueType(a))
}

// length evaluates the "#" operator: strings report their byte
// length, tables use [Table.Len] unless __len overrides it, and
// everything else requires a metamethod (§4.7).
func (s *State) length(a Value) (Value, error) {
	switch v := a.(type) {
	case *OString:
		return Number(v.len()), nil
	case *Table:
		if mm := s.metamethod(a, luacode.TagMethodLen); mm != nil {
			return s.call1(mm, a)
		}
		return Number(v.Len()), nil
	}
	if mm := s.metamethod(a, luacode.TagMethodLen); mm != nil {
		return s.call1(mm, a)
	}
	return nil, s.newRuntimeError("attempt to get length of a %s value", valueType(a))
}

// concat evaluates the ".." operator across exactly two operands (the
// VM folds an N-operand CONCAT right-to-left, §4.7). Numbers and
// strings coerce via [concatOperand]; anything else needs __concat.
func (s *State) concat(a, b Value) (Value, error) {
	as, aok := concatOperand(a)
	bs, bok := concatOperand(b)
	if aok && bok {
		return s.global.intern(as + bs), nil
	}
	if mm := s.binaryMetamethod(a, b, luacode.TagMethodConcat); mm != nil {
		return s.call1(mm, a, b)
	}
	bad := a
	if aok {
		bad = b
	}
	return nil, s.newRuntimeError("attempt to concatenate a %s value", valueType(bad))
}

func concatOperand(v Value) (string, bool) {
	switch v := v.(type) {
	case *OString:
		return v.s, true
	case Number:
		return numberToString(v), true
	default:
		return "", false
	}
}

// equals evaluates "==": raw equality first, then __eq when both
// operands are tables of the same raw type (§4.7 — Lua 5.1 does not
// consult __eq for mismatched primitive types or differing raw
// equality classes other than table/table).
func (s *State) equals(a, b Value) (bool, error) {
	if rawEqual(a, b) {
		return true, nil
	}
	_, aok := a.(*Table)
	_, bok := b.(*Table)
	if !aok || !bok {
		return false, nil
	}
	mm := s.binaryMetamethod(a, b, luacode.TagMethodEQ)
	if mm == nil {
		return false, nil
	}
	r, err := s.call1(mm, a, b)
	if err != nil {
		return false, err
	}
	return toBoolean(r), nil
}

// less evaluates "<": numeric or lexicographic comparison for
// matching primitive kinds, __lt otherwise (§4.7).
func (s *State) less(a, b Value) (bool, error) {
	if na, ok := a.(Number); ok {
		if nb, ok := b.(Number); ok {
			return float64(na) < float64(nb), nil
		}
	}
	if sa, ok := a.(*OString); ok {
		if sb, ok := b.(*OString); ok {
			return strings.Compare(sa.s, sb.s) < 0, nil
		}
	}
	if mm := s.binaryMetamethod(a, b, luacode.TagMethodLT); mm != nil {
		r, err := s.call1(mm, a, b)
		if err != nil {
			return false, err
		}
		return toBoolean(r), nil
	}
	return false, s.newRuntimeError("attempt to compare two %s values", valueType(a))
}

// lessEqual evaluates "<=" (§4.7).
func (s *State) lessEqual(a, b Value) (bool, error) {
	if na, ok := a.(Number); ok {
		if nb, ok := b.(Number); ok {
			return float64(na) <= float64(nb), nil
		}
	}
	if sa, ok := a.(*OString); ok {
		if sb, ok := b.(*OString); ok {
			return strings.Compare(sa.s, sb.s) <= 0, nil
		}
	}
	if mm := s.binaryMetamethod(a, b, luacode.TagMethodLE); mm != nil {
		r, err := s.call1(mm, a, b)
		if err != nil {
			return false, err
		}
		return toBoolean(r), nil
	}
	return false, s.newRuntimeError("attempt to compare two %s values", valueType(a))
}
