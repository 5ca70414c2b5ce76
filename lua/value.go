// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"fmt"
	"math"
	"strconv"
	"unsafe"

	"lunamoth.dev/lua/internal/lualex"
)

// Type is an enumeration of Lua data types, per the tagged value
// union described in the data model's "Value" section.
type Type int

// TypeNone is the type reported for an acceptable but absent stack
// index (§4.8's type-query operations).
const TypeNone Type = -1

// Value types.
const (
	TypeNil           Type = 0
	TypeBoolean       Type = 1
	TypeLightUserdata Type = 2
	TypeNumber        Type = 3
	TypeString        Type = 4
	TypeTable         Type = 5
	TypeFunction      Type = 6
)

// String returns the name Lua's type() function would report.
func (tp Type) String() string {
	switch tp {
	case TypeNone:
		return "no value"
	case TypeNil:
		return "nil"
	case TypeBoolean:
		return "boolean"
	case TypeLightUserdata:
		return "userdata"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeFunction:
		return "function"
	default:
		return fmt.Sprintf("lua.Type(%d)", int(tp))
	}
}

// Value is the internal representation of a Lua value: the tagged
// union described in §3. A nil interface represents the Lua nil.
// Collectable payloads ([*OString], [*Table], [*Closure]) are
// pointers into the heap managed by [internal/gc]; every other kind
// is copied by value.
type Value interface {
	valueType() Type
}

// valueType reports v's [Type], treating a nil interface as
// [TypeNil].
func valueType(v Value) Type {
	if v == nil {
		return TypeNil
	}
	return v.valueType()
}

// Boolean is a boolean [Value].
type Boolean bool

func (Boolean) valueType() Type { return TypeBoolean }

// Number is a floating-point [Value]. Lua 5.1 has a single numeric
// subtype: there is no separate integer representation (§3, §4.2).
type Number float64

func (Number) valueType() Type { return TypeNumber }

// LightUserdata is an opaque host pointer value that the VM never
// dereferences or owns (§3 "light userdata").
type LightUserdata unsafe.Pointer

func (LightUserdata) valueType() Type { return TypeLightUserdata }

// toBoolean reports whether v is truthy: everything except nil and
// false, including the number 0 and the empty string (§4.2).
func toBoolean(v Value) bool {
	switch v := v.(type) {
	case nil:
		return false
	case Boolean:
		return bool(v)
	default:
		return true
	}
}

// toNumber coerces v to a float64 following Lua's arithmetic
// coercion rules: numbers are themselves, strings are parsed per
// §4.5's lexical rules.
func toNumber(v Value) (Number, bool) {
	switch v := v.(type) {
	case Number:
		return v, true
	case *OString:
		f, err := lualex.ParseNumber(v.s)
		if err != nil {
			return 0, false
		}
		return Number(f), true
	default:
		return 0, false
	}
}

// numberToString renders n the way tostring() and string coercion
// do: a printf-style %.14g format, per §4.2 and §6.
func numberToString(n Number) string {
	if math.IsInf(float64(n), 1) {
		return "inf"
	}
	if math.IsInf(float64(n), -1) {
		return "-inf"
	}
	if math.IsNaN(float64(n)) {
		return "nan"
	}
	s := strconv.FormatFloat(float64(n), 'g', 14, 64)
	// Match %g's exponent form (e+NN, at least two digits) and ensure
	// integral values still read as numbers, not integers losing their
	// float-ness when printed (Lua 5.1 prints 3.0 as "3", matching
	// this FormatFloat behavior already).
	return fixExponent(s)
}

func fixExponent(s string) string {
	i := indexByte(s, 'e')
	if i < 0 {
		return s
	}
	mantissa, exp := s[:i], s[i+1:]
	sign := byte('+')
	if len(exp) > 0 && (exp[0] == '+' || exp[0] == '-') {
		sign = exp[0]
		exp = exp[1:]
	}
	for len(exp) < 2 {
		exp = "0" + exp
	}
	return mantissa + "e" + string(sign) + exp
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// tostringValue produces the canonical stringification of v used by
// tostring() (§4.2, §4.7); CONCAT coerces its operands with
// concatOperand instead. Tables and functions without a __tostring metamethod report
// an address-carrying placeholder; that fallback is implemented by
// the caller, which has access to the metatable machinery.
func tostringValue(v Value) (string, bool) {
	switch v := v.(type) {
	case nil:
		return "nil", true
	case Boolean:
		if v {
			return "true", true
		}
		return "false", true
	case Number:
		return numberToString(v), true
	case *OString:
		return v.s, true
	default:
		return "", false
	}
}
