// Copyright (C) 1994-2026 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

// TagMethod is an enumeration of built-in metamethods, per §3's "flags:
// cache bitmap of absent metamethods" and the metamethod fallback rules
// in §4.7.
type TagMethod uint8

// Metamethods. TagMethodEQ is the last tag method with fast access
// (cacheable in a table's absent-method flags bitmap); the arithmetic
// and relational metamethods below it are looked up unconditionally.
const (
	TagMethodIndex    TagMethod = 0 // __index
	TagMethodNewIndex TagMethod = 1 // __newindex
	TagMethodGC       TagMethod = 2 // __gc
	TagMethodMode     TagMethod = 3 // __mode
	TagMethodLen      TagMethod = 4 // __len
	TagMethodEQ       TagMethod = 5 // __eq

	TagMethodAdd    TagMethod = 6  // __add
	TagMethodSub    TagMethod = 7  // __sub
	TagMethodMul    TagMethod = 8  // __mul
	TagMethodDiv    TagMethod = 9  // __div
	TagMethodMod    TagMethod = 10 // __mod
	TagMethodPow    TagMethod = 11 // __pow
	TagMethodUNM    TagMethod = 12 // __unm
	TagMethodLT     TagMethod = 13 // __lt
	TagMethodLE     TagMethod = 14 // __le
	TagMethodConcat TagMethod = 15 // __concat
	TagMethodCall   TagMethod = 16 // __call
)

// String returns the metamethod's field name, e.g. "__add".
func (tm TagMethod) String() string {
	if int(tm) < len(tagMethodNames) {
		return tagMethodNames[tm]
	}
	return "TagMethod(?)"
}

var tagMethodNames = [...]string{
	TagMethodIndex:    "__index",
	TagMethodNewIndex: "__newindex",
	TagMethodGC:       "__gc",
	TagMethodMode:     "__mode",
	TagMethodLen:      "__len",
	TagMethodEQ:       "__eq",
	TagMethodAdd:      "__add",
	TagMethodSub:      "__sub",
	TagMethodMul:      "__mul",
	TagMethodDiv:      "__div",
	TagMethodMod:      "__mod",
	TagMethodPow:      "__pow",
	TagMethodUNM:      "__unm",
	TagMethodLT:       "__lt",
	TagMethodLE:       "__le",
	TagMethodConcat:   "__concat",
	TagMethodCall:     "__call",
}

// ArithmeticOperator returns the [ArithmeticOperator] that the
// metamethod represents, if any.
func (tm TagMethod) ArithmeticOperator() (_ ArithmeticOperator, ok bool) {
	for opMinusOne, opTM := range operatorTagMethods {
		if opTM == tm {
			return ArithmeticOperator(opMinusOne + 1), true
		}
	}
	return 0, false
}

var operatorTagMethods = [numArithmeticOperators]TagMethod{
	Add - 1:        TagMethodAdd,
	Subtract - 1:   TagMethodSub,
	Multiply - 1:   TagMethodMul,
	Divide - 1:     TagMethodDiv,
	Modulo - 1:     TagMethodMod,
	Power - 1:      TagMethodPow,
	UnaryMinus - 1: TagMethodUNM,
}
