// Copyright (C) 1994-2026 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"math"
	"testing"

	"lunamoth.dev/lua/internal/lualex"
)

func TestToUnaryOperator(t *testing.T) {
	tests := []struct {
		kind lualex.TokenKind
		want unaryOperator
	}{
		{lualex.SubToken, unaryOperatorMinus},
		{lualex.NotToken, unaryOperatorNot},
		{lualex.LenToken, unaryOperatorLength},
		{lualex.AddToken, unaryOperatorNone},
		{lualex.IdentifierToken, unaryOperatorNone},
	}
	for _, test := range tests {
		if got := toUnaryOperator(test.kind); got != test.want {
			t.Errorf("toUnaryOperator(%v) = %v; want %v", test.kind, got, test.want)
		}
	}
}

func TestUnaryOperatorToOpCode(t *testing.T) {
	tests := []struct {
		op   unaryOperator
		want OpCode
	}{
		{unaryOperatorMinus, OpUnm},
		{unaryOperatorNot, OpNot},
		{unaryOperatorLength, OpLen},
	}
	for _, test := range tests {
		if got := test.op.toOpCode(); got != test.want {
			t.Errorf("%v.toOpCode() = %v; want %v", test.op, got, test.want)
		}
	}
}

func TestToBinaryOperator(t *testing.T) {
	tests := []struct {
		kind lualex.TokenKind
		want binaryOperator
	}{
		{lualex.AddToken, binaryOperatorAdd},
		{lualex.SubToken, binaryOperatorSub},
		{lualex.MulToken, binaryOperatorMul},
		{lualex.DivToken, binaryOperatorDiv},
		{lualex.ModToken, binaryOperatorMod},
		{lualex.PowToken, binaryOperatorPow},
		{lualex.ConcatToken, binaryOperatorConcat},
		{lualex.EqualToken, binaryOperatorEQ},
		{lualex.NotEqualToken, binaryOperatorNE},
		{lualex.LessToken, binaryOperatorLT},
		{lualex.LessEqualToken, binaryOperatorLE},
		{lualex.GreaterToken, binaryOperatorGT},
		{lualex.GreaterEqualToken, binaryOperatorGE},
		{lualex.AndToken, binaryOperatorAnd},
		{lualex.OrToken, binaryOperatorOr},
		{lualex.SemiToken, binaryOperatorNone},
	}
	for _, test := range tests {
		if got := toBinaryOperator(test.kind); got != test.want {
			t.Errorf("toBinaryOperator(%v) = %v; want %v", test.kind, got, test.want)
		}
	}

	// Check for exhaustiveness against every token kind that should map
	// to a binary operator.
	for op := binaryOperator(1); op <= numBinaryOperators; op++ {
		found := false
		for _, test := range tests {
			if test.want == op {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("TestToBinaryOperator is missing a test for %v", op)
		}
	}
}

func TestBinaryOperatorToArithmetic(t *testing.T) {
	tests := []struct {
		op   binaryOperator
		want ArithmeticOperator
		ok   bool
	}{
		{binaryOperatorAdd, Add, true},
		{binaryOperatorSub, Subtract, true},
		{binaryOperatorMul, Multiply, true},
		{binaryOperatorDiv, Divide, true},
		{binaryOperatorMod, Modulo, true},
		{binaryOperatorPow, Power, true},

		{binaryOperatorConcat, 0, false},
		{binaryOperatorEQ, 0, false},
		{binaryOperatorLT, 0, false},
		{binaryOperatorLE, 0, false},
		{binaryOperatorNE, 0, false},
		{binaryOperatorGT, 0, false},
		{binaryOperatorGE, 0, false},
		{binaryOperatorAnd, 0, false},
		{binaryOperatorOr, 0, false},
	}
	for _, test := range tests {
		got, ok := test.op.toArithmetic()
		if got != test.want || ok != test.ok {
			t.Errorf("%v.toArithmetic() = %v, %t; want %v, %t", test.op, got, ok, test.want, test.ok)
		}
	}

	// Check for exhaustiveness.
	for op := binaryOperator(1); op <= numBinaryOperators; op++ {
		found := false
		for _, test := range tests {
			if test.op == op {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("TestBinaryOperatorToArithmetic is missing a test for %v", op)
		}
	}
}

func TestBinaryOperatorIsSwapped(t *testing.T) {
	tests := []struct {
		op   binaryOperator
		want bool
	}{
		{binaryOperatorLT, false},
		{binaryOperatorLE, false},
		{binaryOperatorGT, true},
		{binaryOperatorGE, true},
		{binaryOperatorEQ, false},
		{binaryOperatorAdd, false},
	}
	for _, test := range tests {
		if got := test.op.isSwapped(); got != test.want {
			t.Errorf("%v.isSwapped() = %t; want %t", test.op, got, test.want)
		}
	}
}

func TestBinaryOperatorPrecedence(t *testing.T) {
	tests := []struct {
		op    binaryOperator
		left  int
		right int
	}{
		{binaryOperatorOr, 1, 1},
		{binaryOperatorAnd, 2, 2},
		{binaryOperatorLT, 3, 3},
		{binaryOperatorConcat, 9, 8},
		{binaryOperatorAdd, 10, 10},
		{binaryOperatorMul, 11, 11},
		{binaryOperatorPow, 14, 13},
	}
	for _, test := range tests {
		if got := test.op.leftPrecedence(); got != test.left {
			t.Errorf("%v.leftPrecedence() = %d; want %d", test.op, got, test.left)
		}
		if got := test.op.rightPrecedence(); got != test.right {
			t.Errorf("%v.rightPrecedence() = %d; want %d", test.op, got, test.right)
		}
	}

	// ".." is the only right-associative operator besides "^": its
	// right precedence must bind tighter than its left so that
	// "a .. b .. c" parses as "a .. (b .. c)".
	if binaryOperatorConcat.rightPrecedence() >= binaryOperatorConcat.leftPrecedence() {
		t.Error("concat is not right-associative")
	}
	if binaryOperatorPow.rightPrecedence() >= binaryOperatorPow.leftPrecedence() {
		t.Error("pow is not right-associative")
	}
	// Unary operators bind tighter than every binary operator except "^".
	if unaryPrecedence <= binaryOperatorAdd.leftPrecedence() {
		t.Error("unaryPrecedence does not bind tighter than +")
	}
	if unaryPrecedence >= binaryOperatorPow.leftPrecedence() {
		t.Error("unaryPrecedence binds tighter than ^")
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		op   ArithmeticOperator
		p1   float64
		p2   float64
		want float64
	}{
		{Add, 1, 2, 3},
		{Subtract, 5, 2, 3},
		{Multiply, 3, 4, 12},
		{Divide, 10, 4, 2.5},
		{Modulo, 5, 3, 2},
		{Modulo, -5, 3, 1},
		{Modulo, 5, -3, -1},
		{Power, 2, 10, 1024},
		{UnaryMinus, 5, 0, -5},
	}
	for _, test := range tests {
		got, err := Arithmetic(test.op, test.p1, test.p2)
		if err != nil {
			t.Errorf("Arithmetic(%v, %v, %v) error: %v", test.op, test.p1, test.p2, err)
			continue
		}
		if got != test.want {
			t.Errorf("Arithmetic(%v, %v, %v) = %v; want %v", test.op, test.p1, test.p2, got, test.want)
		}
	}
}

func TestArithmeticDivideByZero(t *testing.T) {
	got, err := Arithmetic(Divide, 1, 0)
	if err != nil {
		t.Fatalf("Arithmetic(Divide, 1, 0) error: %v", err)
	}
	if !math.IsInf(got, 1) {
		t.Errorf("Arithmetic(Divide, 1, 0) = %v; want +Inf", got)
	}
}

func TestArithmeticTagMethod(t *testing.T) {
	tests := []struct {
		op   ArithmeticOperator
		want TagMethod
	}{
		{Add, TagMethodAdd},
		{Subtract, TagMethodSub},
		{Multiply, TagMethodMul},
		{Divide, TagMethodDiv},
		{Modulo, TagMethodMod},
		{Power, TagMethodPow},
		{UnaryMinus, TagMethodUNM},
	}
	for _, test := range tests {
		if got := test.op.TagMethod(); got != test.want {
			t.Errorf("%v.TagMethod() = %v; want %v", test.op, got, test.want)
		}
	}
}
