// Copyright (C) 1994-2026 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"fmt"
	"math"

	"lunamoth.dev/lua/internal/lualex"
)

// ArithmeticOperator is an enumeration of the arithmetic operators
// Lua 5.1 supports. Unlike later Lua versions, there is no integer
// floor-division operator and no bitwise operators: every number is a
// float64, per §3's "Value" description.
type ArithmeticOperator int

// Arithmetic operators.
const (
	Add ArithmeticOperator = iota + 1
	Subtract
	Multiply
	Divide
	Modulo
	Power
	UnaryMinus

	numArithmeticOperators = iota
)

// TagMethod returns the metamethod used as a fallback
// when op's operands aren't both numbers.
func (op ArithmeticOperator) TagMethod() TagMethod {
	return operatorTagMethods[op-1]
}

// IsUnary reports whether op takes a single operand.
func (op ArithmeticOperator) IsUnary() bool {
	return op == UnaryMinus
}

// IsBinary reports whether op takes two operands.
func (op ArithmeticOperator) IsBinary() bool {
	return !op.IsUnary()
}

// String returns the Lua source spelling of the operator, e.g. "+".
func (op ArithmeticOperator) String() string {
	switch op {
	case Add:
		return "+"
	case Subtract, UnaryMinus:
		return "-"
	case Multiply:
		return "*"
	case Divide:
		return "/"
	case Modulo:
		return "%"
	case Power:
		return "^"
	default:
		return fmt.Sprintf("ArithmeticOperator(%d)", int(op))
	}
}

// Arithmetic evaluates a primitive (non-metamethod) arithmetic
// operation on two numbers, per §4.7's arithmetic rules: every Lua 5.1
// number is a float64, so there is no integer/float branching.
// For a [UnaryMinus], p2 is ignored.
func Arithmetic(op ArithmeticOperator, p1, p2 float64) (float64, error) {
	switch op {
	case Add:
		return p1 + p2, nil
	case Subtract:
		return p1 - p2, nil
	case Multiply:
		return p1 * p2, nil
	case Divide:
		return p1 / p2, nil
	case Modulo:
		return luaMod(p1, p2), nil
	case Power:
		return math.Pow(p1, p2), nil
	case UnaryMinus:
		return -p1, nil
	default:
		return 0, fmt.Errorf("unhandled arithmetic operator %v", op)
	}
}

// luaMod computes a - floor(a/b)*b, Lua's floor-based modulo (as
// opposed to Go's truncating "%"), matching the sign of b.
func luaMod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

// unaryOperator is an enumeration of the unary operators recognized by
// the parser.
type unaryOperator int

const (
	unaryOperatorNone unaryOperator = iota
	unaryOperatorMinus
	unaryOperatorNot
	unaryOperatorLength

	numUnaryOperators = iota - 1
)

// toUnaryOperator converts a token kind to the [unaryOperator] it
// represents as a prefix operator, or [unaryOperatorNone] if kind is
// not a unary operator token.
func toUnaryOperator(kind lualex.TokenKind) unaryOperator {
	switch kind {
	case lualex.NotToken:
		return unaryOperatorNot
	case lualex.SubToken:
		return unaryOperatorMinus
	case lualex.LenToken:
		return unaryOperatorLength
	default:
		return unaryOperatorNone
	}
}

func (op unaryOperator) toOpCode() OpCode {
	switch op {
	case unaryOperatorMinus:
		return OpUnm
	case unaryOperatorNot:
		return OpNot
	case unaryOperatorLength:
		return OpLen
	default:
		panic("toOpCode called on non-operator")
	}
}

func (op unaryOperator) tagMethod() TagMethod {
	switch op {
	case unaryOperatorMinus:
		return TagMethodUNM
	case unaryOperatorLength:
		return TagMethodLen
	default:
		panic("tagMethod called on non-arithmetic unary operator")
	}
}

// unaryPrecedence is the binding power used when parsing the operand
// of a unary operator, higher than every binary operator except "^".
const unaryPrecedence = 12

// binaryOperator is an enumeration of the binary (infix) operators
// recognized by the parser.
type binaryOperator int

const (
	binaryOperatorNone binaryOperator = iota
	binaryOperatorAdd
	binaryOperatorSub
	binaryOperatorMul
	binaryOperatorDiv
	binaryOperatorMod
	binaryOperatorPow
	binaryOperatorConcat
	binaryOperatorNE
	binaryOperatorEQ
	binaryOperatorLT
	binaryOperatorLE
	binaryOperatorGT
	binaryOperatorGE
	binaryOperatorAnd
	binaryOperatorOr

	numBinaryOperators = iota - 1
)

// toBinaryOperator converts a token kind to the [binaryOperator] it
// represents as an infix operator, or [binaryOperatorNone] if kind is
// not a binary operator token.
func toBinaryOperator(kind lualex.TokenKind) binaryOperator {
	switch kind {
	case lualex.AddToken:
		return binaryOperatorAdd
	case lualex.SubToken:
		return binaryOperatorSub
	case lualex.MulToken:
		return binaryOperatorMul
	case lualex.DivToken:
		return binaryOperatorDiv
	case lualex.ModToken:
		return binaryOperatorMod
	case lualex.PowToken:
		return binaryOperatorPow
	case lualex.ConcatToken:
		return binaryOperatorConcat
	case lualex.NotEqualToken:
		return binaryOperatorNE
	case lualex.EqualToken:
		return binaryOperatorEQ
	case lualex.LessToken:
		return binaryOperatorLT
	case lualex.LessEqualToken:
		return binaryOperatorLE
	case lualex.GreaterToken:
		return binaryOperatorGT
	case lualex.GreaterEqualToken:
		return binaryOperatorGE
	case lualex.AndToken:
		return binaryOperatorAnd
	case lualex.OrToken:
		return binaryOperatorOr
	default:
		return binaryOperatorNone
	}
}

// toArithmetic reports the [ArithmeticOperator] a binary operator
// performs, if it is an arithmetic operator.
func (op binaryOperator) toArithmetic() (_ ArithmeticOperator, ok bool) {
	switch op {
	case binaryOperatorAdd:
		return Add, true
	case binaryOperatorSub:
		return Subtract, true
	case binaryOperatorMul:
		return Multiply, true
	case binaryOperatorDiv:
		return Divide, true
	case binaryOperatorMod:
		return Modulo, true
	case binaryOperatorPow:
		return Power, true
	default:
		return 0, false
	}
}

func (op binaryOperator) toOpCode() OpCode {
	switch op {
	case binaryOperatorAdd:
		return OpAdd
	case binaryOperatorSub:
		return OpSub
	case binaryOperatorMul:
		return OpMul
	case binaryOperatorDiv:
		return OpDiv
	case binaryOperatorMod:
		return OpMod
	case binaryOperatorPow:
		return OpPow
	case binaryOperatorConcat:
		return OpConcat
	case binaryOperatorEQ, binaryOperatorNE:
		return OpEq
	case binaryOperatorLT, binaryOperatorGT:
		return OpLt
	case binaryOperatorLE, binaryOperatorGE:
		return OpLe
	default:
		panic("toOpCode called on non-operator")
	}
}

// isSwapped reports whether op's operands must be swapped to use the
// [binaryOperator.toOpCode] comparison opcode, as Lua 5.1 has no
// GT/GE opcodes: "a > b" compiles as "b < a".
func (op binaryOperator) isSwapped() bool {
	return op == binaryOperatorGT || op == binaryOperatorGE
}

func (op binaryOperator) tagMethod() TagMethod {
	switch op {
	case binaryOperatorConcat:
		return TagMethodConcat
	case binaryOperatorEQ, binaryOperatorNE:
		return TagMethodEQ
	case binaryOperatorLT, binaryOperatorGT:
		return TagMethodLT
	case binaryOperatorLE, binaryOperatorGE:
		return TagMethodLE
	default:
		if arith, ok := op.toArithmetic(); ok {
			return arith.TagMethod()
		}
		panic("tagMethod called on non-metamethod operator")
	}
}

// leftPrecedence and rightPrecedence give the binding power used on
// either side of a binary operator, per §4.6's Lua 5.1 precedence
// table:
//
//	or                         1
//	and                        2
//	<  >  <=  >=  ~=  ==       3
//	..                      9,8 (right associative)
//	+  -                      10
//	*  /  %                   11
//	unary operators           12 (not, -, #)
//	^                      14,13 (right associative)
var binaryPrecedence = [...][2]int{
	binaryOperatorOr:     {1, 1},
	binaryOperatorAnd:    {2, 2},
	binaryOperatorLT:     {3, 3},
	binaryOperatorGT:     {3, 3},
	binaryOperatorLE:     {3, 3},
	binaryOperatorGE:     {3, 3},
	binaryOperatorNE:     {3, 3},
	binaryOperatorEQ:     {3, 3},
	binaryOperatorConcat: {9, 8},
	binaryOperatorAdd:    {10, 10},
	binaryOperatorSub:    {10, 10},
	binaryOperatorMul:    {11, 11},
	binaryOperatorDiv:    {11, 11},
	binaryOperatorMod:    {11, 11},
	binaryOperatorPow:    {14, 13},
}

// leftPrecedence returns the binding power that determines whether a
// pending left-hand expression may absorb op.
func (op binaryOperator) leftPrecedence() int {
	return binaryPrecedence[op][0]
}

// rightPrecedence returns the binding power used to parse op's
// right-hand operand, enabling right-associativity for ".." and "^".
func (op binaryOperator) rightPrecedence() int {
	return binaryPrecedence[op][1]
}
