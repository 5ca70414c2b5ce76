// Copyright (C) 1994-2026 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import "fmt"

// Instruction is a single virtual machine instruction, a 32-bit word
// in one of three formats:
//
//	ABC:  [ C:9 | B:9 | A:8 | Op:6 ]
//	ABx:  [ Bx:18 | A:8 | Op:6 ]
//	AsBx: ABx with Bx biased by [offsetSBx] so the stored field is
//	      unsigned while the logical field is signed.
type Instruction uint32

const (
	sizeOp = 6
	posOp  = 0

	sizeA = 8
	posA  = sizeOp

	sizeB = 9
	posB  = posA + sizeA

	sizeC = 9
	posC  = posB + sizeB

	sizeBx = sizeB + sizeC
	posBx  = posA + sizeA

	maxArgA  = 1<<sizeA - 1
	maxArgBC = 1<<sizeB - 1
	maxArgBx = 1<<sizeBx - 1

	// offsetSBx biases a signed Bx field (used by JUMP, FOR_PREP,
	// FOR_LOOP) so it stores as an unsigned value with no sign bit.
	offsetSBx = maxArgBx >> 1

	// posRK is the bit within a 9-bit B or C operand that
	// distinguishes a register (0) from a constant index (1), per
	// invariant I7 (MAX_RK = maxArgRK).
	posRK    = sizeB - 1
	maxArgRK = 1<<posRK - 1
)

// ABCInstruction returns a new ABC-format [Instruction].
// It panics if op does not use [OpModeABC], or if any argument
// overflows its field.
func ABCInstruction(op OpCode, a uint8, b, c uint16) Instruction {
	if op.OpMode() != OpModeABC {
		panic("ABCInstruction with invalid OpCode")
	}
	if b > maxArgBC || c > maxArgBC {
		panic("ABC argument out of range")
	}
	return Instruction(op) |
		Instruction(a)<<posA |
		Instruction(b)<<posB |
		Instruction(c)<<posC
}

// ABxInstruction returns a new ABx- or AsBx-format [Instruction].
// It panics if op does not use one of those modes, or bx overflows
// its field.
func ABxInstruction(op OpCode, a uint8, bx int32) Instruction {
	switch op.OpMode() {
	case OpModeABx:
		if bx < 0 || bx > maxArgBx {
			panic("Bx argument out of range")
		}
		return Instruction(op) | Instruction(a)<<posA | Instruction(bx)<<posBx
	case OpModeAsBx:
		biased := bx + offsetSBx
		if biased < 0 || biased > maxArgBx {
			panic("sBx argument out of range")
		}
		return Instruction(op) | Instruction(a)<<posA | Instruction(biased)<<posBx
	default:
		panic("ABxInstruction with invalid OpCode")
	}
}

// OpCode returns the instruction's operation.
func (i Instruction) OpCode() OpCode {
	return OpCode(i & (1<<sizeOp - 1))
}

// ArgA returns the instruction's A argument.
func (i Instruction) ArgA() uint8 {
	return uint8(i >> posA & maxArgA)
}

// WithArgA returns a copy of i with its A argument changed.
func (i Instruction) WithArgA(a uint8) Instruction {
	const mask = Instruction(maxArgA) << posA
	return i&^mask | Instruction(a)<<posA
}

// ArgB returns the instruction's raw 9-bit B argument (an ABC
// instruction only; use [IsK] and [RKAsK]/[RKAsReg] if B may carry an
// RK operand).
func (i Instruction) ArgB() uint16 {
	return uint16(i >> posB & maxArgBC)
}

// ArgC returns the instruction's raw 9-bit C argument.
func (i Instruction) ArgC() uint16 {
	return uint16(i >> posC & maxArgBC)
}

// WithArgB returns a copy of i with its B argument changed.
func (i Instruction) WithArgB(b uint16) Instruction {
	const mask = Instruction(maxArgBC) << posB
	return i&^mask | Instruction(b)<<posB
}

// WithArgC returns a copy of i with its C argument changed.
func (i Instruction) WithArgC(c uint16) Instruction {
	const mask = Instruction(maxArgBC) << posC
	return i&^mask | Instruction(c)<<posC
}

// ArgBx returns the instruction's unsigned Bx argument
// (the combined 18-bit B+C field of an ABx instruction).
func (i Instruction) ArgBx() int32 {
	return int32(i >> posBx & maxArgBx)
}

// ArgSBx returns the instruction's signed Bx argument,
// reversing the [offsetSBx] bias applied by [ABxInstruction].
func (i Instruction) ArgSBx() int32 {
	return i.ArgBx() - offsetSBx
}

// WithArgBx returns a copy of i with its Bx argument changed to the
// unsigned value bx.
func (i Instruction) WithArgBx(bx int32) Instruction {
	const mask = Instruction(maxArgBx) << posBx
	return i&^mask | Instruction(bx)<<posBx
}

// WithArgSBx returns a copy of i with its signed Bx argument changed.
func (i Instruction) WithArgSBx(sbx int32) Instruction {
	return i.WithArgBx(sbx + offsetSBx)
}

// IsK reports whether an RK operand (a raw B or C field) denotes a
// constant index rather than a register.
func IsK(rk uint16) bool {
	return rk&(1<<posRK) != 0
}

// RKAsK returns the constant index encoded in an RK operand known to
// satisfy [IsK].
func RKAsK(rk uint16) uint16 {
	return rk &^ (1 << posRK)
}

// RKAsReg returns the register index encoded in an RK operand known
// not to satisfy [IsK].
func RKAsReg(rk uint16) uint8 {
	return uint8(rk)
}

// RegisterRK returns an RK operand denoting register reg.
func RegisterRK(reg uint8) uint16 {
	return uint16(reg)
}

// ConstantRK returns an RK operand denoting constant index k.
// It panics if k exceeds [MaxConstantIndexRK].
func ConstantRK(k uint16) uint16 {
	if k > maxArgRK {
		panic("constant index too large to encode as RK")
	}
	return k | 1<<posRK
}

// MaxConstantIndexRK is the largest constant index (invariant I7's
// MAX_RK) that fits in an RK operand.
const MaxConstantIndexRK = maxArgRK

// String formats the instruction for disassembly-style debugging.
func (i Instruction) String() string {
	op := i.OpCode()
	switch op.OpMode() {
	case OpModeABC:
		return fmt.Sprintf("%-10s A=%d B=%d C=%d", op, i.ArgA(), i.ArgB(), i.ArgC())
	case OpModeABx:
		return fmt.Sprintf("%-10s A=%d Bx=%d", op, i.ArgA(), i.ArgBx())
	case OpModeAsBx:
		return fmt.Sprintf("%-10s A=%d sBx=%d", op, i.ArgA(), i.ArgSBx())
	default:
		return fmt.Sprintf("%-10s (invalid)", op)
	}
}

// FloatingByte converts x to the nearest representable "floating
// byte" value (8-bit eeeeexxx encoding used by NEW_TABLE's size
// hints), rounding up: if eeeee==0 the value is xxx; otherwise the
// value is (1000b|xxx) << (eeeee-1).
func FloatingByte(x int) uint8 {
	if x < 8 {
		return uint8(x)
	}
	e := 0
	for x >= 16 {
		x = (x + 1) >> 1
		e++
	}
	return uint8((e+1)<<3 | (x - 8))
}

// FloatingByteValue decodes a floating-byte value produced by
// [FloatingByte] (or found in a NEW_TABLE instruction) back to an
// integer. Decoding is exact.
func FloatingByteValue(b uint8) int {
	e := int(b>>3) & 0x1f
	x := int(b & 0x7)
	if e == 0 {
		return x
	}
	return (x | 0x8) << (e - 1)
}
