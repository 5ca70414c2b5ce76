// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"lunamoth.dev/lua/internal/luacode"
)

// call invokes fn with args, returning however many results it
// produces (§4.8's "Call"). It is the entry point used both by the
// embedding API's Call/PCall and by metamethod dispatch.
func (s *State) call(fn Value, args []Value) ([]Value, error) {
	closure, ok := fn.(*Closure)
	if !ok {
		if mm := s.metamethod(fn, luacode.TagMethodCall); mm != nil {
			return s.call(mm, append([]Value{fn}, args...))
		}
		return nil, s.newRuntimeError("attempt to call a %s value", valueType(fn))
	}

	if closure.IsGo() {
		return s.callGo(closure, args)
	}
	return s.callLua(closure, args)
}

// call1 is [State.call] for callers that want exactly one result
// (metamethod invocations never need more, §4.7).
func (s *State) call1(fn Value, args ...Value) (Value, error) {
	results, err := s.call(fn, args)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (s *State) callGo(closure *Closure, args []Value) ([]Value, error) {
	base := s.top
	for _, a := range args {
		s.rawPush(a)
	}
	s.pushFrame(closure, base, base, -1)
	defer s.popFrame()

	n, err := closure.goFn(s)
	if err != nil {
		s.setTop(base)
		return nil, err
	}
	results := append([]Value(nil), s.stack[s.top-n:s.top]...)
	s.setTop(base)
	return results, nil
}

const maxCallDepth = 200

// callLua runs a Lua closure's bytecode to completion, implementing
// the dispatch loop for the full 5.1 opcode set (§4.4, §4.7).
func (s *State) callLua(closure *Closure, args []Value) ([]Value, error) {
	if s.frameDepth() >= maxCallDepth {
		return nil, s.newRuntimeError("stack overflow")
	}

	proto := closure.proto
	base := s.top
	s.ensureStack(base + int(proto.MaxStackSize))

	np := int(proto.NumParams)
	for i := 0; i < np; i++ {
		if i < len(args) {
			s.stack[base+i] = args[i]
		} else {
			s.stack[base+i] = nil
		}
	}
	var varargs []Value
	if proto.IsVararg && len(args) > np {
		varargs = append([]Value(nil), args[np:]...)
	}
	for i := np; i < int(proto.MaxStackSize); i++ {
		s.stack[base+i] = nil
	}
	s.setTop(base + int(proto.MaxStackSize))

	f := s.pushFrame(closure, base, base, -1)
	defer func() {
		s.closeUpvalues(base)
		s.popFrame()
	}()

	code := proto.Code
	reg := func(i uint8) Value { return s.stack[base+int(i)] }
	setReg := func(i uint8, v Value) { s.stack[base+int(i)] = v }
	rk := func(raw uint16) Value {
		if luacode.IsK(raw) {
			return closure.constants[luacode.RKAsK(raw)]
		}
		return reg(luacode.RKAsReg(raw))
	}

	for {
		if f.pc >= len(code) {
			return nil, nil
		}
		inst := code[f.pc]
		f.pc++

		switch inst.OpCode() {
		case luacode.OpMove:
			setReg(inst.ArgA(), reg(uint8(inst.ArgB())))

		case luacode.OpLoadK:
			setReg(inst.ArgA(), closure.constants[inst.ArgBx()])

		case luacode.OpLoadNil:
			a, b := inst.ArgA(), inst.ArgB()
			for i := a; i <= uint8(b); i++ {
				setReg(i, nil)
			}

		case luacode.OpLoadBool:
			setReg(inst.ArgA(), Boolean(inst.ArgB() != 0))
			if inst.ArgC() != 0 {
				f.pc++
			}

		case luacode.OpGetGlobal:
			name := closure.constants[inst.ArgBx()].(*OString)
			setReg(inst.ArgA(), s.globals.Get(name))

		case luacode.OpSetGlobal:
			name := closure.constants[inst.ArgBx()].(*OString)
			if err := s.globals.Set(name, reg(inst.ArgA())); err != nil {
				return nil, s.newRuntimeError("%s", err)
			}

		case luacode.OpNewTable:
			hsize := luacode.FloatingByteValue(uint8(inst.ArgB()))
			asize := luacode.FloatingByteValue(uint8(inst.ArgC()))
			setReg(inst.ArgA(), s.global.NewTable(asize, hsize))
			s.checkGC()

		case luacode.OpGetTable:
			t := reg(uint8(inst.ArgB()))
			k := rk(inst.ArgC())
			v, err := s.index(t, k)
			if err != nil {
				return nil, err
			}
			setReg(inst.ArgA(), v)

		case luacode.OpSetTable:
			t := reg(inst.ArgA())
			k := rk(inst.ArgB())
			v := rk(inst.ArgC())
			if err := s.newIndex(t, k, v); err != nil {
				return nil, err
			}

		case luacode.OpSetList:
			a := inst.ArgA()
			t := reg(a).(*Table)
			n := int(inst.ArgB())
			if n == 0 {
				n = s.top - (base + int(a) + 1)
			}
			blockStart := int(inst.ArgC()-1) * luacodeListItemsPerFlush
			for i := 1; i <= n; i++ {
				t.Set(Number(blockStart+i), reg(a+uint8(i)))
			}

		case luacode.OpGetUpval:
			setReg(inst.ArgA(), closure.upvalues[inst.ArgB()].get())

		case luacode.OpSetUpval:
			closure.upvalues[inst.ArgB()].set(reg(inst.ArgA()))

		case luacode.OpAdd, luacode.OpSub, luacode.OpMul, luacode.OpDiv,
			luacode.OpMod, luacode.OpPow:
			op := arithOpFor(inst.OpCode())
			v, err := s.arith(op, rk(inst.ArgB()), rk(inst.ArgC()))
			if err != nil {
				return nil, err
			}
			setReg(inst.ArgA(), v)

		case luacode.OpUnm:
			v, err := s.unm(reg(uint8(inst.ArgB())))
			if err != nil {
				return nil, err
			}
			setReg(inst.ArgA(), v)

		case luacode.OpNot:
			setReg(inst.ArgA(), Boolean(!toBoolean(reg(uint8(inst.ArgB())))))

		case luacode.OpLen:
			v, err := s.length(reg(uint8(inst.ArgB())))
			if err != nil {
				return nil, err
			}
			setReg(inst.ArgA(), v)

		case luacode.OpConcat:
			a, b, c := inst.ArgA(), uint8(inst.ArgB()), uint8(inst.ArgC())
			acc := reg(c)
			for i := int(c) - 1; i >= int(b); i-- {
				v, err := s.concat(reg(uint8(i)), acc)
				if err != nil {
					return nil, err
				}
				acc = v
			}
			setReg(a, acc)

		case luacode.OpEq:
			eq, err := s.equals(rk(inst.ArgB()), rk(inst.ArgC()))
			if err != nil {
				return nil, err
			}
			if eq != (inst.ArgA() != 0) {
				f.pc++
			}

		case luacode.OpLt:
			lt, err := s.less(rk(inst.ArgB()), rk(inst.ArgC()))
			if err != nil {
				return nil, err
			}
			if lt != (inst.ArgA() != 0) {
				f.pc++
			}

		case luacode.OpLe:
			le, err := s.lessEqual(rk(inst.ArgB()), rk(inst.ArgC()))
			if err != nil {
				return nil, err
			}
			if le != (inst.ArgA() != 0) {
				f.pc++
			}

		case luacode.OpTest:
			if toBoolean(reg(inst.ArgA())) != (inst.ArgC() != 0) {
				f.pc++
			}

		case luacode.OpTestSet:
			v := reg(uint8(inst.ArgB()))
			if toBoolean(v) == (inst.ArgC() != 0) {
				setReg(inst.ArgA(), v)
			} else {
				f.pc++
			}

		case luacode.OpJmp:
			f.pc += int(inst.ArgSBx())

		case luacode.OpForPrep:
			a := inst.ArgA()
			initN, _ := toNumber(reg(a))
			limitN, _ := toNumber(reg(a + 1))
			stepN, _ := toNumber(reg(a + 2))
			setReg(a, Number(float64(initN)-float64(stepN)))
			setReg(a+1, limitN)
			setReg(a+2, stepN)
			f.pc += int(inst.ArgSBx())

		case luacode.OpForLoop:
			a := inst.ArgA()
			idx, _ := toNumber(reg(a))
			limit, _ := toNumber(reg(a + 1))
			step, _ := toNumber(reg(a + 2))
			idx = Number(float64(idx) + float64(step))
			more := (step > 0 && idx <= limit) || (step <= 0 && idx >= limit)
			if more {
				setReg(a, idx)
				setReg(a+3, idx)
				f.pc += int(inst.ArgSBx())
			}

		case luacode.OpTForLoop:
			// Generic for: call R(A)(R(A+1), R(A+2)) and spread its
			// results into R(A+3)..R(A+2+C). A nil first result ends
			// the loop by skipping the JMP that immediately follows
			// this instruction; otherwise R(A+2) tracks the control
			// variable for the next iteration (§4.4's TFORLOOP).
			a := inst.ArgA()
			c := int(inst.ArgC())
			results, err := s.call(reg(a), []Value{reg(a + 1), reg(a + 2)})
			if err != nil {
				return nil, err
			}
			for i := 0; i < c; i++ {
				var v Value
				if i < len(results) {
					v = results[i]
				}
				setReg(a+3+uint8(i), v)
			}
			if len(results) == 0 || results[0] == nil {
				f.pc++ // skip the trailing JMP; the loop is done
			} else {
				setReg(a+2, results[0])
			}

		case luacode.OpSelf:
			a, b := inst.ArgA(), uint8(inst.ArgB())
			obj := reg(b)
			setReg(a+1, obj)
			method := rk(inst.ArgC())
			v, err := s.index(obj, method)
			if err != nil {
				return nil, err
			}
			setReg(a, v)

		case luacode.OpCall:
			a := inst.ArgA()
			nargs := int(inst.ArgB()) - 1
			if nargs < 0 {
				nargs = s.top - (base + int(a) + 1)
			}
			callArgs := append([]Value(nil), s.stack[base+int(a)+1:base+int(a)+1+nargs]...)
			results, err := s.call(reg(a), callArgs)
			if err != nil {
				return nil, err
			}
			nresults := int(inst.ArgC()) - 1
			s.ensureStack(base + int(a) + len(results))
			if nresults < 0 {
				for i, v := range results {
					setReg(a+uint8(i), v)
				}
				s.setTop(base + int(a) + len(results))
			} else {
				for i := 0; i < nresults; i++ {
					var v Value
					if i < len(results) {
						v = results[i]
					}
					setReg(a+uint8(i), v)
				}
			}

		case luacode.OpClosure:
			p := proto.Functions[inst.ArgBx()]
			nc := s.global.newLuaClosure(p)
			for i, uvd := range p.Upvalues {
				if uvd.InStack {
					nc.upvalues[i] = s.findOrCreateUpvalue(&s.stack, base+int(uvd.Index))
				} else {
					nc.upvalues[i] = closure.upvalues[uvd.Index]
				}
			}
			setReg(inst.ArgA(), nc)
			s.checkGC()

		case luacode.OpClose:
			s.closeUpvalues(base + int(inst.ArgA()))

		case luacode.OpReturn:
			a := inst.ArgA()
			n := int(inst.ArgB()) - 1
			if n < 0 {
				n = s.top - (base + int(a))
			}
			s.closeUpvalues(base)
			results := append([]Value(nil), s.stack[base+int(a):base+int(a)+n]...)
			return results, nil

		case luacode.OpVararg:
			a := inst.ArgA()
			n := int(inst.ArgB()) - 1
			if n < 0 {
				n = len(varargs)
			}
			s.ensureStack(base + int(a) + n)
			for i := 0; i < n; i++ {
				var v Value
				if i < len(varargs) {
					v = varargs[i]
				}
				setReg(a+uint8(i), v)
			}
			if int(inst.ArgB())-1 < 0 {
				s.setTop(base + int(a) + n)
			}

		default:
			return nil, s.newRuntimeError("unimplemented opcode %s", inst.OpCode())
		}
	}
}

// luacodeListItemsPerFlush mirrors §4.4's SETLIST "FPF" (fields per
// flush) constant: how many array slots one SETLIST instruction's C
// field covers before a second SETLIST is needed for table
// constructors with more than this many positional entries.
const luacodeListItemsPerFlush = 50

func arithOpFor(op luacode.OpCode) luacode.ArithmeticOperator {
	switch op {
	case luacode.OpAdd:
		return luacode.Add
	case luacode.OpSub:
		return luacode.Subtract
	case luacode.OpMul:
		return luacode.Multiply
	case luacode.OpDiv:
		return luacode.Divide
	case luacode.OpMod:
		return luacode.Modulo
	case luacode.OpPow:
		return luacode.Power
	default:
		return 0
	}
}

// index performs "t[k]" with __index fallback (§4.7).
func (s *State) index(t, k Value) (Value, error) {
	if tbl, ok := t.(*Table); ok {
		if v := tbl.Get(k); v != nil {
			return v, nil
		}
		mm := s.metamethod(t, luacode.TagMethodIndex)
		if mm == nil {
			return nil, nil
		}
		if mt, ok := mm.(*Table); ok {
			return s.index(mt, k)
		}
		return s.call1(mm, t, k)
	}
	mm := s.metamethod(t, luacode.TagMethodIndex)
	if mm == nil {
		return nil, s.newRuntimeError("attempt to index a %s value", valueType(t))
	}
	if mt, ok := mm.(*Table); ok {
		return s.index(mt, k)
	}
	return s.call1(mm, t, k)
}

// newIndex performs "t[k] = v" with __newindex fallback (§4.7).
func (s *State) newIndex(t, k, v Value) error {
	if tbl, ok := t.(*Table); ok {
		if tbl.Get(k) != nil {
			return tbl.Set(k, v)
		}
		mm := s.metamethod(t, luacode.TagMethodNewIndex)
		if mm == nil {
			return tbl.Set(k, v)
		}
		if mt, ok := mm.(*Table); ok {
			return s.newIndex(mt, k, v)
		}
		_, err := s.call1(mm, t, k, v)
		return err
	}
	mm := s.metamethod(t, luacode.TagMethodNewIndex)
	if mm == nil {
		return s.newRuntimeError("attempt to index a %s value", valueType(t))
	}
	if mt, ok := mm.(*Table); ok {
		return s.newIndex(mt, k, v)
	}
	_, err := s.call1(mm, t, k, v)
	return err
}
