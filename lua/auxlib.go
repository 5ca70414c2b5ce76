// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import "fmt"

// ArgError raises (as a Go error, for a [GoFunction] to return) a
// standard "bad argument #n to 'fname' (msg)" error, matching
// auxlib's luaL_argerror convention.
func (s *State) ArgError(arg int, msg string) error {
	name := "?"
	if f := s.currentFrame(); f != nil && f.closure != nil {
		name = f.closure.name
	}
	return s.newRuntimeError("bad argument #%d to '%s' (%s)", arg, name, msg)
}

// CheckString requires the value at idx to be a string or number
// (numbers coerce, matching luaL_checkstring), returning an
// [*Error]-wrapped [State.ArgError] otherwise.
func (s *State) CheckString(idx int) (string, error) {
	switch v := s.valueAt(idx).(type) {
	case *OString:
		return v.s, nil
	case Number:
		return numberToString(v), nil
	default:
		return "", s.ArgError(idx, "string expected, got "+s.Type(idx).String())
	}
}

// CheckNumber requires the value at idx to be a number or a numeral
// string.
func (s *State) CheckNumber(idx int) (float64, error) {
	n, ok := s.ToNumber(idx)
	if !ok {
		return 0, s.ArgError(idx, "number expected, got "+s.Type(idx).String())
	}
	return n, nil
}

// CheckInt is [State.CheckNumber] truncated to an int.
func (s *State) CheckInt(idx int) (int, error) {
	n, err := s.CheckNumber(idx)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// OptInt is [State.CheckInt] that returns def when the argument is
// absent or nil.
func (s *State) OptInt(idx, def int) (int, error) {
	if s.IsNil(idx) {
		return def, nil
	}
	return s.CheckInt(idx)
}

// CheckTable requires the value at idx to be a table, pushing nothing
// and returning it directly for host-side manipulation.
func (s *State) CheckTable(idx int) (*Table, error) {
	t, ok := s.valueAt(idx).(*Table)
	if !ok {
		return nil, s.ArgError(idx, "table expected, got "+s.Type(idx).String())
	}
	return t, nil
}

// CheckFunction requires the value at idx to be callable.
func (s *State) CheckFunction(idx int) (*Closure, error) {
	c, ok := s.valueAt(idx).(*Closure)
	if !ok {
		return nil, s.ArgError(idx, "function expected, got "+s.Type(idx).String())
	}
	return c, nil
}

// Errorf raises a formatted runtime error, matching luaL_error's
// "<source>:<line>: " prefixing (§4.7, SPEC_FULL.md's ambient error
// handling).
func (s *State) Errorf(format string, args ...any) error {
	return s.newRuntimeError(format, args...)
}

// Register installs fn as a field of the table at idx (typically the
// globals table or a newly created module table) under name.
func (s *State) Register(idx int, name string, fn GoFunction) error {
	s.PushGoFunction(name, fn)
	return s.SetField(idx, name)
}

// RegisterGlobal installs fn as a global function named name.
func (s *State) RegisterGlobal(name string, fn GoFunction) {
	s.PushGoFunction(name, fn)
	s.SetGlobal(name)
}

func (s *State) traceback() string {
	var lines []string
	for _, f := range collectFrames(s) {
		if f.closure == nil {
			continue
		}
		if f.closure.IsGo() {
			lines = append(lines, fmt.Sprintf("\t[Go]: in function '%s'", f.closure.name))
			continue
		}
		p := f.proto()
		lines = append(lines, fmt.Sprintf("\t%s:%d: in function <%s:%d>",
			p.Source.String(), p.LineInfo.At(max(f.pc-1, 0)), p.Source.String(), p.LineDefined))
	}
	return joinLines(lines)
}

func collectFrames(s *State) []*Frame {
	var out []*Frame
	for _, f := range s.frames.All() {
		out = append(out, f)
	}
	return out
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
