// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import "testing"

func TestErrorStringValue(t *testing.T) {
	g := NewGlobal(nil)
	err := &Error{Kind: UserError, Value: g.intern("boom")}
	if got, want := err.Error(), "boom"; got != want {
		t.Errorf("Error() = %q; want %q", got, want)
	}
}

func TestErrorNonStringValue(t *testing.T) {
	g := NewGlobal(nil)
	tab := g.NewTable(0, 0)
	err := &Error{Kind: RuntimeError, Value: tab}
	want := "(error object is a table value)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q; want %q", got, want)
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		k    ErrorKind
		want string
	}{
		{SyntaxError, "syntax error"},
		{RuntimeError, "runtime error"},
		{MemoryError, "memory error"},
		{UserError, "error"},
	}
	for _, test := range tests {
		if got := test.k.String(); got != test.want {
			t.Errorf("%v.String() = %q; want %q", int(test.k), got, test.want)
		}
	}
}
