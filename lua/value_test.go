// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import "testing"

func TestValueType(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want Type
	}{
		{"nil", nil, TypeNil},
		{"false", Boolean(false), TypeBoolean},
		{"true", Boolean(true), TypeBoolean},
		{"number", Number(3.14), TypeNumber},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := valueType(test.v); got != test.want {
				t.Errorf("valueType(%#v) = %v; want %v", test.v, got, test.want)
			}
		})
	}
}

func TestToBoolean(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"nil", nil, false},
		{"false", Boolean(false), false},
		{"true", Boolean(true), true},
		{"zero", Number(0), true},
		{"emptyString", &OString{s: ""}, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := toBoolean(test.v); got != test.want {
				t.Errorf("toBoolean(%#v) = %v; want %v", test.v, got, test.want)
			}
		})
	}
}

func TestNumberToString(t *testing.T) {
	tests := []struct {
		n    Number
		want string
	}{
		{0, "0"},
		{3, "3"},
		{3.5, "3.5"},
		{-1, "-1"},
	}
	for _, test := range tests {
		if got := numberToString(test.n); got != test.want {
			t.Errorf("numberToString(%v) = %q; want %q", test.n, got, test.want)
		}
	}
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		tp   Type
		want string
	}{
		{TypeNone, "no value"},
		{TypeNil, "nil"},
		{TypeBoolean, "boolean"},
		{TypeNumber, "number"},
		{TypeString, "string"},
		{TypeTable, "table"},
		{TypeFunction, "function"},
	}
	for _, test := range tests {
		if got := test.tp.String(); got != test.want {
			t.Errorf("Type(%d).String() = %q; want %q", int(test.tp), got, test.want)
		}
	}
}
