// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"strings"
	"testing"

	"lunamoth.dev/lua/internal/luacode"
)

func TestConstantString(t *testing.T) {
	tests := []struct {
		k    luacode.Value
		want string
	}{
		{luacode.Value{}, "nil"},
		{luacode.BoolValue(true), "true"},
		{luacode.NumberValue(3), "3"},
		{luacode.StringValue("hi"), `"hi"`},
	}
	for _, test := range tests {
		if got := constantString(test.k); got != test.want {
			t.Errorf("constantString(%v) = %q; want %q", test.k, got, test.want)
		}
	}
}

func TestPlural(t *testing.T) {
	if got := plural(1); got != "" {
		t.Errorf("plural(1) = %q; want %q", got, "")
	}
	if got := plural(2); got != "s" {
		t.Errorf("plural(2) = %q; want %q", got, "s")
	}
	if got := plural(0); got != "s" {
		t.Errorf("plural(0) = %q; want %q", got, "s")
	}
}

func TestListProto(t *testing.T) {
	src := `local x = 1 + 2 return x`
	proto, err := luacode.Parse(luacode.LiteralSource(src), strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	var buf bytes.Buffer
	if err := listProto(&buf, proto); err != nil {
		t.Fatalf("listProto() = %v", err)
	}
	if buf.Len() == 0 {
		t.Error("listProto() wrote nothing")
	}
	if !strings.Contains(buf.String(), "main chunk") {
		t.Errorf("listProto() output missing %q:\n%s", "main chunk", buf.String())
	}
}
