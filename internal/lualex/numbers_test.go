// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lualex

import "testing"

func TestParseNumber(t *testing.T) {
	tests := []struct {
		s    string
		want float64
		err  bool
	}{
		{s: "-inf", err: true},
		{s: "-INF", err: true},
		{s: "-infinity", err: true},
		{s: "0", want: 0},
		{s: "1", want: 1},
		{s: "3", want: 3},
		{s: "0xff", want: 0xff},
		{s: "345", want: 345},
		{s: "1000000", want: 1000000},
		{s: "0xBEBADA", want: 0xBEBADA},
		{s: "-1.0", want: -1},
		{s: "0.0", want: 0},
		{s: "1.0", want: 1},
		{s: "3.0", want: 3.0},
		{s: "3.1416", want: 3.1416},
		{s: "314.16e-2", want: 314.16e-2},
		{s: "0.31416E1", want: 0.31416e1},
		{s: "34e1", want: 34e1},
		{s: "inf", err: true},
		{s: "INF", err: true},
		{s: "infinity", err: true},
		{s: "nan", err: true},
		{s: "NaN", err: true},
		{s: "  42  ", want: 42},
		{s: "0x1p4", err: true}, // 5.1 has no hex-float "p" exponent syntax
	}

	for _, test := range tests {
		got, err := ParseNumber(test.s)
		if got != test.want || (err != nil) != test.err {
			wantError := "<nil>"
			if test.err {
				wantError = "<error>"
			}
			t.Errorf("ParseNumber(%q) = %g, %v; want %g, %s", test.s, got, err, test.want, wantError)
		}
	}
}
