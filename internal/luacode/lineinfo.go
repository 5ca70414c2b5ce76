// Copyright (C) 1994-2026 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import "slices"

// LineInfo maps instruction addresses to source line numbers as an
// ordered sequence of runs, per §4.4 ("line-info run-length records
// (line, start_pc, end_pc); lookup is binary-searched") and invariant
// I5 (every pc belongs to exactly one run). The zero value is an
// empty sequence.
type LineInfo struct {
	runs []lineInfoRun
}

type lineInfoRun struct {
	line    int
	startPC int
	endPC   int // exclusive
}

// Len returns one past the highest instruction address covered.
func (info LineInfo) Len() int {
	if len(info.runs) == 0 {
		return 0
	}
	return info.runs[len(info.runs)-1].endPC
}

// At returns the line number recorded for instruction address pc.
// At panics if pc is not covered by any run.
func (info LineInfo) At(pc int) int {
	i, ok := slices.BinarySearchFunc(info.runs, pc, func(r lineInfoRun, pc int) int {
		switch {
		case pc < r.startPC:
			return 1
		case pc >= r.endPC:
			return -1
		default:
			return 0
		}
	})
	if !ok {
		panic("pc not covered by any line-info run")
	}
	return info.runs[i].line
}

// All iterates over (pc, line) pairs in address order.
func (info LineInfo) All() func(yield func(pc, line int) bool) {
	return func(yield func(pc, line int) bool) {
		for _, r := range info.runs {
			for pc := r.startPC; pc < r.endPC; pc++ {
				if !yield(pc, r.line) {
					return
				}
			}
		}
	}
}

// lineInfoBuilder accumulates runs as instructions are appended in pc
// order, merging consecutive instructions on the same line into one
// run (mirrors upstream Lua's savelineinfo role, simplified: no
// relative/absolute delta packing since binary bytecode compatibility
// is out of scope).
type lineInfoBuilder struct {
	runs []lineInfoRun
}

// extend records that the instruction at pc (== current length) maps
// to line.
func (b *lineInfoBuilder) extend(pc, line int) {
	if n := len(b.runs); n > 0 && b.runs[n-1].line == line && b.runs[n-1].endPC == pc {
		b.runs[n-1].endPC = pc + 1
		return
	}
	b.runs = append(b.runs, lineInfoRun{line: line, startPC: pc, endPC: pc + 1})
}

// truncate drops any run information for instructions at index pc and
// beyond (used by [funcState.removeLastInstruction]).
func (b *lineInfoBuilder) truncate(pc int) {
	for len(b.runs) > 0 && b.runs[len(b.runs)-1].startPC >= pc {
		b.runs = b.runs[:len(b.runs)-1]
	}
	if n := len(b.runs); n > 0 && b.runs[n-1].endPC > pc {
		b.runs[n-1].endPC = pc
	}
}

func (b *lineInfoBuilder) build() LineInfo {
	return LineInfo{runs: slices.Clone(b.runs)}
}
