// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

// ensureStack grows the value stack, if necessary, so that it holds at
// least n slots (indices 0 through n-1 are addressable; §4.8's "CheckStack" guarantee, applied internally by
// every VM operation that extends the active register window).
func (s *State) ensureStack(n int) {
	if n <= len(s.stack) {
		return
	}
	grown := make([]Value, n*2)
	copy(grown, s.stack)
	s.stack = grown
}

// setTop sets the stack's logical length to n, clearing any slots
// that fall out of scope so they don't keep values alive for the GC.
func (s *State) setTop(n int) {
	s.ensureStack(n)
	for i := n; i < s.top; i++ {
		s.stack[i] = nil
	}
	s.top = n
}

// rawPush appends v to the top of the stack, growing it if needed.
func (s *State) rawPush(v Value) {
	s.ensureStack(s.top + 1)
	s.stack[s.top] = v
	s.top++
}
