// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import "testing"

// TestGCStressSurvivesAllocation exercises the checkGC safe points
// wired into NewTable/intern/closure creation under stress mode,
// where every allocation past the threshold triggers a full
// collection cycle immediately.
func TestGCStressSurvivesAllocation(t *testing.T) {
	g := NewGlobal(nil)
	g.SetGCStress(true)
	s := g.NewState()
	defer s.Close()
	s.OpenBase()

	for i := 0; i < 64; i++ {
		s.CreateTable(0, 0)
		s.PushString("field")
		s.PushNumber(float64(i))
		s.RawSet(-3)
		s.SetGlobal("stressTable")
	}

	s.GetGlobal("stressTable")
	if got := s.Type(-1); got != TypeTable {
		t.Fatalf("Type(stressTable) = %v; want %v", got, TypeTable)
	}
	s.GetField(-1, "field")
	got, ok := s.ToNumber(-1)
	if !ok || got != 63 {
		t.Errorf("stressTable.field = %v, %v; want 63, true", got, ok)
	}
}
