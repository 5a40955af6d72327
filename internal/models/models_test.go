package models

import "testing"

func TestTerminal(t *testing.T) {
	cases := []struct {
		state string
		want  bool
	}{
		{StatePending, false},
		{StateInitiated, false},
		{StateInProgress, false},
		{StateProcessing, false},
		{StateDone, true},
		{StateFailed, true},
	}
	for _, tc := range cases {
		rec := CallRecord{State: tc.state}
		if got := rec.Terminal(); got != tc.want {
			t.Errorf("Terminal(%q) = %v, want %v", tc.state, got, tc.want)
		}
	}
}

func TestInFlightStatesExcludeTerminal(t *testing.T) {
	for _, s := range InFlightStates {
		rec := CallRecord{State: s}
		if rec.Terminal() {
			t.Errorf("in-flight state %q reported terminal", s)
		}
	}
}
