package main

import (
	"testing"
	"time"
)

// TestRotaryState_AddStep_Basic tests basic step tracking
func TestRotaryState_AddStep_Basic(t *testing.T) {
	var r RotaryReducerState
	now := testT0

	for want := 1; want <= 3; want++ {
		if got := r.addStep(1, now, 200); got != want {
			t.Errorf("expected count=%d, got %d", want, got)
		}
		now = now.Add(10 * time.Millisecond)
	}
}

// TestRotaryState_AddStep_DirectionChange tests that direction changes
// don't count toward the velocity threshold
func TestRotaryState_AddStep_DirectionChange(t *testing.T) {
	var r RotaryReducerState
	now := testT0

	r.addStep(1, now, 200)
	r.addStep(1, now, 200)
	if count := r.addStep(1, now, 200); count != 3 {
		t.Errorf("expected 3 forward steps, got %d", count)
	}

	if count := r.addStep(-1, now, 200); count != 1 {
		t.Errorf("expected count=1 for new direction, got %d", count)
	}
	if count := r.addStep(-1, now, 200); count != 2 {
		t.Errorf("expected count=2 for backward direction, got %d", count)
	}

	if count := r.addStep(1, now, 200); count != 4 {
		t.Errorf("expected count=4 (3 old + 1 new forward steps still in window), got %d", count)
	}
}

// TestRotaryState_AddStep_WindowExpiry tests that old steps are pruned
func TestRotaryState_AddStep_WindowExpiry(t *testing.T) {
	var r RotaryReducerState

	r.addStep(1, testT0, 100)
	r.addStep(1, testT0, 100)
	if count := r.addStep(1, testT0, 100); count != 3 {
		t.Errorf("expected count=3, got %d", count)
	}

	if count := r.addStep(1, testT0.Add(150*time.Millisecond), 100); count != 1 {
		t.Errorf("expected count=1 after window expiry, got %d", count)
	}
	if len(r.RecentSteps) != 1 {
		t.Errorf("expected expired steps to be pruned, have %d", len(r.RecentSteps))
	}
}

func TestRotaryState_AddStep_PartialExpiry(t *testing.T) {
	var r RotaryReducerState

	r.addStep(1, testT0, 100)
	r.addStep(1, testT0.Add(60*time.Millisecond), 100)

	// The first step falls out, the second stays.
	if count := r.addStep(1, testT0.Add(120*time.Millisecond), 100); count != 2 {
		t.Errorf("expected count=2, got %d", count)
	}
}

func TestItemsForTurn(t *testing.T) {
	cfg := RotaryConfig{VelocityWindowMS: 200, VelocityThreshold: 3, VelocityMultiplier: 2}

	tests := []struct {
		name  string
		turns []int
		gap   time.Duration
		want  int
	}{
		{name: "single detent", turns: []int{1}, want: 1},
		{name: "single detent back", turns: []int{-1}, want: -1},
		{name: "slow turns stay at one", turns: []int{1, 1, 1, 1}, gap: 300 * time.Millisecond, want: 1},
		{name: "fast spin multiplies from the threshold", turns: []int{1, 1, 1, 1}, gap: 20 * time.Millisecond, want: 2},
		{name: "batched report", turns: []int{4}, want: 1 + 1 + 2 + 2},
		{name: "reversal restarts the count", turns: []int{1, 1, -1}, gap: 20 * time.Millisecond, want: -1},
		{name: "zero", turns: []int{0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r RotaryReducerState
			now := testT0
			got := 0
			for _, steps := range tt.turns {
				got = r.itemsForTurn(steps, now, cfg)
				now = now.Add(tt.gap)
			}
			if got != tt.want {
				t.Errorf("last turn moved %d items, want %d", got, tt.want)
			}
		})
	}
}

func TestRotaryConfig_Defaults(t *testing.T) {
	got := RotaryConfig{}.withDefaults()
	want := RotaryConfig{
		VelocityWindowMS:   defaultRotaryVelocityWindowMS,
		VelocityThreshold:  defaultRotaryVelocityThreshold,
		VelocityMultiplier: defaultRotaryVelocityMultiplier,
	}
	if got != want {
		t.Fatalf("withDefaults() = %+v, want %+v", got, want)
	}
}
