package carousel

import (
	"testing"
	"time"
)

const (
	testSpeed = 0.1
	testRamp  = 800 * time.Millisecond
	testDelay = 3000 * time.Millisecond
)

func TestAutoRotator_DisabledDoesNothing(t *testing.T) {
	r := newRig()
	a := NewAutoRotator(r.loop, testSpeed, testRamp, false)

	a.Resume()
	a.ScheduleResume(testDelay)
	r.run(5 * time.Second)

	diff(t, 0.0, a.Rotation(), approx)
	if !r.idle() {
		t.Fatalf("expected no frames or timers while disabled")
	}
}

func TestAutoRotator_RampsUpThenCruises(t *testing.T) {
	r := newRig()
	a := NewAutoRotator(r.loop, testSpeed, testRamp, true)
	a.Resume()

	prevRate := 0.0
	for r.clk.Now().Sub(t0) < testRamp {
		r.step()
		if a.Rate() < prevRate {
			t.Fatalf("rate decreased during ramp-up: %v < %v", a.Rate(), prevRate)
		}
		if a.Rate() > testSpeed+1e-12 {
			t.Fatalf("rate %v overshot speed %v", a.Rate(), testSpeed)
		}
		prevRate = a.Rate()
	}
	diff(t, testSpeed, a.Rate(), approx)

	before := a.Rotation()
	r.steps(10)
	diff(t, before+10*testSpeed, a.Rotation(), approx)
	if r.loop.PendingFrames() != 1 {
		t.Fatalf("expected exactly one pending frame, got %d", r.loop.PendingFrames())
	}
}

func TestAutoRotator_PauseDuringRampLeavesOneCallback(t *testing.T) {
	r := newRig()
	a := NewAutoRotator(r.loop, testSpeed, testRamp, true)

	a.Resume()
	r.steps(10)
	a.Pause()
	if n := r.loop.PendingFrames(); n != 1 {
		t.Fatalf("expected one pending frame after pause, got %d", n)
	}

	for i := 0; i < 200; i++ {
		r.step()
		if n := r.loop.PendingFrames(); n > 1 {
			t.Fatalf("overlapping frame callbacks: %d pending", n)
		}
	}
	if !r.idle() {
		t.Fatalf("expected rotator to come to rest")
	}
	diff(t, 0.0, a.Rate(), approx)

	stopped := a.Rotation()
	r.steps(20)
	diff(t, stopped, a.Rotation(), approx)
}

func TestAutoRotator_PauseWhenStillStopsImmediately(t *testing.T) {
	r := newRig()
	a := NewAutoRotator(r.loop, testSpeed, testRamp, true)

	a.Resume()
	a.Pause()
	if !r.idle() {
		t.Fatalf("expected nothing pending when pausing before the first frame")
	}
}

func TestAutoRotator_ScheduleResume(t *testing.T) {
	r := newRig()
	a := NewAutoRotator(r.loop, testSpeed, testRamp, true)
	a.Resume()
	r.run(time.Second)

	a.ScheduleResume(testDelay)
	if !a.ResumePending() {
		t.Fatalf("expected resume timer")
	}
	r.run(2 * time.Second)
	diff(t, 0.0, a.Rate(), approx)

	// Restarting the delay pushes the resume out again.
	a.ScheduleResume(testDelay)
	r.run(2 * time.Second)
	if !a.ResumePending() || a.Running() {
		t.Fatalf("expected rotator still waiting, pending=%v running=%v", a.ResumePending(), a.Running())
	}

	r.run(time.Second + testRamp + 100*time.Millisecond)
	diff(t, testSpeed, a.Rate(), approx)
	if r.loop.PendingTimers() != 0 {
		t.Fatalf("expected resume timer consumed, got %d", r.loop.PendingTimers())
	}
}

func TestAutoRotator_SetEnabledFalseStopsEverything(t *testing.T) {
	r := newRig()
	a := NewAutoRotator(r.loop, testSpeed, testRamp, true)
	a.Resume()
	r.run(time.Second)
	a.ScheduleResume(testDelay)

	a.SetEnabled(false)
	if !r.idle() {
		t.Fatalf("expected no pending work after disable")
	}
	at := a.Rotation()
	r.run(5 * time.Second)
	diff(t, at, a.Rotation(), approx)

	a.SetEnabled(true)
	if !a.Running() {
		t.Fatalf("expected enabling to resume")
	}
}

func TestAutoRotator_ZeroRamp(t *testing.T) {
	r := newRig()
	a := NewAutoRotator(r.loop, testSpeed, 0, true)
	a.Resume()
	r.steps(5)
	diff(t, 5*testSpeed, a.Rotation(), approx)

	a.Pause()
	if !r.idle() {
		t.Fatalf("expected immediate stop without a ramp")
	}
}
