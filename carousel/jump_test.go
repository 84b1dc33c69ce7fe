package carousel

import (
	"testing"
	"time"
)

const testJump = 500 * time.Millisecond

func TestJumper_TweensToTarget(t *testing.T) {
	r := newRig()
	j := NewJumper(r.loop, testJump)

	delta := j.Start(0, -90, Auto)
	diff(t, -90.0, delta, approx)
	if !j.Running() {
		t.Fatalf("expected tween to be running")
	}

	prev := 0.0
	for j.Running() {
		r.step()
		if j.Offset() > prev {
			t.Fatalf("offset moved away from target: %v > %v", j.Offset(), prev)
		}
		prev = j.Offset()
	}
	diff(t, -90.0, j.Offset(), approx)
	if r.clk.Now().Sub(t0) < testJump {
		t.Fatalf("tween finished early at %v", r.clk.Now().Sub(t0))
	}
}

func TestJumper_DirectionIsHonoured(t *testing.T) {
	r := newRig()
	j := NewJumper(r.loop, testJump)

	delta := j.Start(0, -90, Clockwise)
	diff(t, 270.0, delta, approx)

	r.step()
	if j.Offset() <= 0 {
		t.Fatalf("expected clockwise tween to increase the offset, got %v", j.Offset())
	}
	r.run(testJump)
	diff(t, -90.0, j.Offset(), approx)
}

func TestJumper_TinyDeltaCompletesImmediately(t *testing.T) {
	r := newRig()
	j := NewJumper(r.loop, testJump)

	j.Start(10, 10.005, Auto)
	if j.Running() || r.loop.PendingFrames() != 0 {
		t.Fatalf("expected immediate completion")
	}
	diff(t, 10.005, j.Offset(), approx)
}

func TestJumper_RestartReplacesTween(t *testing.T) {
	r := newRig()
	j := NewJumper(r.loop, testJump)

	j.Start(0, -60, Auto)
	r.steps(5)
	mid := j.Offset()
	j.Start(mid, -120, Auto)
	if n := r.loop.PendingFrames(); n != 1 {
		t.Fatalf("expected one pending frame after restart, got %d", n)
	}

	r.run(testJump + frameInterval)
	diff(t, -120.0, j.Offset(), approx)
	if r.loop.PendingFrames() != 0 {
		t.Fatalf("expected tween to finish")
	}
}
