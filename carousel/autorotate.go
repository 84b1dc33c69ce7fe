package carousel

import (
	"time"

	"carousel3d/frame"
)

type autoPhase int

const (
	autoStopped autoPhase = iota
	autoRamping
	autoCruising
)

// AutoRotator advances a rotation by a constant per-frame speed, easing in
// and out of motion. At most one frame callback and one resume timer are
// pending at any time.
type AutoRotator struct {
	sched frame.Scheduler

	speed   float64
	ramp    time.Duration
	enabled bool

	rotation float64
	rate     float64
	phase    autoPhase

	rampStart time.Time
	rampFrom  float64
	rampTo    float64

	frame frame.Handle
	timer frame.Handle
}

// NewAutoRotator returns a stopped rotator. Enabling it does not start
// motion; call Resume.
func NewAutoRotator(sched frame.Scheduler, speed float64, ramp time.Duration, enabled bool) *AutoRotator {
	return &AutoRotator{sched: sched, speed: speed, ramp: ramp, enabled: enabled}
}

func (a *AutoRotator) Rotation() float64 { return a.rotation }

// Rate is the degrees added on the most recent frame.
func (a *AutoRotator) Rate() float64 { return a.rate }

func (a *AutoRotator) Enabled() bool { return a.enabled }

// Running reports whether a frame callback is pending.
func (a *AutoRotator) Running() bool { return a.frame != 0 }

// ResumePending reports whether a delayed resume is scheduled.
func (a *AutoRotator) ResumePending() bool { return a.timer != 0 }

// Resume ramps from the current rate up to the configured speed and keeps
// rotating. It is a no-op while disabled.
func (a *AutoRotator) Resume() {
	if !a.enabled {
		return
	}
	a.cancel()
	a.startRamp(a.speed)
}

// Pause ramps down to a standstill. When already still it just clears any
// pending work.
func (a *AutoRotator) Pause() {
	a.cancel()
	if a.rate <= 0 {
		a.rate = 0
		a.phase = autoStopped
		return
	}
	a.startRamp(0)
}

// ScheduleResume pauses now and resumes after delay. Calling it again
// restarts the delay. It is a no-op while disabled.
func (a *AutoRotator) ScheduleResume(delay time.Duration) {
	if !a.enabled {
		return
	}
	a.Pause()
	a.timer = a.sched.AfterFunc(delay, func() {
		a.timer = 0
		a.Resume()
	})
}

// SetEnabled toggles the rotator. Enabling resumes motion; disabling stops
// it immediately and drops any pending resume.
func (a *AutoRotator) SetEnabled(enabled bool) {
	a.enabled = enabled
	if enabled {
		a.Resume()
		return
	}
	a.Stop()
}

// Stop halts immediately without easing.
func (a *AutoRotator) Stop() {
	a.cancel()
	a.rate = 0
	a.phase = autoStopped
}

func (a *AutoRotator) cancel() {
	if a.frame != 0 {
		a.sched.CancelFrame(a.frame)
		a.frame = 0
	}
	if a.timer != 0 {
		a.sched.CancelTimer(a.timer)
		a.timer = 0
	}
}

func (a *AutoRotator) startRamp(to float64) {
	if a.ramp <= 0 {
		a.rate = to
		if to == 0 {
			a.phase = autoStopped
			return
		}
		a.phase = autoCruising
		a.frame = a.sched.RequestFrame(a.tick)
		return
	}
	a.phase = autoRamping
	a.rampStart = a.sched.Now()
	a.rampFrom = a.rate
	a.rampTo = to
	a.frame = a.sched.RequestFrame(a.tick)
}

func (a *AutoRotator) tick(now time.Time) {
	a.frame = 0

	switch a.phase {
	case autoRamping:
		progress := float64(now.Sub(a.rampStart)) / float64(a.ramp)
		a.rate = a.rampFrom + (a.rampTo-a.rampFrom)*EaseInOutCubic(progress)
		a.rotation += a.rate
		if progress >= 1 {
			a.rate = a.rampTo
			if a.rampTo == 0 {
				a.phase = autoStopped
				return
			}
			a.phase = autoCruising
		}
	case autoCruising:
		a.rate = a.speed
		a.rotation += a.rate
	default:
		return
	}

	a.frame = a.sched.RequestFrame(a.tick)
}
