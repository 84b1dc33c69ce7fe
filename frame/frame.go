// Package frame provides the scheduling collaborators the carousel engine
// animates against: a stepped frame loop that stands in for a display's
// "request animation frame" primitive, one-shot delay timers, and a clock.
//
// A Loop is single-owner. It is not safe for concurrent use; the goroutine
// that steps it is the only one allowed to request or cancel callbacks.
package frame

import (
	"sort"
	"sync"
	"time"
)

// Handle identifies a pending frame callback or timer.
// The zero Handle is never issued and is safe to cancel.
type Handle uint64

// Clock is a wall-clock timestamp source.
type Clock interface {
	Now() time.Time
}

// Frames requests and cancels callbacks that run once, on the next frame.
type Frames interface {
	RequestFrame(cb func(now time.Time)) Handle
	CancelFrame(h Handle)
}

// Timers schedules one-shot delayed callbacks.
type Timers interface {
	AfterFunc(d time.Duration, fn func()) Handle
	CancelTimer(h Handle)
}

// Scheduler bundles everything an animated controller needs from its host.
type Scheduler interface {
	Clock
	Frames
	Timers
}

type timer struct {
	due time.Time
	fn  func()
}

// Loop is a Scheduler driven by explicit Step calls.
//
// Callbacks requested during a Step run on the following Step, never the
// current one, mirroring how browsers batch animation frames.
type Loop struct {
	clock Clock
	next  Handle

	frames map[Handle]func(time.Time)
	order  []Handle

	timers map[Handle]timer
}

// NewLoop returns a Loop reading time from clock. A nil clock uses RealClock.
func NewLoop(clock Clock) *Loop {
	if clock == nil {
		clock = RealClock{}
	}
	return &Loop{
		clock:  clock,
		frames: make(map[Handle]func(time.Time)),
		timers: make(map[Handle]timer),
	}
}

func (l *Loop) issue() Handle {
	l.next++
	return l.next
}

// Now returns the loop clock's current time.
func (l *Loop) Now() time.Time { return l.clock.Now() }

// RequestFrame schedules cb for the next Step.
func (l *Loop) RequestFrame(cb func(now time.Time)) Handle {
	h := l.issue()
	l.frames[h] = cb
	l.order = append(l.order, h)
	return h
}

// CancelFrame removes a pending frame callback. Unknown or already-run
// handles are ignored.
func (l *Loop) CancelFrame(h Handle) {
	delete(l.frames, h)
}

// AfterFunc schedules fn to run on the first Step at or after Now()+d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Handle {
	h := l.issue()
	l.timers[h] = timer{due: l.clock.Now().Add(d), fn: fn}
	return h
}

// CancelTimer removes a pending timer. Unknown or fired handles are ignored.
func (l *Loop) CancelTimer(h Handle) {
	delete(l.timers, h)
}

// Step runs one frame at now: every frame callback requested before this
// call, then every timer due at or before now (earliest first).
// It returns the number of callbacks that ran.
func (l *Loop) Step(now time.Time) int {
	ran := 0

	batch := l.order
	l.order = nil
	for _, h := range batch {
		cb, ok := l.frames[h]
		if !ok {
			continue
		}
		delete(l.frames, h)
		cb(now)
		ran++
	}

	var due []Handle
	for h, t := range l.timers {
		if !t.due.After(now) {
			due = append(due, h)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		ti, tj := l.timers[due[i]], l.timers[due[j]]
		if ti.due.Equal(tj.due) {
			return due[i] < due[j]
		}
		return ti.due.Before(tj.due)
	})
	for _, h := range due {
		t, ok := l.timers[h]
		if !ok {
			continue
		}
		delete(l.timers, h)
		t.fn()
		ran++
	}

	return ran
}

// PendingFrames reports how many frame callbacks are waiting for a Step.
func (l *Loop) PendingFrames() int { return len(l.frames) }

// PendingTimers reports how many timers have not fired yet.
func (l *Loop) PendingTimers() int { return len(l.timers) }

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a ManualClock set to t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d and returns the new time.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
