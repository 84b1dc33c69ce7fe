package carousel

import (
	"math"
	"time"

	"carousel3d/frame"
)

// minJumpDelta is the smallest tween worth animating, in degrees.
const minJumpDelta = 0.01

// Jumper tweens an offset rotation toward a target with an ease-out curve.
type Jumper struct {
	sched    frame.Scheduler
	duration time.Duration

	offset  float64
	running bool

	start time.Time
	from  float64
	to    float64
	delta float64

	frame frame.Handle
}

func NewJumper(sched frame.Scheduler, duration time.Duration) *Jumper {
	return &Jumper{sched: sched, duration: duration}
}

func (j *Jumper) Offset() float64 { return j.offset }
func (j *Jumper) Running() bool   { return j.running }

// Target is where the current (or last) tween ends.
func (j *Jumper) Target() float64 { return j.to }

// Start animates the offset from `from` to `to`, travelling the way dir
// allows. A tween already in flight is replaced. It returns the signed
// number of degrees the tween will cover.
func (j *Jumper) Start(from, to float64, dir Direction) float64 {
	j.Cancel()

	j.from = from
	j.to = to
	j.delta = ShortestDelta(from, to, dir)
	if math.Abs(j.delta) < minJumpDelta || j.duration <= 0 {
		j.offset = to
		return j.delta
	}

	j.offset = from
	j.running = true
	j.start = j.sched.Now()
	j.frame = j.sched.RequestFrame(j.tick)
	return j.delta
}

// Cancel freezes the offset wherever the tween currently is.
func (j *Jumper) Cancel() {
	if j.frame != 0 {
		j.sched.CancelFrame(j.frame)
		j.frame = 0
	}
	j.running = false
}

func (j *Jumper) tick(now time.Time) {
	j.frame = 0

	progress := float64(now.Sub(j.start)) / float64(j.duration)
	if progress >= 1 {
		j.offset = j.to
		j.running = false
		return
	}
	j.offset = j.from + j.delta*EaseOutCubic(progress)
	j.frame = j.sched.RequestFrame(j.tick)
}
