package carousel

import (
	"math"
	"time"

	"carousel3d/frame"
)

// DragPhase is the lifecycle state of a DragController.
type DragPhase int

const (
	DragIdle DragPhase = iota
	Dragging
	MomentumActive
)

func (p DragPhase) String() string {
	switch p {
	case Dragging:
		return "dragging"
	case MomentumActive:
		return "momentum"
	default:
		return "idle"
	}
}

func (p DragPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// DragConfig tunes a DragController.
type DragConfig struct {
	Radius         float64
	Sensitivity    float64
	StartDistance  float64
	Momentum       bool
	Friction       float64
	StartThreshold float64
	StopThreshold  float64
}

// DragController turns horizontal pointer motion into rotation and, on
// release, coasts with decaying momentum.
//
// Rotation accumulates across gestures; a new gesture starts from wherever the
// previous one (including its momentum) left off.
type DragController struct {
	frames   frame.Frames
	cfg      DragConfig
	onSettle func()

	phase    DragPhase
	rotation float64

	tracking  bool
	active    bool
	startX    float64
	baseline  float64
	prevDelta float64
	velocity  float64

	frame frame.Handle
}

// NewDragController returns an idle controller. onSettle, if non-nil, runs
// once per gesture: on release when there is no momentum, when momentum
// decays below the stop threshold, or when a multi-touch aborts the gesture.
func NewDragController(frames frame.Frames, cfg DragConfig, onSettle func()) *DragController {
	return &DragController{frames: frames, cfg: cfg, onSettle: onSettle}
}

func (d *DragController) Rotation() float64 { return d.rotation }
func (d *DragController) Velocity() float64 { return d.velocity }
func (d *DragController) Phase() DragPhase  { return d.phase }

// Busy reports whether a gesture or its momentum is still in progress.
func (d *DragController) Busy() bool { return d.phase != DragIdle }

// Start begins tracking a pointer at x. Gestures with more than one pointer
// are ignored. Any running momentum is stopped without settling.
func (d *DragController) Start(x float64, pointers int) bool {
	if pointers > 1 {
		return false
	}
	d.stopMomentum()

	d.tracking = true
	d.active = false
	d.startX = x
	d.baseline = d.rotation
	d.prevDelta = 0
	d.velocity = 0
	d.phase = Dragging
	return true
}

// Move updates the rotation for a pointer now at x. Movement under the start
// distance is ignored until the threshold is crossed once.
func (d *DragController) Move(x float64, pointers int) {
	if !d.tracking {
		return
	}
	if pointers > 1 {
		d.abort()
		return
	}

	dx := x - d.startX
	if !d.active {
		if math.Abs(dx) < d.cfg.StartDistance {
			return
		}
		d.active = true
	}

	circumference := 2 * math.Pi * d.cfg.Radius
	delta := dx / circumference * 360 * d.cfg.Sensitivity

	d.velocity = delta - d.prevDelta
	d.prevDelta = delta
	d.rotation = d.baseline + delta
}

// End releases the pointer. Momentum starts only when it is enabled and the
// last per-move velocity is above the start threshold.
func (d *DragController) End() {
	if !d.tracking {
		return
	}
	d.tracking = false

	if d.cfg.Momentum && math.Abs(d.velocity) > d.cfg.StartThreshold {
		d.phase = MomentumActive
		d.frame = d.frames.RequestFrame(d.coast)
		return
	}
	d.velocity = 0
	d.settle()
}

// Cancel stops tracking and momentum without running the settle callback.
func (d *DragController) Cancel() {
	d.tracking = false
	d.stopMomentum()
	d.phase = DragIdle
}

func (d *DragController) abort() {
	d.tracking = false
	d.velocity = 0
	d.settle()
}

func (d *DragController) coast(time.Time) {
	d.frame = 0
	d.rotation += d.velocity
	d.velocity *= d.cfg.Friction

	if math.Abs(d.velocity) < d.cfg.StopThreshold {
		d.velocity = 0
		d.settle()
		return
	}
	d.frame = d.frames.RequestFrame(d.coast)
}

func (d *DragController) stopMomentum() {
	if d.frame != 0 {
		d.frames.CancelFrame(d.frame)
		d.frame = 0
	}
	if d.phase == MomentumActive {
		d.velocity = 0
		d.phase = DragIdle
	}
}

func (d *DragController) settle() {
	d.phase = DragIdle
	if d.onSettle != nil {
		d.onSettle()
	}
}
