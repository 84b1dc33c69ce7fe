// Package carousel computes the rotation, layout and per-item transforms of a
// 3D circular carousel.
//
// An Engine combines three independent rotation sources, drag (with
// momentum), auto-rotate and index jumps, into one final rotation. All
// animation runs on the frame.Scheduler supplied by the host, so an Engine is
// owned by a single goroutine: the one stepping that scheduler.
package carousel

import (
	"log/slog"
	"math"
	"time"

	"carousel3d/frame"
)

// significantDragDegrees is the net rotation a press-to-release gesture must
// produce to count as a drag rather than a click.
const significantDragDegrees = 1.0

// centerEarlyExit stops the center search once an item is this close to
// front-center.
const centerEarlyExit = 0.1

// Engine aggregates the rotation sources and answers render queries.
type Engine struct {
	opts   Options
	logger *slog.Logger
	sched  frame.Scheduler

	items  []Item
	geoms  []ItemGeometry
	params TransformParams

	drag *DragController
	auto *AutoRotator
	jump *Jumper

	targetIndex int

	downCaptured bool
	downRotation float64

	keyboard  bool
	lastKeyAt time.Time
}

// New validates opts and returns an engine with no items. A nil logger
// discards log output.
func New(opts Options, sched frame.Scheduler, logger *slog.Logger) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &Engine{
		opts:     opts,
		logger:   logger,
		sched:    sched,
		geoms:    []ItemGeometry{},
		params:   opts.transformParams(),
		keyboard: opts.KeyboardNavigation,
	}
	e.drag = NewDragController(sched, opts.dragConfig(), e.onDragSettled)
	e.auto = NewAutoRotator(sched, opts.AutoRotateSpeed, opts.AutoRotateRamp, opts.AutoRotate)
	e.jump = NewJumper(sched, opts.JumpDuration)
	return e, nil
}

// Start kicks off auto-rotation when it is enabled.
func (e *Engine) Start() {
	e.auto.Resume()
}

// Close cancels every pending frame callback and timer.
func (e *Engine) Close() {
	e.drag.Cancel()
	e.auto.Stop()
	e.jump.Cancel()
}

// SetItems replaces the item list and recomputes the layout. A nil src means
// orientation metadata is not available yet and items are spaced evenly;
// pass an empty OrientationMap to size items from their own hints.
func (e *Engine) SetItems(items []Item, src OrientationSource) {
	kept, dropped := LimitItems(items, e.opts.MaxItems)
	if dropped > 0 {
		e.logger.Warn("carousel item list truncated",
			"provided", len(items),
			"max", len(kept),
			"dropped", dropped)
	}

	e.items = append([]Item(nil), kept...)
	if src == nil {
		e.geoms = UniformGeometry(e.items)
	} else {
		e.geoms = ComputeGeometry(e.items, src, e.opts.BaseHeight)
	}
	if e.targetIndex >= len(e.items) {
		e.targetIndex = 0
	}

	e.logger.Debug("carousel layout computed",
		"items", len(e.items),
		"uniform", src == nil)
}

func (e *Engine) Items() []Item            { return e.items }
func (e *Engine) Geometry() []ItemGeometry { return e.geoms }

func (e *Engine) DragRotation() float64 { return e.drag.Rotation() }
func (e *Engine) AutoRotation() float64 { return e.auto.Rotation() }
func (e *Engine) JumpRotation() float64 { return e.jump.Offset() }

// FinalRotation is the sum of the three rotation sources.
func (e *Engine) FinalRotation() float64 {
	return e.drag.Rotation() + e.auto.Rotation() + e.jump.Offset()
}

// CenterIndex returns the item currently nearest front-center.
func (e *Engine) CenterIndex() int {
	return CenterIndex(e.FinalRotation(), e.geoms)
}

// CenterIndex returns the index of the item whose angle deviates least from
// front-center at rotation. Ties keep the lower index; an empty ring is 0.
func CenterIndex(rotation float64, geoms []ItemGeometry) int {
	best := 0
	bestDev := math.Inf(1)
	for i, g := range geoms {
		dev := NormalizeTo180(NormalizeTo360(g.CenterAngle + rotation))
		if dev < bestDev {
			bestDev = dev
			best = i
			if dev < centerEarlyExit {
				break
			}
		}
	}
	return best
}

// Perspective is the viewer distance the host should project with.
func (e *Engine) Perspective() float64 {
	p := PerspectiveDistance(e.opts.Radius, e.opts.Perspective,
		e.opts.PerspectiveMultiplier, e.opts.PerspectiveMinMultiplier)
	return SafePerspective(p, e.params.MaxDisplacement())
}

// Transforms returns the render record of every item at the current rotation.
func (e *Engine) Transforms() []Transform {
	return ComputeTransforms(e.geoms, e.FinalRotation(), e.params)
}

// PointerDown starts a drag gesture and records the rotation for
// CheckSignificantDragNow.
func (e *Engine) PointerDown(x float64, pointers int) {
	e.downRotation = NormalizeTo360(e.FinalRotation())
	e.downCaptured = true
	e.drag.Start(x, pointers)
}

func (e *Engine) PointerMove(x float64, pointers int) {
	e.drag.Move(x, pointers)
}

func (e *Engine) PointerUp() {
	e.drag.End()
}

// MouseEnter pauses auto-rotation while the pointer hovers the carousel.
func (e *Engine) MouseEnter() {
	e.auto.Pause()
}

// MouseLeave schedules auto-rotation to resume unless a drag is still
// running; in that case the drag's own settle handles it.
func (e *Engine) MouseLeave() {
	if e.drag.Busy() {
		return
	}
	e.auto.ScheduleResume(e.opts.AutoRotateResumeDelay)
}

func (e *Engine) onDragSettled() {
	if e.auto.Enabled() {
		e.auto.ScheduleResume(e.opts.AutoRotateResumeDelay)
	}
}

// RotateByDelta starts a jump n items away from the current position.
// Rapid calls chain from the previous target rather than from whatever item
// the in-flight tween happens to be passing.
func (e *Engine) RotateByDelta(n int, dir Direction) {
	count := len(e.geoms)
	if count == 0 {
		return
	}

	var base int
	switch {
	case e.drag.Busy():
		base = e.CenterIndex()
	case e.jump.Running():
		base = e.targetIndex
	default:
		base = e.CenterIndex()
	}

	target := ((base+n)%count + count) % count
	others := e.drag.Rotation() + e.auto.Rotation()
	targetOffset := -e.geoms[target].CenterAngle - others

	e.targetIndex = target
	delta := e.jump.Start(e.jump.Offset(), targetOffset, dir)

	e.logger.Debug("carousel jump",
		"from_index", base,
		"to_index", target,
		"direction", dir.String(),
		"delta_deg", delta)
}

// HandleKey applies a navigation key. Keys arriving within the debounce
// window of the last accepted key are dropped. It reports whether the key
// caused a jump.
func (e *Engine) HandleKey(k Key) bool {
	if !e.keyboard {
		return false
	}
	n, dir, ok := k.step()
	if !ok {
		return false
	}

	now := e.sched.Now()
	if !e.lastKeyAt.IsZero() && now.Sub(e.lastKeyAt) < e.opts.KeyboardDebounce {
		return false
	}
	e.lastKeyAt = now

	e.auto.ScheduleResume(e.opts.AutoRotateResumeDelay)
	e.RotateByDelta(n, dir)
	return true
}

// SetAutoRotate enables or disables auto-rotation at runtime.
func (e *Engine) SetAutoRotate(enabled bool) {
	e.auto.SetEnabled(enabled)
}

func (e *Engine) AutoRotateEnabled() bool { return e.auto.Enabled() }

func (e *Engine) SetKeyboardNavigation(enabled bool) {
	e.keyboard = enabled
}

func (e *Engine) KeyboardNavigationEnabled() bool { return e.keyboard }

// CheckSignificantDragNow reports whether the gesture that started at the
// last PointerDown moved the ring far enough to suppress a click. A gesture
// still in progress always counts.
func (e *Engine) CheckSignificantDragNow() bool {
	if e.drag.Busy() {
		return true
	}
	if !e.downCaptured {
		return false
	}
	moved := NormalizeTo180(NormalizeTo360(e.FinalRotation() - e.downRotation))
	return moved >= significantDragDegrees
}

// ResetSignificantDrag forgets the rotation captured at PointerDown.
func (e *Engine) ResetSignificantDrag() {
	e.downCaptured = false
	e.downRotation = 0
}

// Snapshot is a point-in-time view of the engine for hosts and tooling.
type Snapshot struct {
	DragRotation  float64 `json:"drag_rotation"`
	AutoRotation  float64 `json:"auto_rotation"`
	JumpRotation  float64 `json:"jump_rotation"`
	FinalRotation float64 `json:"final_rotation"`

	CenterIndex int       `json:"center_index"`
	TargetIndex int       `json:"target_index"`
	DragPhase   DragPhase `json:"drag_phase"`
	Jumping     bool      `json:"jumping"`
	AutoRate    float64   `json:"auto_rate"`

	// DragVelocity is degrees per frame while dragging or coasting.
	DragVelocity float64 `json:"drag_velocity"`
	// JumpTarget is the jump offset the current or last jump ends at.
	JumpTarget float64 `json:"jump_target"`

	AutoRotateEnabled  bool `json:"auto_rotate_enabled"`
	KeyboardNavigation bool `json:"keyboard_navigation"`

	Perspective float64        `json:"perspective"`
	Items       []ItemGeometry `json:"items"`
	Transforms  []Transform    `json:"transforms"`
}

func (e *Engine) Snapshot() Snapshot {
	final := e.FinalRotation()
	return Snapshot{
		DragRotation:  e.drag.Rotation(),
		AutoRotation:  e.auto.Rotation(),
		JumpRotation:  e.jump.Offset(),
		FinalRotation: final,

		CenterIndex: CenterIndex(final, e.geoms),
		TargetIndex: e.targetIndex,
		DragPhase:   e.drag.Phase(),
		Jumping:     e.jump.Running(),
		AutoRate:    e.auto.Rate(),

		DragVelocity: e.drag.Velocity(),
		JumpTarget:   e.jump.Target(),

		AutoRotateEnabled:  e.auto.Enabled(),
		KeyboardNavigation: e.keyboard,

		Perspective: e.Perspective(),
		Items:       append([]ItemGeometry(nil), e.geoms...),
		Transforms:  ComputeTransforms(e.geoms, final, e.params),
	}
}
