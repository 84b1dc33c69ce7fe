package main

import (
	"math"
	"time"

	"carousel3d/carousel"
)

// This file implements the reducer-style architecture building blocks:
//
//   - Events: inputs to the reducer (user actions, time ticks, resolver results)
//   - Commands: side effects requested by the reducer (replies, orientation lookups)
//   - Broadcasts: state changes to fan out to WebSocket clients
//
// The engine is a mutable single-owner object, so Reduce updates the state it
// is given in place. It must not perform I/O or block.

// ==============================
// Events
// ==============================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// Tick is emitted by the daemon loop at the frame cadence.
// Dt is wall-clock delta in seconds between ticks.
type Tick struct {
	Now time.Time
	Dt  float64
}

func (Tick) eventMarker() {}

// TimedEvent wraps a wire event with the time the daemon received it.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// OrientationsResolved carries resolver output for the item list of
// Generation. A non-nil Err means resolution was abandoned.
type OrientationsResolved struct {
	Generation   uint64
	Orientations carousel.OrientationMap
	Err          error
}

func (OrientationsResolved) eventMarker() {}

// RequestStateSnapshot asks the daemon to publish a snapshot to Reply.
type RequestStateSnapshot struct {
	Reply chan carousel.Snapshot
}

func (RequestStateSnapshot) eventMarker() {}

// QuerySignificantDrag asks whether the last press moved the ring enough to
// count as a drag rather than a click.
type QuerySignificantDrag struct {
	Reply chan bool
}

func (QuerySignificantDrag) eventMarker() {}

// ==============================
// Broadcasts
// ==============================

// StateBroadcast is a reducer-emitted change for WebSocket clients.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastFrame reports a new rotation and the transforms it produces.
type BroadcastFrame struct {
	FinalRotation float64
	CenterIndex   int
	Transforms    []carousel.Transform
	At            time.Time
}

func (BroadcastFrame) broadcastMarker() {}

// BroadcastCenterChanged reports a new front-center item.
type BroadcastCenterChanged struct {
	Index int
	ID    string
	At    time.Time
}

func (BroadcastCenterChanged) broadcastMarker() {}

// BroadcastLayoutChanged reports a new item list or geometry.
type BroadcastLayoutChanged struct {
	Items       []carousel.ItemGeometry
	Perspective float64
	At          time.Time
}

func (BroadcastLayoutChanged) broadcastMarker() {}

// ==============================
// Reducer input/output
// ==============================

type ReducerConfig struct {
	Rotary RotaryConfig
	// FrameInterval is the expected tick spacing. A tick arriving more than
	// two intervals after the previous one counts as late. Zero disables it.
	FrameInterval time.Duration
}

// ReduceResult is the output of Reduce(): the state plus side effects and broadcasts.
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// Reduce applies e to s.
//
// The daemon loop must:
//   - execute Commands
//   - translate their results into Events
//   - feed those Events back into Reduce()
func Reduce(s *DaemonState, e Event, cfg ReducerConfig) ReduceResult {
	if s == nil || s.Engine == nil {
		return ReduceResult{State: s}
	}

	var (
		cmds []Command
		bcs  []StateBroadcast
	)

	at := time.Time{}
	if te, ok := e.(TimedEvent); ok {
		e, at = te.Event, te.At
	}
	if at.IsZero() {
		at = s.Loop.Now()
	}

	eng := s.Engine

	switch ev := e.(type) {
	case Tick:
		if cfg.FrameInterval > 0 && ev.Dt > 2*cfg.FrameInterval.Seconds() {
			s.LateTicks++
		}
		s.Loop.Step(ev.Now)
		at = ev.Now

	case PointerDown:
		eng.PointerDown(ev.X, pointerCount(ev.Pointers))
	case PointerMove:
		eng.PointerMove(ev.X, pointerCount(ev.Pointers))
	case PointerUp:
		eng.PointerUp()

	case RotateByDelta:
		eng.RotateByDelta(ev.Delta, ev.Direction)

	case KeyPressed:
		eng.HandleKey(ev.Key)

	case HoverEnter:
		eng.MouseEnter()
	case HoverLeave:
		eng.MouseLeave()

	case SetAutoRotate:
		eng.SetAutoRotate(ev.Enabled)
	case SetKeyboardNav:
		eng.SetKeyboardNavigation(ev.Enabled)
	case ResetSignificantDrag:
		eng.ResetSignificantDrag()

	case RotaryTurn:
		if ev.Steps == 0 {
			break
		}
		n := s.Rotary.itemsForTurn(ev.Steps, at, cfg.Rotary)
		dir := carousel.CounterClockwise
		if n < 0 {
			dir = carousel.Clockwise
		}
		eng.RotateByDelta(n, dir)

	case SetItems:
		items := append([]carousel.Item(nil), ev.Items...)
		assignItemIDs(items)
		s.Items = items
		s.ItemsGeneration++
		eng.SetItems(items, nil)
		bcs = append(bcs, layoutBroadcast(s, at))
		if len(items) > 0 {
			cmds = append(cmds, CmdResolveOrientations{Items: items, Generation: s.ItemsGeneration})
		}

	case OrientationsResolved:
		if ev.Generation != s.ItemsGeneration || ev.Err != nil {
			break
		}
		eng.SetItems(s.Items, ev.Orientations)
		bcs = append(bcs, layoutBroadcast(s, at))
		// Geometry moved under the current rotation.
		s.FrameKnown = false

	case RequestStateSnapshot:
		cmds = append(cmds, CmdPublishStateSnapshot{Reply: ev.Reply, Snapshot: eng.Snapshot()})

	case QuerySignificantDrag:
		cmds = append(cmds, CmdReplySignificantDrag{Reply: ev.Reply, Significant: eng.CheckSignificantDragNow()})

	default:
		// Unknown event type: no-op.
	}

	bcs = append(bcs, observeFrame(s, at)...)

	return ReduceResult{
		State:      s,
		Commands:   cmds,
		Broadcasts: bcs,
	}
}

// observeFrame emits frame and center broadcasts when the engine moved since
// the last broadcast.
func observeFrame(s *DaemonState, at time.Time) []StateBroadcast {
	var out []StateBroadcast

	eng := s.Engine
	final := eng.FinalRotation()
	center := eng.CenterIndex()

	if !s.FrameKnown || math.Abs(final-s.LastFrameRotation) > frameEpsilonDeg {
		s.LastFrameRotation = final
		s.FrameKnown = true
		out = append(out, BroadcastFrame{
			FinalRotation: final,
			CenterIndex:   center,
			Transforms:    eng.Transforms(),
			At:            at,
		})
	}

	if len(eng.Items()) > 0 && (!s.CenterKnown || center != s.LastCenter) {
		s.LastCenter = center
		s.CenterKnown = true
		out = append(out, BroadcastCenterChanged{
			Index: center,
			ID:    s.centerItemID(center),
			At:    at,
		})
	}
	return out
}

func layoutBroadcast(s *DaemonState, at time.Time) BroadcastLayoutChanged {
	// A new list resets which item is considered centered.
	s.CenterKnown = false
	return BroadcastLayoutChanged{
		Items:       append([]carousel.ItemGeometry(nil), s.Engine.Geometry()...),
		Perspective: s.Engine.Perspective(),
		At:          at,
	}
}

func pointerCount(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
