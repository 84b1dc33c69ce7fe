package main

import (
	"log/slog"
	"time"

	"carousel3d/carousel"
	"carousel3d/frame"
)

// DaemonState is the top-level, daemon-owned state container.
//
// The engine and its frame loop are not safe for concurrent use. Only the
// daemon goroutine touches DaemonState; other goroutines get copies through
// RequestStateSnapshot.
type DaemonState struct {
	Engine *carousel.Engine
	Loop   *frame.Loop

	// Items is the full configured list; the engine may hold fewer.
	Items []carousel.Item

	// ItemsGeneration increments on every SetItems so late orientation
	// results for a replaced list are ignored.
	ItemsGeneration uint64

	// Last values broadcast to clients.
	LastFrameRotation float64
	FrameKnown        bool
	LastCenter        int
	CenterKnown       bool

	// LateTicks counts ticks that arrived well after their frame was due.
	LateTicks int

	// Rotary is reducer-owned state used for rotary velocity detection.
	Rotary RotaryReducerState
}

// RotaryReducerState tracks recent rotary turns for reducer-side velocity detection.
type RotaryReducerState struct {
	RecentSteps []RotaryReducerStep
}

// RotaryReducerStep is one observed rotary detent/step at a given time.
// Direction is -1 or +1.
type RotaryReducerStep struct {
	At        time.Time
	Direction int
}

// NewDaemonState builds an engine stepped by a frame loop reading clock.
func NewDaemonState(opts carousel.Options, clock frame.Clock, logger *slog.Logger) (*DaemonState, error) {
	loop := frame.NewLoop(clock)
	eng, err := carousel.New(opts, loop, logger)
	if err != nil {
		return nil, err
	}
	return &DaemonState{Engine: eng, Loop: loop}, nil
}

// centerItemID returns the ID at index i, or "" if out of range.
func (s *DaemonState) centerItemID(i int) string {
	items := s.Engine.Items()
	if i < 0 || i >= len(items) {
		return ""
	}
	return items[i].ID
}
