package main

import (
	"fmt"

	"carousel3d/carousel"
)

// ==============================
// Commands (side effects)
// ==============================

// Command represents a side effect to be executed outside the reducer.
type Command interface {
	commandMarker()
	String() string
}

// CmdPublishStateSnapshot delivers a snapshot to whoever asked for it.
type CmdPublishStateSnapshot struct {
	Reply    chan<- carousel.Snapshot
	Snapshot carousel.Snapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (c CmdPublishStateSnapshot) String() string {
	return fmt.Sprintf("CmdPublishStateSnapshot(items=%d)", len(c.Snapshot.Items))
}

// CmdReplySignificantDrag answers a QuerySignificantDrag.
type CmdReplySignificantDrag struct {
	Reply       chan<- bool
	Significant bool
}

func (CmdReplySignificantDrag) commandMarker() {}
func (c CmdReplySignificantDrag) String() string {
	return fmt.Sprintf("CmdReplySignificantDrag(significant=%v)", c.Significant)
}

// CmdResolveOrientations asks the orientation resolver to measure items.
// Results come back as OrientationsResolved carrying the same Generation.
type CmdResolveOrientations struct {
	Items      []carousel.Item
	Generation uint64
}

func (CmdResolveOrientations) commandMarker() {}
func (c CmdResolveOrientations) String() string {
	return fmt.Sprintf("CmdResolveOrientations(items=%d, generation=%d)", len(c.Items), c.Generation)
}
