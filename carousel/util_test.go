package carousel

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"carousel3d/frame"
)

const frameInterval = 16 * time.Millisecond

var (
	t0     = time.Unix(1700000000, 0).UTC()
	approx = cmpopts.EquateApprox(0, 1e-9)
)

func diff(t *testing.T, want, got any, opts ...cmp.Option) {
	t.Helper()
	if d := cmp.Diff(want, got, opts...); d != "" {
		t.Error(d)
	}
}

// rig drives a frame.Loop with a manual clock at a fixed frame interval.
type rig struct {
	clk  *frame.ManualClock
	loop *frame.Loop
}

func newRig() *rig {
	clk := frame.NewManualClock(t0)
	return &rig{clk: clk, loop: frame.NewLoop(clk)}
}

func (r *rig) step() {
	r.loop.Step(r.clk.Advance(frameInterval))
}

func (r *rig) steps(n int) {
	for i := 0; i < n; i++ {
		r.step()
	}
}

// run steps frames until at least d of clock time has passed.
func (r *rig) run(d time.Duration) {
	end := r.clk.Now().Add(d)
	for r.clk.Now().Before(end) {
		r.step()
	}
}

func (r *rig) idle() bool {
	return r.loop.PendingFrames() == 0 && r.loop.PendingTimers() == 0
}

func squareItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{ID: string(rune('a' + i)), Orientation: Square}
	}
	return items
}

func newTestEngine(t *testing.T, r *rig, mutate func(*Options), items []Item) *Engine {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(opts, r.loop, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.SetItems(items, OrientationMap{})
	t.Cleanup(e.Close)
	return e
}
