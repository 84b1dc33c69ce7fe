package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"carousel3d/carousel"
	"carousel3d/frame"
)

type fakeResolver struct {
	orients carousel.OrientationMap
	err     error
	calls   atomic.Int32
}

func (f *fakeResolver) ResolveAll(ctx context.Context, items []carousel.Item) (carousel.OrientationMap, error) {
	f.calls.Add(1)
	return f.orients, f.err
}

type daemonHarness struct {
	events     chan Event
	broadcasts chan StateBroadcast
	done       chan struct{}
	cancel     context.CancelFunc
}

func startDaemon(t *testing.T, items []carousel.Item, resolver OrientationResolver) *daemonHarness {
	t.Helper()

	state, err := NewDaemonState(carousel.DefaultOptions(), frame.RealClock{}, discardLogger())
	if err != nil {
		t.Fatalf("NewDaemonState: %v", err)
	}
	state.Items = items

	h := &daemonHarness{
		events:     make(chan Event, 16),
		broadcasts: make(chan StateBroadcast, 1024),
		done:       make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	go func() {
		defer close(h.done)
		runDaemon(ctx, h.events, state, DaemonConfig{FrameHz: 120, Resolver: resolver}, h.broadcasts, discardLogger())
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Errorf("daemon did not stop")
		}
	})
	return h
}

// next returns the next broadcast matching keep, failing after timeout.
func (h *daemonHarness) next(t *testing.T, timeout time.Duration, keep func(StateBroadcast) bool) StateBroadcast {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case b := <-h.broadcasts:
			if keep(b) {
				return b
			}
		case <-deadline:
			t.Fatalf("timeout waiting for broadcast")
			return nil
		}
	}
}

func isLayout(b StateBroadcast) bool {
	_, ok := b.(BroadcastLayoutChanged)
	return ok
}

func TestRunDaemon_ResolvesOrientationsAndRelayouts(t *testing.T) {
	items := []carousel.Item{{ID: "pano"}, {ID: "poster"}, {ID: "photo"}}
	resolver := &fakeResolver{orients: carousel.OrientationMap{
		"pano":   carousel.Landscape,
		"poster": carousel.Portrait,
		"photo":  carousel.Square,
	}}
	h := startDaemon(t, items, resolver)

	first := h.next(t, time.Second, isLayout).(BroadcastLayoutChanged)
	if first.Items[0].AngularWidth != 120 {
		t.Fatalf("expected uniform layout first, got %+v", first.Items)
	}

	second := h.next(t, time.Second, isLayout).(BroadcastLayoutChanged)
	if !(second.Items[0].AngularWidth > second.Items[2].AngularWidth &&
		second.Items[2].AngularWidth > second.Items[1].AngularWidth) {
		t.Fatalf("expected landscape > square > portrait widths, got %+v", second.Items)
	}
	if got := resolver.calls.Load(); got != 1 {
		t.Fatalf("expected 1 resolve call, got %d", got)
	}
}

func TestRunDaemon_ResolverFailureKeepsUniformLayout(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("image host unreachable")}
	h := startDaemon(t, []carousel.Item{{ID: "a"}, {ID: "b"}}, resolver)

	h.next(t, time.Second, isLayout)

	waitUntil(t, time.Second, func() bool { return resolver.calls.Load() == 1 }, "resolver called")
	select {
	case b := <-h.broadcasts:
		if isLayout(b) {
			t.Fatalf("unexpected relayout after failed resolution")
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRunDaemon_KeyPressMovesCenter(t *testing.T) {
	h := startDaemon(t, []carousel.Item{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}, nil)

	center := h.next(t, time.Second, func(b StateBroadcast) bool {
		_, ok := b.(BroadcastCenterChanged)
		return ok
	}).(BroadcastCenterChanged)
	if center.Index != 0 || center.ID != "a" {
		t.Fatalf("expected initial center a, got %+v", center)
	}

	h.events <- KeyPressed{Key: carousel.KeyArrowRight}

	center = h.next(t, 2*time.Second, func(b StateBroadcast) bool {
		c, ok := b.(BroadcastCenterChanged)
		return ok && c.Index == 1
	}).(BroadcastCenterChanged)
	if center.ID != "b" {
		t.Fatalf("expected center b, got %+v", center)
	}
}

func TestRunDaemon_AnswersSnapshotRequests(t *testing.T) {
	h := startDaemon(t, []carousel.Item{{ID: "a"}, {ID: "b"}}, nil)

	snap, err := requestSnapshot(context.Background(), h.events)
	if err != nil {
		t.Fatalf("requestSnapshot: %v", err)
	}
	if len(snap.Items) != 2 || snap.Items[1].ID != "b" {
		t.Fatalf("unexpected snapshot items %+v", snap.Items)
	}

	sig, err := requestSignificantDrag(context.Background(), h.events)
	if err != nil {
		t.Fatalf("requestSignificantDrag: %v", err)
	}
	if sig {
		t.Fatalf("expected no significant drag before any gesture")
	}
}

func TestRunDaemon_StopsWhenEventsClosed(t *testing.T) {
	state, err := NewDaemonState(carousel.DefaultOptions(), frame.RealClock{}, discardLogger())
	if err != nil {
		t.Fatalf("NewDaemonState: %v", err)
	}
	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runDaemon(context.Background(), events, state, DaemonConfig{}, nil, discardLogger())
	}()

	close(events)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("daemon did not stop after events closed")
	}
}

func TestRun_SerialOpenFailureStartsNothing(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.IPC.SocketPath = filepath.Join(dir, "carouseld.sock")
	cfg.HTTP.Listen = ""
	cfg.Serial.Port = filepath.Join(dir, "no-such-tty")

	errc := make(chan error, 1)
	go func() { errc <- run(cfg, discardLogger()) }()

	select {
	case err := <-errc:
		if err == nil || !strings.Contains(err.Error(), "open serial port") {
			t.Fatalf("expected serial open error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after the serial port failed to open")
	}

	if _, err := os.Stat(cfg.IPC.SocketPath); !os.IsNotExist(err) {
		t.Fatalf("IPC socket should not have been created, stat err=%v", err)
	}
}
