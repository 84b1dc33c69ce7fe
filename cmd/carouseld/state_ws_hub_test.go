package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"carousel3d/carousel"
)

// NOTE: The hub tests construct Clients with a nil websocket.Conn and never
// require actual writes. For slow-client eviction, the hub calls conn.Close();
// nil is safe (hub guards against nil).

// newTestHub returns a hub with small buffers for deterministic tests.
func newTestHub(t *testing.T, sendBuf int, queueBuf int) *Hub {
	t.Helper()
	return NewHub(slog.Default(), HubConfig{
		SendBuf:  sendBuf,
		QueueBuf: queueBuf,
	})
}

func runTestHub(t *testing.T, hub *Hub) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(1 * time.Second):
			t.Errorf("timeout waiting for hub to stop")
		}
	})
	return cancel
}

func registerTestClient(t *testing.T, hub *Hub, name string, sendBuf int) *Client {
	t.Helper()
	c := &Client{
		hub:        hub,
		send:       make(chan []byte, sendBuf),
		remoteAddr: name,
		logger:     slog.Default(),
	}
	hub.join <- c
	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[c]
		return ok
	}, name+" not registered in time")
	return c
}

func TestHub_BroadcastDeliveredToAllClients(t *testing.T) {
	hub := newTestHub(t, 4, 8)
	runTestHub(t, hub)

	c1 := registerTestClient(t, hub, "c1", 4)
	c2 := registerTestClient(t, hub, "c2", 4)
	if n := hub.ClientCount(); n != 2 {
		t.Fatalf("expected 2 clients, got %d", n)
	}

	msg := []byte(`{"type":"center_changed","data":{"index":2,"id":"c"}}`)

	// Publish is non-blocking and may drop while the hub is being
	// scheduled; write to the queue directly for deterministic delivery.
	hub.queue <- outbound{msg: msg}

	for _, c := range []*Client{c1, c2} {
		select {
		case got := <-c.send:
			if string(got) != string(msg) {
				t.Fatalf("%s got %q, want %q", c.remoteAddr, string(got), string(msg))
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timeout waiting for %s to receive broadcast", c.remoteAddr)
		}
	}
}

func TestHub_SlowClientDisconnectedOnFullSendBuffer(t *testing.T) {
	hub := newTestHub(t, 1, 8)
	runTestHub(t, hub)

	slow := registerTestClient(t, hub, "slow", 1)
	fast := registerTestClient(t, hub, "fast", 8)

	// Pre-fill slow client buffer to simulate it being stuck.
	slow.send <- []byte(`"already queued"`)

	msg := []byte(`{"type":"frame","data":{"final_rotation":12}}`)
	hub.queue <- outbound{msg: msg}

	select {
	case got := <-fast.send:
		if string(got) != string(msg) {
			t.Fatalf("fast client got %q, want %q", string(got), string(msg))
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for fast client to receive broadcast")
	}

	// Drain the pre-filled message, then expect the channel to be closed.
	select {
	case <-slow.send:
	default:
	}

	waitUntil(t, 750*time.Millisecond, func() bool {
		select {
		case _, ok := <-slow.send:
			return !ok
		default:
			return false
		}
	}, "expected slow send channel to be closed")

	if n := hub.ClientCount(); n != 1 {
		t.Fatalf("expected only the fast client left, got %d", n)
	}
}

func TestHub_SlowClientSkipsFrames(t *testing.T) {
	hub := newTestHub(t, 1, 8)
	runTestHub(t, hub)

	slow := registerTestClient(t, hub, "slow", 1)
	slow.send <- []byte(`"already queued"`)

	hub.queue <- outbound{msg: []byte(`{"type":"frame"}`), lossy: true}
	hub.queue <- outbound{msg: []byte(`{"type":"frame"}`), lossy: true}

	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return slow.skipped == 2
	}, "expected both frames skipped")

	if n := hub.ClientCount(); n != 1 {
		t.Fatalf("expected a client behind on frames to stay connected, got %d clients", n)
	}
	if got := <-slow.send; string(got) != `"already queued"` {
		t.Fatalf("unexpected queued message %q", got)
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := newTestHub(t, 4, 8)
	cancel := runTestHub(t, hub)

	c := registerTestClient(t, hub, "c", 4)
	cancel()

	waitUntil(t, 500*time.Millisecond, func() bool {
		select {
		case _, ok := <-c.send:
			return !ok
		default:
			return false
		}
	}, "expected send channel closed on hub shutdown")
}

func TestHub_StoppedHubNeverBlocksClients(t *testing.T) {
	hub := newTestHub(t, 4, 8)
	cancel := runTestHub(t, hub)
	cancel()
	select {
	case <-hub.done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	// Fill the leave queue the way many dying readers would.
	for i := 0; i < cap(hub.leave); i++ {
		hub.leave <- &Client{send: make(chan []byte)}
	}

	late := &Client{hub: hub, send: make(chan []byte, 1), logger: slog.Default()}
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		hub.detach(late)
		hub.attach(&Client{hub: hub, send: make(chan []byte, 1), logger: slog.Default()})
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("detach/attach blocked on a stopped hub")
	}

	if _, ok := <-late.send; ok {
		t.Fatal("expected the detached client to be closed")
	}
}

// readOutbound pulls the next serialized message the broadcaster handed to the hub.
func readOutbound(t *testing.T, hub *Hub) envelope {
	t.Helper()
	select {
	case out := <-hub.queue:
		var env envelope
		if err := json.Unmarshal(out.msg, &env); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for broadcast")
		return envelope{}
	}
}

func frameRotation(t *testing.T, env envelope) float64 {
	t.Helper()
	if env.Type != "frame" {
		t.Fatalf("expected frame, got %q", env.Type)
	}
	data, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected frame payload %#v", env.Data)
	}
	return data["final_rotation"].(float64)
}

func TestRunBroadcaster_CoalescesFramesAndKeepsOrder(t *testing.T) {
	hub := newTestHub(t, 4, 32)
	src := make(chan StateBroadcast, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunBroadcaster(ctx, hub, src, slog.Default())

	src <- BroadcastFrame{FinalRotation: 1}
	src <- BroadcastFrame{FinalRotation: 2}
	src <- BroadcastFrame{FinalRotation: 3}
	src <- BroadcastCenterChanged{Index: 1, ID: "b"}

	// The first frame goes out at once.
	if got := frameRotation(t, readOutbound(t, hub)); got != 1 {
		t.Fatalf("first frame rotation = %v, want 1", got)
	}

	// Later frames may be coalesced, but the newest one always precedes the
	// center change.
	var last float64
	for {
		env := readOutbound(t, hub)
		if env.Type == "center_changed" {
			break
		}
		r := frameRotation(t, env)
		if r <= last {
			t.Fatalf("frames out of order: %v after %v", r, last)
		}
		last = r
	}
	if last != 3 {
		t.Fatalf("last frame before center_changed = %v, want 3", last)
	}
}

func TestRunBroadcaster_RateLimitsFrameBurst(t *testing.T) {
	hub := newTestHub(t, 4, 256)
	src := make(chan StateBroadcast, 256)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunBroadcaster(ctx, hub, src, slog.Default())

	for i := 1; i <= 100; i++ {
		src <- BroadcastFrame{FinalRotation: float64(i)}
	}

	// Wait for the burst to drain through the coalescing window.
	var got []float64
	deadline := time.After(500 * time.Millisecond)
loop:
	for {
		select {
		case out := <-hub.queue:
			if !out.lossy {
				t.Fatalf("frames should be lossy")
			}
			var env envelope
			if err := json.Unmarshal(out.msg, &env); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			got = append(got, frameRotation(t, env))
		case <-deadline:
			break loop
		}
	}

	if len(got) == 0 || len(got) >= 100 {
		t.Fatalf("expected a coalesced subset of frames, got %d", len(got))
	}
	if got[len(got)-1] != 100 {
		t.Fatalf("expected the newest frame to win, got %v", got[len(got)-1])
	}
}

func TestConvertBroadcast(t *testing.T) {
	at := time.Unix(1700000000, 0)
	tests := []struct {
		in   StateBroadcast
		want string
	}{
		{BroadcastFrame{FinalRotation: 5, CenterIndex: 1, At: at}, "frame"},
		{BroadcastCenterChanged{Index: 1, ID: "b", At: at}, "center_changed"},
		{BroadcastLayoutChanged{Perspective: 2000, At: at}, "layout_changed"},
	}
	for _, tt := range tests {
		ev, ok := convertBroadcast(tt.in)
		if !ok || ev.Type != tt.want || !ev.At.Equal(at) {
			t.Errorf("convertBroadcast(%T) = %+v, %v", tt.in, ev, ok)
		}
	}
}

func TestConvertBroadcast_FrameCarriesCSS(t *testing.T) {
	trs := []carousel.Transform{
		{Index: 0, RotationAngle: 0, ForwardDisplacement: 600, Scale: 1},
		{Index: 1, RotationAngle: 180, ForwardDisplacement: 568, Scale: 0.7},
	}
	ev, ok := convertBroadcast(BroadcastFrame{Transforms: trs})
	if !ok {
		t.Fatal("frame not converted")
	}
	data, ok := ev.Data.(wsFrameData)
	if !ok {
		t.Fatalf("unexpected payload %T", ev.Data)
	}
	want := []string{
		"rotateY(0deg) translateZ(37.5rem) scale(1)",
		"rotateY(180deg) translateZ(35.5rem) scale(0.7)",
	}
	if len(data.CSS) != len(want) {
		t.Fatalf("got %d css values, want %d", len(data.CSS), len(want))
	}
	for i := range want {
		if data.CSS[i] != want[i] {
			t.Errorf("css[%d] = %q, want %q", i, data.CSS[i], want[i])
		}
	}
}

func TestMarshalOutbound_Envelope(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	msg, err := marshalOutbound(wsOutboundEvent{Type: "center_changed", Data: wsCenterChangedData{Index: 2, ID: "c"}, At: at})
	if err != nil {
		t.Fatalf("marshalOutbound: %v", err)
	}
	want := `{"type":"center_changed","ts":"2024-05-01T11:00:00Z","data":{"index":2,"id":"c"}}`
	if string(msg) != want {
		t.Fatalf("got %s\nwant %s", msg, want)
	}
}

func TestStateWS_InitAndInput(t *testing.T) {
	events := make(chan Event, 8)
	forwarded := make(chan Event, 8)
	answerQueries(t, events, carousel.Snapshot{
		CenterIndex:        2,
		FinalRotation:      -120,
		Perspective:        1998,
		KeyboardNavigation: true,
		Items:              []carousel.ItemGeometry{{ID: "a"}, {ID: "b"}, {ID: "c"}},
	}, false, forwarded)

	ws := NewServer(slog.Default(), events, ServerConfig{})
	runTestHub(t, ws.Hub())

	mux := http.NewServeMux()
	ws.Register(mux, "/ws")
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var init struct {
		Type string      `json:"type"`
		Data wsStateInit `json:"data"`
	}
	if err := conn.ReadJSON(&init); err != nil {
		t.Fatalf("read state_init: %v", err)
	}
	if init.Type != "state_init" {
		t.Fatalf("first message type = %q", init.Type)
	}
	if init.Data.CenterIndex != 2 || len(init.Data.Items) != 3 || !init.Data.KeyboardNavigation {
		t.Fatalf("unexpected state_init %+v", init.Data)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"key_pressed","data":{"key":"left"}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case ev := <-forwarded:
		if ev != (KeyPressed{Key: carousel.KeyArrowLeft}) {
			t.Fatalf("forwarded %#v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("client input was not forwarded")
	}

	// Broadcasts reach the connected client.
	waitUntil(t, time.Second, func() bool { return ws.Hub().ClientCount() == 1 }, "client registered")
	msg, _ := marshalOutbound(wsOutboundEvent{Type: "center_changed", Data: wsCenterChangedData{Index: 1, ID: "b"}})
	ws.Hub().Publish(msg, false)

	var got envelope
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if got.Type != "center_changed" {
		t.Fatalf("broadcast type = %q", got.Type)
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
