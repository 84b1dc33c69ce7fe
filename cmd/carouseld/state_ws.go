package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"carousel3d/carousel"
)

// ============================================================================
// State WebSocket
// ============================================================================
//
// Clients connect to /ws, receive a state_init, then a stream of frame,
// center_changed and layout_changed messages. Every message is a JSON text
// frame {type, ts, data}. Clients may send event envelopes back; they reach
// the daemon loop like IPC input.
//
// ============================================================================

// wsStateInit is the JSON `data` payload for the WS "state_init" event.
type wsStateInit struct {
	Items       []carousel.ItemGeometry `json:"items"`
	Perspective float64                 `json:"perspective"`

	FinalRotation float64              `json:"final_rotation"`
	CenterIndex   int                  `json:"center_index"`
	Transforms    []carousel.Transform `json:"transforms"`

	AutoRotateEnabled  bool `json:"auto_rotate_enabled"`
	KeyboardNavigation bool `json:"keyboard_navigation"`
}

// wsFrameData is the JSON `data` payload for "frame".
type wsFrameData struct {
	FinalRotation float64              `json:"final_rotation"`
	CenterIndex   int                  `json:"center_index"`
	Transforms    []carousel.Transform `json:"transforms"`
	// CSS holds one transform value per item, aligned with Transforms.
	CSS []string `json:"css"`
}

// wsCenterChangedData is the JSON `data` payload for "center_changed".
type wsCenterChangedData struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
}

// wsLayoutChangedData is the JSON `data` payload for "layout_changed".
type wsLayoutChangedData struct {
	Items       []carousel.ItemGeometry `json:"items"`
	Perspective float64                 `json:"perspective"`
}

// wsOutboundEvent is a typed message before serialization.
type wsOutboundEvent struct {
	Type string
	Data any
	At   time.Time // zero means use now
}

// envelope is the JSON shape of every outbound message.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

func marshalOutbound(ev wsOutboundEvent) ([]byte, error) {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()
	return json.Marshal(envelope{Type: ev.Type, Ts: &ts, Data: ev.Data})
}

// wsFrameCoalesceWindow is the maximum rate at which frame updates reach
// clients. Frames arriving faster are coalesced latest-wins.
const wsFrameCoalesceWindow = 16 * time.Millisecond

// ============================================================================
// Server
// ============================================================================

// Server upgrades /ws requests and attaches them to its hub.
type Server struct {
	logger *slog.Logger
	hub    *Hub

	// events answers the state_init snapshot and receives client input.
	events chan<- Event
}

type ServerConfig struct {
	Hub HubConfig
}

// NewServer builds the WebSocket side of the daemon. The caller runs
// Hub().Run and RunBroadcaster, and mounts it with Register.
func NewServer(logger *slog.Logger, events chan<- Event, cfg ServerConfig) *Server {
	return &Server{
		logger: logger,
		hub:    NewHub(logger, cfg.Hub),
		events: events,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.serveWS)
}

var upgrader = websocket.Upgrader{
	// Displays on the LAN connect from wherever the page was served.
	CheckOrigin: func(*http.Request) bool { return true },
}

// serveWS attaches a new client and sends it a state_init built from a fresh
// engine snapshot.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.events, s.logger)
	s.hub.attach(client)

	// r.Context() ends with this handler; the hub decides when the pumps stop.
	go client.writePump(context.Background())
	go client.readPump(context.Background())

	if s.events == nil {
		return
	}

	snap, err := requestSnapshot(r.Context(), s.events)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("ws state_init snapshot failed", "error", err)
		}
		return
	}

	msg, err := marshalOutbound(wsOutboundEvent{Type: "state_init", Data: stateInitFromSnapshot(snap)})
	if err != nil {
		s.logger.Warn("ws state_init marshal failed", "error", err)
		return
	}
	if !client.offer(msg) {
		s.hub.detach(client)
	}
}

func stateInitFromSnapshot(snap carousel.Snapshot) wsStateInit {
	return wsStateInit{
		Items:              snap.Items,
		Perspective:        snap.Perspective,
		FinalRotation:      snap.FinalRotation,
		CenterIndex:        snap.CenterIndex,
		Transforms:         snap.Transforms,
		AutoRotateEnabled:  snap.AutoRotateEnabled,
		KeyboardNavigation: snap.KeyboardNavigation,
	}
}

// ============================================================================
// Broadcaster
// ============================================================================

// RunBroadcaster turns reducer broadcasts into wire messages for the hub.
//
// Frames go out at most once per wsFrameCoalesceWindow and the newest one
// wins. A center or layout change first flushes the held frame, so clients
// never see a change before the frame that caused it.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan StateBroadcast, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	var (
		held    *wsOutboundEvent
		limiter *time.Timer
		window  <-chan time.Time
	)

	send := func(ev wsOutboundEvent) {
		msg, err := marshalOutbound(ev)
		if err != nil {
			logger.Warn("ws broadcast marshal failed", "type", ev.Type, "error", err)
			return
		}
		hub.Publish(msg, ev.Type == "frame")
	}
	flush := func() {
		if held != nil {
			send(*held)
			held = nil
		}
	}
	idle := func() {
		if limiter != nil {
			limiter.Stop()
		}
		limiter, window = nil, nil
	}
	defer idle()

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case <-window:
			if held == nil {
				// A full window without frames: the ring is at rest.
				idle()
				continue
			}
			flush()
			limiter.Reset(wsFrameCoalesceWindow)

		case b, ok := <-src:
			if !ok {
				flush()
				logger.Info("ws broadcaster stopping (source closed)")
				return
			}
			ev, ok := convertBroadcast(b)
			if !ok {
				continue
			}

			if ev.Type != "frame" {
				flush()
				send(ev)
				continue
			}
			if limiter == nil {
				send(ev)
				limiter = time.NewTimer(wsFrameCoalesceWindow)
				window = limiter.C
				continue
			}
			held = &ev
		}
	}
}

func convertBroadcast(b StateBroadcast) (wsOutboundEvent, bool) {
	switch ev := b.(type) {
	case BroadcastFrame:
		return wsOutboundEvent{
			Type: "frame",
			Data: wsFrameData{
				FinalRotation: ev.FinalRotation,
				CenterIndex:   ev.CenterIndex,
				Transforms:    ev.Transforms,
				CSS:           carousel.TransformCSS(ev.Transforms),
			},
			At: ev.At,
		}, true

	case BroadcastCenterChanged:
		return wsOutboundEvent{
			Type: "center_changed",
			Data: wsCenterChangedData{Index: ev.Index, ID: ev.ID},
			At:   ev.At,
		}, true

	case BroadcastLayoutChanged:
		return wsOutboundEvent{
			Type: "layout_changed",
			Data: wsLayoutChangedData{Items: ev.Items, Perspective: ev.Perspective},
			At:   ev.At,
		}, true

	default:
		return wsOutboundEvent{}, false
	}
}
