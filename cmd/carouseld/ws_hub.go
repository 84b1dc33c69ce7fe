package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// outbound is one serialized message for every connected client.
type outbound struct {
	msg []byte
	// lossy messages are skipped for a client whose queue is full; the next
	// frame supersedes them. Anything else evicts that client instead.
	lossy bool
}

// Hub fans serialized state messages out to WebSocket clients. All client
// bookkeeping happens on the Run goroutine; mu only guards reads from other
// goroutines.
type Hub struct {
	logger *slog.Logger

	queue chan outbound
	join  chan *Client
	leave chan *Client
	// done is closed when Run returns.
	done chan struct{}

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client queue length. Zero means 64.
	SendBuf int
	// QueueBuf is the hub's inbound queue length. Zero means 256.
	QueueBuf int
}

func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	if cfg.SendBuf <= 0 {
		cfg.SendBuf = 64
	}
	if cfg.QueueBuf <= 0 {
		cfg.QueueBuf = 256
	}
	return &Hub{
		logger:  logger,
		queue:   make(chan outbound, cfg.QueueBuf),
		join:    make(chan *Client, 64),
		leave:   make(chan *Client, 64),
		done:    make(chan struct{}),
		clients: make(map[*Client]struct{}),
		sendBuf: cfg.SendBuf,
	}
}

// Run serves joins, leaves and messages until ctx is canceled, then drops
// every client.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Debug("ws hub running")

	for {
		select {
		case <-ctx.Done():
			h.dropAll()
			close(h.done)
			h.drainJoins()
			h.logger.Debug("ws hub stopped")
			return

		case c := <-h.join:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client connected", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.leave:
			h.remove(c, "closed")

		case out := <-h.queue:
			h.fanOut(out)
		}
	}
}

func (h *Hub) fanOut(out outbound) {
	var evict []*Client

	h.mu.Lock()
	for c := range h.clients {
		if !c.offer(out.msg) {
			if out.lossy {
				c.skipped++
				continue
			}
			evict = append(evict, c)
		}
	}
	h.mu.Unlock()

	for _, c := range evict {
		h.remove(c, "send queue full")
	}
}

// attach hands c to the hub. A hub that has stopped closes c instead.
func (h *Hub) attach(c *Client) {
	select {
	case h.join <- c:
	case <-h.done:
		c.shutdown()
	}
}

// detach asks the hub to drop c. It never blocks on a stopped hub, which has
// already closed every client.
func (h *Hub) detach(c *Client) {
	select {
	case h.leave <- c:
	case <-h.done:
		c.shutdown()
	}
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.shutdown()
		delete(h.clients, c)
	}
}

// drainJoins closes clients that were queued to join a stopped hub.
func (h *Hub) drainJoins() {
	for {
		select {
		case c := <-h.join:
			c.shutdown()
		default:
			return
		}
	}
}

func (h *Hub) remove(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.shutdown()
	h.logger.Info("ws client dropped",
		"remote_addr", c.remoteAddr,
		"reason", reason,
		"skipped_frames", c.skipped,
		"clients", n)
}

// Publish queues msg for every client without blocking. A full hub queue
// drops the message.
func (h *Hub) Publish(msg []byte, lossy bool) {
	select {
	case h.queue <- outbound{msg: msg, lossy: lossy}:
	default:
		if lossy {
			h.logger.Debug("ws hub queue full, skipping frame")
			return
		}
		h.logger.Warn("ws hub queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

// Client is one WebSocket connection. writePump owns writes to conn and
// readPump owns reads.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	sendMu sync.Mutex
	send   chan []byte
	closed bool

	// skipped counts lossy messages this client missed. Hub goroutine only.
	skipped int

	// events receives input envelopes sent by the client. May be nil.
	events chan<- Event

	remoteAddr string
	logger     *slog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, events chan<- Event, logger *slog.Logger) *Client {
	n := 64
	if hub != nil {
		n = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, n),
		events:     events,
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

// offer queues msg without blocking. It reports false when the queue is
// full or already closed.
func (c *Client) offer(msg []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// shutdown closes the connection and the send queue. Safe to call more than once.
func (c *Client) shutdown() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second

	maxInboundMessage = 64 << 10
)

// closeAttrs describes why a pump stopped, for logging. It returns nil when
// the error is our own close frame going out.
func closeAttrs(err error) []any {
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return []any{"code", ce.Code, "reason", ce.Text}
	}
	return []any{"error", err}
}

func (c *Client) logStop(pump string, err error) {
	attrs := closeAttrs(err)
	if attrs == nil {
		return
	}
	c.logger.Info("ws "+pump+" stopped", append([]any{"remote_addr", c.remoteAddr}, attrs...)...)
}

func (c *Client) write(kind int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(kind, data)
}

// writePump drains the send queue onto the socket and pings the peer. A
// closed queue means the hub dropped the client.
func (c *Client) writePump(ctx context.Context) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.logStop("writer", err)
				return
			}

		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.logStop("writer", err)
				return
			}
		}
	}
}

// readPump forwards client input to the daemon until the socket fails, then
// asks the hub to drop the client.
func (c *Client) readPump(ctx context.Context) {
	extend := func() { _ = c.conn.SetReadDeadline(time.Now().Add(pongWait)) }

	c.conn.SetReadLimit(maxInboundMessage)
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for ctx.Err() == nil {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.logStop("reader", err)
			if c.hub != nil {
				c.hub.detach(c)
			}
			return
		}
		extend()
		c.forward(msg)
	}
}

// forward decodes one inbound message and hands it to the daemon without
// blocking the read loop.
func (c *Client) forward(msg []byte) {
	if c.events == nil {
		return
	}
	ev, err := UnmarshalEvent(msg)
	if err != nil {
		c.logger.Debug("ws inbound message ignored", "remote_addr", c.remoteAddr, "error", err)
		return
	}
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("event queue full, dropping ws input", "remote_addr", c.remoteAddr)
	}
}
