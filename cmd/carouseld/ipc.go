package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"carousel3d/carousel"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// Protocol: Line-delimited JSON
//   - Client sends an event envelope: {"type": "event_name", "data": {...}}
//   - or a query: {"type": "get_state"} / {"type": "significant_drag"}
//   - Server responds: {"status": "ok", "data": ...} or {"status": "error", "error": "msg"}
// ============================================================================

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string          `json:"status"`          // "ok" or "error"
	Error  string          `json:"error,omitempty"` // error message if status == "error"
	Data   json.RawMessage `json:"data,omitempty"`  // query result
}

// Query names answered directly by the IPC server.
const (
	queryGetState        = "get_state"
	querySignificantDrag = "significant_drag"
)

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, events chan<- Event, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0666); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(ctx, conn, events, logger)
	}
}

// handleIPCConnection handles a single IPC connection
func handleIPCConnection(ctx context.Context, conn net.Conn, events chan<- Event, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20) // set_items can be large
	encoder := json.NewEncoder(conn)

	reply := func(resp IPCResponse) {
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err, "status", resp.Status)
		}
	}
	fail := func(format string, args ...any) {
		reply(IPCResponse{Status: "error", Error: fmt.Sprintf(format, args...)})
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		logger.Debug("IPC received", "line", string(line))

		var env EventEnvelope
		if err := json.Unmarshal(line, &env); err != nil {
			fail("parse event: %v", err)
			continue
		}

		switch env.Type {
		case queryGetState:
			snap, err := requestSnapshot(ctx, events)
			if err != nil {
				fail("%v", err)
				continue
			}
			data, err := json.Marshal(snap)
			if err != nil {
				fail("marshal state: %v", err)
				continue
			}
			reply(IPCResponse{Status: "ok", Data: data})
			continue

		case querySignificantDrag:
			sig, err := requestSignificantDrag(ctx, events)
			if err != nil {
				fail("%v", err)
				continue
			}
			data, _ := json.Marshal(map[string]bool{"significant": sig})
			reply(IPCResponse{Status: "ok", Data: data})
			continue
		}

		ev, err := UnmarshalEvent(line)
		if err != nil {
			fail("parse event: %v", err)
			continue
		}

		select {
		case events <- ev:
			reply(IPCResponse{Status: "ok"})
		default:
			fail("event queue full")
		}
	}

	logger.Debug("IPC connection closed")
}

// requestSnapshot asks the daemon loop for a state snapshot and waits for it.
func requestSnapshot(ctx context.Context, events chan<- Event) (carousel.Snapshot, error) {
	reply := make(chan carousel.Snapshot, 1)
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeoutMS*time.Millisecond)
	defer cancel()

	select {
	case events <- RequestStateSnapshot{Reply: reply}:
	case <-ctx.Done():
		return carousel.Snapshot{}, fmt.Errorf("request snapshot: %w", ctx.Err())
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return carousel.Snapshot{}, fmt.Errorf("wait for snapshot: %w", ctx.Err())
	}
}

// requestSignificantDrag asks the daemon loop whether the last press was a drag.
func requestSignificantDrag(ctx context.Context, events chan<- Event) (bool, error) {
	reply := make(chan bool, 1)
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeoutMS*time.Millisecond)
	defer cancel()

	select {
	case events <- QuerySignificantDrag{Reply: reply}:
	case <-ctx.Done():
		return false, fmt.Errorf("query significant drag: %w", ctx.Err())
	}
	select {
	case sig := <-reply:
		return sig, nil
	case <-ctx.Done():
		return false, fmt.Errorf("wait for significant drag: %w", ctx.Err())
	}
}

// ============================================================================
// IPC Client Utility Functions
// ============================================================================

// SendIPCEvent sends an event to the daemon via IPC and returns the response
func SendIPCEvent(socketPath string, ev Event) error {
	data, err := MarshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = sendIPCLine(socketPath, data)
	return err
}

// QueryIPC sends a named query and returns the response data.
func QueryIPC(socketPath, query string) (json.RawMessage, error) {
	data, err := json.Marshal(EventEnvelope{Type: query})
	if err != nil {
		return nil, err
	}
	return sendIPCLine(socketPath, data)
}

func sendIPCLine(socketPath string, line []byte) (json.RawMessage, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(string(line))); err != nil {
		return nil, fmt.Errorf("send event: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("ipc error: %s", resp.Error)
	}
	return resp.Data, nil
}
