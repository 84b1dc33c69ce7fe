package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// newHTTPMux wires the state WebSocket and the JSON endpoints.
func newHTTPMux(ws *Server, events chan<- Event, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	ws.Register(mux, "/ws")

	mux.HandleFunc("GET /api/state", func(w http.ResponseWriter, r *http.Request) {
		snap, err := requestSnapshot(r.Context(), events)
		if err != nil {
			logger.Warn("state request failed", "error", err)
			http.Error(w, "daemon busy", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, snap, logger)
	})

	mux.HandleFunc("GET /api/significant-drag", func(w http.ResponseWriter, r *http.Request) {
		sig, err := requestSignificantDrag(r.Context(), events)
		if err != nil {
			logger.Warn("significant drag query failed", "error", err)
			http.Error(w, "daemon busy", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]bool{"significant": sig}, logger)
	})

	// POST /api/events accepts one event envelope, same as IPC.
	mux.HandleFunc("POST /api/events", func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&raw); err != nil {
			http.Error(w, fmt.Sprintf("decode body: %v", err), http.StatusBadRequest)
			return
		}
		ev, err := UnmarshalEvent(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		select {
		case events <- ev:
			w.WriteHeader(http.StatusAccepted)
		default:
			http.Error(w, "event queue full", http.StatusServiceUnavailable)
		}
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("write json response failed", "error", err)
	}
}

// runHTTPServer serves handler on addr until ctx is canceled, then shuts
// down gracefully.
func runHTTPServer(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("HTTP server listening", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on Shutdown; treat that as clean exit.
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		return <-errCh

	case err := <-errCh:
		return err
	}
}
