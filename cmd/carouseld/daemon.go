package main

import (
	"context"
	"log/slog"
	"time"
)

// DaemonConfig groups the daemon loop's collaborators and tuning.
type DaemonConfig struct {
	Reducer  ReducerConfig
	FrameHz  int
	Resolver OrientationResolver
}

// runDaemon is the main daemon loop that:
//   - Receives Events from IPC, WebSocket clients and input devices
//   - Emits Tick events at the frame cadence, which step the engine's frame loop
//   - Reduces events into (state, commands, broadcasts)
//   - Executes commands and forwards broadcasts to the WebSocket fan-out
//
// Shutdown semantics:
//   - Exits when ctx is canceled
//   - Exits cleanly when the events channel is closed
//
// broadcasts may be nil. Sends to it never block; when full, broadcasts are
// dropped and the next frame carries the latest state anyway.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	state *DaemonState,
	cfg DaemonConfig,
	broadcasts chan<- StateBroadcast,
	logger *slog.Logger,
) {
	if state == nil {
		logger.Error("daemon state is nil")
		return
	}
	defer state.Engine.Close()

	frameHz := cfg.FrameHz
	if frameHz <= 0 {
		frameHz = defaultFrameHz
	}
	interval := time.Second / time.Duration(frameHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	if cfg.Reducer.FrameInterval == 0 {
		cfg.Reducer.FrameInterval = interval
	}

	// Results of asynchronous effects re-enter the loop here.
	results := make(chan Event, 16)
	env := effectEnv{
		ctx:      ctx,
		resolver: cfg.Resolver,
		logger:   logger,
		post: func(ev Event) {
			select {
			case results <- ev:
			case <-ctx.Done():
			}
		},
	}

	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}

	publish := func(bcs []StateBroadcast) {
		if broadcasts == nil {
			return
		}
		for _, b := range bcs {
			select {
			case broadcasts <- b:
			default:
				logger.Debug("broadcast queue full, dropping", "type", broadcastName(b))
			}
		}
	}

	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev, cfg.Reducer)
			if rr.State != nil {
				state = rr.State
			}
			cmdQueue = append(cmdQueue, rr.Commands...)
			publish(rr.Broadcasts)
		}
	}

	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]
			logger.Debug("running effect", "command", cmd.String())
			runEffect(env, cmd)
		}
	}

	lastTick := time.Now()

	state.Engine.Start()
	if len(state.Items) > 0 {
		enqueueEvent(SetItems{Items: state.Items})
		flushEvents()
		flushCommands()
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			enqueueEvent(TimedEvent{Event: ev, At: state.Loop.Now()})
			flushEvents()
			flushCommands()

		case ev := <-results:
			enqueueEvent(ev)
			flushEvents()
			flushCommands()

		case now := <-ticker.C:
			dt := now.Sub(lastTick).Seconds()
			lastTick = now
			late := state.LateTicks
			enqueueEvent(Tick{Now: state.Loop.Now(), Dt: dt})
			flushEvents()
			flushCommands()
			if state.LateTicks > late {
				logger.Debug("frame overrun",
					"dt_ms", dt*1000,
					"interval_ms", interval.Seconds()*1000,
					"late_ticks", state.LateTicks)
			}
		}
	}
}

func broadcastName(b StateBroadcast) string {
	switch b.(type) {
	case BroadcastFrame:
		return "frame"
	case BroadcastCenterChanged:
		return "center_changed"
	case BroadcastLayoutChanged:
		return "layout_changed"
	default:
		return "unknown"
	}
}
