package main

import (
	"context"
	"log/slog"

	"carousel3d/carousel"
)

// OrientationResolver measures item images. Implemented by *orientation.Resolver.
type OrientationResolver interface {
	ResolveAll(ctx context.Context, items []carousel.Item) (carousel.OrientationMap, error)
}

// effectEnv is what runEffect may touch outside the daemon state.
type effectEnv struct {
	ctx      context.Context
	resolver OrientationResolver
	logger   *slog.Logger

	// post feeds asynchronous results back into the daemon loop. It must not
	// block the caller's goroutine for long.
	post func(Event)
}

// runEffect executes a single reducer-emitted Command.
//
// Replies are delivered without blocking. Orientation lookups run on their
// own goroutine and report back through env.post as OrientationsResolved.
func runEffect(env effectEnv, cmd Command) {
	logger := env.logger

	switch c := cmd.(type) {
	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}
		// Never block the daemon loop on a slow requester.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	case CmdReplySignificantDrag:
		if c.Reply == nil {
			return
		}
		select {
		case c.Reply <- c.Significant:
		default:
			logger.Warn("significant drag reply channel not ready; dropping reply")
		}

	case CmdResolveOrientations:
		if env.resolver == nil || env.post == nil {
			logger.Debug("no orientation resolver; keeping uniform layout", "items", len(c.Items))
			return
		}
		ctx := env.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		go func() {
			orients, err := env.resolver.ResolveAll(ctx, c.Items)
			if err != nil {
				logger.Warn("orientation resolution failed", "error", err, "generation", c.Generation)
			} else {
				logger.Info("item orientations resolved", "items", len(orients), "generation", c.Generation)
			}
			env.post(OrientationsResolved{
				Generation:   c.Generation,
				Orientations: orients,
				Err:          err,
			})
		}()

	default:
		logger.Warn("unknown command type", "command", cmd.String())
	}
}
