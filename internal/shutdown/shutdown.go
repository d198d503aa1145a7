// Package shutdown tears the agent down in reverse start-up order so
// nothing is stopped before the things built on top of it.
package shutdown

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Stopper is implemented by anything the coordinator can stop.
type Stopper interface {
	Shutdown(ctx context.Context) error
}

// StopperFunc adapts a plain function to the Stopper interface.
type StopperFunc func(ctx context.Context) error

func (f StopperFunc) Shutdown(ctx context.Context) error { return f(ctx) }

type entry struct {
	name    string
	stopper Stopper
}

// Coordinator stops registered components last-in-first-out.
type Coordinator struct {
	entries []entry
	logger  *slog.Logger
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator(logger *slog.Logger) *Coordinator {
	return &Coordinator{
		logger: logger.With(slog.String("component", "shutdown")),
	}
}

// Register adds a component. Registration order is start-up order;
// shutdown runs in reverse.
func (c *Coordinator) Register(name string, s Stopper) {
	c.entries = append(c.entries, entry{name: name, stopper: s})
}

// Shutdown stops every registered component, newest first. A failing
// component is logged and the teardown continues; the first error is
// returned. The context deadline bounds the whole sequence.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.logger.Info("shutting down", slog.Int("components", len(c.entries)))

	var firstErr error
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := c.entries[i]

		if ctx.Err() != nil {
			c.logger.Error("shutdown deadline exceeded",
				slog.String("remaining", e.name),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown deadline exceeded before %s: %w", e.name, ctx.Err())
			}
			return firstErr
		}

		start := time.Now()
		if err := e.stopper.Shutdown(ctx); err != nil {
			c.logger.Error("component shutdown failed",
				slog.String("name", e.name),
				slog.Duration("took", time.Since(start)),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown %s: %w", e.name, err)
			}
			continue
		}
		c.logger.Debug("component stopped",
			slog.String("name", e.name),
			slog.Duration("took", time.Since(start)),
		)
	}

	if firstErr == nil {
		c.logger.Info("shutdown complete")
	}
	return firstErr
}
