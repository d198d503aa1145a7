// Package recorder drives the scheduled metrics path of the HostPulse
// agent.
//
// A cron schedule (every minute by default) triggers one tick: build a
// snapshot, append the journal line, evaluate threshold alerts, push
// the reading to live websocket clients, and optionally publish it to
// NATS. Failures inside a tick are logged and dropped - the next tick
// is the retry. Ticks never overlap: a tick still running when the
// next trigger fires causes that trigger to be skipped.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/doughall/hostpulse/internal/alerts"
	"github.com/doughall/hostpulse/internal/journal"
	"github.com/doughall/hostpulse/internal/snapshot"
)

// tickTimeout bounds one full tick, comfortably above the per-sensor
// timeouts.
const tickTimeout = 45 * time.Second

// SnapshotBuilder builds one full Stats reading.
type SnapshotBuilder interface {
	Build(ctx context.Context) (*snapshot.Stats, error)
}

// Broadcaster pushes a snapshot to live dashboard clients.
type Broadcaster interface {
	Broadcast(s snapshot.Stats)
}

// StatsPublisher publishes snapshots to an external bus. The recorder
// checks IsConnected first so a down broker costs nothing per tick.
type StatsPublisher interface {
	PublishStats(s *snapshot.Stats) error
	IsConnected() bool
}

// Recorder runs the scheduled snapshot/journal/alert cycle.
type Recorder struct {
	builder   SnapshotBuilder
	journal   *journal.Journal
	evaluator *alerts.Evaluator
	logger    *slog.Logger

	// Optional collaborators, set before Start.
	notifier    alerts.Notifier
	broadcaster Broadcaster
	publisher   StatsPublisher

	cron *cron.Cron
	wg   sync.WaitGroup
}

// New creates a recorder over the mandatory collaborators.
func New(builder SnapshotBuilder, j *journal.Journal, evaluator *alerts.Evaluator, logger *slog.Logger) *Recorder {
	return &Recorder{
		builder:   builder,
		journal:   j,
		evaluator: evaluator,
		logger:    logger.With(slog.String("component", "recorder")),
	}
}

// SetNotifier wires alert webhook delivery.
func (r *Recorder) SetNotifier(n alerts.Notifier) { r.notifier = n }

// SetBroadcaster wires the live websocket feed.
func (r *Recorder) SetBroadcaster(b Broadcaster) { r.broadcaster = b }

// SetPublisher wires snapshot publishing to NATS.
func (r *Recorder) SetPublisher(p StatsPublisher) { r.publisher = p }

// Start schedules the recording loop with the given cron expression
// and records one snapshot immediately so a fresh install has data.
func (r *Recorder) Start(spec string) error {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	if _, err := c.AddFunc(spec, r.tick); err != nil {
		return fmt.Errorf("schedule recorder: %w", err)
	}
	c.Start()
	r.cron = c

	r.logger.Info("recorder started",
		slog.String("schedule", spec),
		slog.String("journal", r.journal.Path()),
	)

	go r.tick()
	return nil
}

// tick performs one full scheduled cycle.
func (r *Recorder) tick() {
	r.wg.Add(1)
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	s, err := r.builder.Build(ctx)
	if err != nil {
		r.logger.Warn("snapshot build failed, skipping tick",
			slog.String("error", err.Error()),
		)
		return
	}

	// Journal failures are operational noise, not tick failures: the
	// reading still reaches alerting and live consumers.
	if err := r.journal.Append(s); err != nil {
		r.logger.Error("journal append failed",
			slog.String("error", err.Error()),
		)
	}

	for _, a := range r.evaluator.Evaluate(s) {
		if r.notifier == nil {
			continue
		}
		if err := r.notifier.Notify(ctx, a); err != nil {
			r.logger.Warn("alert delivery failed",
				slog.String("metric", a.Metric),
				slog.String("error", err.Error()),
			)
		}
	}

	if r.broadcaster != nil {
		r.broadcaster.Broadcast(s.LiveView())
	}

	if r.publisher != nil && r.publisher.IsConnected() {
		if err := r.publisher.PublishStats(s); err != nil {
			r.logger.Warn("snapshot publish failed",
				slog.String("error", err.Error()),
			)
		}
	}

	r.logger.Debug("tick recorded",
		slog.Float64("cpu_pct", s.CPUPercent),
		slog.Float64("ram_pct", s.RAMPercent),
	)
}

// Shutdown stops the schedule and waits for an in-flight tick,
// honoring the context deadline.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.logger.Info("recorder shutting down")

	if r.cron != nil {
		stopped := r.cron.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("recorder shutdown complete")
		return nil
	case <-ctx.Done():
		r.logger.Warn("recorder shutdown timed out")
		return ctx.Err()
	}
}
