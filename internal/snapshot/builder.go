// Snapshot Builder: one synchronized round of sensor queries composed
// into a Stats value.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doughall/hostpulse/internal/sensors"
)

// SensorSet is the capability-query surface the builder polls.
// *sensors.Adapter satisfies it; tests substitute fakes.
type SensorSet interface {
	CPULoad(ctx context.Context) (float64, bool, error)
	Memory(ctx context.Context) (sensors.MemoryReading, bool, error)
	Battery(ctx context.Context) (sensors.BatteryReading, bool)
	Filesystems(ctx context.Context) ([]sensors.DiskReading, bool, error)
	Graphics(ctx context.Context) ([]sensors.GPUReading, bool)
	Processes(ctx context.Context) ([]sensors.ProcessReading, bool, error)
}

// Builder composes full Stats readings from one sensor round.
type Builder struct {
	adapter SensorSet
	logger  *slog.Logger
}

// NewBuilder creates a snapshot builder over the given sensor set.
func NewBuilder(adapter SensorSet, logger *slog.Logger) *Builder {
	return &Builder{
		adapter: adapter,
		logger:  logger.With(slog.String("component", "snapshot")),
	}
}

// Build fans out all sensor queries concurrently, joins them, and
// normalizes the results into a Stats value.
//
// Unavailable sensors degrade individual fields (recorded in
// Stats.Degraded); an unexpected query failure fails the whole build -
// partial snapshots are never returned.
func (b *Builder) Build(ctx context.Context) (*Stats, error) {
	var (
		cpuPct  float64
		cpuOK   bool
		memR    sensors.MemoryReading
		memOK   bool
		battR   sensors.BatteryReading
		battOK  bool
		diskR   []sensors.DiskReading
		diskOK  bool
		gpuR    []sensors.GPUReading
		gpuOK   bool
		procR   []sensors.ProcessReading
		procOK  bool
	)

	// The queries are independent, side-effect-free reads; each writes
	// only its own variables, and the group join orders those writes
	// before the reads below.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cpuPct, cpuOK, err = b.adapter.CPULoad(gctx)
		return err
	})
	g.Go(func() (err error) {
		memR, memOK, err = b.adapter.Memory(gctx)
		return err
	})
	g.Go(func() error {
		battR, battOK = b.adapter.Battery(gctx)
		return nil
	})
	g.Go(func() (err error) {
		diskR, diskOK, err = b.adapter.Filesystems(gctx)
		return err
	})
	g.Go(func() error {
		gpuR, gpuOK = b.adapter.Graphics(gctx)
		return nil
	})
	g.Go(func() (err error) {
		procR, procOK, err = b.adapter.Processes(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("snapshot build: %w", err)
	}

	s := &Stats{
		Timestamp:  time.Now().UTC(),
		CPUPercent: normalizeCPU(cpuPct, cpuOK),
		RAMPercent: normalizeMemory(memR, memOK),
		Disks:      normalizeDisks(diskR, diskOK),
		GPUs:       normalizeGPUs(gpuR, gpuOK),
	}
	s.BatteryPercent, s.Charging = normalizeBattery(battR, battOK)

	sorted := normalizeProcesses(procR, procOK)
	if len(sorted) > ExportTopK {
		sorted = sorted[:ExportTopK]
	}
	s.TopProcesses = sorted

	for family, ok := range map[string]bool{
		"cpu":       cpuOK,
		"memory":    memOK,
		"disks":     diskOK,
		"processes": procOK,
	} {
		if !ok {
			s.Degraded = append(s.Degraded, family)
		}
	}
	// Map iteration order is random; keep the field deterministic.
	sort.Strings(s.Degraded)
	if len(s.Degraded) > 0 {
		b.logger.Warn("snapshot built with degraded sensors",
			slog.Any("families", s.Degraded),
		)
	}

	return s, nil
}

// TopProcesses serves the live process endpoint from a fresh process
// query, independent of a full snapshot.
func (b *Builder) TopProcesses(ctx context.Context, n int) ([]ProcessSample, error) {
	readings, ok, err := b.adapter.Processes(ctx)
	if err != nil {
		return nil, fmt.Errorf("process query: %w", err)
	}
	procs := normalizeProcesses(readings, ok)
	if n > len(procs) {
		n = len(procs)
	}
	return procs[:n], nil
}
