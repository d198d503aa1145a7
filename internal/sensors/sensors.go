// Package sensors wraps each underlying metric source behind a uniform
// capability-query interface for the HostPulse agent.
//
// Every query returns either a raw payload or an explicit "unavailable"
// result - the absence of a sensor (no battery, headless machine, no
// discrete GPU) is an expected condition, never an error. Only genuine
// query failures (a system call erroring out) are returned as errors.
//
// Each query runs under a bounded per-sensor timeout so that a single
// stuck sensor cannot hang the whole poll; a query that expires is
// reported as unavailable.
package sensors

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// MemoryReading is the raw virtual memory payload.
// Byte counts are kept so the normalizer can apply its own percentage
// policy instead of trusting the sensor's derived value.
type MemoryReading struct {
	UsedBytes  uint64
	TotalBytes uint64
}

// DiskReading is the raw usage payload for one mounted filesystem.
type DiskReading struct {
	Device      string
	Mountpoint  string
	TotalBytes  uint64
	UsedBytes   uint64
	UsedPercent float64
}

// ProcessReading is the raw payload for one enumerated process.
// CPU and memory values are passed through as reported; the normalizer
// is responsible for coercing NaN/Inf garbage to zero.
type ProcessReading struct {
	PID        int32
	Name       string
	CPUPercent float64
	MemPercent float64
}

// Adapter issues the underlying sensor queries.
// The zero value is not usable; create one with NewAdapter.
type Adapter struct {
	logger  *slog.Logger
	timeout time.Duration

	// Overridable for tests.
	powerSupplyDir string
	runCommand     func(ctx context.Context, name string, args ...string) (string, error)
}

// NewAdapter creates a sensor adapter. Each individual query is bounded
// by the given timeout.
func NewAdapter(logger *slog.Logger, timeout time.Duration) *Adapter {
	return &Adapter{
		logger:         logger.With(slog.String("component", "sensors")),
		timeout:        timeout,
		powerSupplyDir: "/sys/class/power_supply",
		runCommand:     runCommand,
	}
}

// withTimeout derives the bounded per-query context.
func (a *Adapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.timeout)
}

// CPULoad returns the instantaneous CPU usage percentage, measured over
// a short sample interval (100ms, as gopsutil requires for an accurate
// reading). ok is false when the sensor reported nothing or timed out.
func (a *Adapter) CPULoad(ctx context.Context) (pct float64, ok bool, err error) {
	qctx, cancel := a.withTimeout(ctx)
	defer cancel()

	pcts, err := cpu.PercentWithContext(qctx, 100*time.Millisecond, false)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			a.logger.Warn("cpu query timed out")
			return 0, false, nil
		}
		return 0, false, err
	}
	if len(pcts) == 0 {
		return 0, false, nil
	}
	return pcts[0], true, nil
}

// Memory returns the raw virtual memory reading.
func (a *Adapter) Memory(ctx context.Context) (MemoryReading, bool, error) {
	qctx, cancel := a.withTimeout(ctx)
	defer cancel()

	vm, err := mem.VirtualMemoryWithContext(qctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			a.logger.Warn("memory query timed out")
			return MemoryReading{}, false, nil
		}
		return MemoryReading{}, false, err
	}
	return MemoryReading{UsedBytes: vm.Used, TotalBytes: vm.Total}, true, nil
}

// Filesystems returns usage for every mounted filesystem reported by
// the OS, pseudo-filesystems included. Individual mount points that
// cannot be statted (permissions, stale mounts) are skipped.
func (a *Adapter) Filesystems(ctx context.Context) ([]DiskReading, bool, error) {
	qctx, cancel := a.withTimeout(ctx)
	defer cancel()

	parts, err := disk.PartitionsWithContext(qctx, true)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			a.logger.Warn("filesystem query timed out")
			return nil, false, nil
		}
		return nil, false, err
	}

	readings := make([]DiskReading, 0, len(parts))
	for _, p := range parts {
		if qctx.Err() != nil {
			a.logger.Warn("filesystem query timed out mid-enumeration")
			return nil, false, nil
		}
		usage, err := disk.UsageWithContext(qctx, p.Mountpoint)
		if err != nil {
			continue
		}
		readings = append(readings, DiskReading{
			Device:      p.Device,
			Mountpoint:  p.Mountpoint,
			TotalBytes:  usage.Total,
			UsedBytes:   usage.Used,
			UsedPercent: usage.UsedPercent,
		})
	}
	return readings, true, nil
}

// Processes enumerates running processes. Processes that cannot be
// accessed (permission denied, exited mid-enumeration) are skipped,
// matching the best-effort nature of the process table.
func (a *Adapter) Processes(ctx context.Context) ([]ProcessReading, bool, error) {
	qctx, cancel := a.withTimeout(ctx)
	defer cancel()

	procs, err := process.ProcessesWithContext(qctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			a.logger.Warn("process query timed out")
			return nil, false, nil
		}
		return nil, false, err
	}

	readings := make([]ProcessReading, 0, len(procs))
	for _, p := range procs {
		if qctx.Err() != nil {
			a.logger.Warn("process query timed out mid-enumeration")
			return nil, false, nil
		}

		name, err := p.NameWithContext(qctx)
		if err != nil || name == "" {
			continue
		}

		r := ProcessReading{PID: p.Pid, Name: name}

		// CPU and memory are optional; a zero is better than losing
		// the entry for a process we could otherwise see.
		if cpuPct, err := p.CPUPercentWithContext(qctx); err == nil {
			r.CPUPercent = cpuPct
		}
		if memPct, err := p.MemoryPercentWithContext(qctx); err == nil {
			r.MemPercent = float64(memPct)
		}

		readings = append(readings, r)
	}

	a.logger.Debug("enumerated processes", slog.Int("count", len(readings)))
	return readings, true, nil
}

// runCommand executes an external tool with a bounded context and
// returns its stdout. Used by the GPU adapter for nvidia-smi/lspci.
func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return string(out), nil
}
