// Package snapshot builds the canonical point-in-time Stats reading
// for the HostPulse agent.
//
// The package has two halves: pure normalizers that convert each raw
// sensor payload into the fixed output schema, and a Builder that fans
// out one concurrent round of sensor queries and composes the result.
// The live HTTP path, the scheduled journal writer, and the export
// builder all call the same Builder, so they can never disagree on
// field meaning or rounding.
package snapshot

import "time"

// Process selection sizes. The builder retains ExportTopK sorted
// entries per snapshot; the live JSON serves the first LiveTopK.
const (
	LiveTopK   = 5
	ExportTopK = 10
)

// Stats is one complete, immutable snapshot of host metrics.
// CPUPercent and RAMPercent are always in [0,100]. BatteryPercent and
// Charging are nil on machines without a battery - never a placeholder
// value mixed into numeric logic.
type Stats struct {
	Timestamp time.Time `json:"timestamp"`

	// CPUPercent is the instantaneous CPU load (0-100, 2 decimals).
	CPUPercent float64 `json:"cpuPercent"`

	// RAMPercent is used/total memory (0-100, 2 decimals).
	RAMPercent float64 `json:"ramPercent"`

	// Battery state; nil when no battery is detected.
	BatteryPercent *float64 `json:"batteryPercent"`
	Charging       *bool    `json:"charging"`

	// Disks lists every mounted filesystem at poll time.
	Disks []DiskUsage `json:"disks"`

	// GPUs lists detected graphics controllers.
	GPUs []GpuInfo `json:"gpus"`

	// TopProcesses is the sorted process selection, descending by
	// cpuPercent, computed once per snapshot and capped at ExportTopK.
	// The live API serves the first LiveTopK entries (see TopN); the
	// exports use the whole selection. One selection feeds both, so
	// they can never disagree.
	TopProcesses []ProcessSample `json:"topProcesses"`

	// Degraded names sensor families that were unavailable during this
	// poll. It preserves the difference between "0% CPU" and "CPU
	// sensor answered nothing" without breaking the numeric schema.
	Degraded []string `json:"degraded,omitempty"`
}

// DiskUsage describes one mounted filesystem.
type DiskUsage struct {
	Filesystem string  `json:"filesystem"`
	MountPoint string  `json:"mountPoint"`
	SizeBytes  uint64  `json:"sizeBytes"`
	UsedBytes  uint64  `json:"usedBytes"`
	UsePercent float64 `json:"usePercent"`
}

// GpuInfo describes one detected graphics controller.
// UtilizationPercent is nil when the controller cannot report load.
type GpuInfo struct {
	Model              string   `json:"model"`
	Vendor             string   `json:"vendor"`
	VRAMMB             float64  `json:"vramMB"`
	UtilizationPercent *float64 `json:"utilizationPercent"`
}

// ProcessSample is one top-process entry, rounded to 2 decimals.
type ProcessSample struct {
	PID        int32   `json:"pid,omitempty"`
	Name       string  `json:"name"`
	CPUPercent float64 `json:"cpuPercent"`
	MemPercent float64 `json:"memPercent"`
}

// TopN returns the first n entries of the snapshot's sorted process
// selection.
func (s *Stats) TopN(n int) []ProcessSample {
	if n > len(s.TopProcesses) {
		n = len(s.TopProcesses)
	}
	if n < 0 {
		n = 0
	}
	return s.TopProcesses[:n]
}

// LiveView returns a shallow copy whose process list is trimmed to the
// live top-K. The copy shares the immutable slices of the original.
func (s *Stats) LiveView() Stats {
	live := *s
	live.TopProcesses = s.TopN(LiveTopK)
	return live
}
