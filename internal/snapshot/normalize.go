// Pure normalizers: one function per metric family, each converting a
// raw sensor payload (or explicit-absent) into typed Stats fields.
// All "field A or field B or default" reconciliation lives here.
package snapshot

import (
	"math"
	"sort"

	"github.com/doughall/hostpulse/internal/sensors"
)

// round2 rounds to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// sanitize coerces NaN and infinities to 0 so they can never reach a
// sorted numeric comparison or the JSON encoder.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// clampPercent bounds a sanitized value to [0,100].
func clampPercent(v float64) float64 {
	v = sanitize(v)
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// normalizeCPU maps the raw load percentage to the schema.
// Policy: an unavailable CPU sensor yields 0; the builder records the
// family in Stats.Degraded so consumers can tell 0 from unknown.
func normalizeCPU(pct float64, ok bool) float64 {
	if !ok {
		return 0
	}
	return round2(clampPercent(pct))
}

// normalizeMemory computes used/total*100 from byte counts.
// Policy: the "used" basis, matching gopsutil's UsedPercent; "active"
// memory is never mixed in.
func normalizeMemory(r sensors.MemoryReading, ok bool) float64 {
	if !ok || r.TotalBytes == 0 {
		return 0
	}
	pct := float64(r.UsedBytes) / float64(r.TotalBytes) * 100
	return round2(clampPercent(pct))
}

// normalizeBattery maps a detected battery to optional fields.
// Percent is reported as-is (clamped), never re-derived from charge
// counters. Both returns are nil when no battery was detected.
func normalizeBattery(r sensors.BatteryReading, ok bool) (*float64, *bool) {
	if !ok {
		return nil, nil
	}
	pct := round2(clampPercent(r.Percent))
	charging := r.Charging
	return &pct, &charging
}

// normalizeDisks maps every raw filesystem entry to DiskUsage.
// Pseudo-filesystems are not filtered (known limitation).
func normalizeDisks(readings []sensors.DiskReading, ok bool) []DiskUsage {
	disks := make([]DiskUsage, 0, len(readings))
	if !ok {
		return disks
	}
	for _, r := range readings {
		disks = append(disks, DiskUsage{
			Filesystem: r.Device,
			MountPoint: r.Mountpoint,
			SizeBytes:  r.TotalBytes,
			UsedBytes:  r.UsedBytes,
			UsePercent: round2(clampPercent(r.UsedPercent)),
		})
	}
	return disks
}

// normalizeGPUs maps every raw controller to GpuInfo, defaulting the
// model to "unknown" when the sensor omits it.
func normalizeGPUs(readings []sensors.GPUReading, ok bool) []GpuInfo {
	gpus := make([]GpuInfo, 0, len(readings))
	if !ok {
		return gpus
	}
	for _, r := range readings {
		g := GpuInfo{
			Model:  r.Model,
			Vendor: r.Vendor,
			VRAMMB: sanitize(r.VRAMMB),
		}
		if g.Model == "" {
			g.Model = "unknown"
		}
		if g.Vendor == "" {
			g.Vendor = "unknown"
		}
		if r.HasUtilization {
			util := round2(clampPercent(r.Utilization))
			g.UtilizationPercent = &util
		}
		gpus = append(gpus, g)
	}
	return gpus
}

// normalizeProcesses maps every raw process entry and returns the list
// sorted descending by cpuPercent. The sort is stable: ties keep the
// original enumeration order. Non-numeric CPU/memory values are
// coerced to 0 before the comparison, so they sort last and never
// poison it.
func normalizeProcesses(readings []sensors.ProcessReading, ok bool) []ProcessSample {
	procs := make([]ProcessSample, 0, len(readings))
	if !ok {
		return procs
	}
	for _, r := range readings {
		procs = append(procs, ProcessSample{
			PID:        r.PID,
			Name:       r.Name,
			CPUPercent: round2(sanitize(r.CPUPercent)),
			MemPercent: round2(sanitize(r.MemPercent)),
		})
	}
	sort.SliceStable(procs, func(i, j int) bool {
		return procs[i].CPUPercent > procs[j].CPUPercent
	})
	return procs
}
