// Graphics controller detection for the HostPulse agent.
//
// NVIDIA GPUs are queried through nvidia-smi, which reports model,
// VRAM, and live utilization. When nvidia-smi is absent or reports
// nothing, a fallback lspci scan lists VGA/3D/display controllers -
// model only, utilization explicitly unreported. Headless hosts with
// neither tool yield an explicit absent result.
package sensors

import (
	"bufio"
	"context"
	"strconv"
	"strings"
)

// GPUReading is the raw payload for one graphics controller.
// HasUtilization is false when the controller cannot report live load
// (the lspci fallback, or nvidia-smi answering "[N/A]").
type GPUReading struct {
	Model          string
	Vendor         string
	VRAMMB         float64
	Utilization    float64
	HasUtilization bool
}

// Graphics returns readings for every detected graphics controller,
// or ok=false when none can be detected. It never returns an error:
// a host without query tools is simply a host without visible GPUs.
func (a *Adapter) Graphics(ctx context.Context) ([]GPUReading, bool) {
	qctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if out, err := a.runCommand(qctx, "nvidia-smi",
		"--query-gpu=name,utilization.gpu,memory.total",
		"--format=csv,noheader,nounits"); err == nil {
		if gpus := parseNvidiaSMI(out); len(gpus) > 0 {
			return gpus, true
		}
	}

	if out, err := a.runCommand(qctx, "lspci"); err == nil {
		if gpus := parseLspci(out); len(gpus) > 0 {
			return gpus, true
		}
	}

	return nil, false
}

// parseNvidiaSMI parses `nvidia-smi --query-gpu=name,utilization.gpu,memory.total
// --format=csv,noheader,nounits` output, one controller per line.
func parseNvidiaSMI(out string) []GPUReading {
	var gpus []GPUReading
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		parts := strings.Split(sc.Text(), ",")
		if len(parts) < 3 {
			continue
		}
		r := GPUReading{
			Model:  strings.TrimSpace(parts[0]),
			Vendor: "NVIDIA",
			VRAMMB: parseGPUNumber(parts[2]),
		}
		// Utilization comes back as "[N/A]" on some configurations
		// (e.g. display-less cards in WDDM mode).
		if util, ok := parseGPUUtilization(parts[1]); ok {
			r.Utilization = util
			r.HasUtilization = true
		}
		gpus = append(gpus, r)
	}
	return gpus
}

// parseLspci extracts graphics controllers from plain `lspci` output.
func parseLspci(out string) []GPUReading {
	var gpus []GPUReading
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, "VGA compatible controller") &&
			!strings.Contains(line, "3D controller") &&
			!strings.Contains(line, "Display controller") {
			continue
		}
		// "01:00.0 VGA compatible controller: Intel Corporation UHD Graphics 620 (rev 07)"
		_, desc, found := strings.Cut(line, ": ")
		if !found {
			continue
		}
		model := strings.TrimSpace(desc)
		gpus = append(gpus, GPUReading{
			Model:  model,
			Vendor: vendorFromModel(model),
		})
	}
	return gpus
}

// parseGPUUtilization parses a utilization field, tolerating the
// "[N/A]" and "[Not Supported]" markers nvidia-smi emits.
func parseGPUUtilization(field string) (float64, bool) {
	s := strings.TrimSpace(field)
	if s == "" || strings.HasPrefix(s, "[") {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseGPUNumber parses a plain numeric field, 0 on any failure.
func parseGPUNumber(field string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0
	}
	return v
}

// vendorFromModel guesses the vendor from an lspci description.
func vendorFromModel(model string) string {
	upper := strings.ToUpper(model)
	switch {
	case strings.Contains(upper, "NVIDIA"):
		return "NVIDIA"
	case strings.Contains(upper, "AMD"), strings.Contains(upper, "ATI"):
		return "AMD"
	case strings.Contains(upper, "INTEL"):
		return "Intel"
	default:
		return "unknown"
	}
}
