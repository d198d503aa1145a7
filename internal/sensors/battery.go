// Battery detection for the HostPulse agent.
//
// Batteries are read from sysfs (/sys/class/power_supply). Some
// platforms under-report battery presence, so detection is deliberately
// generous: a supply counts as a real battery if it reports present,
// OR a nonzero capacity percent, OR a nonzero full-charge value. When
// the primary BAT* entries report nothing, a secondary scan over all
// power supplies with type "Battery" runs before giving up.
//
// A machine without a battery yields an explicit absent result. No
// reading is ever synthesized.
package sensors

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// BatteryReading is the raw battery payload.
type BatteryReading struct {
	Percent  float64
	Charging bool
}

// Battery returns the battery reading, or ok=false when no battery is
// detected. It never returns an error: a missing battery is expected.
func (a *Adapter) Battery(ctx context.Context) (BatteryReading, bool) {
	// Primary: conventional BAT* supplies.
	matches, _ := filepath.Glob(filepath.Join(a.powerSupplyDir, "BAT*"))
	for _, dir := range matches {
		if ctx.Err() != nil {
			return BatteryReading{}, false
		}
		if r, ok := readBatteryDir(dir); ok {
			return r, true
		}
	}

	// Secondary: any supply that declares itself a battery. Covers
	// platforms that name the supply CMB0, battery, etc.
	entries, err := os.ReadDir(a.powerSupplyDir)
	if err != nil {
		return BatteryReading{}, false
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return BatteryReading{}, false
		}
		dir := filepath.Join(a.powerSupplyDir, e.Name())
		if readSysfsString(dir, "type") != "Battery" {
			continue
		}
		if r, ok := readBatteryDir(dir); ok {
			return r, true
		}
	}

	return BatteryReading{}, false
}

// readBatteryDir reads one power-supply directory and decides whether
// it represents a real battery.
func readBatteryDir(dir string) (BatteryReading, bool) {
	present := readSysfsInt(dir, "present") == 1
	pct := readSysfsFloat(dir, "capacity")
	full := readSysfsFloat(dir, "charge_full")
	if full == 0 {
		full = readSysfsFloat(dir, "energy_full")
	}

	// Present flag, nonzero percent, or nonzero max capacity all count
	// as evidence a battery exists.
	if !present && pct == 0 && full == 0 {
		return BatteryReading{}, false
	}

	status := readSysfsString(dir, "status")
	return BatteryReading{
		Percent:  pct,
		Charging: strings.EqualFold(status, "charging"),
	}, true
}

// readSysfsString reads a single sysfs attribute, trimmed.
// Returns "" when the attribute is missing or unreadable.
func readSysfsString(dir, attr string) string {
	b, err := os.ReadFile(filepath.Join(dir, attr))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// readSysfsFloat reads a numeric sysfs attribute, 0 on any failure.
func readSysfsFloat(dir, attr string) float64 {
	v, err := strconv.ParseFloat(readSysfsString(dir, attr), 64)
	if err != nil {
		return 0
	}
	return v
}

// readSysfsInt reads an integer sysfs attribute, 0 on any failure.
func readSysfsInt(dir, attr string) int {
	v, err := strconv.Atoi(readSysfsString(dir, attr))
	if err != nil {
		return 0
	}
	return v
}
