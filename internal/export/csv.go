// Package export renders one already-built snapshot into downloadable
// formats: tabular CSV and a paginated PDF report.
//
// Both renderers consume a Stats the caller built; they never poll
// sensors themselves, so an export can never disagree with the live
// display it was requested alongside.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/doughall/hostpulse/internal/snapshot"
)

// WriteCSV renders the tabular export: a header/value section for the
// instantaneous metrics, a blank separator, then a header/rows section
// for the top processes. Field quoting (doubled embedded quotes) is
// handled by encoding/csv.
func WriteCSV(w io.Writer, s *snapshot.Stats) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"timestamp", "cpuPercent", "ramPercent", "batteryPercent", "charging"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.Write([]string{
		s.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		formatPct(s.CPUPercent),
		formatPct(s.RAMPercent),
		formatOptPct(s.BatteryPercent),
		formatOptBool(s.Charging),
	}); err != nil {
		return fmt.Errorf("write csv stats row: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	// Blank separator between the two sections.
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}

	if err := cw.Write([]string{"pid", "name", "cpuPercent", "memPercent"}); err != nil {
		return fmt.Errorf("write csv process header: %w", err)
	}
	for _, p := range s.TopN(snapshot.ExportTopK) {
		if err := cw.Write([]string{
			strconv.Itoa(int(p.PID)),
			p.Name,
			formatPct(p.CPUPercent),
			formatPct(p.MemPercent),
		}); err != nil {
			return fmt.Errorf("write csv process row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatPct renders a percentage with the schema's 2 decimals.
func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// formatOptPct renders an optional percentage, "n/a" when absent.
func formatOptPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return formatPct(*v)
}

// formatOptBool renders an optional bool, "n/a" when absent.
func formatOptBool(v *bool) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatBool(*v)
}
