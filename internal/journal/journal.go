// Package journal implements the append-only metrics log for the
// HostPulse agent.
//
// One line is appended per scheduled poll: an RFC3339 timestamp plus
// the headline metrics, human-readable. Append order is time order.
// There is no rotation and no index; unbounded growth is an accepted
// property of the design, and a format change is breaking for external
// log readers (documented limitation).
package journal

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/doughall/hostpulse/internal/snapshot"
)

// Journal appends snapshot lines to a persistent text log and serves
// "last N lines" reads.
type Journal struct {
	path   string
	logger *slog.Logger

	// Serializes appends. O_APPEND already keeps single writes whole,
	// but the agent must also never interleave two of its own ticks.
	mu sync.Mutex
}

// New creates a journal writing to the given path. The file is created
// lazily on first append.
func New(path string, logger *slog.Logger) *Journal {
	return &Journal{
		path:   path,
		logger: logger.With(slog.String("component", "journal")),
	}
}

// Path returns the journal file location.
func (j *Journal) Path() string {
	return j.path
}

// Append serializes one snapshot to a single line and appends it.
// Each append is one atomic write in append mode, so concurrent
// readers never observe a partial line.
func (j *Journal) Append(s *snapshot.Stats) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(s) + "\n"); err != nil {
		return fmt.Errorf("append journal line: %w", err)
	}
	return nil
}

// Tail returns at most n lines from the end of the journal, in append
// order (most recent last). A journal that does not exist yet yields
// an empty slice, not an error.
func (j *Journal) Tail(n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}

	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read journal: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return []string{}, nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// formatLine renders the headline metrics of one snapshot.
// Example: 2026-08-26T12:00:00Z cpu=12.34% ram=56.78% battery=81.00%
// A machine without a battery logs battery=n/a.
func formatLine(s *snapshot.Stats) string {
	battery := "n/a"
	if s.BatteryPercent != nil {
		battery = fmt.Sprintf("%.2f%%", *s.BatteryPercent)
	}
	return fmt.Sprintf("%s cpu=%.2f%% ram=%.2f%% battery=%s",
		s.Timestamp.UTC().Format(time.RFC3339),
		s.CPUPercent,
		s.RAMPercent,
		battery,
	)
}
