// Journal tests: append/tail semantics over a temp directory.
package journal

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/doughall/hostpulse/internal/snapshot"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testJournal(t *testing.T) *Journal {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "metrics.log"), nopLogger())
}

func sampleStats(cpu float64) *snapshot.Stats {
	return &snapshot.Stats{
		Timestamp:  time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC),
		CPUPercent: cpu,
		RAMPercent: 56.78,
	}
}

func TestTailMissingFile(t *testing.T) {
	j := testJournal(t)

	lines, err := j.Tail(50)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if lines == nil || len(lines) != 0 {
		t.Errorf("expected empty slice, got %v", lines)
	}
}

func TestAppendAndTail(t *testing.T) {
	j := testJournal(t)

	for i := 0; i < 5; i++ {
		if err := j.Append(sampleStats(float64(i))); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	t.Run("tail returns at most n", func(t *testing.T) {
		lines, err := j.Tail(3)
		if err != nil {
			t.Fatalf("Tail failed: %v", err)
		}
		if len(lines) != 3 {
			t.Fatalf("got %d lines, want 3", len(lines))
		}
	})

	t.Run("tail is a suffix in append order", func(t *testing.T) {
		all, _ := j.Tail(100)
		last2, _ := j.Tail(2)
		if len(all) != 5 {
			t.Fatalf("got %d lines, want 5", len(all))
		}
		if all[3] != last2[0] || all[4] != last2[1] {
			t.Errorf("tail is not a suffix: %v vs %v", all[3:], last2)
		}
		if !strings.Contains(all[4], "cpu=4.00%") {
			t.Errorf("most recent line is not last: %q", all[4])
		}
	})

	t.Run("non-positive n yields empty", func(t *testing.T) {
		lines, err := j.Tail(0)
		if err != nil || len(lines) != 0 {
			t.Errorf("got %v, %v", lines, err)
		}
	})
}

func TestLineFormat(t *testing.T) {
	t.Run("with battery", func(t *testing.T) {
		s := sampleStats(12.34)
		pct := 81.0
		s.BatteryPercent = &pct

		line := formatLine(s)
		want := "2026-08-26T12:00:00Z cpu=12.34% ram=56.78% battery=81.00%"
		if line != want {
			t.Errorf("got %q, want %q", line, want)
		}
	})

	t.Run("without battery", func(t *testing.T) {
		line := formatLine(sampleStats(12.34))
		if !strings.HasSuffix(line, "battery=n/a") {
			t.Errorf("absent battery must log n/a: %q", line)
		}
	})
}

func TestAppendIsOneLinePerSnapshot(t *testing.T) {
	j := testJournal(t)
	if err := j.Append(sampleStats(1)); err != nil {
		t.Fatal(err)
	}
	if err := j.Append(sampleStats(2)); err != nil {
		t.Fatal(err)
	}

	lines, err := j.Tail(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			t.Error("blank line in journal")
		}
	}
}
