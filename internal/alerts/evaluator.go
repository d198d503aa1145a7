// Alert evaluation: compare one snapshot against the thresholds and
// apply per-metric cool-downs.
package alerts

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/doughall/hostpulse/internal/snapshot"
)

// Cool-down windows between two firings of the same metric. Each
// metric's window is independent of the others.
const (
	CPUCooldown     = 3 * time.Minute
	RAMCooldown     = 3 * time.Minute
	BatteryCooldown = 30 * time.Minute
)

// Alert describes one fired threshold violation.
type Alert struct {
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Message   string    `json:"message"`
	FiredAt   time.Time `json:"firedAt"`
}

// Evaluator applies the threshold rules to snapshots.
// A violation fires at most once per cool-down window: a per-metric
// "last fired" timestamp is kept, and a new alert for that metric
// fires only once its own window has elapsed.
type Evaluator struct {
	store  *Store
	logger *slog.Logger

	mu        sync.Mutex
	lastFired map[string]time.Time

	// now is replaceable in tests.
	now func() time.Time
}

// NewEvaluator creates an evaluator reading thresholds from store.
func NewEvaluator(store *Store, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		store:     store,
		logger:    logger.With(slog.String("component", "alerts")),
		lastFired: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Evaluate checks one snapshot and returns the alerts that fire.
// A machine without a battery never fires the battery rule.
func (e *Evaluator) Evaluate(s *snapshot.Stats) []Alert {
	cfg := e.store.Get()

	e.mu.Lock()
	defer e.mu.Unlock()

	var fired []Alert

	if s.CPUPercent > cfg.CPU {
		if a, ok := e.fire("cpu", s.CPUPercent, cfg.CPU, CPUCooldown,
			fmt.Sprintf("CPU usage %.2f%% above threshold %.2f%%", s.CPUPercent, cfg.CPU)); ok {
			fired = append(fired, a)
		}
	}

	if s.RAMPercent > cfg.RAM {
		if a, ok := e.fire("ram", s.RAMPercent, cfg.RAM, RAMCooldown,
			fmt.Sprintf("RAM usage %.2f%% above threshold %.2f%%", s.RAMPercent, cfg.RAM)); ok {
			fired = append(fired, a)
		}
	}

	if s.BatteryPercent != nil && *s.BatteryPercent < cfg.Battery {
		if a, ok := e.fire("battery", *s.BatteryPercent, cfg.Battery, BatteryCooldown,
			fmt.Sprintf("battery %.2f%% below threshold %.2f%%", *s.BatteryPercent, cfg.Battery)); ok {
			fired = append(fired, a)
		}
	}

	for _, a := range fired {
		e.logger.Warn("threshold alert fired",
			slog.String("metric", a.Metric),
			slog.Float64("value", a.Value),
			slog.Float64("threshold", a.Threshold),
		)
	}

	return fired
}

// fire records a firing for the metric unless it is still cooling down.
// Caller holds e.mu.
func (e *Evaluator) fire(metric string, value, threshold float64, cooldown time.Duration, msg string) (Alert, bool) {
	now := e.now()
	if last, ok := e.lastFired[metric]; ok && now.Sub(last) < cooldown {
		return Alert{}, false
	}
	e.lastFired[metric] = now
	return Alert{
		Metric:    metric,
		Value:     value,
		Threshold: threshold,
		Message:   msg,
		FiredAt:   now,
	}, true
}
