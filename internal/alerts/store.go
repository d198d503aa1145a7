// Package alerts holds the threshold configuration and evaluates
// snapshots against it.
//
// Thresholds are process-wide mutable state with permissive-merge
// update semantics: an update applies only the fields that arrived as
// numbers and silently ignores everything else. The config is
// persisted in a small bbolt database so operator-tuned values survive
// restarts.
package alerts

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	thresholdsBucket = "thresholds"
	thresholdsKey    = "config"
)

// Config holds the alert thresholds, all in percent.
// CPU and RAM alert above their values, battery below.
type Config struct {
	CPU     float64 `json:"cpu"`
	RAM     float64 `json:"ram"`
	Battery float64 `json:"battery"`
}

// DefaultConfig is the threshold configuration seeded on first run.
var DefaultConfig = Config{CPU: 90, RAM: 85, Battery: 15}

// Store is the persistent threshold store.
type Store struct {
	db *bolt.DB

	mu  sync.RWMutex
	cfg Config
}

// NewStore opens or creates the threshold database and loads the
// current configuration, seeding defaults on first run.
func NewStore(dbPath string) (*Store, error) {
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open threshold store: %w", err)
	}

	s := &Store{db: db, cfg: DefaultConfig}

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(thresholdsBucket))
		if err != nil {
			return err
		}
		data := b.Get([]byte(thresholdsKey))
		if data == nil {
			// First run: persist the defaults.
			seeded, err := json.Marshal(DefaultConfig)
			if err != nil {
				return err
			}
			return b.Put([]byte(thresholdsKey), seeded)
		}
		return json.Unmarshal(data, &s.cfg)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load thresholds: %w", err)
	}

	return s, nil
}

// Get returns the current threshold configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update merges the patch into the configuration and persists the
// result. Permissive-merge semantics: only fields present as JSON
// numbers are applied; non-numeric or unknown fields are ignored, not
// rejected. Returns the resulting configuration.
func (s *Store) Update(patch map[string]any) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.cfg
	if v, ok := patch["cpu"].(float64); ok {
		cfg.CPU = v
	}
	if v, ok := patch["ram"].(float64); ok {
		cfg.RAM = v
	}
	if v, ok := patch["battery"].(float64); ok {
		cfg.Battery = v
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return s.cfg, err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(thresholdsBucket)).Put([]byte(thresholdsKey), data)
	})
	if err != nil {
		return s.cfg, fmt.Errorf("persist thresholds: %w", err)
	}

	s.cfg = cfg
	return cfg, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
