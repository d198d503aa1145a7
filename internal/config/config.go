// Package config provides configuration management for the HostPulse agent.
// It uses koanf v2 to load configuration from YAML files and supports
// saving the effective configuration back to disk.
//
// Configuration is loaded from /etc/hostpulse/config.yaml by default.
// A missing config file is not an error: the agent is expected to run
// out of the box on a workstation, so all fields carry defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
	goyaml "gopkg.in/yaml.v3"
)

// DefaultConfigPath is the default location for the agent configuration file.
const DefaultConfigPath = "/etc/hostpulse/config.yaml"

// Config holds the agent configuration loaded from the YAML config file.
// Fields are tagged for both koanf (loading) and yaml (saving).
type Config struct {
	// ListenAddr is the address the HTTP API binds to.
	// The agent serves a local dashboard, so the default stays on loopback.
	ListenAddr string `koanf:"listen_addr" yaml:"listen_addr"`

	// DataDir holds the threshold store and, by default, the metrics journal.
	DataDir string `koanf:"data_dir" yaml:"data_dir"`

	// JournalFile is the path of the append-only metrics journal.
	// Empty means <data_dir>/metrics.log.
	JournalFile string `koanf:"journal_file" yaml:"journal_file"`

	// JournalCron is the cadence of the scheduled journal writer,
	// in robfig/cron syntax. Default: "@every 1m".
	JournalCron string `koanf:"journal_cron" yaml:"journal_cron"`

	// SensorTimeoutSeconds bounds each individual sensor query.
	// A sensor that does not answer in time is treated as unavailable
	// rather than hanging the whole poll. Default: 5.
	SensorTimeoutSeconds int `koanf:"sensor_timeout_seconds" yaml:"sensor_timeout_seconds"`

	// LogLevel controls the verbosity of agent logging.
	// Valid values: "debug", "info", "warn", "error".
	// Default: "info".
	LogLevel string `koanf:"log_level" yaml:"log_level"`

	// AlertWebhookURL, when set, receives a JSON POST for every fired
	// threshold alert. Empty disables webhook delivery.
	AlertWebhookURL string `koanf:"alert_webhook_url" yaml:"alert_webhook_url"`

	// NATSServers is a comma-separated list of NATS server URLs.
	// If set, every scheduled snapshot is also published to NATS.
	NATSServers string `koanf:"nats_servers" yaml:"nats_servers"`

	// NATSNKeySeed is the optional NKey seed for NATS authentication.
	NATSNKeySeed string `koanf:"nats_nkey_seed" yaml:"nats_nkey_seed"`

	// NATSSubjectPrefix is the subject prefix for published snapshots.
	// Default: "hostpulse".
	NATSSubjectPrefix string `koanf:"nats_subject_prefix" yaml:"nats_subject_prefix"`
}

// Validation errors returned by Load.
var (
	ErrListenAddrRequired = errors.New("listen_addr is required")
	ErrInvalidTimeout     = errors.New("sensor_timeout_seconds must be positive")
)

// Load reads configuration from the specified YAML file path.
// It applies defaults for unset fields and validates the result.
// A missing file yields the default configuration.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		// No config file: run on defaults.
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:8490"
	}
	if c.DataDir == "" {
		c.DataDir = "/var/lib/hostpulse"
	}
	if c.JournalFile == "" {
		c.JournalFile = filepath.Join(c.DataDir, "metrics.log")
	}
	if c.JournalCron == "" {
		c.JournalCron = "@every 1m"
	}
	if c.SensorTimeoutSeconds == 0 {
		c.SensorTimeoutSeconds = 5
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.NATSSubjectPrefix == "" {
		c.NATSSubjectPrefix = "hostpulse"
	}
}

// validate checks that the configuration is usable.
func (c *Config) validate() error {
	if c.ListenAddr == "" {
		return ErrListenAddrRequired
	}
	if c.SensorTimeoutSeconds <= 0 {
		return ErrInvalidTimeout
	}
	if _, err := cron.ParseStandard(c.JournalCron); err != nil {
		return fmt.Errorf("invalid journal_cron %q: %w", c.JournalCron, err)
	}
	return nil
}

// SensorTimeout returns the per-sensor query timeout as a duration.
func (c *Config) SensorTimeout() time.Duration {
	return time.Duration(c.SensorTimeoutSeconds) * time.Second
}

// NATSEnabled returns true if snapshot publishing to NATS is configured.
func (c *Config) NATSEnabled() bool {
	return c.NATSServers != ""
}

// Save writes the configuration to the specified YAML file path.
// The parent directory is created if needed.
func Save(path string, cfg *Config) error {
	data, err := goyaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config to %s: %w", path, err)
	}

	return nil
}
