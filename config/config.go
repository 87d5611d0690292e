package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	FlavorCurrentThread = "current_thread"
	FlavorMultiThread   = "multi_thread"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// Flavor is "current_thread" or "multi_thread".
	Flavor string `yaml:"flavor" json:"flavor"`
	// Workers is the multi-thread worker count; 0 means one per CPU.
	Workers int `yaml:"workers" json:"workers"`
	// TrackDeadlines enables the pending-deadline index.
	TrackDeadlines bool `yaml:"trackDeadlines" json:"trackDeadlines"`
	// HistoryCapacity bounds the recent task ring.
	HistoryCapacity int `yaml:"historyCapacity" json:"historyCapacity"`

	Log     LogConfig     `yaml:"log" json:"log"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// LogConfig controls the default logger.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// MetricsConfig controls Prometheus export.
type MetricsConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	Namespace    string        `yaml:"namespace" json:"namespace"`
	Addr         string        `yaml:"addr" json:"addr"`
	PollInterval time.Duration `yaml:"pollInterval" json:"pollInterval"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Flavor:          FlavorMultiThread,
		Workers:         0,
		HistoryCapacity: 100,
		Log:             LogConfig{Level: "info"},
		Metrics: MetricsConfig{
			Namespace:    "taskruntime",
			Addr:         ":9090",
			PollInterval: time.Second,
		},
	}
}

// Load reads configuration from a YAML or JSON file, layered over Default().
// If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	// JSON is a subset of YAML, so one decoder serves both.
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Flavor {
	case FlavorCurrentThread, FlavorMultiThread:
	default:
		return fmt.Errorf("%w: flavor %q, want %q or %q", ErrInvalidConfig, c.Flavor, FlavorCurrentThread, FlavorMultiThread)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d must not be negative", ErrInvalidConfig, c.Workers)
	}
	if c.HistoryCapacity < 0 {
		return fmt.Errorf("%w: historyCapacity %d must not be negative", ErrInvalidConfig, c.HistoryCapacity)
	}
	if c.Metrics.Enabled && c.Metrics.PollInterval < 0 {
		return fmt.Errorf("%w: metrics.pollInterval %v must not be negative", ErrInvalidConfig, c.Metrics.PollInterval)
	}
	return nil
}

// EffectiveWorkers resolves Workers == 0 to the CPU count. The current-thread flavor
// always has one worker.
func (c Config) EffectiveWorkers() int {
	if c.Flavor == FlavorCurrentThread {
		return 1
	}
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}
