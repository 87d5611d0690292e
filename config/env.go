package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays TASKRT_* environment variables onto cfg. Unparsable values are ignored.
func FromEnv(cfg *Config) {
	if v := os.Getenv("TASKRT_FLAVOR"); v != "" {
		cfg.Flavor = v
	}
	if v := os.Getenv("TASKRT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("TASKRT_TRACK_DEADLINES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.TrackDeadlines = b
		}
	}
	if v := os.Getenv("TASKRT_HISTORY_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistoryCapacity = n
		}
	}
	if v := os.Getenv("TASKRT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TASKRT_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("TASKRT_METRICS_NAMESPACE"); v != "" {
		cfg.Metrics.Namespace = v
	}
	if v := os.Getenv("TASKRT_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("TASKRT_METRICS_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Metrics.PollInterval = d
		}
	}
}
