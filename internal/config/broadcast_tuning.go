package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed broadcast_tuning.yaml
var defaultTuningData []byte

func secDuration(n int) time.Duration { return time.Duration(n) * time.Second }

// BroadcastTuning is an optional hand-editable override for broadcaster and
// upstream-reconnect tuning, layered under environment variables and over
// the built-in defaults in Load.
type BroadcastTuning struct {
	MaxQueueSize          *int `yaml:"broadcaster_max_queue_size"`
	InitialReconnectDelay *int `yaml:"upstream_initial_reconnect_delay_sec"`
	MaxReconnectDelay     *int `yaml:"upstream_max_reconnect_delay_sec"`
	PingInterval          *int `yaml:"upstream_ping_interval_sec"`
}

// defaultTuning returns the embedded baked-in tuning values, parsed once per
// call. These mirror the hardcoded fallbacks in Load and exist so an
// operator can diff/copy a starting broadcast_tuning.yaml rather than
// guessing the shape of the file from scratch.
func defaultTuning() *BroadcastTuning {
	var t BroadcastTuning
	_ = yaml.Unmarshal(defaultTuningData, &t)
	return &t
}

func LoadBroadcastTuning(path string) (*BroadcastTuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read broadcast tuning: %w", err)
	}

	var tuning BroadcastTuning
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return nil, fmt.Errorf("parse broadcast tuning: %w", err)
	}

	return &tuning, nil
}

// Apply overrides cfg's broadcaster/backoff fields from any non-nil tuning
// values, skipping any key the operator already pinned via environment
// variable — the env layer in Load always wins over the tuning file.
func (t *BroadcastTuning) Apply(cfg *Config) {
	if t == nil {
		return
	}
	if t.MaxQueueSize != nil && os.Getenv("BROADCASTER_MAX_QUEUE_SIZE") == "" {
		cfg.BroadcasterMaxQueueSize = *t.MaxQueueSize
	}
	if t.InitialReconnectDelay != nil && os.Getenv("UPSTREAM_INITIAL_RECONNECT_DELAY") == "" {
		cfg.UpstreamInitialReconnectDelay = secDuration(*t.InitialReconnectDelay)
	}
	if t.MaxReconnectDelay != nil && os.Getenv("UPSTREAM_MAX_RECONNECT_DELAY") == "" {
		cfg.UpstreamMaxReconnectDelay = secDuration(*t.MaxReconnectDelay)
	}
	if t.PingInterval != nil && os.Getenv("UPSTREAM_PING_INTERVAL") == "" {
		cfg.UpstreamPingInterval = secDuration(*t.PingInterval)
	}
}
