package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the env-layered configuration for the sanitizer service.
type Config struct {
	UpstreamURL string

	Host string
	Port int

	LogLevel string

	HistoryCollectionInterval int

	BroadcasterMaxQueueSize int

	UpstreamPingInterval          time.Duration
	UpstreamInitialReconnectDelay time.Duration
	UpstreamMaxReconnectDelay     time.Duration
	UpstreamPingTimeout           time.Duration
	UpstreamCloseTimeout          time.Duration

	PeriodicStatsInterval time.Duration

	// BroadcastTuningPath, if non-empty, is loaded by LoadBroadcastTuning
	// and may override the broadcaster/backoff defaults above without a
	// redeploy. Env vars still win over the file.
	BroadcastTuningPath string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		UpstreamURL: envStr("UPSTREAM_URL", ""),

		Host: envStr("HOST", "0.0.0.0"),
		Port: envInt("PORT", 9017),

		LogLevel: envStr("LOG_LEVEL", "INFO"),

		HistoryCollectionInterval: envInt("HISTORY_COLLECTION_INTERVAL", 10),

		BroadcasterMaxQueueSize: envInt("BROADCASTER_MAX_QUEUE_SIZE", 1000),

		UpstreamPingInterval:          time.Duration(envInt("UPSTREAM_PING_INTERVAL", 20)) * time.Second,
		UpstreamInitialReconnectDelay: time.Duration(envInt("UPSTREAM_INITIAL_RECONNECT_DELAY", 1)) * time.Second,
		UpstreamMaxReconnectDelay:     time.Duration(envInt("UPSTREAM_MAX_RECONNECT_DELAY", 30)) * time.Second,
		UpstreamPingTimeout:           time.Duration(envInt("UPSTREAM_PING_TIMEOUT", 10)) * time.Second,
		UpstreamCloseTimeout:          time.Duration(envInt("UPSTREAM_CLOSE_TIMEOUT", 5)) * time.Second,

		PeriodicStatsInterval: time.Duration(envInt("PERIODIC_STATS_INTERVAL", 300)) * time.Second,

		BroadcastTuningPath: envStr("BROADCAST_TUNING_PATH", ""),
	}
}

// LoadWithTuning calls Load and then layers an optional broadcast-tuning
// YAML file over the result, per cfg.BroadcastTuningPath. A missing or
// unreadable tuning file is not fatal — the built-in/env defaults stand.
func LoadWithTuning() *Config {
	cfg := Load()
	defaultTuning().Apply(cfg)

	if cfg.BroadcastTuningPath == "" {
		return cfg
	}
	tuning, err := LoadBroadcastTuning(cfg.BroadcastTuningPath)
	if err != nil {
		return cfg
	}
	tuning.Apply(cfg)
	return cfg
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
