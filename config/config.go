// Package config loads the reference-manager's TOML-configured options and,
// optionally, watches the config file for hot reload. Grounded on
// michaelbomholt665-code-watch's internal/config package (same
// toml.Decode-into-struct load pattern and defaulting) and its
// internal/core/config/watcher.go (same fsnotify-on-directory,
// debounced-reload watcher).
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Options is the top-level configuration for a reference-manager instance.
type Options struct {
	Eviction EvictionOptions `toml:"eviction"`
	Port     PortOptions     `toml:"port"`
	Log      LogOptions      `toml:"log"`
}

// EvictionOptions mirrors eviction.Options, expressed as plain TOML-friendly
// fields (eviction.Options itself uses a rate.Limiter and a typed WriteMode
// that don't round-trip through TOML directly).
type EvictionOptions struct {
	BatchSize           int           `toml:"batch_size"`
	WorkerCount         int           `toml:"worker_count"`
	MaxBackpressureWait time.Duration `toml:"max_backpressure_wait"`
	DirtyOnly           bool          `toml:"dirty_only"`
	NotifyRatePerSecond float64       `toml:"notify_rate_per_second"`
	NotifyBurst         int           `toml:"notify_burst"`
}

// PortOptions configures the decorators layered over the base Persistence
// Port (see package port).
type PortOptions struct {
	Backend        string   `toml:"backend"` // "memory", "badger", "redis", "s3", "cassandra"
	Path           string   `toml:"path"`     // badger directory
	Address        string   `toml:"address"`  // redis address
	Bucket         string   `toml:"bucket"`   // s3 bucket
	Prefix         string   `toml:"prefix"`   // s3 key prefix
	ClusterHosts   []string `toml:"cluster_hosts"` // cassandra contact points
	Keyspace       string   `toml:"keyspace"`      // cassandra keyspace
	RetryEnabled   bool     `toml:"retry_enabled"`
	MaxRetries     uint64   `toml:"max_retries"`
	Compress       bool     `toml:"compress"`
	MetricsEnabled bool     `toml:"metrics_enabled"`
}


// LogOptions holds the log level named in the config file. Loading it does
// not change the logger: cmd/refgraphd does not read it, and the level is
// set only by ConfigureLogging (from REFGRAPH_LOG_LEVEL) and SetLogLevel.
type LogOptions struct {
	Level string `toml:"level"`
}

// Default returns the baseline configuration, matching the defaults
// documented on eviction.Options and port's decorators.
func Default() Options {
	return Options{
		Eviction: EvictionOptions{
			BatchSize:   100000,
			WorkerCount: 0, // 0 means runtime.NumCPU(), resolved by eviction.Options.withDefaults
		},
		Port: PortOptions{
			Backend:    "memory",
			MaxRetries: 5,
		},
		Log: LogOptions{Level: "INFO"},
	}
}

// Load reads and decodes a TOML file at path into Options, starting from
// Default() so an absent section falls back to its default value.
func Load(path string) (Options, error) {
	opts := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}
	if _, err := toml.Decode(string(data), &opts); err != nil {
		return opts, err
	}
	return opts, nil
}
