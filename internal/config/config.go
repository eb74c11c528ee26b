// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env.
// - External errors are wrapped via this package's sentinel kinds.
package config

import "runtime"

// Config contains process configuration for the evaluation service.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9090".
	Addr string `koanf:"addr"`

	// DefaultEstimator is the CRPS estimator applied when a request names
	// none. Must be one of the closed estimator set.
	DefaultEstimator string `koanf:"default_estimator"`

	// WorkerCount bounds concurrent chunk evaluation within one request.
	WorkerCount int `koanf:"worker_count"`

	// ChunkSize is the number of batch elements handed to one worker.
	ChunkSize int `koanf:"chunk_size"`

	// MaxBatchSize caps the total number of elements accepted per request.
	MaxBatchSize int `koanf:"max_batch_size"`

	// MetricsEnabled toggles Prometheus instrumentation.
	MetricsEnabled bool `koanf:"metrics_enabled"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9090",
		DefaultEstimator: "pwm",
		WorkerCount:      runtime.NumCPU(),
		ChunkSize:        1024,
		MaxBatchSize:     10_000_000,
		MetricsEnabled:   true,
	}
}
