// Package config loads runtime settings for the video diary CLI. Sources
// are layered: built-in defaults, then an optional JSON file, then
// command-line flags, with later sources taking precedence.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the video diary CLI.
type Config struct {
	// DataDir is the sandboxed app directory root; the state database and
	// the sandbox provider's files live under it.
	DataDir string

	// SandboxQuotaLimit caps the sandbox provider's disk usage in bytes.
	// Zero means unbounded.
	SandboxQuotaLimit int64

	// CloudProvider selects the remote adapter: "bucket" or "s3".
	CloudProvider string

	// BucketBaseURL is the HTTP bucket API endpoint.
	BucketBaseURL string

	// S3 connection settings, used when CloudProvider is "s3".
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	// SyncMaxRetries caps upload attempts per queue item.
	SyncMaxRetries int
	// SyncBaseDelay seeds the exponential retry backoff.
	SyncBaseDelay time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	c.DataDir = filepath.Join(home, ".videodiary")
	c.SandboxQuotaLimit = 0
	c.CloudProvider = "bucket"
	c.BucketBaseURL = "http://127.0.0.1:8080"
	c.S3Region = "us-east-1"
	c.S3Bucket = "videodiary"
	c.SyncMaxRetries = 3
	c.SyncBaseDelay = 2 * time.Second
}

// StateDBPath returns the location of the state database.
func (c *Config) StateDBPath() string {
	return filepath.Join(c.DataDir, "state.db")
}

// SandboxRoot returns the sandbox provider's root directory.
func (c *Config) SandboxRoot() string {
	return filepath.Join(c.DataDir, "library")
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
