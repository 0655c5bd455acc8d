package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.NotEmpty(t, c.DataDir)
	assert.Equal(t, "bucket", c.CloudProvider)
	assert.Equal(t, 3, c.SyncMaxRetries)
	assert.Equal(t, 2*time.Second, c.SyncBaseDelay)
	assert.Zero(t, c.SandboxQuotaLimit)
}

func TestDerivedPaths(t *testing.T) {
	c := Config{DataDir: "/tmp/diary"}
	assert.Equal(t, "/tmp/diary/state.db", c.StateDBPath())
	assert.Equal(t, "/tmp/diary/library", c.SandboxRoot())
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "bucket", cfg.CloudProvider)
	assert.Equal(t, 3, cfg.SyncMaxRetries)
}
