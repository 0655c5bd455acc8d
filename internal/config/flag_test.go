package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_parseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("overrides from flags", func(t *testing.T) {
		os.Args = []string{"testbin", "-d", "/flagged/dir", "-p", "s3", "-r", "5", "-i", "4"}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseFlags(cfg)

		assert.Equal(t, "/flagged/dir", cfg.DataDir)
		assert.Equal(t, "s3", cfg.CloudProvider)
		assert.Equal(t, 5, cfg.SyncMaxRetries)
		assert.Equal(t, 4*time.Second, cfg.SyncBaseDelay)
	})

	t.Run("defaults survive when no flags given", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseFlags(cfg)

		assert.Equal(t, "bucket", cfg.CloudProvider)
		assert.Equal(t, 2*time.Second, cfg.SyncBaseDelay)
	})
}
