package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty chunk size", func(c *Config) { c.Transfers.ChunkSize = "" }, "transfers.chunk_size: must not be empty"},
		{"chunk too small", func(c *Config) { c.Transfers.ChunkSize = "1KiB" }, "must be between 4KiB and 64MiB"},
		{"chunk too large", func(c *Config) { c.Transfers.ChunkSize = "128MiB" }, "must be between 4KiB and 64MiB"},
		{"chunk unparseable", func(c *Config) { c.Transfers.ChunkSize = "big" }, "invalid size"},
		{"bad min free", func(c *Config) { c.Transfers.MinFreeSpace = "-1GB" }, "transfers.min_free_space"},
		{"bad rate", func(c *Config) { c.Transfers.BandwidthLimit = "fast" }, "transfers.bandwidth_limit"},
		{"parallel zero", func(c *Config) { c.Transfers.Parallel = 0 }, "transfers.parallel: must be at least 1"},
		{"parallel huge", func(c *Config) { c.Transfers.Parallel = 65 }, "transfers.parallel: must be at most 64"},
		{"negative max path", func(c *Config) { c.Paths.MaxPath = -1 }, "paths.max_path"},
		{"negative retention", func(c *Config) { c.Journal.RetentionDays = -1 }, "journal.retention_days"},
		{"bad log level", func(c *Config) { c.Logging.LogLevel = "verbose" }, "logging.log_level: must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_AccumulatesErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transfers.Parallel = 0
	cfg.Logging.LogLevel = "loud"
	cfg.Transfers.BandwidthLimit = "x"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transfers.parallel")
	assert.Contains(t, err.Error(), "logging.log_level")
	assert.Contains(t, err.Error(), "transfers.bandwidth_limit")
}

func TestValidate_BoundaryChunkSizes(t *testing.T) {
	for _, size := range []string{"4KiB", "64MiB"} {
		cfg := DefaultConfig()
		cfg.Transfers.ChunkSize = size
		assert.NoError(t, Validate(cfg), size)
	}
}

func TestValidateResolved_JournalDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Journal.Dir = "relative"

	err := ValidateResolved(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal.dir")

	cfg.Journal.Dir = "/abs"
	assert.NoError(t, ValidateResolved(cfg))

	cfg.Journal.Dir = ""
	cfg.Journal.Enabled = false
	assert.NoError(t, ValidateResolved(cfg))
}
