package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Global flag reset pattern: newRootCmd() binds flags via StringVar/BoolVar,
// which reset the global flag variables to their zero values. Tests drive
// commands through cmd.SetArgs() + cmd.Execute() so Cobra parses the flags.

// testEnv isolates config and journal for one in-process run.
type testEnv struct {
	dir     string
	config  string
	journal string
}

func newTestEnv(t *testing.T, configBody string) testEnv {
	t.Helper()

	dir := t.TempDir()
	e := testEnv{
		dir:     dir,
		config:  filepath.Join(dir, "config.toml"),
		journal: filepath.Join(dir, "journal"),
	}

	require.NoError(t, os.WriteFile(e.config, []byte(configBody), 0o600))
	t.Setenv("FXFER_CONFIG", "")
	t.Setenv("FXFER_JOURNAL", e.journal)
	t.Setenv("FXFER_LOG_LEVEL", "")
	t.Setenv("FXFER_BANDWIDTH_LIMIT", "")

	return e
}

func (e testEnv) path(name string) string {
	return filepath.Join(e.dir, name)
}

// execute runs the root command with args and returns stdout.
func (e testEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"--config", e.config, "--quiet"}, args...))

	err := cmd.ExecuteContext(t.Context())

	return out.String(), err
}

func TestBuildLogger_Levels(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		level   string
		enabled slog.Level
		muted   slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 1},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"bogus", slog.LevelWarn, slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			h := buildLogger(tt.level).Handler()
			assert.True(t, h.Enabled(ctx, tt.enabled))
			assert.False(t, h.Enabled(ctx, tt.muted))
		})
	}
}

func TestMustCLIContext_PanicsWithoutContext(t *testing.T) {
	assert.Panics(t, func() { mustCLIContext(context.Background()) })
}

func TestRoot_VerboseOverridesConfigLevel(t *testing.T) {
	e := newTestEnv(t, "[logging]\nlog_level = \"error\"\n")

	cmd := newRootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", e.config, "-v", "--json", "config", "show"})
	require.NoError(t, cmd.ExecuteContext(t.Context()))

	var shown struct {
		Logging struct{ LogLevel string }
	}

	require.NoError(t, json.Unmarshal(out.Bytes(), &shown))
	assert.Equal(t, "debug", shown.Logging.LogLevel)
}

func TestRoot_InvalidConfig(t *testing.T) {
	e := newTestEnv(t, "[transfers]\nparallel = 0\n")

	_, err := e.execute(t, "resolve", "/tmp/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
	assert.Contains(t, err.Error(), "transfers.parallel")
}
