package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Fetch.TopK)
	assert.Equal(t, 3, cfg.Fetch.Retries)
	assert.Equal(t, 40*time.Second, cfg.Fetch.Timeout())
	assert.Equal(t, "auto", cfg.Fetch.ClaimSources)
	assert.True(t, cfg.Fetch.Resume)
	assert.False(t, cfg.Fetch.Force)
	assert.InDelta(t, 0.6, cfg.Fetch.MinClaimsOKRatio, 1e-9)

	assert.InDelta(t, 0.6, cfg.Matrix.YesThreshold, 1e-9)
	assert.InDelta(t, 0.25, cfg.Matrix.PartialThreshold, 1e-9)
	assert.Equal(t, 90, cfg.Matrix.SnippetWindow, "snippet window")
	assert.InDelta(t, 0.3, cfg.Matrix.UnionThreshold, 1e-9)
	assert.InDelta(t, 0.2, cfg.Matrix.CoThreshold, 1e-9)

	assert.Equal(t, "priorart.db", cfg.Store.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_ConfigFileOverride(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(dir+"/config.yaml", []byte(`
fetch:
  topk: 25
  claim_sources: "cnipa,google"
matrix:
  yes_threshold: 0.7
log:
  level: debug
`), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Fetch.TopK)
	assert.Equal(t, "cnipa,google", cfg.Fetch.ClaimSources)
	assert.InDelta(t, 0.7, cfg.Matrix.YesThreshold, 1e-9)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched keys keep defaults.
	assert.Equal(t, 3, cfg.Fetch.Retries)
}

func TestLoad_EnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PRIORART_FETCH_TOPK", "7")
	t.Setenv("PRIORART_LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Fetch.TopK)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestFetchConfig_DurationHelpers(t *testing.T) {
	fc := FetchConfig{TimeoutSecs: 30, BackoffSecs: 1.5, SleepMillis: 250}
	assert.Equal(t, 30*time.Second, fc.Timeout())
	assert.Equal(t, 1500*time.Millisecond, fc.Backoff())
	assert.Equal(t, 250*time.Millisecond, fc.Sleep())
}

func TestInitLogger_BadLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "verbose", Format: "json"}))
	assert.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
}

// chdirTemp moves the test into an empty directory so a developer's local
// config.yaml cannot leak into assertions.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}
