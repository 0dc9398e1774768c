package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.company-information.service.gov.uk", cfg.Registry.BaseURL)
	assert.Equal(t, 30, cfg.Registry.TimeoutSecs)
	assert.Equal(t, 5, cfg.Registry.SmoothRPS)
	assert.Equal(t, 600, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 300, cfg.RateLimit.WindowSecs)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, 120, cfg.Batch.JobTimeoutSecs)
	assert.Equal(t, 1, cfg.Network.MaxDepth)
	assert.Equal(t, 500, cfg.Network.MaxEntities)
	assert.True(t, cfg.Network.ActiveOnly)
	assert.InDelta(t, 0.85, cfg.Detect.NameThreshold, 0.001)
	assert.Equal(t, "signalwatch.db", cfg.Checkpoint.Path)
	assert.Equal(t, 7, cfg.Cache.TTLDays)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
registry:
  key: test-key
log:
  level: debug
  format: console
batch:
  concurrency: 10
network:
  max_depth: 2
  active_only: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.Registry.Key)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 10, cfg.Batch.Concurrency)
	assert.Equal(t, 2, cfg.Network.MaxDepth)
	assert.False(t, cfg.Network.ActiveOnly)
	// Defaults still apply for unset values
	assert.Equal(t, 600, cfg.RateLimit.MaxRequests)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
registry:
  key: file-key
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SIGNALWATCH_REGISTRY_KEY", "env-key")
	t.Setenv("SIGNALWATCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "env-key", cfg.Registry.Key)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("SIGNALWATCH_BATCH_CONCURRENCY", "12")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Batch.Concurrency)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Registry.BaseURL = "https://api.company-information.service.gov.uk"
	cfg.Registry.Key = "test-key"
	cfg.RateLimit.MaxRequests = 600
	cfg.RateLimit.WindowSecs = 300
	cfg.Batch.Concurrency = 4
	cfg.Network.MaxDepth = 1
	cfg.Network.MaxEntities = 500
	cfg.Detect.NameThreshold = 0.85
	cfg.Checkpoint.Path = "signalwatch.db"
	return cfg
}

func TestValidateScan_AllPresent(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("scan"))
}

func TestValidateScan_MissingKey(t *testing.T) {
	cfg := validDefaults()
	cfg.Registry.Key = ""

	err := cfg.Validate("scan")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "registry.key is required")
}

func TestValidateScan_ConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.Concurrency = 0
	err := cfg.Validate("scan")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.concurrency must be between 1 and 50")

	cfg.Batch.Concurrency = 51
	err = cfg.Validate("scan")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.concurrency must be between 1 and 50")

	cfg.Batch.Concurrency = 50
	assert.NoError(t, cfg.Validate("scan"))
}

func TestValidateScan_Threshold(t *testing.T) {
	cfg := validDefaults()

	cfg.Detect.NameThreshold = 0
	err := cfg.Validate("scan")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "name_threshold")

	cfg.Detect.NameThreshold = 1.1
	err = cfg.Validate("scan")
	assert.Error(t, err)

	cfg.Detect.NameThreshold = 1.0
	assert.NoError(t, cfg.Validate("scan"))
}

func TestValidateScan_NetworkBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Network.MaxDepth = -1
	err := cfg.Validate("scan")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "network.max_depth")

	cfg.Network.MaxDepth = 0
	cfg.Network.MaxEntities = 0
	err = cfg.Validate("scan")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "network.max_entities")
}

func TestValidateResume_SameAsScan(t *testing.T) {
	cfg := validDefaults()
	cfg.Registry.Key = ""
	assert.Error(t, cfg.Validate("resume"))
}

func TestValidateStatus(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("status"))

	cfg.Checkpoint.Path = ""
	err := cfg.Validate("status")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "checkpoint.path is required")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
