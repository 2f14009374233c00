package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/amdpower/internal/config"
	"codeberg.org/mutker/amdpower/internal/errors"
	"codeberg.org/mutker/amdpower/internal/msr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "amdpower.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	t.Setenv("AMDPOWER_CONFIG", configPath)
}

func TestLoad(t *testing.T) {
	writeConfig(t, `
interval = 5
monitor = true
log_level = "debug"
msr_path = "/tmp/cpu/%d/msr"
max_cpus = 64
metrics = true
metrics_db = "/path/to/metrics.db"
metrics_batch_size = 3
metrics_retention = 48
listen_address = "127.0.0.1:9456"
`)

	cfg, err := config.LoadArgs(nil)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Interval, "Expected Interval 5")
	assert.True(t, cfg.Monitor, "Expected Monitor true")
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel debug")
	assert.Equal(t, "/tmp/cpu/%d/msr", cfg.DevicePath)
	assert.Equal(t, config.DefaultTopologyPath, cfg.TopologyPath)
	assert.Equal(t, 64, cfg.MaxCPUs)
	assert.True(t, cfg.Metrics, "Expected Metrics true")
	assert.Equal(t, "/path/to/metrics.db", cfg.MetricsDB)
	assert.Equal(t, 3, cfg.MetricsBatchSize)
	assert.Equal(t, config.DefaultBatchTimeout, cfg.MetricsBatchTimeout)
	assert.Equal(t, 48, cfg.MetricsRetention)
	assert.Equal(t, "127.0.0.1:9456", cfg.ListenAddress)
}

func TestLoadDefaults(t *testing.T) {
	// Ensure no explicit config file is used
	t.Setenv("AMDPOWER_CONFIG", "")

	cfg, err := config.LoadArgs(nil)
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, config.DefaultInterval, cfg.Interval)
	assert.False(t, cfg.Monitor)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	// device defaults come from the sampler itself
	assert.Equal(t, msr.DefaultDevicePath, cfg.DevicePath)
	assert.Equal(t, msr.DefaultTopologyPath, cfg.TopologyPath)
	assert.Equal(t, msr.DefaultMaxCPUs, cfg.MaxCPUs)
	assert.False(t, cfg.Metrics)
	assert.Equal(t, config.DefaultMetricsDB, cfg.MetricsDB)
	assert.Equal(t, config.DefaultBatchSize, cfg.MetricsBatchSize)
	assert.Empty(t, cfg.ListenAddress)
}

func TestFlagsOverrideFile(t *testing.T) {
	writeConfig(t, `
interval = 5
log_level = "error"
`)

	cfg, err := config.LoadArgs([]string{"--log-level", "debug", "--monitor", "--max-cpus=8"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
	assert.Equal(t, 5, cfg.Interval)
	assert.True(t, cfg.Monitor)
	assert.Equal(t, 8, cfg.MaxCPUs)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	writeConfig(t, `interval = 5`)
	t.Setenv("AMDPOWER_INTERVAL", "9")

	cfg, err := config.LoadArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Interval)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	writeConfig(t, `
This is not a valid TOML file
`)

	_, err := config.LoadArgs(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read configuration")
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("AMDPOWER_CONFIG", filepath.Join(t.TempDir(), "absent.toml"))

	_, err := config.LoadArgs(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		args    []string
		code    errors.ErrorCode
	}{
		{name: "invalid log level", content: `log_level = "invalid"`, code: errors.ErrInvalidLogLevel},
		{name: "zero interval", args: []string{"--interval", "0"}, code: errors.ErrInvalidInterval},
		{name: "negative max cpus", content: `max_cpus = -1`, code: errors.ErrInvalidConfig},
		{name: "negative retention", content: `metrics_retention = -1`, code: errors.ErrInvalidConfig},
		{name: "metrics without database", content: "metrics = true\nmetrics_db = \"\"", code: errors.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeConfig(t, tt.content)

			_, err := config.LoadArgs(tt.args)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestUnknownFlag(t *testing.T) {
	t.Setenv("AMDPOWER_CONFIG", "")

	_, err := config.LoadArgs([]string{"--fanspeed", "80"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrParseFlags))
}

func TestProviderReflectsLoadedValues(t *testing.T) {
	writeConfig(t, `
interval = 7
monitor = true
metrics_retention = 12
listen_address = ":9456"
`)

	cfg, err := config.LoadArgs([]string{"--max-cpus", "16"})
	require.NoError(t, err)

	var p config.Provider = cfg
	assert.Equal(t, 7, p.GetInterval())
	assert.True(t, p.IsMonitorMode())
	assert.Equal(t, 16, p.GetMaxCPUs())
	assert.Equal(t, msr.DefaultDevicePath, p.GetDevicePath())
	assert.Equal(t, 12, p.GetMetricsRetention())
	assert.Equal(t, ":9456", p.GetListenAddress())
}
