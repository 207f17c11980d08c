package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.bridge/internal/egm"
)

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "egm-bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":7000"
  rcv_buf: 1048576
robot:
  axes: 7
  demo_outputs: true
  velocity_outputs: true
  nominal_sample_time: 8ms
telemetry:
  enabled: true
  sqlite_path: /var/lib/egm/cycles.db
  buffer: 5000
  max_duration: 30s
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.Equal(t, 1048576, cfg.Server.RcvBuf)
	assert.Equal(t, 7, cfg.Robot.Axes)
	assert.True(t, cfg.Robot.UseDemoOutputs)
	assert.Equal(t, 8*time.Millisecond, cfg.Robot.NominalSampleTime)
	// Unset keys keep their defaults.
	assert.Equal(t, 500*time.Millisecond, cfg.Robot.ConnectionTimeout)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "/var/lib/egm/cycles.db", cfg.Telemetry.SQLitePath)
	assert.Equal(t, 30*time.Second, cfg.Telemetry.MaxDuration)
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":6510", cfg.Server.Address)
	assert.Equal(t, 6, cfg.Robot.Axes)
	assert.Equal(t, 4*time.Millisecond, cfg.Robot.NominalSampleTime)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_MalformedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: valid"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestInterfaceMapping(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Robot: RobotConfig{
			Axes:               7,
			UseVelocityOutputs: true,
			NominalSampleTime:  8 * time.Millisecond,
			ConnectionTimeout:  time.Second,
		},
		Telemetry: TelemetryConfig{Enabled: true, MaxDuration: time.Minute},
	}

	got := cfg.Interface()
	assert.Equal(t, egm.AxesSeven, got.Axes)
	assert.True(t, got.UseVelocityOutputs)
	assert.True(t, got.UseLogging)
	assert.Equal(t, time.Minute, got.MaxLoggingDuration)
	assert.Equal(t, 8*time.Millisecond, got.NominalSampleTime)
	assert.Equal(t, time.Second, got.ConnectionTimeout)
}
