package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wheelsafe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5.0, cfg.Policy.MaxSafeTorqueNm)
	assert.Equal(t, 25.0, cfg.Policy.MaxHighTorqueNm)
	assert.Equal(t, 80.0, cfg.Policy.MaxTemperatureC)
	assert.Equal(t, 5*time.Second, cfg.Policy.MaxHandsOffDuration)
	assert.Equal(t, 2*time.Second, cfg.Policy.MinHighTorqueInterval)

	assert.Equal(t, 100*time.Microsecond, cfg.Watchdog.PluginTimeout)
	assert.Equal(t, uint32(5), cfg.Watchdog.PluginMaxTimeouts)
	assert.Equal(t, 300*time.Second, cfg.Watchdog.PluginQuarantineDuration)
	assert.Equal(t, 10*time.Millisecond, cfg.Watchdog.RtThreadTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Watchdog.HidTimeout)
	assert.Equal(t, time.Second, cfg.Watchdog.TelemetryTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Watchdog.HealthCheckInterval)

	assert.Empty(t, cfg.Log.FaultLogPath)
	assert.Equal(t, 1024, cfg.Log.QueueSize)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
policy:
  max_high_torque_nm: 18
  min_high_torque_interval: 3s
watchdog:
  plugin_timeout: 250us
  plugin_max_timeouts: 3
log:
  fault_log_path: /tmp/session.flog
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 18.0, cfg.Policy.MaxHighTorqueNm)
	assert.Equal(t, 3*time.Second, cfg.Policy.MinHighTorqueInterval)
	assert.Equal(t, 5.0, cfg.Policy.MaxSafeTorqueNm, "untouched key keeps default")
	assert.Equal(t, 250*time.Microsecond, cfg.Watchdog.PluginTimeout)
	assert.Equal(t, uint32(3), cfg.Watchdog.PluginMaxTimeouts)
	assert.Equal(t, 50*time.Millisecond, cfg.Watchdog.HidTimeout)
	assert.Equal(t, "/tmp/session.flog", cfg.Log.FaultLogPath)

	pc, err := cfg.Policy.ToPolicy()
	require.NoError(t, err)
	assert.Equal(t, 18.0, pc.MaxHighTorque.Nm())
	assert.Equal(t, uint32(3), cfg.Watchdog.ToWatchdog().PluginMaxTimeouts)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "policy:\n  max_torque: 3\n"},
		{"bad duration", "watchdog:\n  hid_timeout: soon\n"},
		{"torque out of range", "policy:\n  max_high_torque_nm: 80\n"},
		{"inverted limits", "policy:\n  max_safe_torque_nm: 20\n  max_high_torque_nm: 10\n"},
		{"zero budget", "watchdog:\n  plugin_timeout: 0s\n"},
		{"zero max timeouts", "watchdog:\n  plugin_max_timeouts: 0\n"},
		{"negative queue", "log:\n  queue_size: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestValidateWrapsErrInvalid(t *testing.T) {
	cfg := Default()
	cfg.Watchdog.HealthCheckInterval = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg = Default()
	cfg.Policy.MaxTemperatureC = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)

	_, err := Parse(strings.NewReader("policy:\n  max_safe_torque_nm: 0\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
