// Package config loads the wheelsafe configuration file.
//
// The file is YAML with three sections:
//
//	policy:
//	  max_safe_torque_nm: 5
//	  max_high_torque_nm: 25
//	  max_temperature_c: 80
//	  max_hands_off_duration: 5s
//	  min_high_torque_interval: 2s
//	watchdog:
//	  plugin_timeout: 100us
//	  plugin_max_timeouts: 5
//	  plugin_quarantine_duration: 300s
//	  rt_thread_timeout: 10ms
//	  hid_timeout: 50ms
//	  telemetry_timeout: 1000ms
//	  health_check_interval: 100ms
//	log:
//	  fault_log_path: /var/log/wheelsafe/session.flog
//	  queue_size: 1024
//
// Omitted keys keep their defaults. Durations use Go duration syntax.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openracing/wheelsafe/pkg/faultlog"
	"github.com/openracing/wheelsafe/pkg/policy"
	"github.com/openracing/wheelsafe/pkg/torque"
	"github.com/openracing/wheelsafe/pkg/watchdog"
)

// ErrInvalid is returned when a configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete configuration.
type Config struct {
	Policy   PolicyConfig   `yaml:"policy"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Log      LogConfig      `yaml:"log"`
}

// PolicyConfig holds torque limits.
type PolicyConfig struct {
	MaxSafeTorqueNm       float64       `yaml:"max_safe_torque_nm"`
	MaxHighTorqueNm       float64       `yaml:"max_high_torque_nm"`
	MaxTemperatureC       float64       `yaml:"max_temperature_c"`
	MaxHandsOffDuration   time.Duration `yaml:"max_hands_off_duration"`
	MinHighTorqueInterval time.Duration `yaml:"min_high_torque_interval"`
}

// WatchdogConfig holds watchdog budgets and timeouts.
type WatchdogConfig struct {
	PluginTimeout            time.Duration `yaml:"plugin_timeout"`
	PluginMaxTimeouts        uint32        `yaml:"plugin_max_timeouts"`
	PluginQuarantineDuration time.Duration `yaml:"plugin_quarantine_duration"`
	RtThreadTimeout          time.Duration `yaml:"rt_thread_timeout"`
	HidTimeout               time.Duration `yaml:"hid_timeout"`
	TelemetryTimeout         time.Duration `yaml:"telemetry_timeout"`
	HealthCheckInterval      time.Duration `yaml:"health_check_interval"`
}

// LogConfig controls the fault event log.
type LogConfig struct {
	// FaultLogPath is the .flog file to append to. Empty disables the file.
	FaultLogPath string `yaml:"fault_log_path"`

	// QueueSize is the async fault log queue capacity.
	QueueSize int `yaml:"queue_size"`
}

// Default returns the default configuration.
func Default() *Config {
	p := policy.DefaultConfig()
	w := watchdog.DefaultConfig()
	return &Config{
		Policy: PolicyConfig{
			MaxSafeTorqueNm:       p.MaxSafeTorque.Nm(),
			MaxHighTorqueNm:       p.MaxHighTorque.Nm(),
			MaxTemperatureC:       p.MaxTemperatureC,
			MaxHandsOffDuration:   p.MaxHandsOffDuration,
			MinHighTorqueInterval: p.MinHighTorqueInterval,
		},
		Watchdog: WatchdogConfig{
			PluginTimeout:            w.PluginTimeout,
			PluginMaxTimeouts:        w.PluginMaxTimeouts,
			PluginQuarantineDuration: w.PluginQuarantineDuration,
			RtThreadTimeout:          w.RtThreadTimeout,
			HidTimeout:               w.HidTimeout,
			TelemetryTimeout:         w.TelemetryTimeout,
			HealthCheckInterval:      w.HealthCheckInterval,
		},
		Log: LogConfig{
			QueueSize: faultlog.DefaultQueueSize,
		},
	}
}

// Load reads path, overlays it onto Default and validates the result.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse is Load for an already open reader.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := c.Policy.ToPolicy(); err != nil {
		return err
	}
	if err := c.Watchdog.ToWatchdog().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Log.QueueSize < 0 {
		return fmt.Errorf("%w: log.queue_size must not be negative", ErrInvalid)
	}
	return nil
}

// ToPolicy converts to policy.Config and validates it.
func (p PolicyConfig) ToPolicy() (policy.Config, error) {
	safe, err := torque.New(p.MaxSafeTorqueNm)
	if err != nil {
		return policy.Config{}, fmt.Errorf("%w: policy.max_safe_torque_nm: %w", ErrInvalid, err)
	}
	high, err := torque.New(p.MaxHighTorqueNm)
	if err != nil {
		return policy.Config{}, fmt.Errorf("%w: policy.max_high_torque_nm: %w", ErrInvalid, err)
	}
	cfg := policy.Config{
		MaxSafeTorque:         safe,
		MaxHighTorque:         high,
		MaxTemperatureC:       p.MaxTemperatureC,
		MaxHandsOffDuration:   p.MaxHandsOffDuration,
		MinHighTorqueInterval: p.MinHighTorqueInterval,
	}
	if err := cfg.Validate(); err != nil {
		return policy.Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

// ToWatchdog converts to watchdog.Config.
func (w WatchdogConfig) ToWatchdog() watchdog.Config {
	return watchdog.Config{
		PluginTimeout:            w.PluginTimeout,
		PluginMaxTimeouts:        w.PluginMaxTimeouts,
		PluginQuarantineDuration: w.PluginQuarantineDuration,
		RtThreadTimeout:          w.RtThreadTimeout,
		HidTimeout:               w.HidTimeout,
		TelemetryTimeout:         w.TelemetryTimeout,
		HealthCheckInterval:      w.HealthCheckInterval,
	}
}
