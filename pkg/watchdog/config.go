package watchdog

import (
	"errors"
	"fmt"
	"time"
)

// Default configuration values.
const (
	DefaultPluginTimeout            = 100 * time.Microsecond
	DefaultPluginMaxTimeouts        = 5
	DefaultPluginQuarantineDuration = 300 * time.Second
	DefaultRtThreadTimeout          = 10 * time.Millisecond
	DefaultHidTimeout               = 50 * time.Millisecond
	DefaultTelemetryTimeout         = 1000 * time.Millisecond
	DefaultHealthCheckInterval      = 100 * time.Millisecond
)

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("invalid watchdog config")

// Config holds the watchdog budgets and timeouts.
type Config struct {
	// PluginTimeout is the per-invocation execution budget.
	PluginTimeout time.Duration

	// PluginMaxTimeouts is the consecutive over-budget count that triggers
	// quarantine.
	PluginMaxTimeouts uint32

	// PluginQuarantineDuration is how long a quarantine lasts.
	PluginQuarantineDuration time.Duration

	RtThreadTimeout  time.Duration
	HidTimeout       time.Duration
	TelemetryTimeout time.Duration

	// HealthCheckInterval gates PerformHealthChecks and paces Run.
	HealthCheckInterval time.Duration
}

// DefaultConfig returns the default budgets.
func DefaultConfig() Config {
	return Config{
		PluginTimeout:            DefaultPluginTimeout,
		PluginMaxTimeouts:        DefaultPluginMaxTimeouts,
		PluginQuarantineDuration: DefaultPluginQuarantineDuration,
		RtThreadTimeout:          DefaultRtThreadTimeout,
		HidTimeout:               DefaultHidTimeout,
		TelemetryTimeout:         DefaultTelemetryTimeout,
		HealthCheckInterval:      DefaultHealthCheckInterval,
	}
}

// Validate rejects zero budgets.
func (c Config) Validate() error {
	switch {
	case c.PluginTimeout <= 0:
		return fmt.Errorf("%w: plugin timeout must be positive", ErrInvalidConfig)
	case c.PluginMaxTimeouts == 0:
		return fmt.Errorf("%w: plugin max timeouts must be positive", ErrInvalidConfig)
	case c.PluginQuarantineDuration <= 0:
		return fmt.Errorf("%w: plugin quarantine duration must be positive", ErrInvalidConfig)
	case c.RtThreadTimeout <= 0:
		return fmt.Errorf("%w: rt thread timeout must be positive", ErrInvalidConfig)
	case c.HidTimeout <= 0:
		return fmt.Errorf("%w: hid timeout must be positive", ErrInvalidConfig)
	case c.TelemetryTimeout <= 0:
		return fmt.Errorf("%w: telemetry timeout must be positive", ErrInvalidConfig)
	case c.HealthCheckInterval <= 0:
		return fmt.Errorf("%w: health check interval must be positive", ErrInvalidConfig)
	}
	return nil
}
