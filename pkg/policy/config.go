package policy

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/openracing/wheelsafe/pkg/torque"
)

// Default limits.
const (
	DefaultMaxSafeTorqueNm       = 5.0
	DefaultMaxHighTorqueNm       = 25.0
	DefaultMaxTemperatureC       = 80.0
	DefaultMaxHandsOffDuration   = 5 * time.Second
	DefaultMinHighTorqueInterval = 2 * time.Second
)

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("invalid policy config")

// Config holds the tunable torque limits.
type Config struct {
	// MaxSafeTorque is the ceiling while high-torque mode is off.
	MaxSafeTorque torque.Value

	// MaxHighTorque is the ceiling while high-torque mode is on. A device
	// must advertise at least this much to be admitted.
	MaxHighTorque torque.Value

	// MaxTemperatureC is the exclusive upper bound for admission.
	MaxTemperatureC float64

	// MaxHandsOffDuration is the longest hands-off period still admitted.
	MaxHandsOffDuration time.Duration

	// MinHighTorqueInterval is the cooldown between successful admissions.
	MinHighTorqueInterval time.Duration
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		MaxSafeTorque:         torque.MustNew(DefaultMaxSafeTorqueNm),
		MaxHighTorque:         torque.MustNew(DefaultMaxHighTorqueNm),
		MaxTemperatureC:       DefaultMaxTemperatureC,
		MaxHandsOffDuration:   DefaultMaxHandsOffDuration,
		MinHighTorqueInterval: DefaultMinHighTorqueInterval,
	}
}

// Validate checks the limits for internal consistency.
func (c Config) Validate() error {
	if c.MaxSafeTorque.Nm() <= 0 {
		return fmt.Errorf("%w: max safe torque must be positive, got %s", ErrInvalidConfig, c.MaxSafeTorque)
	}
	if c.MaxHighTorque.Less(c.MaxSafeTorque) {
		return fmt.Errorf("%w: max high torque %s below max safe torque %s",
			ErrInvalidConfig, c.MaxHighTorque, c.MaxSafeTorque)
	}
	if math.IsNaN(c.MaxTemperatureC) || math.IsInf(c.MaxTemperatureC, 0) || c.MaxTemperatureC <= 0 {
		return fmt.Errorf("%w: max temperature must be a positive number, got %v", ErrInvalidConfig, c.MaxTemperatureC)
	}
	if c.MaxHandsOffDuration < 0 {
		return fmt.Errorf("%w: negative max hands-off duration", ErrInvalidConfig)
	}
	if c.MinHighTorqueInterval < 0 {
		return fmt.Errorf("%w: negative min high-torque interval", ErrInvalidConfig)
	}
	return nil
}
