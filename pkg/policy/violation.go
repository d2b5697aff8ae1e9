package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/openracing/wheelsafe/pkg/torque"
)

// Kind identifies why a request was denied.
type Kind uint8

const (
	KindDeviceNotOperational Kind = iota + 1
	KindActiveFaults
	KindTemperatureTooHigh
	KindHandsOffTooLong
	KindRateLimited
	KindDeviceCapabilityInsufficient
	KindTorqueExceedsLimit
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindDeviceNotOperational:
		return "DEVICE_NOT_OPERATIONAL"
	case KindActiveFaults:
		return "ACTIVE_FAULTS"
	case KindTemperatureTooHigh:
		return "TEMPERATURE_TOO_HIGH"
	case KindHandsOffTooLong:
		return "HANDS_OFF_TOO_LONG"
	case KindRateLimited:
		return "RATE_LIMITED"
	case KindDeviceCapabilityInsufficient:
		return "DEVICE_CAPABILITY_INSUFFICIENT"
	case KindTorqueExceedsLimit:
		return "TORQUE_EXCEEDS_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// Sentinels for matching a *Violation with errors.Is.
var (
	ErrDeviceNotOperational         = errors.New("device not operational")
	ErrActiveFaults                 = errors.New("device has active faults")
	ErrTemperatureTooHigh           = errors.New("temperature too high")
	ErrHandsOffTooLong              = errors.New("hands off too long")
	ErrRateLimited                  = errors.New("high torque rate limited")
	ErrDeviceCapabilityInsufficient = errors.New("device capability insufficient")
	ErrTorqueExceedsLimit           = errors.New("torque exceeds limit")
)

func (k Kind) sentinel() error {
	switch k {
	case KindDeviceNotOperational:
		return ErrDeviceNotOperational
	case KindActiveFaults:
		return ErrActiveFaults
	case KindTemperatureTooHigh:
		return ErrTemperatureTooHigh
	case KindHandsOffTooLong:
		return ErrHandsOffTooLong
	case KindRateLimited:
		return ErrRateLimited
	case KindDeviceCapabilityInsufficient:
		return ErrDeviceCapabilityInsufficient
	case KindTorqueExceedsLimit:
		return ErrTorqueExceedsLimit
	default:
		return nil
	}
}

// Violation is a denied admission or torque request. Only the fields
// relevant to Kind are set.
type Violation struct {
	Kind Kind

	// KindDeviceNotOperational
	State torque.DeviceState

	// KindActiveFaults
	Flags torque.FaultFlags

	// KindTemperatureTooHigh
	TemperatureC      float64
	TemperatureLimitC float64

	// KindHandsOffTooLong (Duration/Limit) and KindRateLimited
	// (Duration is elapsed since last admission, Limit the cooldown).
	Duration time.Duration
	Limit    time.Duration

	// KindDeviceCapabilityInsufficient (Requested/Available) and
	// KindTorqueExceedsLimit (Requested/Available is the ceiling).
	Requested  torque.Value
	Available  torque.Value
	HighTorque bool
}

func (v *Violation) Error() string {
	switch v.Kind {
	case KindDeviceNotOperational:
		return fmt.Sprintf("device is not operational: %s", v.State)
	case KindActiveFaults:
		return fmt.Sprintf("device has active faults: %s", v.Flags)
	case KindTemperatureTooHigh:
		return fmt.Sprintf("temperature too high: %.1f°C (limit: %.1f°C)", v.TemperatureC, v.TemperatureLimitC)
	case KindHandsOffTooLong:
		return fmt.Sprintf("hands off too long: %s (limit: %s)", v.Duration, v.Limit)
	case KindRateLimited:
		return fmt.Sprintf("high torque rate limited: %s since last admission (required: %s)", v.Duration, v.Limit)
	case KindDeviceCapabilityInsufficient:
		return fmt.Sprintf("device capability insufficient: requested %s, available %s", v.Requested, v.Available)
	case KindTorqueExceedsLimit:
		return fmt.Sprintf("torque exceeds limit: requested %s, limit %s (high torque: %t)",
			v.Requested, v.Available, v.HighTorque)
	default:
		return "unknown safety violation"
	}
}

// Is reports whether target is the sentinel for v.Kind.
func (v *Violation) Is(target error) bool {
	s := v.Kind.sentinel()
	return s != nil && target == s
}
