package torque

import (
	"fmt"
	"time"
)

// DeviceState is the lifecycle state of a force-feedback device as reported
// by device management.
type DeviceState uint8

const (
	// DeviceDisconnected indicates the device is not connected.
	DeviceDisconnected DeviceState = iota

	// DeviceConnected indicates the device is connected but not initialized.
	DeviceConnected

	// DeviceActive indicates the device is ready for operation.
	DeviceActive

	// DeviceFaulted indicates the device reported a fault.
	DeviceFaulted

	// DeviceSafeMode indicates the device is running with limited torque.
	DeviceSafeMode
)

// String returns a human-readable state name.
func (s DeviceState) String() string {
	switch s {
	case DeviceDisconnected:
		return "DISCONNECTED"
	case DeviceConnected:
		return "CONNECTED"
	case DeviceActive:
		return "ACTIVE"
	case DeviceFaulted:
		return "FAULTED"
	case DeviceSafeMode:
		return "SAFE_MODE"
	default:
		return "UNKNOWN"
	}
}

// FaultFlags is the hardware fault byte reported by the device.
type FaultFlags uint8

// Fault flag bits. The numbering is fixed by device firmware.
const (
	FlagCommunication FaultFlags = 1 << iota
	FlagEncoder
	FlagThermal
	FlagOvercurrent
)

// CriticalFlags is the set of flags that force immediate torque shutdown.
const CriticalFlags = FlagCommunication | FlagEncoder | FlagThermal | FlagOvercurrent

// Has reports whether every bit of f is set.
func (flags FaultFlags) Has(f FaultFlags) bool {
	return flags&f == f
}

// Any reports whether any flag is set.
func (flags FaultFlags) Any() bool {
	return flags != 0
}

// String returns the flag byte in hex.
func (flags FaultFlags) String() string {
	return fmt.Sprintf("0x%02X", uint8(flags))
}

// Capabilities is an immutable snapshot of what a device advertises.
// It is owned by device management and read-only here.
type Capabilities struct {
	// MaxTorque is the maximum torque the device can produce.
	MaxTorque Value

	SupportsPID           bool
	SupportsRawTorque1kHz bool
	SupportsHealthStream  bool
	SupportsLEDBus        bool

	// EncoderCPR is encoder counts per revolution.
	EncoderCPR uint16

	// MinReportPeriod is the shortest supported output report period
	// (typically 1ms for 1 kHz devices).
	MinReportPeriod time.Duration
}

// Device is a point-in-time snapshot of a connected device.
type Device struct {
	ID           string
	State        DeviceState
	FaultFlags   FaultFlags
	Capabilities Capabilities
}

// IsOperational reports whether the device is in a state that accepts
// torque commands. Fault flags are evaluated separately.
func (d Device) IsOperational() bool {
	return d.State == DeviceActive || d.State == DeviceSafeMode
}

// HasFaults reports whether the device has any active fault flag.
func (d Device) HasFaults() bool {
	return d.FaultFlags.Any()
}
