// Package fault defines the closed set of fault types shared by the
// watchdog and the safety state machine, and the subscriber registry used to
// fan fault notifications out to interested parties.
package fault

import "time"

// Type identifies a fault that forces torque to zero.
type Type uint8

const (
	// UsbStall indicates device communication has stalled.
	UsbStall Type = iota + 1

	// EncoderNaN indicates the encoder reported NaN or otherwise invalid data.
	EncoderNaN

	// ThermalLimit indicates the device exceeded its safe temperature.
	ThermalLimit

	// Overcurrent indicates motor current exceeded its safe threshold.
	Overcurrent

	// TimingViolation indicates the real-time loop missed its deadline.
	TimingViolation

	// PluginOverrun indicates a plugin exceeded its execution budget.
	PluginOverrun

	// SafetyInterlockViolation indicates the safety system itself failed.
	SafetyInterlockViolation
)

// All lists every fault type in declaration order.
var All = []Type{
	UsbStall,
	EncoderNaN,
	ThermalLimit,
	Overcurrent,
	TimingViolation,
	PluginOverrun,
	SafetyInterlockViolation,
}

// Count is the number of fault types. Valid types index [1, Count].
const Count = int(SafetyInterlockViolation)

// String returns a short, stable fault name.
func (t Type) String() string {
	switch t {
	case UsbStall:
		return "USB_STALL"
	case EncoderNaN:
		return "ENCODER_NAN"
	case ThermalLimit:
		return "THERMAL_LIMIT"
	case Overcurrent:
		return "OVERCURRENT"
	case TimingViolation:
		return "TIMING_VIOLATION"
	case PluginOverrun:
		return "PLUGIN_OVERRUN"
	case SafetyInterlockViolation:
		return "SAFETY_INTERLOCK_VIOLATION"
	default:
		return "UNKNOWN"
	}
}

// Description returns an operator-facing description of the fault.
func (t Type) Description() string {
	switch t {
	case UsbStall:
		return "USB communication stall"
	case EncoderNaN:
		return "Encoder returned invalid data"
	case ThermalLimit:
		return "Thermal protection triggered"
	case Overcurrent:
		return "Overcurrent protection triggered"
	case TimingViolation:
		return "Real-time timing violation"
	case PluginOverrun:
		return "Plugin exceeded timing budget"
	case SafetyInterlockViolation:
		return "Safety interlock violation"
	default:
		return "Unknown fault"
	}
}

// Valid reports whether t is a member of the closed set.
func (t Type) Valid() bool {
	return t >= UsbStall && t <= SafetyInterlockViolation
}

// Parse returns the fault type with the given String name.
func Parse(name string) (Type, bool) {
	for _, t := range All {
		if t.String() == name {
			return t, true
		}
	}
	return 0, false
}

// Severity returns the FMEA severity level: 1 critical, 2 high, 3 medium.
func (t Type) Severity() uint8 {
	switch t {
	case Overcurrent, ThermalLimit:
		return 1
	case UsbStall, EncoderNaN, SafetyInterlockViolation:
		return 2
	default:
		return 3
	}
}

// MaxResponseTime is the budget from detection to torque shutdown.
func (t Type) MaxResponseTime() time.Duration {
	switch t {
	case Overcurrent, SafetyInterlockViolation:
		return 10 * time.Millisecond
	case PluginOverrun, TimingViolation:
		return time.Millisecond
	default:
		return 50 * time.Millisecond
	}
}
