package watchdog

import (
	"time"

	"github.com/openracing/wheelsafe/pkg/fault"
)

// Component identifies a monitored subsystem.
type Component uint8

const (
	RtThread Component = iota
	HidCommunication
	TelemetryAdapter
	PluginHost
	SafetySystem
	DeviceManager

	componentCount
)

// Components lists every monitored component.
var Components = []Component{
	RtThread,
	HidCommunication,
	TelemetryAdapter,
	PluginHost,
	SafetySystem,
	DeviceManager,
}

// String returns the component name used in logs and as fault source.
func (c Component) String() string {
	switch c {
	case RtThread:
		return "rt_thread"
	case HidCommunication:
		return "hid_communication"
	case TelemetryAdapter:
		return "telemetry_adapter"
	case PluginHost:
		return "plugin_host"
	case SafetySystem:
		return "safety_system"
	case DeviceManager:
		return "device_manager"
	default:
		return "unknown"
	}
}

// Valid reports whether c is a known component.
func (c Component) Valid() bool {
	return c < componentCount
}

// ParseComponent returns the component with the given String name.
func ParseComponent(name string) (Component, bool) {
	for _, c := range Components {
		if c.String() == name {
			return c, true
		}
	}
	return 0, false
}

// FaultType returns the fault raised when c reaches Faulted.
func (c Component) FaultType() fault.Type {
	switch c {
	case RtThread, TelemetryAdapter:
		return fault.TimingViolation
	case HidCommunication, DeviceManager:
		return fault.UsbStall
	case PluginHost:
		return fault.PluginOverrun
	default:
		return fault.SafetyInterlockViolation
	}
}

// HealthStatus is the derived health of a component.
type HealthStatus uint8

const (
	HealthUnknown HealthStatus = iota
	HealthHealthy
	HealthDegraded
	HealthFaulted
)

// String returns the status name.
func (s HealthStatus) String() string {
	switch s {
	case HealthHealthy:
		return "healthy"
	case HealthDegraded:
		return "degraded"
	case HealthFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Failure thresholds for status derivation.
const (
	DegradedThreshold = 2
	FaultedThreshold  = 5
)

func statusForFailures(n uint32) HealthStatus {
	switch {
	case n >= FaultedThreshold:
		return HealthFaulted
	case n >= DegradedThreshold:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}

// HealthRecord is a snapshot of a component's health.
type HealthRecord struct {
	Component           Component
	Status              HealthStatus
	LastHeartbeat       time.Time // zero if never seen
	ConsecutiveFailures uint32
	LastError           string
	Metrics             map[string]float64
}

func (r HealthRecord) clone() HealthRecord {
	if r.Metrics != nil {
		m := make(map[string]float64, len(r.Metrics))
		for k, v := range r.Metrics {
			m[k] = v
		}
		r.Metrics = m
	}
	return r
}
