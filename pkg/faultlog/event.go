package faultlog

import (
	"time"

	"github.com/google/uuid"
	"github.com/openracing/wheelsafe/pkg/fault"
)

// Event is one entry in the fault log. CBOR encoding uses integer keys.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the process run that produced the event (UUID).
	SessionID string `cbor:"2,keyasint"`

	Category Category `cbor:"3,keyasint"`

	// Source is the component name or plugin ID that raised the event.
	Source string `cbor:"4,keyasint,omitempty"`

	// Fault is set for CategoryFault and CategoryQuarantine.
	Fault fault.Type `cbor:"5,keyasint,omitempty"`

	// Component and Health are set for CategoryHealth.
	Component string `cbor:"6,keyasint,omitempty"`
	Health    string `cbor:"7,keyasint,omitempty"`

	PluginID string `cbor:"8,keyasint,omitempty"`

	// Violation is the violation kind for CategoryViolation.
	Violation string `cbor:"9,keyasint,omitempty"`

	Message string `cbor:"10,keyasint,omitempty"`

	// TorqueNm is the torque requested when the event occurred, if known.
	TorqueNm *float64 `cbor:"11,keyasint,omitempty"`

	// OldState and NewState are set for CategoryStateChange.
	OldState string `cbor:"12,keyasint,omitempty"`
	NewState string `cbor:"13,keyasint,omitempty"`
}

// Category classifies the event.
type Category uint8

const (
	CategoryFault       Category = 0
	CategoryViolation   Category = 1
	CategoryQuarantine  Category = 2
	CategoryHealth      Category = 3
	CategoryStateChange Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryFault:
		return "FAULT"
	case CategoryViolation:
		return "VIOLATION"
	case CategoryQuarantine:
		return "QUARANTINE"
	case CategoryHealth:
		return "HEALTH"
	case CategoryStateChange:
		return "STATE_CHANGE"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory returns the category with the given String name.
func ParseCategory(name string) (Category, bool) {
	for c := CategoryFault; c <= CategoryStateChange; c++ {
		if c.String() == name {
			return c, true
		}
	}
	return 0, false
}

// NewSessionID returns a random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Torque returns a pointer to nm for Event.TorqueNm.
func Torque(nm float64) *float64 {
	return &nm
}
