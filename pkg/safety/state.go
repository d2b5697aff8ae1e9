package safety

import (
	"fmt"
	"time"

	"github.com/openracing/wheelsafe/pkg/fault"
)

// Kind is the top-level safety state.
type Kind uint8

const (
	// SafeTorque is the initial state: torque is bounded by the ceiling.
	SafeTorque Kind = iota

	// Faulted is terminal under automatic detection: torque is zero.
	Faulted
)

// String returns the state name.
func (k Kind) String() string {
	switch k {
	case SafeTorque:
		return "SAFE_TORQUE"
	case Faulted:
		return "FAULTED"
	default:
		return "UNKNOWN"
	}
}

// State is a snapshot of the safety state. Fault, Source and Since are only
// set when Kind is Faulted.
type State struct {
	Kind   Kind
	Fault  fault.Type
	Source string
	Since  time.Time
}

// IsFaulted reports whether s is Faulted.
func (s State) IsFaulted() bool {
	return s.Kind == Faulted
}

func (s State) String() string {
	if s.Kind != Faulted {
		return s.Kind.String()
	}
	if s.Source == "" {
		return fmt.Sprintf("%s(%s since %s)", s.Kind, s.Fault, s.Since.Format(time.RFC3339Nano))
	}
	return fmt.Sprintf("%s(%s from %s since %s)", s.Kind, s.Fault, s.Source, s.Since.Format(time.RFC3339Nano))
}
