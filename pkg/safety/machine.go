// Package safety holds the authoritative safety state and the clamp applied
// to every torque output.
//
// The state starts in SafeTorque and moves to Faulted on the first reported
// fault. There is no transition back: recovery requires a new Machine, which
// is an externally authorized restart rather than something automatic logic
// can trigger.
//
// Every method is lock-free, does no I/O and is safe to call from the
// control loop. Callers that need the transition recorded use the result of
// ReportFault or poll IsFaulted from a monitoring task.
package safety

import (
	"math"
	"sync/atomic"

	"github.com/openracing/wheelsafe/pkg/clock"
	"github.com/openracing/wheelsafe/pkg/fault"
	"github.com/openracing/wheelsafe/pkg/torque"
)

// Option configures a Machine.
type Option func(*Machine)

// WithClock sets the time source for fault timestamps.
func WithClock(c clock.Clock) Option {
	return func(m *Machine) {
		m.clock = c
	}
}

var safeState = &State{Kind: SafeTorque}

// Machine is the safety state machine.
type Machine struct {
	state   atomic.Pointer[State]
	ceiling atomic.Uint64 // float64 bits, always finite and >= 0
	counts  [fault.Count + 1]atomic.Uint64

	clock clock.Clock
}

// New creates a Machine in SafeTorque with the given ceiling.
func New(ceiling torque.Value, opts ...Option) *Machine {
	m := &Machine{clock: clock.Real()}
	for _, opt := range opts {
		opt(m)
	}
	m.state.Store(safeState)
	m.SetCeiling(ceiling)
	return m
}

// ReportFault moves the machine to Faulted. The first fault wins and is
// retained; later reports only increment their per-type counter. It returns
// true if this call performed the transition.
//
// Unknown fault types are recorded as SafetyInterlockViolation.
func (m *Machine) ReportFault(t fault.Type) bool {
	return m.report("", t)
}

// Notify implements fault.Subscriber.
func (m *Machine) Notify(source string, t fault.Type) {
	m.report(source, t)
}

func (m *Machine) report(source string, t fault.Type) bool {
	if !t.Valid() {
		t = fault.SafetyInterlockViolation
	}
	m.counts[t].Add(1)

	if m.state.Load() != safeState {
		return false
	}
	next := &State{Kind: Faulted, Fault: t, Source: source, Since: m.clock.Now()}
	return m.state.CompareAndSwap(safeState, next)
}

// State returns the current state.
func (m *Machine) State() State {
	return *m.state.Load()
}

// IsFaulted reports whether the machine is Faulted.
func (m *Machine) IsFaulted() bool {
	return m.state.Load() != safeState
}

// FaultCount returns how many times t was reported.
func (m *Machine) FaultCount(t fault.Type) uint64 {
	if !t.Valid() {
		return 0
	}
	return m.counts[t].Load()
}

// SetCeiling publishes the active-mode ceiling. Negative ceilings are
// stored as zero.
func (m *Machine) SetCeiling(v torque.Value) {
	nm := v.Nm()
	if nm < 0 {
		nm = 0
	}
	m.ceiling.Store(math.Float64bits(nm))
}

// MaxTorqueNm returns 0 if Faulted, otherwise the ceiling.
func (m *Machine) MaxTorqueNm() float64 {
	if m.IsFaulted() {
		return 0
	}
	return math.Float64frombits(m.ceiling.Load())
}

// ClampTorqueNm bounds requested to [-ceiling, ceiling]. It returns 0 for
// every input once Faulted, and 0 for NaN or infinite requests.
func (m *Machine) ClampTorqueNm(requested float64) float64 {
	if m.IsFaulted() || math.IsNaN(requested) || math.IsInf(requested, 0) {
		return 0
	}
	limit := math.Float64frombits(m.ceiling.Load())
	switch {
	case requested > limit:
		return limit
	case requested < -limit:
		return -limit
	default:
		return requested
	}
}
