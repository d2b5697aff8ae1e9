package supervisor

import (
	"time"

	"github.com/openracing/wheelsafe/pkg/fault"
	"github.com/openracing/wheelsafe/pkg/safety"
	"github.com/openracing/wheelsafe/pkg/watchdog"
)

// Status is a point-in-time view of the safety context for operators.
type Status struct {
	SessionID     string
	State         safety.State
	HighTorque    bool
	CeilingNm     float64
	Health        map[watchdog.Component]watchdog.HealthStatus
	Quarantined   map[string]time.Duration
	FaultCounts   map[fault.Type]uint64 // non-zero counts only
	DroppedEvents uint64
}

// Status returns a snapshot of the safety context.
func (s *Supervisor) Status() Status {
	st := Status{
		SessionID:     s.sessionID,
		State:         s.safety.State(),
		HighTorque:    s.highTorque.Load(),
		CeilingNm:     s.safety.MaxTorqueNm(),
		Health:        s.watchdog.HealthSummary(),
		Quarantined:   s.watchdog.QuarantinedPlugins(),
		FaultCounts:   make(map[fault.Type]uint64),
		DroppedEvents: s.faultLog.Dropped(),
	}
	for _, t := range fault.All {
		if n := s.safety.FaultCount(t); n > 0 {
			st.FaultCounts[t] = n
		}
	}
	return st
}
