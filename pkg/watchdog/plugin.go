package watchdog

import "time"

// PluginStats tracks execution timing and quarantine state for one plugin.
// Counters persist across quarantine cycles until reset.
type PluginStats struct {
	Executions          uint64
	TotalTime           time.Duration
	Timeouts            uint64
	ConsecutiveTimeouts uint32
	LastExecutionTime   time.Duration
	LastExecution       time.Time
	QuarantinedUntil    time.Time // zero if never quarantined or released
	QuarantineCount     uint32
}

// AverageExecutionTime returns TotalTime / Executions, or 0 before the
// first execution.
func (s PluginStats) AverageExecutionTime() time.Duration {
	if s.Executions == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.Executions)
}

// TimeoutRate returns the percentage of executions that exceeded the budget.
func (s PluginStats) TimeoutRate() float64 {
	if s.Executions == 0 {
		return 0
	}
	return float64(s.Timeouts) / float64(s.Executions) * 100
}

// QuarantinedAt reports whether the plugin is quarantined at now.
func (s PluginStats) QuarantinedAt(now time.Time) bool {
	return !s.QuarantinedUntil.IsZero() && now.Before(s.QuarantinedUntil)
}

func (s *PluginStats) record(elapsed, budget time.Duration, now time.Time) {
	s.Executions++
	s.TotalTime += elapsed
	s.LastExecutionTime = elapsed
	s.LastExecution = now
	if elapsed > budget {
		s.Timeouts++
		if s.ConsecutiveTimeouts < ^uint32(0) {
			s.ConsecutiveTimeouts++
		}
		return
	}
	s.ConsecutiveTimeouts = 0
}

func (s *PluginStats) quarantine(until time.Time) {
	s.QuarantinedUntil = until
	s.ConsecutiveTimeouts = 0
	s.QuarantineCount++
}

// expire clears an elapsed quarantine and reports whether it did.
func (s *PluginStats) expire(now time.Time) bool {
	if s.QuarantinedUntil.IsZero() || now.Before(s.QuarantinedUntil) {
		return false
	}
	s.QuarantinedUntil = time.Time{}
	return true
}
