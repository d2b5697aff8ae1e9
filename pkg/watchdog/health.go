package watchdog

import (
	"context"
	"time"

	"github.com/openracing/wheelsafe/pkg/fault"
)

// Heartbeat marks c Healthy and clears its failure count and last error.
func (w *Watchdog) Heartbeat(c Component) {
	if !c.Valid() {
		return
	}
	now := w.clock.Now()
	r := &w.components[c]
	r.mu.Lock()
	r.rec.LastHeartbeat = now
	r.rec.Status = HealthHealthy
	r.rec.ConsecutiveFailures = 0
	r.rec.LastError = ""
	r.mu.Unlock()
}

// ReportComponentFailure counts one failure against c. When c reaches
// Faulted its fault type is sent to every subscriber.
func (w *Watchdog) ReportComponentFailure(c Component, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	w.recordFailure(c, msg, true)
}

// CheckTimeout reports whether c has missed its heartbeat by more than
// timeout, and if so counts it as a failure. Components that never sent a
// heartbeat are not checked.
func (w *Watchdog) CheckTimeout(c Component, timeout time.Duration) bool {
	timedOut, _, _ := w.checkTimeout(c, timeout, true)
	return timedOut
}

func (w *Watchdog) checkTimeout(c Component, timeout time.Duration, escalate bool) (timedOut bool, ft fault.Type, escalated bool) {
	if !c.Valid() {
		return false, 0, false
	}
	now := w.clock.Now()
	r := &w.components[c]
	r.mu.Lock()
	last := r.rec.LastHeartbeat
	r.mu.Unlock()

	if last.IsZero() || now.Sub(last) <= timeout {
		return false, 0, false
	}
	ft, escalated = w.recordFailure(c, "heartbeat timeout", escalate)
	return true, ft, escalated
}

// recordFailure returns the escalated fault type when c transitioned into
// Faulted and escalate is set.
func (w *Watchdog) recordFailure(c Component, msg string, escalate bool) (fault.Type, bool) {
	if !c.Valid() {
		return 0, false
	}
	r := &w.components[c]
	r.mu.Lock()
	prev := r.rec.Status
	if r.rec.ConsecutiveFailures < ^uint32(0) {
		r.rec.ConsecutiveFailures++
	}
	r.rec.LastError = msg
	r.rec.Status = statusForFailures(r.rec.ConsecutiveFailures)
	status := r.rec.Status
	failures := r.rec.ConsecutiveFailures
	r.mu.Unlock()

	switch {
	case status == HealthDegraded && prev != HealthDegraded:
		w.warn("component degraded", "component", c.String(), "failures", failures, "error", msg)
		return 0, false
	case status != HealthFaulted || prev == HealthFaulted:
		return 0, false
	}

	ft := c.FaultType()
	if !escalate {
		w.warn("component faulted, not escalated",
			"component", c.String(), "failures", failures, "error", msg)
		return 0, false
	}
	w.errorLog("component faulted",
		"component", c.String(),
		"fault", ft.String(),
		"failures", failures,
		"error", msg)
	w.subscribers.Notify(c.String(), ft)
	return ft, true
}

// PerformHealthChecks runs a sweep if at least HealthCheckInterval has passed
// since the previous one, otherwise it does nothing. A sweep checks the RT
// thread and HID heartbeats against their timeouts, checks telemetry without
// escalating, and expires elapsed plugin quarantines. It returns the faults
// escalated during this sweep.
func (w *Watchdog) PerformHealthChecks() []fault.Type {
	now := w.clock.Now()
	w.sweepMu.Lock()
	if now.Sub(w.lastSweep) < w.cfg.HealthCheckInterval {
		w.sweepMu.Unlock()
		return nil
	}
	w.lastSweep = now
	w.sweepMu.Unlock()

	return w.sweep(now)
}

// Run sweeps every HealthCheckInterval until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := w.clock.NewTicker(w.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Ticker-driven sweeps bypass the gate; tick jitter would
			// otherwise skip every other interval.
			now := w.clock.Now()
			w.sweepMu.Lock()
			w.lastSweep = now
			w.sweepMu.Unlock()
			w.sweep(now)
		}
	}
}

func (w *Watchdog) sweep(now time.Time) []fault.Type {
	checks := []struct {
		component Component
		timeout   time.Duration
		escalate  bool
	}{
		{RtThread, w.cfg.RtThreadTimeout, true},
		{HidCommunication, w.cfg.HidTimeout, true},
		{TelemetryAdapter, w.cfg.TelemetryTimeout, false},
	}

	var faults []fault.Type
	for _, chk := range checks {
		timedOut, ft, escalated := w.checkTimeout(chk.component, chk.timeout, chk.escalate)
		if timedOut && !chk.escalate {
			w.warn("heartbeat timeout", "component", chk.component.String(), "timeout", chk.timeout)
		}
		if escalated {
			faults = append(faults, ft)
		}
	}

	for _, id := range w.expireQuarantines(now) {
		w.info("plugin quarantine expired", "plugin", id)
	}
	return faults
}

// ComponentHealth returns a snapshot of c's record.
func (w *Watchdog) ComponentHealth(c Component) (HealthRecord, bool) {
	if !c.Valid() {
		return HealthRecord{}, false
	}
	r := &w.components[c]
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.clone(), true
}

// HealthSummary returns every component's status.
func (w *Watchdog) HealthSummary() map[Component]HealthStatus {
	out := make(map[Component]HealthStatus, len(Components))
	for _, c := range Components {
		r := &w.components[c]
		r.mu.Lock()
		out[c] = r.rec.Status
		r.mu.Unlock()
	}
	return out
}

// HasFaultedComponents reports whether any component is Faulted.
func (w *Watchdog) HasFaultedComponents() bool {
	for _, c := range Components {
		r := &w.components[c]
		r.mu.Lock()
		faulted := r.rec.Status == HealthFaulted
		r.mu.Unlock()
		if faulted {
			return true
		}
	}
	return false
}

// AddComponentMetric sets a free-form metric on c.
func (w *Watchdog) AddComponentMetric(c Component, name string, value float64) {
	if !c.Valid() {
		return
	}
	r := &w.components[c]
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec.Metrics == nil {
		r.rec.Metrics = make(map[string]float64)
	}
	r.rec.Metrics[name] = value
}

// TimeSinceHeartbeat returns the time since c's last heartbeat. The bool is
// false if c never sent one.
func (w *Watchdog) TimeSinceHeartbeat(c Component) (time.Duration, bool) {
	if !c.Valid() {
		return 0, false
	}
	r := &w.components[c]
	r.mu.Lock()
	last := r.rec.LastHeartbeat
	r.mu.Unlock()
	if last.IsZero() {
		return 0, false
	}
	return w.clock.Now().Sub(last), true
}
