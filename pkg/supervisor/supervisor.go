// Package supervisor owns the process-wide safety context: the torque
// policy, the watchdog, the safety state machine and the fault log.
//
// A Supervisor is created once at startup and passed by handle to the
// control loop and to monitoring tasks. Tick is the per-cycle torque path;
// everything else feeds it.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openracing/wheelsafe/pkg/clock"
	"github.com/openracing/wheelsafe/pkg/config"
	"github.com/openracing/wheelsafe/pkg/fault"
	"github.com/openracing/wheelsafe/pkg/faultlog"
	"github.com/openracing/wheelsafe/pkg/policy"
	"github.com/openracing/wheelsafe/pkg/safety"
	"github.com/openracing/wheelsafe/pkg/torque"
	"github.com/openracing/wheelsafe/pkg/watchdog"
)

// ErrFaulted is returned when high-torque mode is requested while Faulted.
var ErrFaulted = errors.New("safety system faulted")

// violationLogInterval limits how often torque violations reach the fault
// log, so a stuck request at 1 kHz cannot crowd out fault events.
const violationLogInterval = time.Second

// DeviceSource is the fault source used for hardware fault flags.
const DeviceSource = "device"

// Option configures a Supervisor.
type Option func(*options)

type options struct {
	clock     clock.Clock
	logger    *slog.Logger
	faultLog  faultlog.Logger
	sessionID string
}

// WithClock sets the time source for every component.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the operational logger. Nil disables logging. Fault log
// events reach it through the fault log queue, never from the control loop.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFaultLogger adds a fault log sink in addition to the configured file.
func WithFaultLogger(l faultlog.Logger) Option {
	return func(o *options) { o.faultLog = l }
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) Option {
	return func(o *options) { o.sessionID = id }
}

// Supervisor is the safety context. It is safe for concurrent use.
type Supervisor struct {
	cfg       config.Config
	clock     clock.Clock
	logger    *slog.Logger
	sessionID string

	policy   *policy.Policy
	watchdog *watchdog.Watchdog
	safety   *safety.Machine

	faultLog *faultlog.AsyncLogger
	file     *faultlog.FileLogger

	highTorque       atomic.Bool
	stateLogged      atomic.Bool
	lastViolationLog atomic.Int64 // unix nanos
}

// New builds the safety context with every component Unknown and no
// plugins registered. The safety state machine is subscribed to the
// watchdog before the fault log, so escalation never waits on logging.
// Faults, quarantines and the Faulted transition are written to the
// operational logger by the fault log queue, off the caller's thread.
//
// Plugin quarantines are logged but not escalated: a misbehaving plugin is
// removed from the loop for its quarantine window while the drive keeps
// running. A faulted plugin host component does escalate.
func New(cfg *config.Config, opts ...Option) (*Supervisor, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{clock: clock.Real()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sessionID == "" {
		o.sessionID = faultlog.NewSessionID()
	}

	pcfg, err := cfg.Policy.ToPolicy()
	if err != nil {
		return nil, err
	}
	pol, err := policy.New(pcfg, policy.WithClock(o.clock), policy.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("create policy: %w", err)
	}
	wd, err := watchdog.New(cfg.Watchdog.ToWatchdog(), watchdog.WithClock(o.clock), watchdog.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("create watchdog: %w", err)
	}

	s := &Supervisor{
		cfg:       *cfg,
		clock:     o.clock,
		logger:    o.logger,
		sessionID: o.sessionID,
		policy:    pol,
		watchdog:  wd,
		safety:    safety.New(pcfg.MaxSafeTorque, safety.WithClock(o.clock)),
	}

	sinks := []faultlog.Logger{o.faultLog}
	if o.logger != nil {
		sinks = append(sinks, faultlog.NewSlogAdapter(o.logger))
	}
	if cfg.Log.FaultLogPath != "" {
		s.file, err = faultlog.NewFileLogger(cfg.Log.FaultLogPath)
		if err != nil {
			return nil, fmt.Errorf("open fault log: %w", err)
		}
		sinks = append(sinks, s.file)
	}
	s.faultLog = faultlog.NewAsyncLogger(faultlog.NewMultiLogger(sinks...), cfg.Log.QueueSize)

	wd.Subscribe(fault.SubscriberFunc(s.escalate))
	wd.Subscribe(faultlog.NewSubscriber(s.faultLog, s.sessionID, s.clock))
	wd.Subscribe(fault.SubscriberFunc(func(string, fault.Type) { s.recordStateChange(nil) }))

	s.info("safety supervisor started", "session", s.sessionID)
	return s, nil
}

// escalate forwards watchdog faults to the safety state machine.
func (s *Supervisor) escalate(source string, t fault.Type) {
	if t == fault.PluginOverrun {
		if _, isComponent := watchdog.ParseComponent(source); !isComponent {
			return
		}
	}
	s.safety.Notify(source, t)
}

// Tick computes the torque to send to the device for one control cycle.
// Any critical hardware fault flag faults the system; once Faulted the
// result is always 0. A request outside the ceiling yields 0, not the
// ceiling.
func (s *Supervisor) Tick(requestedNm float64, device torque.Device) float64 {
	flags := uint8(device.FaultFlags)
	if policy.RequiresImmediateShutdown(flags) {
		s.applyFaultFlags(flags, requestedNm)
		return 0
	}
	if s.safety.IsFaulted() {
		return 0
	}

	high := s.highTorque.Load()
	s.safety.SetCeiling(s.policy.Ceiling(high, device.Capabilities))

	req, err := torque.New(requestedNm)
	if err != nil {
		return 0
	}
	if _, err := s.policy.ValidateTorque(req, high, device.Capabilities); err != nil {
		s.recordViolation(err, requestedNm)
		return 0
	}
	return s.safety.ClampTorqueNm(requestedNm)
}

// ApplyFaultFlags faults the system if flags has a critical bit. The first
// critical bit in priority order (overcurrent, thermal, encoder,
// communication) determines the fault type. It reports whether a fault was
// raised.
func (s *Supervisor) ApplyFaultFlags(flags uint8) bool {
	return s.applyFaultFlags(flags, 0)
}

func (s *Supervisor) applyFaultFlags(flags uint8, requestedNm float64) bool {
	ft, ok := FaultForFlags(torque.FaultFlags(flags))
	if !ok {
		return false
	}
	if s.safety.IsFaulted() {
		// Flags persist across ticks; count without flooding the log.
		s.safety.Notify(DeviceSource, ft)
		return true
	}
	s.reportFault(DeviceSource, ft, &requestedNm)
	return true
}

// FaultForFlags maps the highest-priority critical flag to its fault type.
func FaultForFlags(flags torque.FaultFlags) (fault.Type, bool) {
	switch {
	case flags.Has(torque.FlagOvercurrent):
		return fault.Overcurrent, true
	case flags.Has(torque.FlagThermal):
		return fault.ThermalLimit, true
	case flags.Has(torque.FlagEncoder):
		return fault.EncoderNaN, true
	case flags.Has(torque.FlagCommunication):
		return fault.UsbStall, true
	default:
		return 0, false
	}
}

// ReportFault faults the system directly, bypassing the watchdog.
func (s *Supervisor) ReportFault(source string, t fault.Type) {
	s.reportFault(source, t, nil)
}

func (s *Supervisor) reportFault(source string, t fault.Type, requestedNm *float64) {
	s.safety.Notify(source, t)
	s.faultLog.Log(faultlog.Event{
		Timestamp: s.clock.Now(),
		SessionID: s.sessionID,
		Category:  faultlog.CategoryFault,
		Source:    source,
		Fault:     t,
		Message:   t.Description(),
		TorqueNm:  requestedNm,
	})
	s.recordStateChange(requestedNm)
}

// recordStateChange logs the Faulted transition exactly once.
func (s *Supervisor) recordStateChange(requestedNm *float64) {
	if !s.safety.IsFaulted() || !s.stateLogged.CompareAndSwap(false, true) {
		return
	}
	st := s.safety.State()
	s.highTorque.Store(false)
	s.faultLog.Log(faultlog.Event{
		Timestamp: st.Since,
		SessionID: s.sessionID,
		Category:  faultlog.CategoryStateChange,
		Source:    st.Source,
		Fault:     st.Fault,
		OldState:  safety.SafeTorque.String(),
		NewState:  safety.Faulted.String(),
		TorqueNm:  requestedNm,
	})
}

func (s *Supervisor) recordViolation(err error, requestedNm float64) {
	var v *policy.Violation
	if !errors.As(err, &v) {
		return
	}
	now := s.clock.Now()
	last := s.lastViolationLog.Load()
	if last != 0 && now.UnixNano()-last < int64(violationLogInterval) {
		return
	}
	if !s.lastViolationLog.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	event := faultlog.Event{
		Timestamp: now,
		SessionID: s.sessionID,
		Category:  faultlog.CategoryViolation,
		Violation: v.Kind.String(),
		Message:   v.Error(),
	}
	if v.Kind == policy.KindTorqueExceedsLimit {
		event.TorqueNm = faultlog.Torque(requestedNm)
	}
	s.faultLog.Log(event)
}

// RequestHighTorque enables high-torque mode if the policy admits it.
func (s *Supervisor) RequestHighTorque(device torque.Device, handsOff time.Duration, temperatureC float64) error {
	if s.safety.IsFaulted() {
		return ErrFaulted
	}
	if err := s.policy.CanEnableHighTorque(device, handsOff, temperatureC); err != nil {
		s.recordViolation(err, 0)
		return err
	}
	s.highTorque.Store(true)
	if s.safety.IsFaulted() {
		// A fault landed after the check and may already have cleared the
		// flag in recordStateChange.
		s.highTorque.Store(false)
		return ErrFaulted
	}
	s.safety.SetCeiling(s.policy.Ceiling(true, device.Capabilities))
	s.info("high torque enabled", "device", device.ID)
	return nil
}

// DisableHighTorque returns to safe-torque mode. The ceiling drops
// immediately; the next Tick applies the device limit.
func (s *Supervisor) DisableHighTorque() {
	if !s.highTorque.Swap(false) {
		return
	}
	limit := s.policy.Config().MaxSafeTorque
	if cur, err := torque.New(s.safety.MaxTorqueNm()); err == nil {
		limit = limit.Min(cur)
	}
	s.safety.SetCeiling(limit)
	s.info("high torque disabled")
}

// HighTorqueEnabled reports whether high-torque mode is on.
func (s *Supervisor) HighTorqueEnabled() bool {
	return s.highTorque.Load()
}

// RecordPluginExecution forwards to the watchdog.
func (s *Supervisor) RecordPluginExecution(id string, elapsed time.Duration) (fault.Type, bool) {
	return s.watchdog.RecordPluginExecution(id, elapsed)
}

// IsPluginQuarantined forwards to the watchdog.
func (s *Supervisor) IsPluginQuarantined(id string) bool {
	return s.watchdog.IsPluginQuarantined(id)
}

// ReleasePluginQuarantine forwards to the watchdog.
func (s *Supervisor) ReleasePluginQuarantine(id string) error {
	return s.watchdog.ReleasePluginQuarantine(id)
}

// Heartbeat forwards to the watchdog.
func (s *Supervisor) Heartbeat(c watchdog.Component) {
	s.watchdog.Heartbeat(c)
}

// ReportComponentFailure forwards to the watchdog.
func (s *Supervisor) ReportComponentFailure(c watchdog.Component, err error) {
	s.watchdog.ReportComponentFailure(c, err)
}

// Policy returns the torque policy.
func (s *Supervisor) Policy() *policy.Policy { return s.policy }

// Watchdog returns the watchdog.
func (s *Supervisor) Watchdog() *watchdog.Watchdog { return s.watchdog }

// Safety returns the safety state machine.
func (s *Supervisor) Safety() *safety.Machine { return s.safety }

// SessionID returns the fault log session ID.
func (s *Supervisor) SessionID() string { return s.sessionID }

// Run drives the watchdog sweep, records component health transitions in
// the fault log and delivers queued fault log events. It blocks until ctx
// is cancelled, then drains the queue.
func (s *Supervisor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.watchdog.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.faultLog.Run(ctx)
	}()

	s.watchHealth(ctx)
	wg.Wait()
}

func (s *Supervisor) watchHealth(ctx context.Context) {
	ticker := s.clock.NewTicker(s.cfg.Watchdog.HealthCheckInterval)
	defer ticker.Stop()

	prev := s.watchdog.HealthSummary()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := s.watchdog.HealthSummary()
			for _, c := range watchdog.Components {
				if cur[c] == prev[c] {
					continue
				}
				event := faultlog.Event{
					Timestamp: s.clock.Now(),
					SessionID: s.sessionID,
					Category:  faultlog.CategoryHealth,
					Source:    c.String(),
					Component: c.String(),
					Health:    cur[c].String(),
					Message:   prev[c].String() + " -> " + cur[c].String(),
				}
				if rec, ok := s.watchdog.ComponentHealth(c); ok && rec.LastError != "" {
					event.Message += ": " + rec.LastError
				}
				s.faultLog.Log(event)
			}
			prev = cur
		}
	}
}

// Close flushes the fault log and closes its file.
func (s *Supervisor) Close() error {
	s.faultLog.Drain()
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func (s *Supervisor) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}
