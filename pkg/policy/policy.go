// Package policy decides the torque ceiling for the active mode and whether
// high-torque mode may be enabled.
//
// A Policy is pure rule evaluation except for one piece of state: the time of
// the last successful high-torque admission, used to enforce a cooldown
// between admissions. Denials never mutate that state.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/openracing/wheelsafe/pkg/clock"
	"github.com/openracing/wheelsafe/pkg/torque"
)

// CriticalMask selects the fault-flag bits that require an immediate
// shutdown: communication, encoder, thermal and overcurrent. Bits 4 and up
// are reserved and do not trigger a shutdown.
const CriticalMask = uint8(torque.CriticalFlags)

// RequiresImmediateShutdown reports whether a hardware fault-flag byte has
// any critical bit set.
func RequiresImmediateShutdown(flags uint8) bool {
	return flags&CriticalMask != 0
}

// Option configures a Policy.
type Option func(*Policy)

// WithClock sets the time source used for the cooldown.
func WithClock(c clock.Clock) Option {
	return func(p *Policy) {
		p.clock = c
	}
}

// WithLogger sets the logger for admission decisions. Nil disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(p *Policy) {
		p.logger = l
	}
}

// Policy evaluates torque limits. It is safe for concurrent use.
type Policy struct {
	mu            sync.Mutex
	cfg           Config
	lastAdmission time.Time
	admitted      bool

	clock  clock.Clock
	logger *slog.Logger
}

// New creates a Policy with the given limits.
func New(cfg Config, opts ...Option) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Policy{
		cfg:   cfg,
		clock: clock.Real(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Default creates a Policy with DefaultConfig.
func Default(opts ...Option) *Policy {
	p, err := New(DefaultConfig(), opts...)
	if err != nil {
		panic(fmt.Sprintf("policy: default config invalid: %v", err))
	}
	return p
}

// Config returns the current limits.
func (p *Policy) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Reconfigure replaces the limits. The cooldown timestamp is kept.
func (p *Policy) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()

	p.log(slog.LevelInfo, "policy reconfigured",
		slog.String("maxSafeTorque", cfg.MaxSafeTorque.String()),
		slog.String("maxHighTorque", cfg.MaxHighTorque.String()))
	return nil
}

// CanEnableHighTorque checks every admission condition in a fixed order and
// returns the first one violated as a *Violation. On success the admission
// time is recorded for the cooldown.
//
// A NaN temperature is treated as too high.
func (p *Policy) CanEnableHighTorque(device torque.Device, handsOff time.Duration, temperatureC float64) error {
	p.mu.Lock()
	v := p.checkAdmission(device, handsOff, temperatureC)
	if v == nil {
		p.lastAdmission = p.clock.Now()
		p.admitted = true
	}
	p.mu.Unlock()

	if v != nil {
		p.log(slog.LevelDebug, "high torque denied",
			slog.String("device", device.ID),
			slog.String("reason", v.Kind.String()))
		return v
	}
	p.log(slog.LevelInfo, "high torque admitted", slog.String("device", device.ID))
	return nil
}

// checkAdmission must be called with p.mu held.
func (p *Policy) checkAdmission(device torque.Device, handsOff time.Duration, temperatureC float64) *Violation {
	if !device.IsOperational() {
		return &Violation{Kind: KindDeviceNotOperational, State: device.State}
	}
	if device.HasFaults() {
		return &Violation{Kind: KindActiveFaults, Flags: device.FaultFlags}
	}
	if math.IsNaN(temperatureC) || temperatureC >= p.cfg.MaxTemperatureC {
		return &Violation{
			Kind:              KindTemperatureTooHigh,
			TemperatureC:      temperatureC,
			TemperatureLimitC: p.cfg.MaxTemperatureC,
		}
	}
	if handsOff > p.cfg.MaxHandsOffDuration {
		return &Violation{Kind: KindHandsOffTooLong, Duration: handsOff, Limit: p.cfg.MaxHandsOffDuration}
	}
	if p.admitted {
		if elapsed := p.clock.Now().Sub(p.lastAdmission); elapsed < p.cfg.MinHighTorqueInterval {
			return &Violation{Kind: KindRateLimited, Duration: elapsed, Limit: p.cfg.MinHighTorqueInterval}
		}
	}
	if device.Capabilities.MaxTorque.Less(p.cfg.MaxHighTorque) {
		return &Violation{
			Kind:      KindDeviceCapabilityInsufficient,
			Requested: p.cfg.MaxHighTorque,
			Available: device.Capabilities.MaxTorque,
		}
	}
	return nil
}

// Ceiling returns min(mode limit, device advertised max). A negative
// advertised max yields zero.
func (p *Policy) Ceiling(highTorqueEnabled bool, caps torque.Capabilities) torque.Value {
	p.mu.Lock()
	limit := p.cfg.MaxSafeTorque
	if highTorqueEnabled {
		limit = p.cfg.MaxHighTorque
	}
	p.mu.Unlock()

	c := limit.Min(caps.MaxTorque)
	if c.Nm() < 0 {
		return torque.Zero
	}
	return c
}

// ValidateTorque returns requested unchanged if its magnitude is within the
// ceiling, otherwise a TorqueExceedsLimit violation. It never clamps:
// callers must output zero on error.
//
// The bound is on |requested|, not the signed value: -10 Nm against a 5 Nm
// ceiling is a violation, the same as +10 Nm.
func (p *Policy) ValidateTorque(requested torque.Value, highTorqueEnabled bool, caps torque.Capabilities) (torque.Value, error) {
	ceiling := p.Ceiling(highTorqueEnabled, caps)
	if ceiling.Less(requested.Abs()) {
		return torque.Zero, &Violation{
			Kind:       KindTorqueExceedsLimit,
			Requested:  requested,
			Available:  ceiling,
			HighTorque: highTorqueEnabled,
		}
	}
	return requested, nil
}

func (p *Policy) log(level slog.Level, msg string, attrs ...slog.Attr) {
	if p.logger == nil {
		return
	}
	p.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
