// Package watchdog supervises plugin execution budgets and the liveness of
// internal components, and escalates violations to fault subscribers.
//
// Plugins move Normal -> Quarantined -> Normal: a streak of consecutive
// over-budget executions quarantines a plugin for a fixed window, after which
// it becomes eligible again without manual action. Components move
// Unknown -> Healthy -> Degraded -> Faulted as consecutive failures
// accumulate; a heartbeat returns them to Healthy.
//
// Subscribers are notified synchronously after all internal locks are
// released.
package watchdog

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openracing/wheelsafe/pkg/clock"
	"github.com/openracing/wheelsafe/pkg/fault"
)

// Errors returned by plugin management.
var (
	ErrPluginNotFound = errors.New("plugin not found")
	ErrNotQuarantined = errors.New("plugin not quarantined")
)

// Option configures a Watchdog.
type Option func(*Watchdog)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(w *Watchdog) {
		w.clock = c
	}
}

// WithLogger sets the logger. Nil disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watchdog) {
		w.logger = l
	}
}

// Watchdog tracks plugins and components. It is safe for concurrent use.
type Watchdog struct {
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger

	subscribers *fault.Registry

	pluginsMu sync.RWMutex
	plugins   map[string]*PluginStats

	components [componentCount]componentRecord

	quarantineEnabled atomic.Bool

	sweepMu   sync.Mutex
	lastSweep time.Time
}

type componentRecord struct {
	mu  sync.Mutex
	rec HealthRecord
}

// New creates a Watchdog with every component Unknown and no plugins.
func New(cfg Config, opts ...Option) (*Watchdog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &Watchdog{
		cfg:     cfg,
		clock:   clock.Real(),
		plugins: make(map[string]*PluginStats),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.subscribers = fault.NewRegistry(w.logger)
	for _, c := range Components {
		w.components[c].rec = HealthRecord{Component: c}
	}
	w.quarantineEnabled.Store(true)
	w.lastSweep = w.clock.Now()
	return w, nil
}

// Config returns the configuration.
func (w *Watchdog) Config() Config {
	return w.cfg
}

// Subscribe registers a fault subscriber. Subscribers are notified in
// registration order.
func (w *Watchdog) Subscribe(s fault.Subscriber) {
	w.subscribers.Add(s)
}

// RecordPluginExecution records one plugin invocation. It returns
// (fault.PluginOverrun, true) when this execution quarantined the plugin.
//
// The stats entry is created on first sight of id.
func (w *Watchdog) RecordPluginExecution(id string, elapsed time.Duration) (fault.Type, bool) {
	now := w.clock.Now()

	w.pluginsMu.Lock()
	stats, ok := w.plugins[id]
	if !ok {
		stats = &PluginStats{}
		w.plugins[id] = stats
	}
	stats.record(elapsed, w.cfg.PluginTimeout, now)

	quarantined := false
	if w.quarantineEnabled.Load() && stats.ConsecutiveTimeouts >= w.cfg.PluginMaxTimeouts {
		stats.quarantine(now.Add(w.cfg.PluginQuarantineDuration))
		quarantined = true
	}
	w.pluginsMu.Unlock()

	if !quarantined {
		return 0, false
	}

	// Called from the control loop: subscribers report the quarantine
	// through their own queues.
	w.subscribers.Notify(id, fault.PluginOverrun)
	return fault.PluginOverrun, true
}

// IsPluginQuarantined reports whether id is quarantined now. Unknown plugins
// are not quarantined.
func (w *Watchdog) IsPluginQuarantined(id string) bool {
	now := w.clock.Now()
	w.pluginsMu.RLock()
	defer w.pluginsMu.RUnlock()
	stats, ok := w.plugins[id]
	return ok && stats.QuarantinedAt(now)
}

// ReleasePluginQuarantine ends a quarantine early and clears the
// consecutive-timeout count.
func (w *Watchdog) ReleasePluginQuarantine(id string) error {
	now := w.clock.Now()

	w.pluginsMu.Lock()
	stats, ok := w.plugins[id]
	if !ok {
		w.pluginsMu.Unlock()
		return fmt.Errorf("release %q: %w", id, ErrPluginNotFound)
	}
	if !stats.QuarantinedAt(now) {
		w.pluginsMu.Unlock()
		return fmt.Errorf("release %q: %w", id, ErrNotQuarantined)
	}
	stats.QuarantinedUntil = time.Time{}
	stats.ConsecutiveTimeouts = 0
	w.pluginsMu.Unlock()

	w.info("plugin released from quarantine", "plugin", id)
	return nil
}

// SetQuarantinePolicyEnabled turns quarantining on or off. While disabled
// no plugin is quarantined regardless of streak length. Enabling clears
// every plugin's consecutive-timeout count so thresholds apply from a clean
// streak.
func (w *Watchdog) SetQuarantinePolicyEnabled(enabled bool) {
	if !enabled {
		w.quarantineEnabled.Store(false)
		return
	}

	w.pluginsMu.Lock()
	for _, stats := range w.plugins {
		stats.ConsecutiveTimeouts = 0
	}
	w.quarantineEnabled.Store(true)
	w.pluginsMu.Unlock()
}

// QuarantinePolicyEnabled reports whether quarantining is enabled.
func (w *Watchdog) QuarantinePolicyEnabled() bool {
	return w.quarantineEnabled.Load()
}

// RegisterPlugin creates an empty stats entry for id if none exists.
func (w *Watchdog) RegisterPlugin(id string) {
	w.pluginsMu.Lock()
	defer w.pluginsMu.Unlock()
	if _, ok := w.plugins[id]; !ok {
		w.plugins[id] = &PluginStats{}
	}
}

// UnregisterPlugin removes id and its stats.
func (w *Watchdog) UnregisterPlugin(id string) error {
	w.pluginsMu.Lock()
	defer w.pluginsMu.Unlock()
	if _, ok := w.plugins[id]; !ok {
		return fmt.Errorf("unregister %q: %w", id, ErrPluginNotFound)
	}
	delete(w.plugins, id)
	return nil
}

// PluginStats returns a copy of the stats for id.
func (w *Watchdog) PluginStats(id string) (PluginStats, bool) {
	w.pluginsMu.RLock()
	defer w.pluginsMu.RUnlock()
	stats, ok := w.plugins[id]
	if !ok {
		return PluginStats{}, false
	}
	return *stats, true
}

// AllPluginStats returns a copy of every plugin's stats.
func (w *Watchdog) AllPluginStats() map[string]PluginStats {
	w.pluginsMu.RLock()
	defer w.pluginsMu.RUnlock()
	out := make(map[string]PluginStats, len(w.plugins))
	for id, stats := range w.plugins {
		out[id] = *stats
	}
	return out
}

// QuarantinedPlugins returns the remaining quarantine time per quarantined
// plugin.
func (w *Watchdog) QuarantinedPlugins() map[string]time.Duration {
	now := w.clock.Now()
	w.pluginsMu.RLock()
	defer w.pluginsMu.RUnlock()
	out := make(map[string]time.Duration)
	for id, stats := range w.plugins {
		if stats.QuarantinedAt(now) {
			out[id] = stats.QuarantinedUntil.Sub(now)
		}
	}
	return out
}

// ResetPluginStats zeroes every counter for id, including any quarantine.
func (w *Watchdog) ResetPluginStats(id string) error {
	w.pluginsMu.Lock()
	defer w.pluginsMu.Unlock()
	stats, ok := w.plugins[id]
	if !ok {
		return fmt.Errorf("reset %q: %w", id, ErrPluginNotFound)
	}
	*stats = PluginStats{}
	return nil
}

// ResetAllPluginStats zeroes every plugin's counters. Registrations are kept.
func (w *Watchdog) ResetAllPluginStats() {
	w.pluginsMu.Lock()
	defer w.pluginsMu.Unlock()
	for _, stats := range w.plugins {
		*stats = PluginStats{}
	}
}

// PluginCount returns the number of tracked plugins.
func (w *Watchdog) PluginCount() int {
	w.pluginsMu.RLock()
	defer w.pluginsMu.RUnlock()
	return len(w.plugins)
}

// expireQuarantines clears elapsed quarantines and returns their IDs.
func (w *Watchdog) expireQuarantines(now time.Time) []string {
	w.pluginsMu.Lock()
	defer w.pluginsMu.Unlock()
	var expired []string
	for id, stats := range w.plugins {
		if stats.expire(now) {
			expired = append(expired, id)
		}
	}
	return expired
}

func (w *Watchdog) info(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Info(msg, args...)
	}
}

func (w *Watchdog) warn(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}

func (w *Watchdog) errorLog(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Error(msg, args...)
	}
}
