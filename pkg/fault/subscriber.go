package fault

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultSlowThreshold is how long a subscriber may take before the registry
// logs it as slow.
const DefaultSlowThreshold = time.Millisecond

// Subscriber receives fault notifications. Source identifies what raised
// the fault (a component name or plugin ID).
//
// Notify is called synchronously on the reporting goroutine and must return
// quickly.
type Subscriber interface {
	Notify(source string, t Type)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(source string, t Type)

// Notify calls f(source, t).
func (f SubscriberFunc) Notify(source string, t Type) {
	f(source, t)
}

// Registry is an ordered collection of subscribers. It is safe for
// concurrent use.
type Registry struct {
	mu          sync.RWMutex
	subscribers []Subscriber

	// Logger receives panics and slow-subscriber warnings. If nil,
	// nothing is logged.
	Logger *slog.Logger

	// SlowThreshold overrides DefaultSlowThreshold when non-zero.
	SlowThreshold time.Duration
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{Logger: logger}
}

// Add appends a subscriber. Subscribers are notified in the order added.
func (r *Registry) Add(s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, s)
}

// Len returns the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

// Notify invokes every subscriber in registration order. A subscriber that
// panics is logged and skipped; the remaining subscribers still run.
func (r *Registry) Notify(source string, t Type) {
	r.mu.RLock()
	subs := make([]Subscriber, len(r.subscribers))
	copy(subs, r.subscribers)
	r.mu.RUnlock()

	threshold := r.SlowThreshold
	if threshold == 0 {
		threshold = DefaultSlowThreshold
	}

	for i, s := range subs {
		start := time.Now()
		if err := r.invoke(s, source, t); err != nil {
			r.log(slog.LevelError, "fault subscriber panicked",
				slog.Int("index", i),
				slog.String("source", source),
				slog.String("fault", t.String()),
				slog.String("error", err.Error()))
			continue
		}
		if elapsed := time.Since(start); elapsed > threshold {
			r.log(slog.LevelWarn, "slow fault subscriber",
				slog.Int("index", i),
				slog.String("fault", t.String()),
				slog.Duration("elapsed", elapsed))
		}
	}
}

func (r *Registry) invoke(s Subscriber, source string, t Type) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	s.Notify(source, t)
	return nil
}

func (r *Registry) log(level slog.Level, msg string, attrs ...slog.Attr) {
	if r.Logger == nil {
		return
	}
	r.Logger.LogAttrs(context.Background(), level, msg, attrs...)
}
