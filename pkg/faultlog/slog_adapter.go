package faultlog

import (
	"context"
	"log/slog"

	"github.com/openracing/wheelsafe/pkg/safety"
)

// SlogAdapter writes events to an slog.Logger. Faults and state changes are
// logged at Error, quarantines and violations at Warn, health at Info.
//
// Log may block on the underlying writer, so it belongs behind an
// AsyncLogger whenever events come from the control loop.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session", event.SessionID),
		slog.String("category", event.Category.String()),
	}
	if event.Source != "" {
		attrs = append(attrs, slog.String("source", event.Source))
	}

	level := slog.LevelInfo
	msg := "component health changed"
	switch event.Category {
	case CategoryFault:
		level = slog.LevelError
		msg = "fault reported"
		attrs = append(attrs, slog.String("fault", event.Fault.String()))
	case CategoryQuarantine:
		level = slog.LevelWarn
		msg = "plugin quarantined"
		attrs = append(attrs,
			slog.String("plugin", event.PluginID),
			slog.String("fault", event.Fault.String()))
	case CategoryViolation:
		level = slog.LevelWarn
		msg = "torque policy violation"
		attrs = append(attrs, slog.String("violation", event.Violation))
	case CategoryHealth:
		attrs = append(attrs,
			slog.String("component", event.Component),
			slog.String("health", event.Health))
	case CategoryStateChange:
		level = slog.LevelError
		msg = "safety state changed"
		if event.NewState == safety.Faulted.String() {
			msg = "safety state faulted, torque forced to zero"
		}
		attrs = append(attrs,
			slog.String("old_state", event.OldState),
			slog.String("new_state", event.NewState))
	}
	if event.TorqueNm != nil {
		attrs = append(attrs, slog.Float64("torque_nm", *event.TorqueNm))
	}
	if event.Message != "" {
		attrs = append(attrs, slog.String("detail", event.Message))
	}

	a.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
