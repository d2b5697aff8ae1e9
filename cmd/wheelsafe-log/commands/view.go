// Package commands implements the wheelsafe-log CLI commands.
package commands

import (
	"fmt"
	"io"

	"github.com/openracing/wheelsafe/pkg/faultlog"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event faultlog.Event) {
	ts := event.Timestamp.UTC().Format(timeLayout)
	fmt.Fprintf(w, "%s [session:%s] %-12s %s\n", ts, shortenID(event.SessionID), event.Category, label(event))

	switch event.Category {
	case faultlog.CategoryFault:
		fmt.Fprintf(w, "  Source: %s\n", event.Source)
	case faultlog.CategoryQuarantine:
		fmt.Fprintf(w, "  Plugin: %s\n", event.PluginID)
	case faultlog.CategoryHealth:
		fmt.Fprintf(w, "  Component: %s -> %s\n", event.Component, event.Health)
	case faultlog.CategoryStateChange:
		fmt.Fprintf(w, "  Transition: %s -> %s\n", event.OldState, event.NewState)
		if event.Source != "" {
			fmt.Fprintf(w, "  Source: %s\n", event.Source)
		}
	}
	if event.TorqueNm != nil {
		fmt.Fprintf(w, "  Torque: %.3f Nm\n", *event.TorqueNm)
	}
	if event.Message != "" {
		fmt.Fprintf(w, "  Message: %s\n", event.Message)
	}

	fmt.Fprintln(w)
}

// label is the short type of the event shown in the header line.
func label(event faultlog.Event) string {
	switch event.Category {
	case faultlog.CategoryFault, faultlog.CategoryQuarantine:
		return event.Fault.String()
	case faultlog.CategoryViolation:
		return event.Violation
	case faultlog.CategoryHealth:
		return event.Health
	case faultlog.CategoryStateChange:
		if event.Fault.Valid() {
			return event.NewState + " (" + event.Fault.String() + ")"
		}
		return event.NewState
	default:
		return "Unknown"
	}
}

// shortenID returns the first 8 characters of a session ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// RunView writes every event matching filter to output.
func RunView(path string, filter faultlog.Filter, output io.Writer) error {
	reader, err := faultlog.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
	return nil
}
