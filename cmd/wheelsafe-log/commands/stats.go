package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/openracing/wheelsafe/pkg/fault"
	"github.com/openracing/wheelsafe/pkg/faultlog"
)

// Stats holds aggregate statistics about a fault log.
type Stats struct {
	TotalEvents      int
	EventsByCategory map[faultlog.Category]int
	Faults           map[fault.Type]int
	Violations       map[string]int
	QuarantinedBy    map[string]int // plugin ID -> quarantines
	Sessions         map[string]*SessionStats
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds statistics for one process run.
type SessionStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	FaultedAt  time.Time
	FirstFault fault.Type
}

// Collect reads every event from path into Stats.
func Collect(path string) (*Stats, error) {
	reader, err := faultlog.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory: make(map[faultlog.Category]int),
		Faults:           make(map[fault.Type]int),
		Violations:       make(map[string]int),
		QuarantinedBy:    make(map[string]int),
		Sessions:         make(map[string]*SessionStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
	return stats, nil
}

func (s *Stats) add(event faultlog.Event) {
	s.TotalEvents++
	s.EventsByCategory[event.Category]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	sess, ok := s.Sessions[event.SessionID]
	if !ok {
		sess = &SessionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Sessions[event.SessionID] = sess
	}
	sess.Events++
	if event.Timestamp.After(sess.LastSeen) {
		sess.LastSeen = event.Timestamp
	}

	switch event.Category {
	case faultlog.CategoryFault:
		s.Faults[event.Fault]++
	case faultlog.CategoryViolation:
		s.Violations[event.Violation]++
	case faultlog.CategoryQuarantine:
		s.QuarantinedBy[event.PluginID]++
	case faultlog.CategoryStateChange:
		if sess.FaultedAt.IsZero() {
			sess.FaultedAt = event.Timestamp
			sess.FirstFault = event.Fault
		}
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== wheelsafe Fault Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for c := faultlog.CategoryFault; c <= faultlog.CategoryStateChange; c++ {
		if count := stats.EventsByCategory[c]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", c.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Faults) > 0 {
		fmt.Fprintln(w, "Faults:")
		for _, t := range fault.All {
			if count := stats.Faults[t]; count > 0 {
				fmt.Fprintf(w, "  %-28s %d\n", t.String()+":", count)
			}
		}
		fmt.Fprintln(w)
	}

	if len(stats.Violations) > 0 {
		fmt.Fprintln(w, "Violations:")
		for _, k := range sortedKeys(stats.Violations) {
			fmt.Fprintf(w, "  %-28s %d\n", k+":", stats.Violations[k])
		}
		fmt.Fprintln(w)
	}

	if len(stats.QuarantinedBy) > 0 {
		fmt.Fprintln(w, "Quarantined Plugins:")
		for _, k := range sortedKeys(stats.QuarantinedBy) {
			fmt.Fprintf(w, "  %-28s %d\n", k+":", stats.QuarantinedBy[k])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	ids := make([]string, 0, len(stats.Sessions))
	for id := range stats.Sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return stats.Sessions[ids[i]].FirstSeen.Before(stats.Sessions[ids[j]].FirstSeen)
	})
	for _, id := range ids {
		sess := stats.Sessions[id]
		fmt.Fprintf(w, "  [%s] %d events, duration %s\n",
			shortenID(id), sess.Events, sess.LastSeen.Sub(sess.FirstSeen).Round(time.Millisecond))
		if !sess.FaultedAt.IsZero() {
			fmt.Fprintf(w, "           Faulted: %s at %s\n", sess.FirstFault, sess.FaultedAt.Format(time.RFC3339Nano))
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
