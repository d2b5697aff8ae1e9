package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/openracing/wheelsafe/pkg/fault"
	"github.com/openracing/wheelsafe/pkg/faultlog"
)

// FilterOptions holds the string forms of the event filter flags.
type FilterOptions struct {
	SessionID string
	Category  string
	Fault     string
	Source    string
	TimeStart string
	TimeEnd   string
}

// BuildFilter parses opts into a fault log filter.
func BuildFilter(opts FilterOptions) (faultlog.Filter, error) {
	filter := faultlog.Filter{
		SessionID: opts.SessionID,
		Source:    opts.Source,
	}

	if opts.Category != "" {
		c, err := ParseCategoryFlag(opts.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}

	if opts.Fault != "" {
		f, ok := fault.Parse(strings.ToUpper(opts.Fault))
		if !ok {
			return filter, fmt.Errorf("invalid fault type: %s", opts.Fault)
		}
		filter.Fault = &f
	}

	if opts.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}

	if opts.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	return filter, nil
}

// ParseCategoryFlag parses a category name (case-insensitive, '-' or '_').
func ParseCategoryFlag(s string) (faultlog.Category, error) {
	name := strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
	c, ok := faultlog.ParseCategory(name)
	if !ok {
		return 0, fmt.Errorf("invalid category: %s (must be fault, violation, quarantine, health, or state_change)", s)
	}
	return c, nil
}

// RunFilter copies the events matching filter from path to output.
func RunFilter(path, output string, filter faultlog.Filter, w io.Writer) error {
	reader, err := faultlog.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := faultlog.NewFileLogger(output)
	if err != nil {
		return fmt.Errorf("failed to create output logger: %w", err)
	}

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Close()
			return fmt.Errorf("failed to read event: %w", err)
		}
		logger.Log(event)
		count++
	}
	if err := logger.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	if n := logger.WriteErrors(); n > 0 {
		return fmt.Errorf("failed to write %d events to %s", n, output)
	}

	fmt.Fprintf(w, "Filtered %d events to %s\n", count, output)
	return nil
}
