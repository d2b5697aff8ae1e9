package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/openracing/wheelsafe/pkg/faultlog"
)

// Record is the export form of an event, with names instead of codes.
type Record struct {
	Timestamp string   `json:"timestamp"`
	SessionID string   `json:"session_id"`
	Category  string   `json:"category"`
	Source    string   `json:"source,omitempty"`
	Fault     string   `json:"fault,omitempty"`
	Component string   `json:"component,omitempty"`
	Health    string   `json:"health,omitempty"`
	PluginID  string   `json:"plugin_id,omitempty"`
	Violation string   `json:"violation,omitempty"`
	Message   string   `json:"message,omitempty"`
	TorqueNm  *float64 `json:"torque_nm,omitempty"`
	OldState  string   `json:"old_state,omitempty"`
	NewState  string   `json:"new_state,omitempty"`
}

// NewRecord converts an event for export.
func NewRecord(event faultlog.Event) Record {
	r := Record{
		Timestamp: event.Timestamp.UTC().Format(timeLayout),
		SessionID: event.SessionID,
		Category:  event.Category.String(),
		Source:    event.Source,
		Component: event.Component,
		Health:    event.Health,
		PluginID:  event.PluginID,
		Violation: event.Violation,
		Message:   event.Message,
		TorqueNm:  event.TorqueNm,
		OldState:  event.OldState,
		NewState:  event.NewState,
	}
	if event.Fault.Valid() {
		r.Fault = event.Fault.String()
	}
	return r
}

var csvHeader = []string{
	"timestamp", "session_id", "category", "source", "fault", "component",
	"health", "plugin_id", "violation", "torque_nm", "old_state", "new_state", "message",
}

func (r Record) csvRow() []string {
	torque := ""
	if r.TorqueNm != nil {
		torque = strconv.FormatFloat(*r.TorqueNm, 'f', -1, 64)
	}
	return []string{
		r.Timestamp, r.SessionID, r.Category, r.Source, r.Fault, r.Component,
		r.Health, r.PluginID, r.Violation, torque, r.OldState, r.NewState, r.Message,
	}
}

// RunExport exports the events matching filter to output in format
// (json, jsonl or csv). An empty output writes to stdout.
func RunExport(path, format, output string, filter faultlog.Filter) error {
	switch format {
	case "json", "jsonl", "csv":
	default:
		return fmt.Errorf("unknown format: %s (supported: json, jsonl, csv)", format)
	}

	reader, err := faultlog.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "json":
		return exportJSON(reader, w)
	case "jsonl":
		return exportJSONL(reader, w)
	default:
		return exportCSV(reader, w)
	}
}

func forEach(reader *faultlog.Reader, fn func(Record) error) error {
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(NewRecord(event)); err != nil {
			return err
		}
	}
}

func exportJSON(reader *faultlog.Reader, w io.Writer) error {
	records := []Record{}
	if err := forEach(reader, func(r Record) error {
		records = append(records, r)
		return nil
	}); err != nil {
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}
	return nil
}

func exportJSONL(reader *faultlog.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	return forEach(reader, func(r Record) error {
		if err := encoder.Encode(r); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return nil
	})
}

func exportCSV(reader *faultlog.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := forEach(reader, func(r Record) error {
		if err := cw.Write(r.csvRow()); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		return nil
	}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
