package commands

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/openracing/wheelsafe/pkg/faultlog"
)

func exportTo(t *testing.T, format string) string {
	t.Helper()
	path := createTestLogFile(t, sessionEvents("s-1", 0))
	out := filepath.Join(t.TempDir(), "out."+format)
	if err := RunExport(path, format, out, faultlog.Filter{}); err != nil {
		t.Fatalf("RunExport(%s) failed: %v", format, err)
	}
	return out
}

func TestExportJSONL(t *testing.T) {
	f, err := os.Open(exportTo(t, "jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("invalid JSON line %q: %v", scanner.Text(), err)
		}
		records = append(records, r)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	if records[0].Category != "VIOLATION" || records[0].TorqueNm == nil || *records[0].TorqueNm != 8 {
		t.Errorf("unexpected violation record: %+v", records[0])
	}
	if records[0].Fault != "" {
		t.Errorf("violation should have no fault, got %q", records[0].Fault)
	}
	if records[1].Fault != "PLUGIN_OVERRUN" || records[1].PluginID != "ffb" {
		t.Errorf("unexpected quarantine record: %+v", records[1])
	}
	if records[4].NewState != "FAULTED" {
		t.Errorf("unexpected state record: %+v", records[4])
	}
}

func TestExportJSONArray(t *testing.T) {
	data, err := os.ReadFile(exportTo(t, "json"))
	if err != nil {
		t.Fatal(err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(records) != 5 {
		t.Errorf("expected 5 records, got %d", len(records))
	}
	if records[0].Timestamp != "2026-06-01T10:00:00.000000Z" {
		t.Errorf("Timestamp = %s", records[0].Timestamp)
	}
}

func TestExportCSV(t *testing.T) {
	f, err := os.Open(exportTo(t, "csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected header + 5 rows, got %d", len(rows))
	}
	if rows[0][0] != "timestamp" || len(rows[0]) != len(csvHeader) {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][9] != "8" {
		t.Errorf("torque column = %q, want 8", rows[1][9])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, nil)
	if err := RunExport(path, "xml", "", faultlog.Filter{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
