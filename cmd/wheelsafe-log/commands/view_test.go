package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openracing/wheelsafe/pkg/fault"
	"github.com/openracing/wheelsafe/pkg/faultlog"
)

var baseTime = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func createTestLogFile(t *testing.T, events []faultlog.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+faultlog.FileExt)
	logger, err := faultlog.NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func sessionEvents(session string, offset time.Duration) []faultlog.Event {
	ts := baseTime.Add(offset)
	return []faultlog.Event{
		{Timestamp: ts, SessionID: session, Category: faultlog.CategoryViolation, Violation: "TORQUE_EXCEEDS_LIMIT", TorqueNm: faultlog.Torque(8)},
		{Timestamp: ts.Add(time.Second), SessionID: session, Category: faultlog.CategoryQuarantine, Source: "ffb", PluginID: "ffb", Fault: fault.PluginOverrun},
		{Timestamp: ts.Add(2 * time.Second), SessionID: session, Category: faultlog.CategoryHealth, Source: "hid_communication", Component: "hid_communication", Health: "faulted"},
		{Timestamp: ts.Add(2 * time.Second), SessionID: session, Category: faultlog.CategoryFault, Source: "hid_communication", Fault: fault.UsbStall},
		{Timestamp: ts.Add(2 * time.Second), SessionID: session, Category: faultlog.CategoryStateChange, Source: "hid_communication", Fault: fault.UsbStall, OldState: "SAFE_TORQUE", NewState: "FAULTED"},
	}
}

func TestViewFormatsEachCategory(t *testing.T) {
	path := createTestLogFile(t, sessionEvents("0123456789abcdef", 0))

	var buf bytes.Buffer
	if err := RunView(path, faultlog.Filter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"[session:01234567]",
		"TORQUE_EXCEEDS_LIMIT",
		"Torque: 8.000 Nm",
		"Plugin: ffb",
		"Component: hid_communication -> faulted",
		"USB_STALL",
		"Transition: SAFE_TORQUE -> FAULTED",
		"FAULTED (USB_STALL)",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestViewAppliesFilter(t *testing.T) {
	path := createTestLogFile(t, append(sessionEvents("a", 0), sessionEvents("b", time.Hour)...))

	filter, err := BuildFilter(FilterOptions{SessionID: "b", Category: "fault"})
	if err != nil {
		t.Fatalf("BuildFilter failed: %v", err)
	}
	var buf bytes.Buffer
	if err := RunView(path, filter, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	if n := strings.Count(buf.String(), "[session:b]"); n != 1 {
		t.Errorf("expected 1 event, got %d:\n%s", n, buf.String())
	}
}

func TestViewMissingFile(t *testing.T) {
	err := RunView(filepath.Join(t.TempDir(), "missing.flog"), faultlog.Filter{}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
