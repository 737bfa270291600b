package sim

import (
	"errors"
	"testing"

	"fieldsweep/internal/telemetry"
)

type stubCommandWriter struct {
	rows  []telemetry.TelemetryRow
	cmds  Commands
	admin bool
}

func (s *stubCommandWriter) Write(r telemetry.TelemetryRow) error {
	s.rows = append(s.rows, r)
	return nil
}
func (s *stubCommandWriter) SetCommands(c Commands) { s.cmds = c }
func (s *stubCommandWriter) SetAdminStatus(on bool) { s.admin = on }

type failingWriter struct{}

func (failingWriter) Write(telemetry.TelemetryRow) error { return errors.New("sink down") }

func TestMultiWriterSetCommands(t *testing.T) {
	s := &stubCommandWriter{}
	mw := NewMultiWriter([]TelemetryWriter{s}, nil, nil)
	mw.SetCommands(Commands{Abort: func() error { return nil }})
	if s.cmds.Abort == nil {
		t.Fatalf("commands not forwarded")
	}
	mw.SetAdminStatus(true)
	if !s.admin {
		t.Fatalf("admin status not forwarded")
	}
}

func TestMultiWriterBatchFallback(t *testing.T) {
	s := &stubCommandWriter{}
	mw := NewMultiWriter([]TelemetryWriter{s}, nil, nil)
	if err := mw.WriteBatch([]telemetry.TelemetryRow{{Tick: 1}, {Tick: 2}}); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(s.rows) != 2 {
		t.Fatalf("expected 2 rows via single writes, got %d", len(s.rows))
	}
}

func TestMultiWriterStopsOnError(t *testing.T) {
	s := &stubCommandWriter{}
	mw := NewMultiWriter([]TelemetryWriter{failingWriter{}, s}, nil, nil)
	if err := mw.Write(telemetry.TelemetryRow{}); err == nil {
		t.Fatalf("expected error from failing writer")
	}
	if len(s.rows) != 0 {
		t.Fatalf("writer after a failure should not be called")
	}
}
