package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fieldsweep/internal/telemetry"
)

type collectWriter struct{ rows []telemetry.TelemetryRow }

func (c *collectWriter) Write(r telemetry.TelemetryRow) error {
	c.rows = append(c.rows, r)
	return nil
}

func encodeRows(t *testing.T, rows []telemetry.TelemetryRow) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	return &buf
}

func TestReplayLog(t *testing.T) {
	rows := []telemetry.TelemetryRow{
		{MissionID: "m1", State: "flying", Tick: 12, Timestamp: time.Unix(0, 0)},
		{MissionID: "m1", State: "completed", Tick: 24, Timestamp: time.Unix(1, 0)},
		{MissionID: "m2", State: "aborted", Tick: 12, Timestamp: time.Unix(2, 0)},
	}
	cw := &collectWriter{}
	stats, err := ReplayLog(context.Background(), encodeRows(t, rows), cw, 0)
	if err != nil {
		t.Fatalf("ReplayLog: %v", err)
	}
	if len(cw.rows) != len(rows) || stats.Rows != len(rows) {
		t.Fatalf("expected %d rows, got %d (stats %d)", len(rows), len(cw.rows), stats.Rows)
	}
	for i, r := range rows {
		if cw.rows[i].Tick != r.Tick {
			t.Fatalf("row %d mismatch: %+v vs %+v", i, cw.rows[i], r)
		}
	}
	if stats.Final["m1"] != "completed" || stats.Final["m2"] != "aborted" {
		t.Fatalf("unexpected final states: %v", stats.Final)
	}
}

func TestReplayLogCancelled(t *testing.T) {
	rows := []telemetry.TelemetryRow{
		{MissionID: "m1", Timestamp: time.Unix(0, 0)},
		{MissionID: "m1", Timestamp: time.Unix(3600, 0)},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cw := &collectWriter{}
	if _, err := ReplayLog(ctx, encodeRows(t, rows), cw, 1); err == nil {
		t.Fatalf("expected cancellation error")
	}
	if len(cw.rows) != 1 {
		t.Fatalf("expected only the first row before the wait, got %d", len(cw.rows))
	}
}

func TestReplayLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.jsonl")
	if err := os.WriteFile(path, []byte(`{"mission_id":"m1","state":"flying"}`+"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cw := &collectWriter{}
	if _, err := ReplayLogFile(context.Background(), path, cw, 0); err != nil {
		t.Fatalf("ReplayLogFile: %v", err)
	}
	if len(cw.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(cw.rows))
	}
	if _, err := ReplayLog(context.Background(), strings.NewReader("{not json"), cw, 0); err == nil {
		t.Fatalf("expected decode error")
	}
}
