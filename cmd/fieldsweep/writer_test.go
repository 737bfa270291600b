package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fieldsweep/internal/config"
	"fieldsweep/internal/sim"
	"fieldsweep/internal/telemetry"
)

func TestResolveOutput(t *testing.T) {
	cases := []struct {
		mode     string
		tty, tui bool
		want     string
		wantErr  bool
	}{
		{mode: "auto", tty: true, tui: true, want: outputTUI},
		{mode: "auto", tty: true, want: outputColor},
		{mode: "", tty: false, tui: true, want: outputJSON},
		{mode: "json", tty: true, tui: true, want: outputJSON},
		{mode: "tui", tty: false, tui: true, want: outputTUI},
		{mode: "tui", tui: false, wantErr: true},
		{mode: "xml", wantErr: true},
	}
	for _, tc := range cases {
		got, err := resolveOutput(tc.mode, tc.tty, tc.tui)
		if (err != nil) != tc.wantErr {
			t.Fatalf("resolveOutput(%q, %v, %v) error = %v", tc.mode, tc.tty, tc.tui, err)
		}
		if got != tc.want {
			t.Fatalf("resolveOutput(%q, %v, %v) = %q, want %q", tc.mode, tc.tty, tc.tui, got, tc.want)
		}
	}
}

func TestNewWritersPrintOnly(t *testing.T) {
	t.Setenv("GREPTIMEDB_ENDPOINT", "localhost:4001")
	w, cleanup, err := newWriters(config.Default(), writerOptions{PrintOnly: true, Output: outputJSON})
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	cleanup()
	if _, ok := w.(*sim.JSONStdoutWriter); !ok {
		t.Fatalf("expected *sim.JSONStdoutWriter, got %T", w)
	}
}

func TestNewWritersGreptimeFallback(t *testing.T) {
	t.Setenv("GREPTIMEDB_ENDPOINT", "")
	w, cleanup, err := newWriters(config.Default(), writerOptions{Output: outputColor})
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	cleanup()
	if _, ok := w.(*sim.ColorStdoutWriter); !ok {
		t.Fatalf("expected *sim.ColorStdoutWriter, got %T", w)
	}
}

func TestNewWritersLogFile(t *testing.T) {
	t.Setenv("GREPTIMEDB_ENDPOINT", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "telemetry.log")
	w, cleanup, err := newWriters(config.Default(), writerOptions{Output: outputJSON, LogFile: path})
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	mw, ok := w.(*sim.MultiWriter)
	if !ok {
		t.Fatalf("expected *sim.MultiWriter, got %T", w)
	}
	ts := time.Unix(0, 0).UTC()
	if err := mw.Write(telemetry.TelemetryRow{MissionID: "m", Timestamp: ts}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := mw.WriteDetection(telemetry.DetectionRow{CropID: "c", Timestamp: ts}); err != nil {
		t.Fatalf("detection: %v", err)
	}
	if err := mw.WriteMissionEvent(telemetry.MissionEventRow{EventType: telemetry.EventCommand, Details: "abort", Timestamp: ts}); err != nil {
		t.Fatalf("event: %v", err)
	}
	cleanup()

	for _, p := range []string{path, path + ".detections", path + ".events"} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", p)
		}
	}
}
