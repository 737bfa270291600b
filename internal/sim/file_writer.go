package sim

import (
	"encoding/json"
	"errors"
	"os"
	"sync"

	"fieldsweep/internal/telemetry"
)

// FileWriter writes telemetry, detections and mission events to JSONL files.
type FileWriter struct {
	mu      sync.Mutex
	files   []*os.File
	teleEnc *json.Encoder
	detEnc  *json.Encoder
	evEnc   *json.Encoder
}

// NewFileWriter creates a FileWriter. detectionPath or eventPath may be
// empty to skip those logs.
func NewFileWriter(telemetryPath, detectionPath, eventPath string) (*FileWriter, error) {
	fw := &FileWriter{}
	open := func(path string) (*json.Encoder, error) {
		if path == "" {
			return nil, nil
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		fw.files = append(fw.files, f)
		return json.NewEncoder(f), nil
	}
	var err error
	if fw.teleEnc, err = open(telemetryPath); err != nil {
		fw.Close()
		return nil, err
	}
	if fw.detEnc, err = open(detectionPath); err != nil {
		fw.Close()
		return nil, err
	}
	if fw.evEnc, err = open(eventPath); err != nil {
		fw.Close()
		return nil, err
	}
	return fw, nil
}

func (f *FileWriter) encode(enc *json.Encoder, v any) error {
	if enc == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return enc.Encode(v)
}

// Write logs a single telemetry row.
func (f *FileWriter) Write(row telemetry.TelemetryRow) error {
	return f.encode(f.teleEnc, row)
}

// WriteBatch logs multiple telemetry rows.
func (f *FileWriter) WriteBatch(rows []telemetry.TelemetryRow) error {
	for _, r := range rows {
		if err := f.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteDetection logs a single detection row, if enabled.
func (f *FileWriter) WriteDetection(d telemetry.DetectionRow) error {
	return f.encode(f.detEnc, d)
}

// WriteDetections logs multiple detection rows.
func (f *FileWriter) WriteDetections(rows []telemetry.DetectionRow) error {
	for _, d := range rows {
		if err := f.WriteDetection(d); err != nil {
			return err
		}
	}
	return nil
}

// WriteMissionEvent logs a mission event row, if enabled.
func (f *FileWriter) WriteMissionEvent(e telemetry.MissionEventRow) error {
	return f.encode(f.evEnc, e)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	for _, file := range f.files {
		errs = append(errs, file.Close())
	}
	f.files = nil
	return errors.Join(errs...)
}
