package sim

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"fieldsweep/internal/telemetry"
)

// JSONStdoutWriter prints telemetry, detections and mission events as JSON
// lines to STDOUT.
type JSONStdoutWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

func (w *JSONStdoutWriter) print(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.out.Write(append(data, '\n'))
	return err
}

// Write outputs a telemetry row in JSON format.
func (w *JSONStdoutWriter) Write(row telemetry.TelemetryRow) error {
	return w.print(row)
}

// WriteBatch outputs multiple telemetry rows in JSON format.
func (w *JSONStdoutWriter) WriteBatch(rows []telemetry.TelemetryRow) error {
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteDetection outputs a crop detection in JSON format.
func (w *JSONStdoutWriter) WriteDetection(d telemetry.DetectionRow) error {
	return w.print(d)
}

// WriteMissionEvent outputs a mission event in JSON format.
func (w *JSONStdoutWriter) WriteMissionEvent(e telemetry.MissionEventRow) error {
	return w.print(e)
}
