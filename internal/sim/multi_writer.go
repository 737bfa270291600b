package sim

import (
	"fieldsweep/internal/telemetry"
)

// MultiWriter fan-outs telemetry, detection and mission event rows to
// multiple writers.
type MultiWriter struct {
	telewriters []TelemetryWriter
	detwriters  []DetectionWriter
	evwriters   []MissionEventWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(tws []TelemetryWriter, dws []DetectionWriter, ews []MissionEventWriter) *MultiWriter {
	return &MultiWriter{telewriters: tws, detwriters: dws, evwriters: ews}
}

// Write sends a telemetry row to all writers.
func (mw *MultiWriter) Write(row telemetry.TelemetryRow) error {
	for _, w := range mw.telewriters {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch sends multiple telemetry rows to all writers, using batch if supported.
func (mw *MultiWriter) WriteBatch(rows []telemetry.TelemetryRow) error {
	for _, w := range mw.telewriters {
		if bw, ok := w.(batchWriter); ok {
			if err := bw.WriteBatch(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.Write(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteDetection sends a detection row to all detection writers.
func (mw *MultiWriter) WriteDetection(row telemetry.DetectionRow) error {
	for _, w := range mw.detwriters {
		if err := w.WriteDetection(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteDetections sends multiple detections to all detection writers, using batch if supported.
func (mw *MultiWriter) WriteDetections(rows []telemetry.DetectionRow) error {
	for _, w := range mw.detwriters {
		if bw, ok := w.(batchDetectionWriter); ok {
			if err := bw.WriteDetections(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.WriteDetection(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteMissionEvent sends a mission event to all event writers.
func (mw *MultiWriter) WriteMissionEvent(row telemetry.MissionEventRow) error {
	for _, w := range mw.evwriters {
		if err := w.WriteMissionEvent(row); err != nil {
			return err
		}
	}
	return nil
}

// SetCommands forwards operator commands to writers that accept them.
func (mw *MultiWriter) SetCommands(c Commands) {
	for _, w := range mw.telewriters {
		if cw, ok := w.(CommandWriter); ok {
			cw.SetCommands(c)
		}
	}
}

// SetAdminStatus forwards the admin listener state.
func (mw *MultiWriter) SetAdminStatus(listening bool) {
	for _, w := range mw.telewriters {
		if aw, ok := w.(AdminStatusWriter); ok {
			aw.SetAdminStatus(listening)
		}
	}
}
