package sim

import "fieldsweep/internal/telemetry"

// TelemetryWriter is an interface to support different output writers.
type TelemetryWriter interface {
	Write(telemetry.TelemetryRow) error
}

// Optional: Writers can also support batch mode
type batchWriter interface {
	WriteBatch([]telemetry.TelemetryRow) error
}

// DetectionWriter handles diseased crop detections.
type DetectionWriter interface {
	WriteDetection(telemetry.DetectionRow) error
}

// Optional: Detection writers may support batch mode.
type batchDetectionWriter interface {
	WriteDetections([]telemetry.DetectionRow) error
}

// MissionEventWriter handles mission transitions and operator commands.
type MissionEventWriter interface {
	WriteMissionEvent(telemetry.MissionEventRow) error
}

// AdminStatusWriter allows writers to receive admin UI status updates.
type AdminStatusWriter interface {
	SetAdminStatus(listening bool)
}

// Commands are the operator actions a writer may trigger, such as key
// bindings in the TUI.
type Commands struct {
	TogglePause func() (bool, error)
	Abort       func() error
	Deploy      func(farmID int) error
}

// CommandWriter is implemented by writers that accept operator input.
type CommandWriter interface {
	SetCommands(Commands)
}
