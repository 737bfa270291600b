// Telemetry row types written to the configured sinks
package telemetry

import (
	"os"
	"time"
)

func envOr(key, def string) string {
	if env := os.Getenv(key); env != "" {
		return env
	}
	return def
}

// ClusterID tags every row with the simulator instance. It defaults to
// "local" and can be overridden via the CLUSTER_ID environment variable.
var ClusterID = envOr("CLUSTER_ID", "local")

// TelemetryTableName holds the table name used when writing mission
// telemetry to GreptimeDB. It defaults to "mission_telemetry" but can be
// overridden via the GREPTIMEDB_TABLE environment variable.
var TelemetryTableName = envOr("GREPTIMEDB_TABLE", "mission_telemetry")

// DetectionTableName is overridden via DETECTION_TABLE.
var DetectionTableName = envOr("DETECTION_TABLE", "crop_detections")

// MissionEventTableName is overridden via MISSION_EVENT_TABLE.
var MissionEventTableName = envOr("MISSION_EVENT_TABLE", "mission_events")

// TelemetryRow is one sampled control tick of a mission.
type TelemetryRow struct {
	ClusterID      string     `json:"cluster_id"` // TAG
	MissionID      string     `json:"mission_id"` // TAG
	Farm           string     `json:"farm"`       // TAG
	State          string     `json:"state"`
	Tick           uint64     `json:"tick"`
	X              float64    `json:"x"`
	Y              float64    `json:"y"`
	Z              float64    `json:"z"`
	RefX           float64    `json:"ref_x"`
	RefY           float64    `json:"ref_y"`
	RefZ           float64    `json:"ref_z"`
	Waypoint       int        `json:"waypoint"`
	TotalWaypoints int        `json:"total_waypoints"`
	ErrX           float64    `json:"err_x"`
	ErrY           float64    `json:"err_y"`
	ErrZ           float64    `json:"err_z"`
	Roll           float64    `json:"roll"`
	Pitch          float64    `json:"pitch"`
	Yaw            float64    `json:"yaw"`
	TargetRoll     float64    `json:"target_roll"`
	TargetPitch    float64    `json:"target_pitch"`
	Motors         [4]float64 `json:"motors"`
	Timestamp      time.Time  `json:"ts"` // TIME INDEX
}

func (TelemetryRow) TableName() string { return TelemetryTableName }

// DetectionRow is one diseased crop reported during a sweep.
type DetectionRow struct {
	ClusterID  string    `json:"cluster_id"`
	MissionID  string    `json:"mission_id"`
	CropID     string    `json:"crop_id"`
	Label      string    `json:"label"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"ts"`
}

func (DetectionRow) TableName() string { return DetectionTableName }
