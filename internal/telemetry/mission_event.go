package telemetry

import "time"

const (
	EventTransition = "transition"
	EventCommand    = "command"
)

// MissionEventRow records a mission state change or an operator command.
type MissionEventRow struct {
	ClusterID string    `json:"cluster_id"`
	MissionID string    `json:"mission_id"`
	Farm      string    `json:"farm"`
	EventType string    `json:"event_type"`
	FromState string    `json:"from_state,omitempty"`
	ToState   string    `json:"to_state,omitempty"`
	Details   string    `json:"details"`
	Tick      uint64    `json:"tick"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Timestamp time.Time `json:"ts"`
}

func (MissionEventRow) TableName() string { return MissionEventTableName }
