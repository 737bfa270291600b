package sim

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"fieldsweep/internal/telemetry"
)

const defaultGreptimePort = 4001

// greptimeClient is the subset of the ingester client used by the writer.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes mission telemetry, detections and mission events
// to GreptimeDB via the ingester client.
type GreptimeDBWriter struct {
	client         greptimeClient
	telemetryTable string
	detectionTable string
	eventTable     string
	timeout        time.Duration
}

// NewGreptimeDBWriter connects to endpoint (host or host:port) and writes
// into database. Tables are created by GreptimeDB on first insert.
func NewGreptimeDBWriter(endpoint, database string) (*GreptimeDBWriter, error) {
	host, port := endpoint, defaultGreptimePort
	if h, p, err := net.SplitHostPort(endpoint); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("greptimedb endpoint %q: %w", endpoint, err)
		}
		host, port = h, n
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("[GreptimeDBWriter] connected to %s:%d database=%s", host, port, database)
	return &GreptimeDBWriter{
		client:         client,
		telemetryTable: telemetry.TelemetryTableName,
		detectionTable: telemetry.DetectionTableName,
		eventTable:     telemetry.MissionEventTableName,
		timeout:        5 * time.Second,
	}, nil
}

func (w *GreptimeDBWriter) write(name string, tbl *table.Table, n int) error {
	ctx := context.Background()
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	if _, err := w.client.Write(ctx, tbl); err != nil {
		log.Printf("[GreptimeDBWriter] Write to %s failed: %v", name, err)
		return err
	}
	log.Printf("[GreptimeDBWriter] wrote %d rows to %s", n, name)
	return nil
}

// column is one tag or field of a table layout. The ts time index is
// appended last.
type column struct {
	name string
	tag  bool
	typ  types.ColumnType
}

func newTable(name string, cols []column) (*table.Table, error) {
	tbl, err := table.New(name)
	if err != nil {
		return nil, err
	}
	for _, c := range cols {
		if c.tag {
			err = tbl.AddTagColumn(c.name, c.typ)
		} else {
			err = tbl.AddFieldColumn(c.name, c.typ)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}
	return tbl, nil
}

var telemetryColumns = []column{
	{"cluster_id", true, types.STRING},
	{"mission_id", true, types.STRING},
	{"farm", true, types.STRING},
	{"state", false, types.STRING},
	{"tick", false, types.UINT64},
	{"x", false, types.FLOAT64},
	{"y", false, types.FLOAT64},
	{"z", false, types.FLOAT64},
	{"ref_x", false, types.FLOAT64},
	{"ref_y", false, types.FLOAT64},
	{"ref_z", false, types.FLOAT64},
	{"waypoint", false, types.INT64},
	{"total_waypoints", false, types.INT64},
	{"err_x", false, types.FLOAT64},
	{"err_y", false, types.FLOAT64},
	{"err_z", false, types.FLOAT64},
	{"roll", false, types.FLOAT64},
	{"pitch", false, types.FLOAT64},
	{"yaw", false, types.FLOAT64},
	{"target_roll", false, types.FLOAT64},
	{"target_pitch", false, types.FLOAT64},
	{"motor_0", false, types.FLOAT64},
	{"motor_1", false, types.FLOAT64},
	{"motor_2", false, types.FLOAT64},
	{"motor_3", false, types.FLOAT64},
}

// Write inserts a single telemetry row.
func (w *GreptimeDBWriter) Write(row telemetry.TelemetryRow) error {
	return w.WriteBatch([]telemetry.TelemetryRow{row})
}

// WriteBatch inserts multiple telemetry rows.
func (w *GreptimeDBWriter) WriteBatch(rows []telemetry.TelemetryRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := newTable(w.telemetryTable, telemetryColumns)
	if err != nil {
		return err
	}
	for _, r := range rows {
		err := tbl.AddRow(
			r.ClusterID, r.MissionID, r.Farm,
			r.State, r.Tick,
			r.X, r.Y, r.Z,
			r.RefX, r.RefY, r.RefZ,
			int64(r.Waypoint), int64(r.TotalWaypoints),
			r.ErrX, r.ErrY, r.ErrZ,
			r.Roll, r.Pitch, r.Yaw,
			r.TargetRoll, r.TargetPitch,
			r.Motors[0], r.Motors[1], r.Motors[2], r.Motors[3],
			r.Timestamp,
		)
		if err != nil {
			return err
		}
	}
	return w.write(w.telemetryTable, tbl, len(rows))
}

var detectionColumns = []column{
	{"cluster_id", true, types.STRING},
	{"mission_id", true, types.STRING},
	{"crop_id", false, types.STRING},
	{"label", false, types.STRING},
	{"x", false, types.FLOAT64},
	{"y", false, types.FLOAT64},
	{"confidence", false, types.FLOAT64},
}

// WriteDetection inserts a single detection row.
func (w *GreptimeDBWriter) WriteDetection(row telemetry.DetectionRow) error {
	return w.WriteDetections([]telemetry.DetectionRow{row})
}

// WriteDetections inserts multiple detection rows.
func (w *GreptimeDBWriter) WriteDetections(rows []telemetry.DetectionRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := newTable(w.detectionTable, detectionColumns)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := tbl.AddRow(r.ClusterID, r.MissionID, r.CropID, r.Label, r.X, r.Y, r.Confidence, r.Timestamp); err != nil {
			return err
		}
	}
	return w.write(w.detectionTable, tbl, len(rows))
}

var eventColumns = []column{
	{"cluster_id", true, types.STRING},
	{"mission_id", true, types.STRING},
	{"farm", true, types.STRING},
	{"event_type", false, types.STRING},
	{"from_state", false, types.STRING},
	{"to_state", false, types.STRING},
	{"details", false, types.STRING},
	{"tick", false, types.UINT64},
	{"x", false, types.FLOAT64},
	{"y", false, types.FLOAT64},
	{"z", false, types.FLOAT64},
}

// WriteMissionEvent inserts a mission event row.
func (w *GreptimeDBWriter) WriteMissionEvent(e telemetry.MissionEventRow) error {
	tbl, err := newTable(w.eventTable, eventColumns)
	if err != nil {
		return err
	}
	err = tbl.AddRow(e.ClusterID, e.MissionID, e.Farm, e.EventType, e.FromState, e.ToState, e.Details, e.Tick, e.X, e.Y, e.Z, e.Timestamp)
	if err != nil {
		return err
	}
	return w.write(w.eventTable, tbl, 1)
}
