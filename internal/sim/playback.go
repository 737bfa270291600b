package sim

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"fieldsweep/internal/telemetry"
)

// ReplayStats summarises a replayed telemetry log.
type ReplayStats struct {
	Rows int
	// Final holds the last state seen for each mission id.
	Final map[string]string
}

// ReplayLog replays telemetry rows from r to writer. A speed >0 paces rows
// by their recorded timestamps divided by speed; if speed <= 0, no
// artificial delay is inserted.
func ReplayLog(ctx context.Context, r io.Reader, writer TelemetryWriter, speed float64) (ReplayStats, error) {
	stats := ReplayStats{Final: map[string]string{}}
	dec := json.NewDecoder(r)
	var prev time.Time
	for {
		var row telemetry.TelemetryRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return stats, nil
			}
			return stats, err
		}
		if !prev.IsZero() && speed > 0 {
			if diff := time.Duration(float64(row.Timestamp.Sub(prev)) / speed); diff > 0 {
				t := time.NewTimer(diff)
				select {
				case <-t.C:
				case <-ctx.Done():
					t.Stop()
					return stats, ctx.Err()
				}
			}
		}
		if err := writer.Write(row); err != nil {
			return stats, err
		}
		stats.Rows++
		stats.Final[row.MissionID] = row.State
		prev = row.Timestamp
	}
}

// ReplayLogFile opens a file and replays its telemetry rows.
func ReplayLogFile(ctx context.Context, path string, writer TelemetryWriter, speed float64) (ReplayStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ReplayStats{}, err
	}
	defer f.Close()
	return ReplayLog(ctx, f, writer, speed)
}
