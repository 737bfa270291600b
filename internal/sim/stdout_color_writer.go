// ColorStdoutWriter prints human-friendly, colorized telemetry to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"fieldsweep/internal/config"
	"fieldsweep/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// stateColors maps mission states to their display color.
var stateColors = map[string]string{
	"idle":           colorGray,
	"deploying":      colorBlue,
	"flying":         colorGreen,
	"stalled":        colorYellow,
	"returning_home": colorMagenta,
	"aborted":        colorYellow,
	"completed":      colorCyan,
	"error":          colorRed,
}

func stateColor(state string) string {
	if c, ok := stateColors[state]; ok {
		return c
	}
	return colorWhite()
}

// ColorStdoutWriter prints telemetry rows using ANSI colors.
type ColorStdoutWriter struct {
	cfg  *config.Config
	out  io.Writer
	once sync.Once
	mu   sync.Mutex
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter(cfg *config.Config) *ColorStdoutWriter {
	return &ColorStdoutWriter{cfg: cfg, out: os.Stdout}
}

func (w *ColorStdoutWriter) printOverview() {
	if w.cfg == nil {
		return
	}
	m := w.cfg.Mission
	fmt.Fprintln(w.out, "Mission Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Airframe:\t%s\n", w.cfg.Airframe)
	fmt.Fprintf(tw, "Hover Altitude (m):\t%.2f\n", m.HoverAltitude)
	fmt.Fprintf(tw, "Sweep Step (m):\t%.2f\n", m.SweepStep)
	fmt.Fprintf(tw, "Cruise Speed (m/s):\t%.2f\n", m.CruiseSpeed)
	fmt.Fprintf(tw, "Dwell (s):\t%.2f\n", m.DwellTime)
	fmt.Fprintf(tw, "Physics / Control (Hz):\t%.0f / %.0f\n", w.cfg.Timing.SimHz, w.cfg.Timing.CtrlHz)
	tw.Flush()

	fmt.Fprintln(w.out, "\nFarms:")
	tw = tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tName\tLocation\tBounds\n")
	for _, f := range w.cfg.Farms {
		b := f.Boundaries
		fmt.Fprintf(tw, "%s%d%s\t%s\t%s\t(%.1f,%.1f)-(%.1f,%.1f)\n", colorCyan, f.ID, colorReset, f.Name, f.Location, b.MinX, b.MinY, b.MaxX, b.MaxY)
	}
	tw.Flush()
	fmt.Fprintln(w.out)
}

// Write outputs a single telemetry row in colorized format.
func (w *ColorStdoutWriter) Write(row telemetry.TelemetryRow) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()

	fmt.Fprintf(w.out, "%s[%s]%s ", colorGray, row.Timestamp.Format(time.RFC3339), colorReset)
	fmt.Fprintf(w.out, "%smission=%.8s%s ", colorBlue, row.MissionID, colorReset)
	fmt.Fprintf(w.out, "%sfarm=%s%s ", colorWhite(), row.Farm, colorReset)
	fmt.Fprintf(w.out, "%sstate=%s%s ", stateColor(row.State), row.State, colorReset)
	fmt.Fprintf(w.out, "%spos=(%.2f,%.2f,%.2f)%s ", colorGreen, row.X, row.Y, row.Z, colorReset)
	fmt.Fprintf(w.out, "%sref=(%.2f,%.2f,%.2f)%s ", colorYellow, row.RefX, row.RefY, row.RefZ, colorReset)
	fmt.Fprintf(w.out, "%swp=%d/%d%s ", colorCyan, row.Waypoint+1, row.TotalWaypoints, colorReset)
	fmt.Fprintf(w.out, "%srpy=(%.2f,%.2f,%.2f)%s ", colorMagenta, row.Roll, row.Pitch, row.Yaw, colorReset)
	fmt.Fprintf(w.out, "%srpm=[%.0f %.0f %.0f %.0f]%s", colorGray, row.Motors[0], row.Motors[1], row.Motors[2], row.Motors[3], colorReset)
	fmt.Fprintln(w.out)
	return nil
}

// WriteBatch outputs multiple telemetry rows.
func (w *ColorStdoutWriter) WriteBatch(rows []telemetry.TelemetryRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteDetection prints a crop detection to STDOUT.
func (w *ColorStdoutWriter) WriteDetection(d telemetry.DetectionRow) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%s[%s]%s %sDETECTION%s crop=%.8s label=%s x=%.2f y=%.2f conf=%.2f\n",
		colorGray, d.Timestamp.Format(time.RFC3339), colorReset,
		colorRed, colorReset, d.CropID, d.Label, d.X, d.Y, d.Confidence)
	return nil
}

// WriteDetections prints multiple crop detections.
func (w *ColorStdoutWriter) WriteDetections(rows []telemetry.DetectionRow) error {
	for _, d := range rows {
		_ = w.WriteDetection(d)
	}
	return nil
}

// WriteMissionEvent prints a mission transition or command to STDOUT.
func (w *ColorStdoutWriter) WriteMissionEvent(e telemetry.MissionEventRow) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%s[%s]%s %sMISSION%s ", colorGray, e.Timestamp.Format(time.RFC3339), colorReset, colorCyan, colorReset)
	if e.EventType == telemetry.EventTransition {
		fmt.Fprintf(w.out, "%s -> %s%s%s", e.FromState, stateColor(e.ToState), e.ToState, colorReset)
	} else {
		fmt.Fprintf(w.out, "command=%s", e.Details)
	}
	if e.EventType == telemetry.EventTransition && e.Details != "" {
		fmt.Fprintf(w.out, " (%s)", e.Details)
	}
	fmt.Fprintf(w.out, " tick=%d\n", e.Tick)
	return nil
}

func colorWhite() string { return "\x1b[37m" }
