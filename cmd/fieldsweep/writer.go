package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"fieldsweep/internal/config"
	"fieldsweep/internal/sim"
)

// Output modes accepted by --output.
const (
	outputAuto  = "auto"
	outputTUI   = "tui"
	outputColor = "color"
	outputJSON  = "json"
)

// resolveOutput turns "auto" into a concrete mode. The TUI needs an
// interactive terminal and is only chosen when allowTUI is set.
func resolveOutput(mode string, isTTY, allowTUI bool) (string, error) {
	switch mode {
	case outputAuto, "":
		switch {
		case isTTY && allowTUI:
			return outputTUI, nil
		case isTTY:
			return outputColor, nil
		default:
			return outputJSON, nil
		}
	case outputTUI:
		if !allowTUI {
			return "", fmt.Errorf("output %q is not available for this command", mode)
		}
		return mode, nil
	case outputColor, outputJSON:
		return mode, nil
	}
	return "", fmt.Errorf("unknown output %q (want auto, tui, color or json)", mode)
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// writerOptions selects the telemetry sinks.
type writerOptions struct {
	PrintOnly bool
	Output    string
	LogFile   string
	AllowTUI  bool
}

// newWriters sets up the telemetry sinks based on flags and env vars.
// GREPTIMEDB_ENDPOINT selects GreptimeDB unless PrintOnly is set. It returns
// the writer and a cleanup function to close any resources.
func newWriters(cfg *config.Config, o writerOptions) (sim.TelemetryWriter, func(), error) {
	var closers []io.Closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
	}

	base, err := baseWriter(cfg, o)
	if err != nil {
		return nil, nil, err
	}
	if c, ok := base.(io.Closer); ok {
		closers = append(closers, c)
	}
	if o.LogFile == "" {
		return base, cleanup, nil
	}

	fw, err := sim.NewFileWriter(o.LogFile, o.LogFile+".detections", o.LogFile+".events")
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, fw)

	dws := []sim.DetectionWriter{fw}
	if dw, ok := base.(sim.DetectionWriter); ok {
		dws = append(dws, dw)
	}
	ews := []sim.MissionEventWriter{fw}
	if ew, ok := base.(sim.MissionEventWriter); ok {
		ews = append(ews, ew)
	}
	return sim.NewMultiWriter([]sim.TelemetryWriter{base, fw}, dws, ews), cleanup, nil
}

// baseWriter chooses the primary sink.
func baseWriter(cfg *config.Config, o writerOptions) (sim.TelemetryWriter, error) {
	if endpoint := os.Getenv("GREPTIMEDB_ENDPOINT"); !o.PrintOnly && endpoint != "" {
		db := os.Getenv("GREPTIMEDB_DATABASE")
		if db == "" {
			db = "public"
		}
		return sim.NewGreptimeDBWriter(endpoint, db)
	}
	mode, err := resolveOutput(o.Output, stdoutIsTerminal(), o.AllowTUI)
	if err != nil {
		return nil, err
	}
	switch mode {
	case outputTUI:
		return sim.NewTUIWriter(cfg), nil
	case outputColor:
		return sim.NewColorStdoutWriter(cfg), nil
	default:
		return sim.NewJSONStdoutWriter(), nil
	}
}
