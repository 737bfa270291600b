package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"fieldsweep/internal/sim"
)

var (
	replayInput     string
	replaySpeed     float64
	replayPrintOnly bool
	replayOutput    string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a telemetry log file",
	Long:  "replay feeds telemetry rows from a JSONL log back into GreptimeDB or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		writer, cleanup, err := newWriters(cfg, writerOptions{PrintOnly: replayPrintOnly, Output: replayOutput})
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		stats, err := sim.ReplayLogFile(ctx, replayInput, writer, replaySpeed)
		missions := make([]string, 0, len(stats.Final))
		for id := range stats.Final {
			missions = append(missions, id)
		}
		sort.Strings(missions)
		fmt.Fprintf(os.Stderr, "replayed %d rows\n", stats.Rows)
		for _, id := range missions {
			fmt.Fprintf(os.Stderr, "  mission %s ended %s\n", id, stats.Final[id])
		}
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to telemetry log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 for no pacing)")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print telemetry to STDOUT instead of writing to DB")
	replayCmd.Flags().StringVar(&replayOutput, "output", outputAuto, "Console output: auto, color or json")
	replayCmd.MarkFlagRequired("input")
}
