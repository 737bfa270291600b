package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fieldsweep/internal/mission"
	"fieldsweep/internal/sim"
)

var (
	flyFarm      int
	flyPrintOnly bool
	flyOutput    string
	flyLogFile   string
	flyRealtime  bool
	flyTimeout   time.Duration
)

var flyCmd = &cobra.Command{
	Use:   "fly",
	Short: "Fly one sweep mission headless and exit",
	Long:  "fly deploys a single mission over a configured farm, streams its telemetry and exits non-zero if the mission fails.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Timing.Realtime = flyRealtime
		farmID := flyFarm
		if farmID == 0 && len(cfg.Farms) > 0 {
			farmID = cfg.Farms[0].ID
		}

		writer, cleanup, err := newWriters(cfg, writerOptions{PrintOnly: flyPrintOnly, Output: flyOutput, LogFile: flyLogFile})
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if flyTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, flyTimeout)
			defer cancel()
		}

		simulator, err := sim.NewSimulator(clusterID(), cfg, writer, sim.WithLogger(slog.Default()))
		if err != nil {
			return err
		}
		task, err := simulator.Deploy(ctx, farmID)
		if err != nil {
			return err
		}
		done := make(chan error, 1)
		go func() { done <- task.Wait() }()
		select {
		case err = <-done:
		case <-ctx.Done():
			task.Cancel()
			err = <-done
		}

		st := simulator.Status()
		fmt.Fprintf(os.Stderr, "mission %s over %s finished %s after %s: %d detections, %d waypoints\n",
			st.MissionID, st.FarmRef, st.State, st.EndedAt.Sub(st.StartedAt).Round(time.Millisecond),
			len(simulator.Detections()), st.TotalWaypoints)
		if err != nil {
			return err
		}
		if st.State != mission.StateCompleted {
			if st.LastError != "" {
				return fmt.Errorf("mission ended %s: %s", st.State, st.LastError)
			}
			return fmt.Errorf("mission ended %s", st.State)
		}
		return nil
	},
}

func init() {
	flyCmd.Flags().IntVar(&flyFarm, "farm", 0, "Farm id to sweep (default first configured farm)")
	flyCmd.Flags().BoolVar(&flyPrintOnly, "print-only", false, "Print telemetry to STDOUT instead of writing to DB")
	flyCmd.Flags().StringVar(&flyOutput, "output", outputAuto, "Console output: auto, color or json")
	flyCmd.Flags().StringVar(&flyLogFile, "log-file", "", "Path to export telemetry/detection/event logs (JSONL)")
	flyCmd.Flags().BoolVar(&flyRealtime, "realtime", false, "Pace the mission at wall-clock speed")
	flyCmd.Flags().DurationVar(&flyTimeout, "timeout", 0, "Cancel the mission after this long (0 for none)")
}
