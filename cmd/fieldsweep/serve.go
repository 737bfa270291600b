package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fieldsweep/internal/admin"
	"fieldsweep/internal/logging"
	"fieldsweep/internal/sim"
)

var (
	servePrintOnly bool
	serveOutput    string
	serveLogFile   string
	serveAddr      string
	serveDeploy    int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mission service with the admin API",
	Long:  "serve keeps a mission service running and accepts deploy, pause and abort commands from the admin API and the terminal UI.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Admin.Addr = serveAddr
		}
		// Real-time pacing keeps the service responsive to operators.
		cfg.Timing.Realtime = true

		opts := writerOptions{PrintOnly: servePrintOnly, Output: serveOutput, LogFile: serveLogFile, AllowTUI: true}
		if usesTUI(opts) {
			// The TUI owns the terminal; plain log lines would corrupt it.
			slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		}
		writer, cleanup, err := newWriters(cfg, opts)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		logger := logging.Component(slog.Default(), "serve")
		ctx = logging.NewContext(ctx, logger)

		simulator, err := sim.NewSimulator(clusterID(), cfg, writer, sim.WithLogger(slog.Default()))
		if err != nil {
			return err
		}
		if cw, ok := writer.(sim.CommandWriter); ok {
			cw.SetCommands(sim.Commands{
				TogglePause: simulator.TogglePause,
				Abort:       simulator.Abort,
				Deploy: func(farmID int) error {
					_, err := simulator.Deploy(context.Background(), farmID)
					return err
				},
			})
		}
		aw, _ := writer.(sim.AdminStatusWriter)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if aw != nil {
				aw.SetAdminStatus(true)
				defer aw.SetAdminStatus(false)
			}
			return admin.NewServer(simulator).Start(gctx, cfg.Admin.Addr)
		})
		g.Go(func() error { return simulator.Run(gctx) })

		if serveDeploy > 0 {
			if _, err := simulator.Deploy(ctx, serveDeploy); err != nil {
				logger.Warn("initial deploy failed", "farm_id", serveDeploy, "err", err)
			}
		}

		err = g.Wait()
		log.Println("[Main] Field sweep service stopped.")
		return err
	},
}

// usesTUI reports whether newWriters would start the terminal UI.
func usesTUI(o writerOptions) bool {
	if !o.PrintOnly && os.Getenv("GREPTIMEDB_ENDPOINT") != "" {
		return false
	}
	mode, err := resolveOutput(o.Output, stdoutIsTerminal(), o.AllowTUI)
	return err == nil && mode == outputTUI
}

func init() {
	serveCmd.Flags().BoolVar(&servePrintOnly, "print-only", false, "Print telemetry to STDOUT instead of writing to DB")
	serveCmd.Flags().StringVar(&serveOutput, "output", outputAuto, "Console output: auto, tui, color or json")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "Path to export telemetry/detection/event logs (JSONL)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Admin API listen address (overrides config)")
	serveCmd.Flags().IntVar(&serveDeploy, "deploy", 0, "Deploy to this farm id on start")
}
