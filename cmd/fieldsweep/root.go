package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"fieldsweep/internal/config"
	"fieldsweep/internal/logging"
)

var (
	configPath string
	schemaPath string
)

var rootCmd = &cobra.Command{
	Use:   "fieldsweep",
	Short: "Quadrotor field sweep mission simulator",
	Long:  "fieldsweep flies a simulated quadrotor over farm fields in a boustrophedon sweep and reports crop detections.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(logging.New())
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the YAML configuration, or the built-in defaults when
// no path is given.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath, schemaPath)
}

func clusterID() string {
	if id := os.Getenv("CLUSTER_ID"); id != "" {
		return id
	}
	return "mission-01"
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/fieldsweep.yaml", "Path to mission configuration YAML (empty for built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "schemas/fieldsweep.cue", "Path to CUE schema file (empty to skip)")
	rootCmd.AddCommand(serveCmd, flyCmd, planCmd, replayCmd, dashboardCmd)
}
