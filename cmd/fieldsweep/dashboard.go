package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fieldsweep/internal/dashboard"
)

var dashboardOut string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render the Grafana dashboard for the mission tables",
	Long:  "dashboard renders the embedded Grafana dashboard. GREPTIMEDB_DATASOURCE_UID must be set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := dashboard.Render(dashboardOut)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintf(cmd.OutOrStdout(), "Dashboard written to %s\n", p)
		}
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "dashboards", "Directory for rendered dashboards")
}
