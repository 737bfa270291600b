package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/cobra"

	"fieldsweep/internal/config"
	"fieldsweep/internal/planner"
)

var (
	planFarm    int
	planPlotDir string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the sweep waypoints for configured farms",
	Long:  "plan computes the boustrophedon sweep for each farm without flying it, optionally plotting the path to PNG.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		farms := cfg.Farms
		if planFarm != 0 {
			f, ok := cfg.FarmByID(planFarm)
			if !ok {
				return fmt.Errorf("unknown farm %d", planFarm)
			}
			farms = []config.Farm{f}
		}
		params := cfg.MissionSettings().Plan
		for _, farm := range farms {
			wps, err := planner.Sweep(farm.Field(), params)
			if err != nil {
				return fmt.Errorf("farm %s: %w", farm.Ref(), err)
			}
			printPlan(cmd.OutOrStdout(), farm, params, wps)
			if planPlotDir != "" {
				path := filepath.Join(planPlotDir, fmt.Sprintf("farm-%d.png", farm.ID))
				if err := planner.SavePNG(path, farm.Field(), wps, farm.Name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "plot written to %s\n", path)
			}
		}
		return nil
	},
}

// printPlan writes a summary line and a waypoint table for one farm.
func printPlan(w io.Writer, farm config.Farm, p planner.Params, wps []mgl64.Vec3) {
	title := lipgloss.NewStyle().Bold(true).Render(farm.Ref())
	fmt.Fprintf(w, "%s  rows=%d waypoints=%d path=%.2fm\n",
		title, planner.RowCount(farm.Field(), p.Step), len(wps), planner.PathLength(wps))
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "X", "Y", "Z")
	for i, wp := range wps {
		t.Row(strconv.Itoa(i),
			strconv.FormatFloat(wp[0], 'f', 2, 64),
			strconv.FormatFloat(wp[1], 'f', 2, 64),
			strconv.FormatFloat(wp[2], 'f', 2, 64))
	}
	fmt.Fprintln(w, t.Render())
}

func init() {
	planCmd.Flags().IntVar(&planFarm, "farm", 0, "Only plan this farm id")
	planCmd.Flags().StringVar(&planPlotDir, "plot", "", "Directory to write PNG path plots into")
}
