package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/artforge-backend/internal/app"
	"github.com/yungbote/artforge-backend/internal/orchestrator"
)

var (
	runMaxRuns      int
	runInterval     time.Duration
	runIgnoreTarget bool
)

func init() {
	runCmd.Flags().IntVar(&runMaxRuns, "runs", 0, "maximum number of tasks to run (0 runs until the collection target)")
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "minimum delay between task starts (defaults to MINT_INTERVAL)")
	runCmd.Flags().BoolVar(&runIgnoreTarget, "ignore-target", false, "keep going past the collection target (requires --runs)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate collection items without the HTTP API",
	Long: `Run generation tasks back to back until the collection target is reached.

Examples:
  # Fill the collection
  artforge run

  # Produce exactly three items, one every ten seconds
  artforge run --runs 3 --interval 10s --ignore-target`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runIgnoreTarget && runMaxRuns <= 0 {
			return fmt.Errorf("--ignore-target requires --runs")
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			interval := runInterval
			if interval <= 0 {
				interval = a.Cfg.Orchestrator.MintInterval
			}
			rep, err := a.RunCollection(ctx, orchestrator.CollectionOptions{
				MaxRuns:      runMaxRuns,
				Interval:     interval,
				IgnoreTarget: runIgnoreTarget,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "runs=%d completed=%d failed=%d stopped=%d remaining=%d\n",
				rep.Runs, rep.Completed, rep.Failed, rep.Stopped, rep.Remaining)
			return err
		})
	},
}
