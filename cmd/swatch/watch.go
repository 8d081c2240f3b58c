package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/boshu2/sessionwatch/internal/watch"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of running sessions",
	Long: `Show running sessions in a full-screen view that refreshes on an
interval and whenever a transcript or hook-state file is written.

Keys: j/k move, g/G top/bottom, r refresh, q quit.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.GroupID = "live"
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", watch.DefaultInterval, "Refresh interval")
}

func runWatch(cmd *cobra.Command, args []string) error {
	eng, cfg, logger, err := newEngine(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return watch.Run(ctx, eng, watch.Config{
		ProjectsDir: cfg.Paths.ProjectsDir,
		StateDir:    cfg.Paths.StateDir,
		Options:     []watch.Option{watch.WithInterval(watchInterval)},
		Logger:      logger,
	})
}
