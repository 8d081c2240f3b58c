package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/boshu2/sessionwatch/internal/formatter"
	"github.com/boshu2/sessionwatch/internal/types"
)

var (
	historyHours   float64
	graveQuery     string
	graveContent   bool
	graveyardHours float64
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List running sessions",
	Long: `List the agent CLI processes running on this machine, each matched to
its transcript, active sessions first.

State is "active" or "waiting". A trailing * in the table marks state
reported by hooks rather than inferred from transcript recency and CPU.

Examples:
  swatch sessions
  swatch sessions -o json`,
	Args: cobra.NoArgs,
	RunE: runSessions,
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "List recently written transcripts",
	Long: `List every transcript written within --hours, newest first. Sessions a
running process is attached to are marked with *.

Examples:
  swatch all
  swatch all --hours 24 -o jsonl`,
	Args: cobra.NoArgs,
	RunE: runAll,
}

var graveyardCmd = &cobra.Command{
	Use:   "graveyard",
	Short: "List recent sessions no process is attached to",
	Long: `List recently written transcripts whose process has exited, newest
first. --query keeps sessions whose slug, summary, cwd, branch or recent
activity contain the text (case-insensitive); --content also searches the
transcript body.

Examples:
  swatch graveyard
  swatch graveyard --query auth --content --hours 48`,
	Args: cobra.NoArgs,
	RunE: runGraveyard,
}

func init() {
	sessionsCmd.GroupID = "live"
	allCmd.GroupID = "history"
	graveyardCmd.GroupID = "history"
	rootCmd.AddCommand(sessionsCmd, allCmd, graveyardCmd)

	allCmd.Flags().Float64Var(&historyHours, "hours", 0, "Only transcripts written within this many hours (default from config)")
	graveyardCmd.Flags().Float64Var(&graveyardHours, "hours", 0, "Only transcripts written within this many hours (default from config)")
	graveyardCmd.Flags().StringVarP(&graveQuery, "query", "q", "", "Case-insensitive text filter")
	graveyardCmd.Flags().BoolVar(&graveContent, "content", false, "Also search transcript bodies")
}

type sessionLister interface {
	Sessions(ctx context.Context) ([]types.SessionRecord, error)
}

// pollSessions runs one poll. A process-table failure is logged and reads
// as no running sessions.
func pollSessions(ctx context.Context, src sessionLister, logger *slog.Logger) []types.SessionRecord {
	records, err := src.Sessions(ctx)
	if err != nil {
		logger.Warn("process discovery failed", "error", err)
		return []types.SessionRecord{}
	}
	return records
}

func runSessions(cmd *cobra.Command, args []string) error {
	eng, cfg, logger, err := newEngine(cmd)
	if err != nil {
		return err
	}
	records := pollSessions(cmd.Context(), eng, logger)
	return renderList(cmd.OutOrStdout(), cfg.Output, records, func(w io.Writer) error {
		if len(records) == 0 {
			_, err := io.WriteString(w, "No running sessions.\n")
			return err
		}
		return formatter.SessionsTable(w, records, time.Now())
	})
}

func runAll(cmd *cobra.Command, args []string) error {
	eng, cfg, _, err := newEngine(cmd)
	if err != nil {
		return err
	}
	sessions := eng.AllSessions(cmd.Context(), hoursToDuration(historyHours))
	return renderHistory(cmd, cfg.Output, sessions, "No recent sessions.\n")
}

func runGraveyard(cmd *cobra.Command, args []string) error {
	eng, cfg, _, err := newEngine(cmd)
	if err != nil {
		return err
	}
	sessions := eng.DeadSessions(cmd.Context(), hoursToDuration(graveyardHours), graveQuery, graveContent)
	return renderHistory(cmd, cfg.Output, sessions, "No dead sessions.\n")
}

func renderHistory(cmd *cobra.Command, format string, sessions []types.HistoricSession, empty string) error {
	return renderList(cmd.OutOrStdout(), format, sessions, func(w io.Writer) error {
		if len(sessions) == 0 {
			_, err := io.WriteString(w, empty)
			return err
		}
		return formatter.HistoryTable(w, sessions, time.Now())
	})
}

func hoursToDuration(h float64) time.Duration {
	if h <= 0 {
		return 0
	}
	return time.Duration(h * float64(time.Hour))
}
