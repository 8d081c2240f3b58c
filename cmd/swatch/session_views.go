package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/boshu2/sessionwatch/internal/config"
	"github.com/boshu2/sessionwatch/internal/formatter"
	"github.com/boshu2/sessionwatch/internal/resolver"
)

var (
	timelineBucket     int
	conversationLimit  int
	conversationFollow bool
)

var timelineCmd = &cobra.Command{
	Use:   "timeline <session>",
	Short: "Show the activity periods of a session",
	Long: `Bucket a session's events into fixed windows and list the windows that
contain activity, with the tools used in each.

<session> is a session id, a unique id prefix, or a transcript path.

Examples:
  swatch timeline 0b6f5a3e
  swatch timeline <id> --bucket 15 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runTimeline,
}

var conversationCmd = &cobra.Command{
	Use:   "conversation <session>",
	Short: "Show the messages of a session",
	Long: `Print the human and assistant messages of a session. With --follow, a
session that was compacted continues into the session that followed it.

Output formats: table (markdown text), markdown, json, jsonl, yaml.

Examples:
  swatch conversation <id> --limit 20
  swatch conversation <id> --follow -o jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runConversation,
}

var metricsCmd = &cobra.Command{
	Use:   "metrics <session>",
	Short: "Show response-time and tool statistics of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runMetrics,
}

func init() {
	timelineCmd.GroupID = "session"
	conversationCmd.GroupID = "session"
	metricsCmd.GroupID = "session"
	rootCmd.AddCommand(timelineCmd, conversationCmd, metricsCmd)

	timelineCmd.Flags().IntVar(&timelineBucket, "bucket", 0, "Bucket width in minutes (default from config)")
	conversationCmd.Flags().IntVarP(&conversationLimit, "limit", "n", 0, "Only the last N messages (0 = all)")
	conversationCmd.Flags().BoolVarP(&conversationFollow, "follow", "f", false, "Follow compactions into continuing sessions")
}

func runTimeline(cmd *cobra.Command, args []string) error {
	eng, cfg, _, err := newEngine(cmd)
	if err != nil {
		return err
	}
	id, err := resolveSession(cfg, args[0])
	if err != nil {
		return err
	}
	view, ok := eng.Timeline(id, time.Duration(timelineBucket)*time.Minute)
	if !ok {
		return notFound(id)
	}
	return renderOne(cmd.OutOrStdout(), cfg.Output, view, func(w io.Writer) error {
		if len(view.Periods) == 0 {
			_, err := fmt.Fprintf(w, "No activity in %d events.\n", view.EventCount)
			return err
		}
		return formatter.TimelineTable(w, view.Periods)
	})
}

func runConversation(cmd *cobra.Command, args []string) error {
	eng, cfg, _, err := newEngine(cmd)
	if err != nil {
		return err
	}
	id, err := resolveSession(cfg, args[0])
	if err != nil {
		return err
	}
	msgs, ok := eng.Conversation(id, conversationLimit, conversationFollow)
	if !ok {
		return notFound(id)
	}

	markdown := func(w io.Writer) error {
		return formatter.NewMarkdownFormatter().Format(w, id, msgs)
	}
	if cfg.Output == formatMarkdown {
		return markdown(cmd.OutOrStdout())
	}
	return renderList(cmd.OutOrStdout(), cfg.Output, msgs, func(w io.Writer) error {
		return (&formatter.MarkdownFormatter{}).Format(w, id, msgs)
	})
}

func runMetrics(cmd *cobra.Command, args []string) error {
	eng, cfg, _, err := newEngine(cmd)
	if err != nil {
		return err
	}
	id, err := resolveSession(cfg, args[0])
	if err != nil {
		return err
	}
	m, ok := eng.Metrics(id)
	if !ok {
		return notFound(id)
	}
	return renderOne(cmd.OutOrStdout(), cfg.Output, m, func(w io.Writer) error {
		return formatter.MetricsText(w, id, m)
	})
}

// resolveSession accepts a full id, a transcript path, or a unique id prefix.
func resolveSession(cfg *config.Config, ref string) (string, error) {
	return resolver.NewFileResolver(cfg.Paths.ProjectsDir).Resolve(ref)
}

func notFound(id string) error {
	return fmt.Errorf("session %s not found", id)
}
