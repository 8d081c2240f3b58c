package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/boshu2/sessionwatch/internal/detector"
)

var changedSince string

var changedCmd = &cobra.Command{
	Use:   "changed",
	Short: "Report whether the running sessions changed",
	Long: `Compute a fingerprint of the running sessions (ids, states, current
activity, context size, last write, recent activity) and compare it with
--since. Exits 0 either way; scripts read the "changed" field.

Examples:
  fp=$(swatch changed -o json | jq -r .fingerprint)
  swatch changed --since "$fp"`,
	Args: cobra.NoArgs,
	RunE: runChanged,
}

func init() {
	changedCmd.GroupID = "live"
	rootCmd.AddCommand(changedCmd)
	changedCmd.Flags().StringVar(&changedSince, "since", "", "Fingerprint from a previous run")
}

type changedOutput struct {
	Changed       bool   `json:"changed"`
	Fingerprint   string `json:"fingerprint"`
	Sessions      int    `json:"sessions"`
	ActivityStamp int64  `json:"activity_stamp"`
}

func runChanged(cmd *cobra.Command, args []string) error {
	eng, cfg, _, err := newEngine(cmd)
	if err != nil {
		return err
	}
	records, err := eng.Sessions(cmd.Context())
	if err != nil {
		return err
	}
	fp := detector.Fingerprint(records)
	out := changedOutput{
		Changed:       fp != changedSince,
		Fingerprint:   fp,
		Sessions:      len(records),
		ActivityStamp: eng.ActivityStamp(),
	}
	return renderOne(cmd.OutOrStdout(), cfg.Output, out, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "changed: %v\nfingerprint: %s\n", out.Changed, out.Fingerprint)
		return err
	})
}
