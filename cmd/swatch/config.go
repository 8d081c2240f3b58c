package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/boshu2/sessionwatch/internal/config"
)

var (
	configShow bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View sessionwatch configuration.

Configuration priority (highest to lowest):
  1. Command-line flags
  2. Environment variables (SWATCH_*)
  3. Project config (.sessionwatch/config.yaml)
  4. Home config (~/.sessionwatch/config.yaml)
  5. Defaults

Environment variables:
  SWATCH_CONFIG           - Explicit config file path (overrides default project config location)
  SWATCH_OUTPUT           - Default output format (table, json, jsonl, yaml)
  SWATCH_VERBOSE          - Enable debug logging (true/1)
  SWATCH_PROJECTS_DIR     - Transcript tree (default: ~/.claude/projects)
  SWATCH_STATE_DIR        - Hook-state directory (default: ~/.claude/visualizer/session-state)
  SWATCH_PROCESS_NAME     - CLI binary to look for (default: claude)
  SWATCH_COMMAND_TIMEOUT  - Timeout for each discovery subprocess (e.g. 5s)
  SWATCH_BUCKET_MINUTES   - Timeline bucket width in minutes

Examples:
  swatch config --show           # Show resolved configuration
  swatch config --show -o json   # Output as JSON`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().BoolVar(&configShow, "show", false, "Show resolved configuration with sources")
}

var configEnvVars = []string{
	"SWATCH_CONFIG",
	"SWATCH_OUTPUT",
	"SWATCH_VERBOSE",
	"SWATCH_PROJECTS_DIR",
	"SWATCH_STATE_DIR",
	"SWATCH_PROCESS_NAME",
	"SWATCH_COMMAND_TIMEOUT",
	"SWATCH_BUCKET_MINUTES",
}

func runConfig(cmd *cobra.Command, args []string) error {
	if !configShow {
		// Show help if no flags
		return cmd.Help()
	}

	// Get resolved config with sources
	resolved := config.Resolve(GetOutput(), GetVerbose())
	format := GetOutput()
	if format == formatJSON || format == formatYAML || format == formatJSONL {
		return renderOne(cmd.OutOrStdout(), format, resolved, nil)
	}
	return printResolved(cmd.OutOrStdout(), resolved)
}

func printResolved(w io.Writer, resolved *config.ResolvedConfig) error {
	p := func(format string, args ...any) {
		//nolint:errcheck // terminal output
		fmt.Fprintf(w, format, args...)
	}

	p("sessionwatch Configuration\n")
	p("==========================\n\n")

	p("Config files:\n")
	home, _ := os.UserHomeDir()
	homeConfig := filepath.Join(home, ".sessionwatch", "config.yaml")
	if _, err := os.Stat(homeConfig); err == nil {
		p("  ✓ Home:    %s\n", homeConfig)
	} else {
		p("  ✗ Home:    %s (not found)\n", homeConfig)
	}

	projectConfig := os.Getenv("SWATCH_CONFIG")
	if projectConfig == "" {
		cwd, _ := os.Getwd()
		projectConfig = filepath.Join(cwd, ".sessionwatch", "config.yaml")
	}
	if _, err := os.Stat(projectConfig); err == nil {
		p("  ✓ Project: %s\n", projectConfig)
	} else {
		p("  ✗ Project: %s (not found)\n", projectConfig)
	}

	p("\nResolved values:\n")
	p("  output:       %v  (from %s)\n", resolved.Output.Value, resolved.Output.Source)
	p("  verbose:      %v  (from %s)\n", resolved.Verbose.Value, resolved.Verbose.Source)
	p("  projects_dir: %v  (from %s)\n", resolved.ProjectsDir.Value, resolved.ProjectsDir.Source)
	p("  state_dir:    %v  (from %s)\n", resolved.StateDir.Value, resolved.StateDir.Source)
	p("  process_name: %v  (from %s)\n", resolved.ProcessName.Value, resolved.ProcessName.Source)

	p("\nEnvironment variables (if set):\n")
	anySet := false
	for _, env := range configEnvVars {
		if v := os.Getenv(env); v != "" {
			p("  %s=%s\n", env, v)
			anySet = true
		}
	}
	if !anySet {
		p("  (none set)\n")
	}
	return nil
}
