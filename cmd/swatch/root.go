package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/boshu2/sessionwatch/internal/config"
	"github.com/boshu2/sessionwatch/internal/detector"
)

var (
	// Global flags
	verbose bool
	output  string
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "swatch",
	Short: "Watch running agent CLI sessions",
	Long: `swatch finds the agent CLI processes running on this machine, matches
each one to its conversation transcript, and reports what every session
is doing.

Live sessions:
  sessions      Running sessions with state and current activity
  watch         Live, refreshing view of running sessions
  changed       Change fingerprint of the running sessions

History:
  all           Every recently written transcript
  graveyard     Recent transcripts no process is attached to

One session:
  timeline      Activity periods of a session
  conversation  Messages of a session, following compactions
  metrics       Response times and tool usage of a session`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		syncConfigFlagToEnv()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "live", Title: "Live sessions:"},
		&cobra.Group{ID: "history", Title: "History:"},
		&cobra.Group{ID: "session", Title: "One session:"},
	)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Output format (table, json, jsonl, yaml; default from config)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: .sessionwatch/config.yaml)")
}

// GetVerbose returns the verbose flag value for use by subcommands.
func GetVerbose() bool {
	return verbose
}

// GetOutput returns the output format for use by subcommands.
func GetOutput() string {
	return output
}

// GetConfigFile returns the config file path for use by subcommands.
func GetConfigFile() string {
	return cfgFile
}

func syncConfigFlagToEnv() {
	path := strings.TrimSpace(GetConfigFile())
	if path == "" {
		return
	}
	_ = os.Setenv("SWATCH_CONFIG", path)
}

// loadConfig resolves configuration with flags applied on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(&config.Config{Output: GetOutput(), Verbose: GetVerbose()})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newEngine loads configuration and builds a detection engine with a
// command-scoped logger.
func newEngine(cmd *cobra.Command) (*detector.Engine, *config.Config, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := NewLogger(cfg.Verbose).With("command", cmd.Name())
	logger.Debug("configuration loaded",
		"projects_dir", cfg.Paths.ProjectsDir,
		"state_dir", cfg.Paths.StateDir,
		"process_name", cfg.Detection.ProcessName,
	)
	return detector.New(cfg, detector.WithLogger(logger)), cfg, logger, nil
}
