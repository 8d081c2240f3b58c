// Package config provides configuration management for sessionwatch.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (SWATCH_*)
// 3. Project config (.sessionwatch/config.yaml in cwd, or SWATCH_CONFIG)
// 4. Home config (~/.sessionwatch/config.yaml)
// 5. Defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/boshu2/sessionwatch/internal/types"
)

// Config holds all sessionwatch configuration.
type Config struct {
	// Output controls the default output format (table, json, jsonl, yaml).
	Output string `yaml:"output" json:"output"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose" json:"verbose"`

	// Paths locates the transcript tree and hook-state directory.
	Paths PathsConfig `yaml:"paths" json:"paths"`

	// Detection tunes process discovery, caching, and state inference.
	Detection DetectionConfig `yaml:"detection" json:"detection"`

	// Timeline tunes bucketing and continuation linking.
	Timeline TimelineConfig `yaml:"timeline" json:"timeline"`

	// Pricing is dollars per million tokens, used for cost estimates.
	Pricing types.Pricing `yaml:"pricing" json:"pricing"`

	// MaxContextTokens is the context window used for context percentages.
	MaxContextTokens int `yaml:"max_context_tokens" json:"max_context_tokens"`
}

// PathsConfig holds filesystem locations.
type PathsConfig struct {
	// ProjectsDir holds one subdirectory per project, named by encoded cwd.
	// Default: ~/.claude/projects
	ProjectsDir string `yaml:"projects_dir" json:"projects_dir"`

	// StateDir holds per-session hook-state documents.
	// Default: ~/.claude/visualizer/session-state
	StateDir string `yaml:"state_dir" json:"state_dir"`
}

// DetectionConfig holds discovery and state-inference settings.
type DetectionConfig struct {
	// ProcessName is the CLI binary name to look for.
	ProcessName string `yaml:"process_name" json:"process_name"`

	// CommandTimeout bounds every subprocess call made during discovery.
	CommandTimeout time.Duration `yaml:"command_timeout" json:"command_timeout"`

	ProcessCacheTTL  time.Duration `yaml:"process_cache_ttl" json:"process_cache_ttl"`
	MetadataCacheTTL time.Duration `yaml:"metadata_cache_ttl" json:"metadata_cache_ttl"`

	// SweepInterval is the minimum gap between cache sweeps.
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`

	// ActiveCPUThreshold and ActiveRecency drive the polling state fallback.
	ActiveCPUThreshold float64       `yaml:"active_cpu_threshold" json:"active_cpu_threshold"`
	ActiveRecency      time.Duration `yaml:"active_recency" json:"active_recency"`

	// StateMaxAge is the staleness ceiling for hook-state files.
	StateMaxAge time.Duration `yaml:"state_max_age" json:"state_max_age"`

	// MaxSessionAge bounds the all/graveyard listings by default.
	MaxSessionAge time.Duration `yaml:"max_session_age" json:"max_session_age"`
}

// TimelineConfig holds timeline and continuation settings.
type TimelineConfig struct {
	BucketMinutes int `yaml:"bucket_minutes" json:"bucket_minutes"`

	// ContinuationWindow is the ceiling between a compaction and the
	// start of the transcript that continues it.
	ContinuationWindow time.Duration `yaml:"continuation_window" json:"continuation_window"`
}

// Default config values (used in resolution and validation).
const (
	defaultOutput      = "table"
	defaultProcessName = "claude"
)

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Output:  defaultOutput,
		Verbose: false,
		Paths: PathsConfig{
			ProjectsDir: filepath.Join(homeDir, ".claude", "projects"),
			StateDir:    filepath.Join(homeDir, ".claude", "visualizer", "session-state"),
		},
		Detection: DetectionConfig{
			ProcessName:        defaultProcessName,
			CommandTimeout:     5 * time.Second,
			ProcessCacheTTL:    2 * time.Second,
			MetadataCacheTTL:   60 * time.Second,
			SweepInterval:      60 * time.Second,
			ActiveCPUThreshold: 0.5,
			ActiveRecency:      30 * time.Second,
			StateMaxAge:        5 * time.Minute,
			MaxSessionAge:      2 * time.Hour,
		},
		Timeline: TimelineConfig{
			BucketMinutes:      5,
			ContinuationWindow: 60 * time.Second,
		},
		Pricing:          types.DefaultPricing,
		MaxContextTokens: types.DefaultMaxContextTokens,
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	// Load home config
	homeConfig, _ := loadFromPath(homeConfigPath())
	if homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	// Load project config
	projectConfig, _ := loadFromPath(projectConfigPath())
	if projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	// Apply environment variables
	cfg = applyEnv(cfg)

	// Apply flag overrides
	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, nil
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sessionwatch", "config.yaml")
}

// projectConfigPath returns the project config path.
func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("SWATCH_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".sessionwatch", "config.yaml")
}

// loadFromPath loads config from a YAML file.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("SWATCH_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v, ok := getEnvBool("SWATCH_VERBOSE"); ok {
		cfg.Verbose = v
	}
	if v := os.Getenv("SWATCH_PROJECTS_DIR"); v != "" {
		cfg.Paths.ProjectsDir = v
	}
	if v := os.Getenv("SWATCH_STATE_DIR"); v != "" {
		cfg.Paths.StateDir = v
	}
	if v := os.Getenv("SWATCH_PROCESS_NAME"); v != "" {
		cfg.Detection.ProcessName = v
	}
	if v := os.Getenv("SWATCH_COMMAND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Detection.CommandTimeout = d
		}
	}
	if v := os.Getenv("SWATCH_BUCKET_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Timeline.BucketMinutes = n
		}
	}
	return cfg
}

// mergeStr overwrites dst with src when src is non-empty.
func mergeStr(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// mergeInt overwrites dst with src when src is non-zero.
func mergeInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}

// mergeFloat overwrites dst with src when src is non-zero.
func mergeFloat(dst *float64, src float64) {
	if src != 0 {
		*dst = src
	}
}

// mergeDuration overwrites dst with src when src is positive.
func mergeDuration(dst *time.Duration, src time.Duration) {
	if src > 0 {
		*dst = src
	}
}

// merge merges src into dst, with src values taking precedence.
// Booleans only ever switch on; a zero value in src means "not set".
func merge(dst, src *Config) *Config {
	mergeStr(&dst.Output, src.Output)
	if src.Verbose {
		dst.Verbose = true
	}

	mergePaths(&dst.Paths, &src.Paths)
	mergeDetection(&dst.Detection, &src.Detection)
	mergeTimeline(&dst.Timeline, &src.Timeline)
	mergePricing(&dst.Pricing, &src.Pricing)
	mergeInt(&dst.MaxContextTokens, src.MaxContextTokens)

	return dst
}

// mergePaths merges path config fields.
func mergePaths(dst, src *PathsConfig) {
	mergeStr(&dst.ProjectsDir, src.ProjectsDir)
	mergeStr(&dst.StateDir, src.StateDir)
}

// mergeDetection merges detection config fields.
func mergeDetection(dst, src *DetectionConfig) {
	mergeStr(&dst.ProcessName, src.ProcessName)
	mergeDuration(&dst.CommandTimeout, src.CommandTimeout)
	mergeDuration(&dst.ProcessCacheTTL, src.ProcessCacheTTL)
	mergeDuration(&dst.MetadataCacheTTL, src.MetadataCacheTTL)
	mergeDuration(&dst.SweepInterval, src.SweepInterval)
	mergeFloat(&dst.ActiveCPUThreshold, src.ActiveCPUThreshold)
	mergeDuration(&dst.ActiveRecency, src.ActiveRecency)
	mergeDuration(&dst.StateMaxAge, src.StateMaxAge)
	mergeDuration(&dst.MaxSessionAge, src.MaxSessionAge)
}

// mergeTimeline merges timeline config fields.
func mergeTimeline(dst, src *TimelineConfig) {
	mergeInt(&dst.BucketMinutes, src.BucketMinutes)
	mergeDuration(&dst.ContinuationWindow, src.ContinuationWindow)
}

func mergePricing(dst, src *types.Pricing) {
	mergeFloat(&dst.Input, src.Input)
	mergeFloat(&dst.Output, src.Output)
	mergeFloat(&dst.CacheRead, src.CacheRead)
	mergeFloat(&dst.CacheWrite, src.CacheWrite)
}

// Source represents where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "~/.sessionwatch/config.yaml"
	SourceProject Source = ".sessionwatch/config.yaml"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

// getEnvString returns the value and whether the env var was set.
func getEnvString(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

// getEnvBool returns the boolean value and whether the env var held a
// recognised boolean.
func getEnvBool(key string) (bool, bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	}
	return false, false
}

// resolveStringField resolves a string through the precedence chain.
// Returns the resolved value and its source.
func resolveStringField(home, project, env, flag, def string) resolved {
	result := resolved{Value: def, Source: SourceDefault}
	if home != "" {
		result = resolved{Value: home, Source: SourceHome}
	}
	if project != "" {
		result = resolved{Value: project, Source: SourceProject}
	}
	if env != "" {
		result = resolved{Value: env, Source: SourceEnv}
	}
	if flag != "" {
		result = resolved{Value: flag, Source: SourceFlag}
	}
	return result
}

// ResolvedConfig shows config values with their sources.
type ResolvedConfig struct {
	Output      resolved `json:"output" yaml:"output"`
	Verbose     resolved `json:"verbose" yaml:"verbose"`
	ProjectsDir resolved `json:"projects_dir" yaml:"projects_dir"`
	StateDir    resolved `json:"state_dir" yaml:"state_dir"`
	ProcessName resolved `json:"process_name" yaml:"process_name"`
}

type resolved struct {
	Value  interface{} `json:"value" yaml:"value"`
	Source Source      `json:"source" yaml:"source"`
}

// Resolve returns configuration with source tracking.
// Uses precedence chain: flags > env > project > home > defaults.
func Resolve(flagOutput string, flagVerbose bool) *ResolvedConfig {
	def := Default()
	homeConfig, _ := loadFromPath(homeConfigPath())
	projectConfig, _ := loadFromPath(projectConfigPath())

	var home, project Config
	if homeConfig != nil {
		home = *homeConfig
	}
	if projectConfig != nil {
		project = *projectConfig
	}

	envOutput, _ := getEnvString("SWATCH_OUTPUT")
	envProjectsDir, _ := getEnvString("SWATCH_PROJECTS_DIR")
	envStateDir, _ := getEnvString("SWATCH_STATE_DIR")
	envProcessName, _ := getEnvString("SWATCH_PROCESS_NAME")
	envVerbose, envVerboseSet := getEnvBool("SWATCH_VERBOSE")

	rc := &ResolvedConfig{
		Output:      resolveStringField(home.Output, project.Output, envOutput, flagOutput, defaultOutput),
		Verbose:     resolved{Value: false, Source: SourceDefault},
		ProjectsDir: resolveStringField(home.Paths.ProjectsDir, project.Paths.ProjectsDir, envProjectsDir, "", def.Paths.ProjectsDir),
		StateDir:    resolveStringField(home.Paths.StateDir, project.Paths.StateDir, envStateDir, "", def.Paths.StateDir),
		ProcessName: resolveStringField(home.Detection.ProcessName, project.Detection.ProcessName, envProcessName, "", defaultProcessName),
	}

	// Resolve verbose (boolean with OR semantics through chain)
	if home.Verbose {
		rc.Verbose = resolved{Value: true, Source: SourceHome}
	}
	if project.Verbose {
		rc.Verbose = resolved{Value: true, Source: SourceProject}
	}
	if envVerboseSet {
		rc.Verbose = resolved{Value: envVerbose, Source: SourceEnv}
	}
	if flagVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceFlag}
	}

	return rc
}
