// Package config resolves graphgen settings from defaults, an optional YAML
// file and the environment. Command-line flags are applied on top by cmd.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"rtgraph/graphgen/internal/errs"
	"rtgraph/graphgen/internal/graph"
	"rtgraph/graphgen/internal/record"
	"rtgraph/graphgen/internal/retry"
)

// Config aggregates application configuration values
type Config struct {
	DB       string         `yaml:"db"`
	Logging  LoggingConfig  `yaml:"logging"`
	Build    BuildConfig    `yaml:"build"`
	Source   SourceConfig   `yaml:"source"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// LoggingConfig controls structured logging settings
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"` // console|json
}

// BuildConfig holds per-run graph build defaults
type BuildConfig struct {
	Layout             string  `yaml:"layout"`
	Dimension          int     `yaml:"dimension"`
	Community          string  `yaml:"community"`
	Alpha              float64 `yaml:"alpha"`
	LookbackDays       int     `yaml:"lookback_days"`
	MinRepostThreshold int     `yaml:"min_repost_threshold"`
	MaxResults         int     `yaml:"max_results"`
	CheckpointEvery    int     `yaml:"checkpoint_every"`
	TypeSearch         string  `yaml:"type_search"`
	BotScores          bool    `yaml:"bot_scores"`
	ClassifierModel    string  `yaml:"classifier_model"` // YAML weights; empty uses the built-in model
}

// SourceConfig governs retries around the event source
type SourceConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// AnalysisConfig holds graph analysis thresholds
type AnalysisConfig struct {
	HubThreshold int     `yaml:"hub_threshold"`
	TopN         int     `yaml:"top_n"`
	BotThreshold float64 `yaml:"bot_threshold"`
}

const (
	defaultLayout       = string(graph.LayoutSpring)
	defaultCommunity    = string(graph.CommunityLouvain)
	defaultDimension    = 2
	defaultLookbackDays = 7
	defaultMinReposts   = 1
	defaultTypeSearch   = "include:nativeretweets"
)

// Default returns the built-in configuration
func Default() Config {
	rc := retry.DefaultConfig()
	ac := graph.DefaultConfig()
	return Config{
		Logging: LoggingConfig{Level: "info", Encoding: "console"},
		Build: BuildConfig{
			Layout:             defaultLayout,
			Dimension:          defaultDimension,
			Community:          defaultCommunity,
			Alpha:              graph.DefaultAlpha,
			LookbackDays:       defaultLookbackDays,
			MinRepostThreshold: defaultMinReposts,
			TypeSearch:         defaultTypeSearch,
		},
		Source: SourceConfig{
			MaxRetries:   rc.MaxRetries,
			InitialDelay: rc.InitialDelay,
			MaxDelay:     rc.MaxDelay,
		},
		Analysis: AnalysisConfig{
			HubThreshold: ac.HubThreshold,
			TopN:         ac.TopN,
			BotThreshold: ac.BotThreshold,
		},
	}
}

// Load applies an optional YAML file and then environment overrides to the
// defaults. An empty path skips the file; a missing named file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: parse %s: %v", errs.ErrConfiguration, path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("GRAPHGEN_DB"); v != "" {
		c.DB = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_ENCODING"); v != "" {
		c.Logging.Encoding = v
	}
	if v := os.Getenv("GRAPHGEN_LOOKBACK_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: GRAPHGEN_LOOKBACK_DAYS=%q is not an integer", errs.ErrConfiguration, v)
		}
		c.Build.LookbackDays = n
	}
	return nil
}

// Validate rejects settings that would fail later in the pipeline
func (c Config) Validate() error {
	var problems []error
	layout, err := graph.ParseLayout(c.Build.Layout)
	if err != nil {
		problems = append(problems, err)
	} else if err := layout.Validate(c.Build.Dimension); err != nil {
		problems = append(problems, err)
	}
	if _, err := graph.ParseCommunity(c.Build.Community); err != nil {
		problems = append(problems, err)
	}
	if c.Build.Alpha < 0 || c.Build.Alpha > 1 {
		problems = append(problems, fmt.Errorf("%w: alpha %v outside [0,1]", errs.ErrConfiguration, c.Build.Alpha))
	}
	if c.Build.LookbackDays <= 0 {
		problems = append(problems, fmt.Errorf("%w: lookback_days must be positive", errs.ErrConfiguration))
	}
	for name, v := range map[string]int{
		"min_repost_threshold": c.Build.MinRepostThreshold,
		"max_results":          c.Build.MaxResults,
		"checkpoint_every":     c.Build.CheckpointEvery,
		"source.max_retries":   c.Source.MaxRetries,
	} {
		if v < 0 {
			problems = append(problems, fmt.Errorf("%w: %s must not be negative", errs.ErrConfiguration, name))
		}
	}
	return errors.Join(problems...)
}

// Lookback is the build lookback window as a duration
func (c Config) Lookback() time.Duration {
	if c.Build.LookbackDays <= 0 {
		return record.DefaultLookback
	}
	return time.Duration(c.Build.LookbackDays) * 24 * time.Hour
}

// Retry is the source retry policy
func (c Config) Retry() retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxRetries = c.Source.MaxRetries
	if c.Source.InitialDelay > 0 {
		rc.InitialDelay = c.Source.InitialDelay
	}
	if c.Source.MaxDelay > 0 {
		rc.MaxDelay = c.Source.MaxDelay
	}
	return rc
}

// Analyzer returns the graph analysis settings
func (c Config) Analyzer() *graph.AnalyzerConfig {
	return &graph.AnalyzerConfig{
		HubThreshold: c.Analysis.HubThreshold,
		TopN:         c.Analysis.TopN,
		BotThreshold: c.Analysis.BotThreshold,
	}
}
