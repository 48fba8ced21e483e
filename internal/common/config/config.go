// Package config loads xenosync's configuration from defaults, an optional
// YAML file, and XENOSYNC_-prefixed environment variables, following the
// viper-backed layered approach used across the orchestration stack.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every tunable named in the orchestration design's
// configuration table.
type Config struct {
	NumAgents      int    `mapstructure:"num_agents"`
	AgentLaunchDelaySec int `mapstructure:"agent_launch_delay"`
	UseTmux        bool   `mapstructure:"use_tmux"`
	AutoOpenTerminal bool `mapstructure:"auto_open_terminal"`
	PreferredTerminal string `mapstructure:"preferred_terminal"`

	MessageGracePeriodSec int `mapstructure:"message_grace_period"`
	TaskMinimumDurationSec int `mapstructure:"task_minimum_duration"`
	TaskCompletionCheckIntervalSec int `mapstructure:"task_completion_check_interval"`
	MinimumWorkDurationMinutes int `mapstructure:"minimum_work_duration_minutes"`

	ProjectQualityThreshold int `mapstructure:"project_quality_threshold"`
	ProjectSubstantialWorkThreshold int `mapstructure:"project_substantial_work_threshold"`

	CompletionVerificationEnabled  bool     `mapstructure:"completion_verification_enabled"`
	CompletionVerificationInterval int      `mapstructure:"completion_verification_interval"`
	CompletionVerificationMessage  string   `mapstructure:"completion_verification_message"`
	VerificationResponseWaitSec    int      `mapstructure:"verification_response_wait"`
	VerificationResponseLines      int      `mapstructure:"verification_response_lines"`

	FileActivityWindowMin  int `mapstructure:"file_activity_window"`
	FileActivityTimeoutMin int `mapstructure:"file_activity_timeout"`

	CompletionWeightPatterns     float64 `mapstructure:"completion_weight_patterns"`
	CompletionWeightFileActivity float64 `mapstructure:"completion_weight_file_activity"`
	CompletionWeightVerification float64 `mapstructure:"completion_weight_verification"`
	CompletionWeightTime         float64 `mapstructure:"completion_weight_time"`
	CompletionConfidenceThreshold float64 `mapstructure:"completion_confidence_threshold"`

	SemanticCompletionPatterns []string `mapstructure:"semantic_completion_patterns"`

	EnableFinalization  bool     `mapstructure:"enable_finalization"`
	FinalizationTimeoutSec int   `mapstructure:"finalization_timeout"`
	FinalizationTasks   []string `mapstructure:"finalization_tasks"`

	ProjectMergeStrategy string `mapstructure:"project_merge_strategy"` // combine|git
	ConflictResolution   string `mapstructure:"conflict_resolution"`    // skip|overwrite
	KeepProjectsAfterSession bool `mapstructure:"keep_projects_after_session"`

	SessionsDir string `mapstructure:"sessions_dir"`
	PromptsDir  string `mapstructure:"prompts_dir"`

	AgentCommand string   `mapstructure:"agent_command"`
	AgentArgs    []string `mapstructure:"agent_args"`

	Logging LoggingConfig `mapstructure:"logging"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Store   StoreConfig   `mapstructure:"store"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// NATSConfig configures the optional event-bus mirror. An empty URL
// disables it and internal/bus falls back to a no-op publisher.
type NATSConfig struct {
	URL       string `mapstructure:"url"`
	Namespace string `mapstructure:"namespace"`
}

// StoreConfig configures the SQLite secondary index.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig configures the optional debug metrics HTTP listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads configuration from the default locations.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from configPath (a directory) or the
// default locations (~/.xenosync, then cwd) if empty.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("XENOSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".xenosync"))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ApplyProfile scales timing-related settings to one of the three named
// build-speed profiles, supplementing spec.md with the original
// implementation's fast/normal/careful presets.
func (c *Config) ApplyProfile(name string) error {
	switch name {
	case "", "normal":
		return nil
	case "fast":
		c.MinimumWorkDurationMinutes = maxInt(1, c.MinimumWorkDurationMinutes/2)
		c.TaskCompletionCheckIntervalSec = maxInt(10, c.TaskCompletionCheckIntervalSec/2)
		c.CompletionConfidenceThreshold = clamp01(c.CompletionConfidenceThreshold - 0.1)
		return nil
	case "careful":
		c.MinimumWorkDurationMinutes = c.MinimumWorkDurationMinutes * 2
		c.TaskCompletionCheckIntervalSec = c.TaskCompletionCheckIntervalSec * 2
		c.CompletionConfidenceThreshold = clamp01(c.CompletionConfidenceThreshold + 0.1)
		return nil
	default:
		return fmt.Errorf("unknown profile %q (want fast, normal, or careful)", name)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("num_agents", 2)
	v.SetDefault("agent_launch_delay", 3)
	v.SetDefault("use_tmux", true)
	v.SetDefault("auto_open_terminal", true)
	v.SetDefault("preferred_terminal", "")

	v.SetDefault("message_grace_period", 60)
	v.SetDefault("task_minimum_duration", 300)
	v.SetDefault("task_completion_check_interval", 180)
	v.SetDefault("minimum_work_duration_minutes", 10)

	v.SetDefault("project_quality_threshold", 3)
	v.SetDefault("project_substantial_work_threshold", 500)

	v.SetDefault("completion_verification_enabled", true)
	v.SetDefault("completion_verification_interval", 300)
	v.SetDefault("completion_verification_message",
		"Please confirm if you have completed your assigned tasks. Respond with 'COMPLETED' if finished, or describe what you're still working on.")
	v.SetDefault("verification_response_wait", 30)
	v.SetDefault("verification_response_lines", 15)

	v.SetDefault("file_activity_window", 15)
	v.SetDefault("file_activity_timeout", 10)

	v.SetDefault("completion_weight_patterns", 0.25)
	v.SetDefault("completion_weight_file_activity", 0.25)
	v.SetDefault("completion_weight_verification", 0.35)
	v.SetDefault("completion_weight_time", 0.15)
	v.SetDefault("completion_confidence_threshold", 0.7)

	v.SetDefault("semantic_completion_patterns", []string{
		`(task|work|implementation|project)\s+(completed|finished|done)`,
		`(i have|i've)\s+(completed|finished|done)`,
		`(ready for|completed|finished).*review`,
		`COMPLETED`,
		`(all|everything)\s+(is\s+)?(done|finished|completed)`,
		`(finished|completed|done)\s+(working|implementing|building)`,
	})

	v.SetDefault("enable_finalization", true)
	v.SetDefault("finalization_timeout", 600)
	v.SetDefault("finalization_tasks", []string{})

	v.SetDefault("project_merge_strategy", "combine")
	v.SetDefault("conflict_resolution", "skip")
	v.SetDefault("keep_projects_after_session", true)

	v.SetDefault("sessions_dir", "xsync-sessions")
	v.SetDefault("prompts_dir", "prompts")

	v.SetDefault("agent_command", "claude")
	v.SetDefault("agent_args", []string{"--dangerously-skip-permissions"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.outputPath", "stdout")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.namespace", "xenosync")

	v.SetDefault("store.path", "")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", "127.0.0.1:9464")
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.NumAgents < 2 || cfg.NumAgents > 20 {
		// A zero value is let through (a Config built without setDefaults
		// carries 0); the CLI re-validates the --agents flag independently.
		if cfg.NumAgents != 0 && (cfg.NumAgents < 2 || cfg.NumAgents > 20) {
			errs = append(errs, "num_agents must be between 2 and 20")
		}
	}

	sum := cfg.CompletionWeightPatterns + cfg.CompletionWeightFileActivity +
		cfg.CompletionWeightVerification + cfg.CompletionWeightTime
	if sum < 0.999 || sum > 1.001 {
		errs = append(errs, fmt.Sprintf("completion weights must sum to 1.0, got %.3f", sum))
	}

	if cfg.ProjectMergeStrategy != "combine" && cfg.ProjectMergeStrategy != "git" {
		errs = append(errs, "project_merge_strategy must be 'combine' or 'git'")
	}
	if cfg.ConflictResolution != "skip" && cfg.ConflictResolution != "overwrite" {
		errs = append(errs, "conflict_resolution must be 'skip' or 'overwrite'")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Default returns a Config populated purely from defaults, bypassing file
// and environment discovery. Used by tests and by `xenosync init`.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}
