package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kspringfield13/xenosync/internal/common/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize xenosync configuration",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	configDir := filepath.Join(home, ".xenosync")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}

	configFile := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(configFile); err == nil {
		if !confirm("Configuration already exists. Overwrite?") {
			return fmt.Errorf("aborted")
		}
	}

	if err := os.WriteFile(configFile, defaultConfigYAML(), 0o644); err != nil {
		return err
	}
	fmt.Printf("Created configuration at %s\n", configFile)

	for _, dir := range []string{"prompts", "sessions", "logs", "templates"} {
		if err := os.MkdirAll(filepath.Join(configDir, dir), 0o755); err != nil {
			return err
		}
	}

	fmt.Println("Xenosync initialized successfully!")
	return nil
}

// defaultConfigYAML renders config.Default() as YAML keyed the same way
// config.setDefaults populates viper, so the written file round-trips
// through LoadWithPath unchanged.
func defaultConfigYAML() []byte {
	cfg := config.Default()
	doc := map[string]interface{}{
		"num_agents":                          cfg.NumAgents,
		"agent_launch_delay":                  cfg.AgentLaunchDelaySec,
		"use_tmux":                            cfg.UseTmux,
		"auto_open_terminal":                  cfg.AutoOpenTerminal,
		"preferred_terminal":                  cfg.PreferredTerminal,
		"message_grace_period":                cfg.MessageGracePeriodSec,
		"task_minimum_duration":               cfg.TaskMinimumDurationSec,
		"task_completion_check_interval":      cfg.TaskCompletionCheckIntervalSec,
		"minimum_work_duration_minutes":       cfg.MinimumWorkDurationMinutes,
		"project_quality_threshold":           cfg.ProjectQualityThreshold,
		"project_substantial_work_threshold":  cfg.ProjectSubstantialWorkThreshold,
		"completion_verification_enabled":     cfg.CompletionVerificationEnabled,
		"completion_verification_interval":    cfg.CompletionVerificationInterval,
		"completion_verification_message":     cfg.CompletionVerificationMessage,
		"verification_response_wait":          cfg.VerificationResponseWaitSec,
		"verification_response_lines":         cfg.VerificationResponseLines,
		"file_activity_window":                cfg.FileActivityWindowMin,
		"file_activity_timeout":               cfg.FileActivityTimeoutMin,
		"completion_weight_patterns":          cfg.CompletionWeightPatterns,
		"completion_weight_file_activity":     cfg.CompletionWeightFileActivity,
		"completion_weight_verification":      cfg.CompletionWeightVerification,
		"completion_weight_time":              cfg.CompletionWeightTime,
		"completion_confidence_threshold":     cfg.CompletionConfidenceThreshold,
		"semantic_completion_patterns":        cfg.SemanticCompletionPatterns,
		"enable_finalization":                 cfg.EnableFinalization,
		"finalization_timeout":                cfg.FinalizationTimeoutSec,
		"finalization_tasks":                  cfg.FinalizationTasks,
		"project_merge_strategy":              cfg.ProjectMergeStrategy,
		"conflict_resolution":                 cfg.ConflictResolution,
		"keep_projects_after_session":         cfg.KeepProjectsAfterSession,
		"sessions_dir":                        cfg.SessionsDir,
		"prompts_dir":                         cfg.PromptsDir,
		"agent_command":                       cfg.AgentCommand,
		"agent_args":                          cfg.AgentArgs,
		"logging": map[string]interface{}{
			"level":      cfg.Logging.Level,
			"format":     cfg.Logging.Format,
			"outputPath": cfg.Logging.OutputPath,
		},
		"nats": map[string]interface{}{
			"url":       cfg.NATS.URL,
			"namespace": cfg.NATS.Namespace,
		},
		"store": map[string]interface{}{
			"path": cfg.Store.Path,
		},
		"metrics": map[string]interface{}{
			"enabled": cfg.Metrics.Enabled,
			"addr":    cfg.Metrics.Addr,
		},
	}
	out, _ := yaml.Marshal(doc)
	return out
}
