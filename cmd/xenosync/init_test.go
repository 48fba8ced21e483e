package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfigYAMLUsesSnakeCaseKeysViperExpects(t *testing.T) {
	raw := defaultConfigYAML()

	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(raw, &doc))

	for _, key := range []string{
		"num_agents", "agent_launch_delay", "use_tmux",
		"minimum_work_duration_minutes", "project_merge_strategy",
		"conflict_resolution", "sessions_dir", "prompts_dir",
		"agent_command", "logging", "nats", "store", "metrics",
	} {
		require.Containsf(t, doc, key, "expected key %q in generated config", key)
	}

	logging, ok := doc["logging"].(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, logging, "level")
}
