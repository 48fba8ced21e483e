package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kspringfield13/xenosync/internal/agentmgr"
	"github.com/kspringfield13/xenosync/internal/common/config"
	"github.com/kspringfield13/xenosync/internal/common/logger"
	"github.com/kspringfield13/xenosync/internal/session"
	"github.com/kspringfield13/xenosync/internal/workspace"
)

func testConfig(conflictResolution string) *config.Config {
	c := &config.Config{
		AgentLaunchDelaySec:            0,
		MessageGracePeriodSec:         1,
		TaskMinimumDurationSec:        1,
		TaskCompletionCheckIntervalSec: 1,
		MinimumWorkDurationMinutes:     1,
		ProjectQualityThreshold:        0,
		ProjectSubstantialWorkThreshold: 0,
		CompletionWeightPatterns:       1,
		CompletionConfidenceThreshold:  0.5,
		ProjectMergeStrategy:           "combine",
		ConflictResolution:             conflictResolution,
		AgentCommand:                   "true",
	}
	return c
}

func testSession(t *testing.T) *session.Session {
	t.Helper()
	return &session.Session{
		ID:          "sess-1",
		ProjectName: "project",
		NumAgents:   1,
		Status:      session.StatusActive,
		StartedAt:   time.Now().UTC(),
	}
}

// emptyManager returns an agentmgr.Manager with no agents initialized, for
// tests that exercise the monitor loop's select statement without ever
// reaching a status-render tick.
func emptyManager(t *testing.T, coord *workspace.Coordinator) *agentmgr.Manager {
	t.Helper()
	return agentmgr.New(logger.Default(), agentmgr.Config{}, coord, nil, nil, nil)
}

func TestAgentmgrConfigTranslatesSecondsToDurations(t *testing.T) {
	c := testConfig("skip")
	c.AgentLaunchDelaySec = 2
	c.MessageGracePeriodSec = 3
	c.AgentCommand = "claude"
	c.AgentArgs = []string{"--dangerously-skip-permissions"}

	got := agentmgrConfig(c)
	require.Equal(t, 2*time.Second, got.LaunchDelay)
	require.Equal(t, 3*time.Second, got.MessageGracePeriod)
	require.Equal(t, "claude", got.AgentCommand)
	require.Equal(t, []string{"--dangerously-skip-permissions"}, got.AgentArgs)
}

func TestCompletionConfigTranslatesWeightsAndDurations(t *testing.T) {
	c := testConfig("skip")
	c.CompletionWeightPatterns = 0.25
	c.CompletionWeightFileActivity = 0.25
	c.CompletionWeightVerification = 0.35
	c.CompletionWeightTime = 0.15
	c.CompletionConfidenceThreshold = 0.7
	c.FileActivityTimeoutMin = 10
	c.FileActivityWindowMin = 15

	got := completionConfig(c)
	require.Equal(t, 0.25, got.Weights.Patterns)
	require.Equal(t, 0.35, got.Weights.Verification)
	require.Equal(t, 0.7, got.Threshold)
	require.Equal(t, 10*time.Minute, got.FileActivityTimeout)
	require.Equal(t, 15*time.Minute, got.FileActivityWindow)
}

func TestStrategyConfigTranslatesConflictPolicy(t *testing.T) {
	got := strategyConfig(testConfig("overwrite"))
	require.Equal(t, workspace.PolicyOverwrite, got.MergeConflictPolicy)

	got = strategyConfig(testConfig("skip"))
	require.Equal(t, workspace.PolicySkip, got.MergeConflictPolicy)
}

func TestWatchInterruptCancelsAndLatches(t *testing.T) {
	o := &Orchestrator{log: logger.Default()}
	sigCtx, cancelSig := context.WithCancel(context.Background())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		o.watchInterrupt(sigCtx, cancel)
		close(done)
	}()

	cancelSig()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchInterrupt did not return")
	}

	require.True(t, o.interrupted.Load())
	require.Error(t, ctx.Err())
}
