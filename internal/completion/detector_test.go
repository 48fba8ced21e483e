package completion

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kspringfield13/xenosync/internal/agentchannel"
	"github.com/kspringfield13/xenosync/internal/agentmgr"
	"github.com/kspringfield13/xenosync/internal/common/logger"
	"github.com/kspringfield13/xenosync/internal/workspace"
)

func newTestDetector(t *testing.T) (*Detector, *agentmgr.Manager, *agentchannel.FakeChannel) {
	t.Helper()
	dir := t.TempDir()
	coord, err := workspace.New(logger.Default(), workspace.Config{
		SessionWorkspaceDir: dir,
		ProjectName:         "project",
		MergeStrategy:       "combine",
	})
	require.NoError(t, err)

	var fc *agentchannel.FakeChannel
	mgr := agentmgr.New(logger.Default(), agentmgr.Config{MessageGracePeriod: time.Minute}, coord, nil, nil, nil)
	mgr.SetChannelFactory(func(id int) agentchannel.Channel {
		fc = agentchannel.NewFakeChannel()
		return fc
	})
	require.NoError(t, mgr.InitializeAgents(context.Background(), "sess-1", 1))
	require.NoError(t, mgr.StartTask(0, 1))

	cfg := DefaultConfig()
	cfg.VerificationEnabled = false // keep these tests synchronous
	d := New(cfg, mgr, coord)
	return d, mgr, fc
}

func TestEvaluateConfidenceIsBounded(t *testing.T) {
	d, _, fc := newTestDetector(t)
	fc.SetLines([]string{"implementing feature..."})

	result, err := d.Evaluate(context.Background(), 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, result.OverallConfidence, 0.0)
	require.LessOrEqual(t, result.OverallConfidence, 1.0)
}

func TestEvaluateSingleWeightEqualsSignal(t *testing.T) {
	d, _, fc := newTestDetector(t)
	fc.SetLines([]string{"task completed"}) // pattern signal -> 1.0

	d.cfg.Weights = Weights{Patterns: 1.0}
	result, err := d.Evaluate(context.Background(), 0)
	require.NoError(t, err)
	require.InDelta(t, 1.0, result.OverallConfidence, 1e-9)
	require.InDelta(t, 1.0, result.SignalScores.Pattern, 1e-9)
}

func TestThresholdMonotonicity(t *testing.T) {
	d, _, fc := newTestDetector(t)
	fc.SetLines([]string{"task completed"})

	low := d
	low.cfg.Threshold = 0.1
	resultLow, err := low.Evaluate(context.Background(), 0)
	require.NoError(t, err)

	high := d
	high.cfg.Threshold = 0.99
	resultHigh, err := high.Evaluate(context.Background(), 0)
	require.NoError(t, err)

	if resultHigh.CompletionLikely {
		require.True(t, resultLow.CompletionLikely)
	}
}

func TestFileActivitySignalScoresByTimeout(t *testing.T) {
	d, mgr, _ := newTestDetector(t)
	agent, _ := mgr.Agent(0)

	old := time.Now().Add(-20 * time.Minute)
	require.NoError(t, os.WriteFile(filepath.Join(agent.ProjectPath, "a.go"), []byte("package a\n"), 0o644))
	require.NoError(t, os.Chtimes(filepath.Join(agent.ProjectPath, "a.go"), old, old))

	score, _ := d.fileActivitySignal(0)
	require.InDelta(t, 1.0, score, 1e-9, "20 minutes idle exceeds the 10-minute timeout")
}
