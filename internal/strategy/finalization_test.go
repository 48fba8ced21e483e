package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kspringfield13/xenosync/internal/agentmgr"
)

func TestFinalizationPromptNumbersEveryTask(t *testing.T) {
	cfg := DefaultFinalizationConfig()
	msg := finalizationPrompt(cfg)
	require.Contains(t, msg, "1. "+cfg.Tasks[0])
	require.Contains(t, msg, "6. "+cfg.Tasks[5])
}

func TestRunFinalizationSucceedsWhenAgentCompletes(t *testing.T) {
	s, mgr, channels := newTestStrategy(t, 1)
	s.cfg.Finalization.CheckInterval = 2 * time.Millisecond
	s.cfg.Finalization.Timeout = time.Second

	// Drive completion the way production does: the completion detector
	// reads the finalization agent's own output, not a direct status poke.
	go func() {
		require.Eventually(t, mgr.IsFinalizationMode, time.Second, time.Millisecond)
		require.Eventually(t, func() bool {
			return channels[mgr.FinalizationAgentID()] != nil
		}, time.Second, time.Millisecond)
		channels[mgr.FinalizationAgentID()].SetLines([]string{"task completed"})
	}()

	err := s.RunFinalization(context.Background(), "sess-1")
	require.NoError(t, err)
	agent, ok := mgr.Agent(mgr.FinalizationAgentID())
	require.True(t, ok)
	require.Equal(t, agentmgr.StatusCompleted, agent.Snapshot().Status)
}

func TestRunFinalizationFailsOnAgentError(t *testing.T) {
	s, mgr, channels := newTestStrategy(t, 1)
	s.cfg.Finalization.CheckInterval = 2 * time.Millisecond
	s.cfg.Finalization.Timeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Monitor(ctx)

	go func() {
		require.Eventually(t, mgr.IsFinalizationMode, time.Second, time.Millisecond)
		channels[mgr.FinalizationAgentID()].SetLines([]string{"connection error talking to upstream"})
	}()

	err := s.RunFinalization(ctx, "sess-1")
	require.Error(t, err)
}

func TestRunFinalizationTimesOut(t *testing.T) {
	s, _, _ := newTestStrategy(t, 1)
	s.cfg.Finalization.CheckInterval = 2 * time.Millisecond
	s.cfg.Finalization.Timeout = 10 * time.Millisecond

	err := s.RunFinalization(context.Background(), "sess-1")
	require.Error(t, err)
}
