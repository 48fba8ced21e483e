package agentmgr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kspringfield13/xenosync/internal/agentchannel"
	"github.com/kspringfield13/xenosync/internal/common/logger"
	"github.com/kspringfield13/xenosync/internal/workspace"
)

func newTestManager(t *testing.T) (*Manager, map[int]*agentchannel.FakeChannel) {
	t.Helper()
	dir := t.TempDir()
	coord, err := workspace.New(logger.Default(), workspace.Config{
		SessionWorkspaceDir: dir,
		ProjectName:         "project",
		MergeStrategy:       "combine",
	})
	require.NoError(t, err)

	fakes := make(map[int]*agentchannel.FakeChannel)
	m := New(logger.Default(), Config{
		LaunchDelay:        time.Millisecond,
		MessageGracePeriod: time.Minute,
		RecoveryBackoff:    []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond},
		PostRecoveryWait:   time.Millisecond,
	}, coord, nil, nil, nil)
	m.SetChannelFactory(func(id int) agentchannel.Channel {
		fc := agentchannel.NewFakeChannel()
		fakes[id] = fc
		return fc
	})
	return m, fakes
}

func TestInitializeAgentsCreatesDistinctProjects(t *testing.T) {
	m, fakes := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.InitializeAgents(ctx, "sess-1", 3))
	require.Len(t, fakes, 3)

	agents := m.Agents()
	require.Len(t, agents, 3)
	for i, a := range agents {
		require.Equal(t, i, a.ID)
		require.Equal(t, StatusStarting, a.Snapshot().Status)
	}
}

func TestSendToAgentTagsMessageAndSetsWorking(t *testing.T) {
	m, fakes := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.InitializeAgents(ctx, "sess-1", 1))

	require.NoError(t, m.SendToAgent(ctx, 0, "do task 1"))
	sent := fakes[0].Sent()
	require.Len(t, sent, 1)
	require.Contains(t, sent[0], "do task 1")

	agent, ok := m.Agent(0)
	require.True(t, ok)
	require.Equal(t, StatusWorking, agent.Snapshot().Status)
}

func TestCheckAgentWorkingHonorsCompletionPrecedence(t *testing.T) {
	m, fakes := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.InitializeAgents(ctx, "sess-1", 1))

	fakes[0].SetLines([]string{"still thinking...", "task completed"})
	working, err := m.CheckAgentWorking(ctx, 0)
	require.NoError(t, err)
	require.False(t, working, "completion pattern must take precedence over working pattern")

	fakes[0].SetLines([]string{"implementing feature..."})
	working, err = m.CheckAgentWorking(ctx, 0)
	require.NoError(t, err)
	require.True(t, working)
}

func TestRecoverAgentExhaustsAfterThreeAttempts(t *testing.T) {
	m, fakes := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.InitializeAgents(ctx, "sess-1", 1))
	m.cfg.MessageGracePeriod = 0

	agent, _ := m.Agent(0)
	agent.markError("api error")
	fakes[0].SetLines([]string{"still broken"})

	for attempt := 1; attempt <= maxRecoveryAttempts; attempt++ {
		recovered, err := m.RecoverAgent(ctx, 0)
		require.NoError(t, err)
		require.False(t, recovered)
	}

	_, err := m.RecoverAgent(ctx, 0)
	require.Error(t, err)
	require.Equal(t, StatusError, agent.Snapshot().Status)
}

func TestRecoverAgentSucceedsWhenWorkingPatternReturns(t *testing.T) {
	m, fakes := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.InitializeAgents(ctx, "sess-1", 1))
	m.cfg.MessageGracePeriod = 0

	agent, _ := m.Agent(0)
	agent.markError("rate limit")
	fakes[0].SetLines([]string{"implementing fix..."})

	recovered, err := m.RecoverAgent(ctx, 0)
	require.NoError(t, err)
	require.True(t, recovered)
	require.Equal(t, StatusWorking, agent.Snapshot().Status)
	require.Equal(t, 0, agent.Snapshot().RecoveryAttempts)
}
