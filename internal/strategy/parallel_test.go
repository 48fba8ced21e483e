package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kspringfield13/xenosync/internal/agentchannel"
	"github.com/kspringfield13/xenosync/internal/agentmgr"
	"github.com/kspringfield13/xenosync/internal/common/logger"
	"github.com/kspringfield13/xenosync/internal/completion"
	"github.com/kspringfield13/xenosync/internal/prompt"
	"github.com/kspringfield13/xenosync/internal/workspace"
)

// trivialQuality never blocks a completion transition, so these tests
// exercise distribution and monitoring, not the gate itself (covered by
// quality_test.go).
func trivialQuality() QualityConfig {
	return QualityConfig{FilesThreshold: 0, MinMeaningfulFiles: 0, SubstantialBytes: 0}
}

func newTestStrategy(t *testing.T, numAgents int) (*Strategy, *agentmgr.Manager, map[int]*agentchannel.FakeChannel) {
	t.Helper()
	dir := t.TempDir()
	coord, err := workspace.New(logger.Default(), workspace.Config{
		SessionWorkspaceDir: dir,
		ProjectName:         "project",
		MergeStrategy:       "combine",
	})
	require.NoError(t, err)

	channels := make(map[int]*agentchannel.FakeChannel)
	mgr := agentmgr.New(logger.Default(), agentmgr.Config{MessageGracePeriod: time.Nanosecond, MonitorTick: 2 * time.Millisecond}, coord, nil, nil, nil)
	mgr.SetChannelFactory(func(id int) agentchannel.Channel {
		fc := agentchannel.NewFakeChannel()
		channels[id] = fc
		return fc
	})
	require.NoError(t, mgr.InitializeAgents(context.Background(), "sess-1", numAgents))

	det := completion.New(completion.Config{
		Weights:             completion.Weights{Patterns: 1.0},
		Threshold:           0.5,
		VerificationEnabled: false,
	}, mgr, coord)

	cfg := Config{
		CheckInterval:       5 * time.Millisecond,
		MaxDuration:         2 * time.Second,
		MinimumWorkDuration: 0,
		EnhancedDetection:   true,
		Quality:             trivialQuality(),
		MergeConflictPolicy: workspace.PolicySkip,
		EnableFinalization:  false,
	}
	s := New(logger.Default(), cfg, mgr, coord, det, nil, nil)
	// New fills zero-valued fields from DefaultConfig; restore the zero
	// minimum work duration and the trivial quality gate these tests use.
	s.cfg.MinimumWorkDuration = 0
	s.cfg.Quality = trivialQuality()
	return s, mgr, channels
}

func TestStrategyExecuteTwoAgentsThreeTasks(t *testing.T) {
	s, _, channels := newTestStrategy(t, 2)
	p := &prompt.Prompt{InitialPrompt: "build the thing", Tasks: tasksN(3)}

	// Agent 0 gets tasks 1 and 3, agent 1 gets task 2. Pre-seed both
	// channels so every completion check reports "task completed"
	// immediately, driving both agents through their whole queue and on
	// to project completion without ever reporting "still working".
	done := make(chan error, 1)
	go func() { done <- s.Execute(context.Background(), p, "sess-1", 2) }()

	// Give the strategy a moment to send the initial messages and
	// register the channels, then mark both agents as done.
	require.Eventually(t, func() bool {
		return channels[0] != nil && channels[1] != nil
	}, time.Second, time.Millisecond)
	channels[0].SetLines([]string{"task completed"})
	channels[1].SetLines([]string{"task completed"})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Execute did not finish in time")
	}

	assignments := s.Assignments()
	require.Len(t, assignments, 3)
	byAgent := map[int][]int{}
	for _, a := range assignments {
		byAgent[a.AgentID] = append(byAgent[a.AgentID], a.TaskNumber)
		require.Equal(t, AssignmentCompleted, a.Status)
	}
	require.ElementsMatch(t, []int{1, 3}, byAgent[0])
	require.ElementsMatch(t, []int{2}, byAgent[1])
}

func TestSendNextTaskToAgentReturnsFalseWhenQueueExhausted(t *testing.T) {
	s, _, _ := newTestStrategy(t, 1)
	s.book = newTaskBook(distribute(tasksN(1), 1))
	_, _, _, ok := s.book.claimNext(0)
	require.True(t, ok)

	sent, err := s.SendNextTaskToAgent(context.Background(), "sess-1", 0)
	require.NoError(t, err)
	require.False(t, sent)
}

func TestInitialMessageListsAllAssignedTasks(t *testing.T) {
	s, _, _ := newTestStrategy(t, 1)
	p := &prompt.Prompt{InitialPrompt: "kickoff"}
	tasks := tasksN(2)
	msg := s.initialMessage(p, 0, "/tmp/agent-0", tasks)
	require.Contains(t, msg, "kickoff")
	require.Contains(t, msg, "agent 0")
	require.Contains(t, msg, "2 total")
	require.Contains(t, msg, "Begin with task 1 now")
}
