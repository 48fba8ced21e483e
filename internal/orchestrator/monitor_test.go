package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kspringfield13/xenosync/internal/common/logger"
	"github.com/kspringfield13/xenosync/internal/workspace"
)

func newTestCoordinator(t *testing.T) *workspace.Coordinator {
	t.Helper()
	coord, err := workspace.New(logger.Default(), workspace.Config{
		SessionWorkspaceDir: t.TempDir(),
		ProjectName:         "project",
		MergeStrategy:       "combine",
	})
	require.NoError(t, err)
	return coord
}

func writeMeaningfulFile(t *testing.T, dir, name string) {
	t.Helper()
	content := make([]byte, 0, 60)
	for len(content) < 60 {
		content = append(content, []byte("work done here ")...)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), content, 0o644))
}

func TestHasUnmergedCompletedFalseWhenIdleTrueOnceCompleted(t *testing.T) {
	coord := newTestCoordinator(t)
	_, err := coord.InitAgentProject(0, "uid-0", "sess-1")
	require.NoError(t, err)
	require.False(t, hasUnmergedCompleted(coord.Projects()))

	_, err = coord.CompleteAgentProject(0)
	require.NoError(t, err)
	require.True(t, hasUnmergedCompleted(coord.Projects()))
}

func TestHasUnmergedCompletedIgnoresOtherStillWorkingAgents(t *testing.T) {
	coord := newTestCoordinator(t)
	_, err := coord.InitAgentProject(0, "uid-0", "sess-1")
	require.NoError(t, err)
	_, err = coord.InitAgentProject(1, "uid-1", "sess-1")
	require.NoError(t, err)

	// Agent 0 finishes, agent 1 is still in progress: the trigger must
	// still fire so a force-merge of the finisher is possible without
	// waiting on the straggler.
	_, err = coord.CompleteAgentProject(0)
	require.NoError(t, err)
	require.True(t, hasUnmergedCompleted(coord.Projects()))
}

func TestMergeNowIsIdempotentAcrossRepeatedTicks(t *testing.T) {
	coord := newTestCoordinator(t)
	p, err := coord.InitAgentProject(0, "uid-0", "sess-1")
	require.NoError(t, err)
	writeMeaningfulFile(t, p.ProjectDir, "result.txt")
	_, err = coord.CompleteAgentProject(0)
	require.NoError(t, err)

	o := &Orchestrator{log: logger.Default()}
	log := logger.Default()

	o.mergeNow(log, coord, workspace.PolicySkip)
	require.False(t, hasUnmergedCompleted(coord.Projects()))

	proj, ok := coord.Project(0)
	require.True(t, ok)
	require.Equal(t, workspace.StatusMerged, proj.Status)

	// A second tick with nothing new to merge must not error or re-merge.
	o.mergeNow(log, coord, workspace.PolicySkip)
	proj, ok = coord.Project(0)
	require.True(t, ok)
	require.Equal(t, workspace.StatusMerged, proj.Status)
}

func TestMergeRemainingSkipsWhenNothingCompleted(t *testing.T) {
	coord := newTestCoordinator(t)
	_, err := coord.InitAgentProject(0, "uid-0", "sess-1")
	require.NoError(t, err)

	o := &Orchestrator{log: logger.Default()}
	// Must not panic or error when nothing is ready to merge.
	o.mergeRemaining(logger.Default(), coord, workspace.PolicySkip, "test")
	proj, ok := coord.Project(0)
	require.True(t, ok)
	require.Equal(t, workspace.StatusInitialized, proj.Status)
}

func TestMergeConflictPolicyReflectsConfigResolution(t *testing.T) {
	o1 := &Orchestrator{cfg: testConfig("overwrite")}
	require.Equal(t, workspace.PolicyOverwrite, o1.mergeConflictPolicy())

	o2 := &Orchestrator{cfg: testConfig("skip")}
	require.Equal(t, workspace.PolicySkip, o2.mergeConflictPolicy())

	o3 := &Orchestrator{cfg: testConfig("")}
	require.Equal(t, workspace.PolicySkip, o3.mergeConflictPolicy())
}

func TestPostExecutionMonitorReturnsStrategyErrorOnDone(t *testing.T) {
	coord := newTestCoordinator(t)
	o := &Orchestrator{log: logger.Default(), cfg: testConfig("skip")}

	done := make(chan error, 1)
	wantErr := context.DeadlineExceeded
	done <- wantErr

	sess := testSession(t)
	got := o.postExecutionMonitor(context.Background(), logger.Default(), sess, coord, emptyManager(t, coord), done)
	require.Equal(t, wantErr, got)
}

func TestPostExecutionMonitorStopsOnContextCancel(t *testing.T) {
	coord := newTestCoordinator(t)
	o := &Orchestrator{log: logger.Default(), cfg: testConfig("skip")}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	sess := testSession(t)

	errCh := make(chan error, 1)
	go func() {
		errCh <- o.postExecutionMonitor(ctx, logger.Default(), sess, coord, emptyManager(t, coord), done)
	}()
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("postExecutionMonitor did not return after cancel")
	}
}
