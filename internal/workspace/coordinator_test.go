package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kspringfield13/xenosync/internal/common/logger"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	dir := t.TempDir()
	c, err := New(logger.Default(), Config{
		SessionWorkspaceDir: dir,
		ProjectName:         "project",
		MergeStrategy:       "combine",
	})
	require.NoError(t, err)
	return c
}

func TestInitAgentProjectCreatesIsolatedDirs(t *testing.T) {
	c := newTestCoordinator(t)

	p0, err := c.InitAgentProject(0, "uid-0", "sess-1")
	require.NoError(t, err)
	p1, err := c.InitAgentProject(1, "uid-1", "sess-1")
	require.NoError(t, err)

	require.NotEqual(t, p0.ProjectDir, p1.ProjectDir)
	require.True(t, strings.HasPrefix(p0.ProjectDir, p0.WorkspaceDir))
	require.DirExists(t, p0.ProjectDir)
	require.DirExists(t, p1.ProjectDir)
	require.Equal(t, StatusInitialized, p0.Status)
}

func TestTrackAgentProgressDoesNotDowngradeCompleted(t *testing.T) {
	c := newTestCoordinator(t)
	p, err := c.InitAgentProject(0, "uid-0", "sess-1")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(p.ProjectDir, "main.go"), []byte("package main\n"), 0o644))
	tracked, err := c.TrackAgentProgress(0)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, tracked.Status)

	_, err = c.CompleteAgentProject(0)
	require.NoError(t, err)

	tracked, err = c.TrackAgentProgress(0)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, tracked.Status)
}

func TestMergeAgentProjectsUnionOfDisjointFiles(t *testing.T) {
	c := newTestCoordinator(t)

	p0, err := c.InitAgentProject(0, "uid-0", "sess-1")
	require.NoError(t, err)
	p1, err := c.InitAgentProject(1, "uid-1", "sess-1")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(p0.ProjectDir, "a.go"), []byte("package a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(p1.ProjectDir, "b.go"), []byte("package b\n"), 0o644))

	_, err = c.CompleteAgentProject(0)
	require.NoError(t, err)
	_, err = c.CompleteAgentProject(1)
	require.NoError(t, err)

	result, err := c.MergeAgentProjects(PolicySkip)
	require.NoError(t, err)
	require.Equal(t, 2, result.MergedProjects)
	require.Empty(t, result.Conflicts)

	require.FileExists(t, filepath.Join(c.FinalProjectDir(), "a.go"))
	require.FileExists(t, filepath.Join(c.FinalProjectDir(), "b.go"))
	require.FileExists(t, filepath.Join(c.FinalProjectDir(), "MERGE_SUMMARY.md"))

	// Re-running is a no-op: both projects are now Merged, not Completed.
	again, err := c.MergeAgentProjects(PolicySkip)
	require.NoError(t, err)
	require.Equal(t, 0, again.MergedProjects)
}

func TestMergeAgentProjectsReportsConflicts(t *testing.T) {
	c := newTestCoordinator(t)

	p0, err := c.InitAgentProject(0, "uid-0", "sess-1")
	require.NoError(t, err)
	p1, err := c.InitAgentProject(1, "uid-1", "sess-1")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(p0.ProjectDir, "shared.go"), []byte("package a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(p1.ProjectDir, "shared.go"), []byte("package b\n"), 0o644))

	_, err = c.CompleteAgentProject(0)
	require.NoError(t, err)
	_, err = c.CompleteAgentProject(1)
	require.NoError(t, err)

	result, err := c.MergeAgentProjects(PolicySkip)
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	require.Equal(t, "shared.go", result.Conflicts[0].File)
	require.Equal(t, []int{0, 1}, result.Conflicts[0].Agents)

	// Under skip policy, agent 0's version wins (first writer).
	data, err := os.ReadFile(filepath.Join(c.FinalProjectDir(), "shared.go"))
	require.NoError(t, err)
	require.Equal(t, "package a\n", string(data))
}
