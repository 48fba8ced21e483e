package workspace

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kspringfield13/xenosync/internal/common/xerrors"
)

// MergeAgentProjectsGit is the alternate merge strategy used when
// project_merge_strategy is "git": each completed agent project is added
// as a remote of final-project and merged for real, instead of copied
// file by file. A conflicted merge is aborted and reported rather than
// left half-applied; the conflict-free result matches the file-copy
// variant's MERGE_SUMMARY.md shape.
func (c *Coordinator) MergeAgentProjectsGit() (*MergeResult, error) {
	if !c.useGit {
		return nil, fmt.Errorf("workspace: git merge strategy requires project_merge_strategy=git")
	}

	projects := c.Projects()
	var completed []*AgentProject
	for _, p := range projects {
		if p.Status == StatusCompleted {
			completed = append(completed, p)
		}
	}
	sort.Slice(completed, func(i, j int) bool { return completed[i].AgentID < completed[j].AgentID })
	if len(completed) == 0 {
		return &MergeResult{}, nil
	}

	finalDir := c.FinalProjectDir()
	var conflicts []MergeConflict
	merged := 0

	for _, p := range completed {
		remote := fmt.Sprintf("agent-%d", p.AgentID)
		branch := fmt.Sprintf("agent-%d-work", p.AgentID)

		if _, err := runGit(finalDir, "remote", "remove", remote); err != nil {
			// fine if it never existed
		}
		if _, err := runGit(finalDir, "remote", "add", remote, p.ProjectDir); err != nil {
			return nil, xerrors.MergeFailure(fmt.Sprintf("adding remote for agent %d", p.AgentID), err)
		}
		if _, err := runGit(finalDir, "fetch", remote); err != nil {
			return nil, xerrors.MergeFailure(fmt.Sprintf("fetching agent %d", p.AgentID), err)
		}

		out, mergeErr := runGit(finalDir, "merge", "--no-edit", "-m",
			fmt.Sprintf("merge %s", remote), remote+"/master")
		if mergeErr != nil {
			// try main if master doesn't exist
			out, mergeErr = runGit(finalDir, "merge", "--no-edit", "-m",
				fmt.Sprintf("merge %s", remote), remote+"/main")
		}

		if mergeErr != nil {
			if strings.Contains(out, "CONFLICT") {
				conflictFiles := parseConflictFiles(out)
				for _, f := range conflictFiles {
					conflicts = append(conflicts, MergeConflict{File: f, Agents: []int{p.AgentID}})
				}
				if _, abortErr := runGit(finalDir, "merge", "--abort"); abortErr != nil {
					c.log.Warn("merge --abort failed", zap.Int("agent_id", p.AgentID), zap.Error(abortErr))
				}
				branch = ""
				continue
			}
			return nil, xerrors.MergeFailure(fmt.Sprintf("merging agent %d", p.AgentID), mergeErr)
		}

		merged++
		_ = branch
	}

	if err := writeMergeSummary(finalDir, merged, 0, conflicts); err != nil {
		return nil, xerrors.MergeFailure("writing MERGE_SUMMARY.md", err)
	}
	if _, err := runGit(finalDir, "add", "MERGE_SUMMARY.md"); err == nil {
		_, _ = runGit(finalDir, "-c", "user.name=xenosync", "-c", "user.email=xenosync@local",
			"commit", "-m", "record merge summary")
	}

	c.mu.Lock()
	for _, p := range completed {
		if tracked, ok := c.projects[p.AgentID]; ok {
			tracked.advance(StatusMerged)
		}
	}
	c.mu.Unlock()

	return &MergeResult{MergedProjects: merged, Conflicts: conflicts}, nil
}

func parseConflictFiles(mergeOutput string) []string {
	var files []string
	for _, line := range strings.Split(mergeOutput, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "CONFLICT") {
			if idx := strings.LastIndex(line, " in "); idx != -1 {
				files = append(files, strings.TrimSpace(line[idx+len(" in "):]))
			}
		}
	}
	return files
}
