package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kspringfield13/xenosync/internal/common/xerrors"
)

// ConflictPolicy decides what happens when two agents wrote the same path.
type ConflictPolicy string

const (
	PolicySkip      ConflictPolicy = "skip"
	PolicyOverwrite ConflictPolicy = "overwrite"
)

// Merge runs whichever merge strategy the coordinator was configured
// with: MergeAgentProjectsGit when project_merge_strategy is "git",
// otherwise the file-copy MergeAgentProjects below.
func (c *Coordinator) Merge(policy ConflictPolicy) (*MergeResult, error) {
	if c.useGit {
		return c.MergeAgentProjectsGit()
	}
	return c.MergeAgentProjects(policy)
}

// MergeAgentProjects iterates Completed projects in agent-id order, copies
// every file (excluding .git) into final-project, records conflicts per
// policy, writes MERGE_SUMMARY.md, and transitions merged projects to
// Merged. Projects not in Completed status are left untouched.
func (c *Coordinator) MergeAgentProjects(policy ConflictPolicy) (*MergeResult, error) {
	if policy != PolicySkip && policy != PolicyOverwrite {
		policy = PolicySkip
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
	owners := make(map[string][]int) // path -> agent ids that wrote it
	var conflicts []MergeConflict
	filesCopied := 0

	for _, p := range completed {
		err := filepath.Walk(p.ProjectDir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if info.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			rel, relErr := filepath.Rel(p.ProjectDir, path)
			if relErr != nil {
				return relErr
			}
			if rel == "README.md" && isSeedReadme(path) {
				return nil
			}

			dest := filepath.Join(finalDir, rel)
			_, existed := owners[rel]

			if existed {
				prevAgents := append([]int(nil), owners[rel]...)
				owners[rel] = append(owners[rel], p.AgentID)
				conflicts = append(conflicts, MergeConflict{File: rel, Agents: append(prevAgents, p.AgentID)})
				if policy == PolicySkip {
					return nil
				}
			} else {
				owners[rel] = []int{p.AgentID}
			}

			if err := copyFile(path, dest, info); err != nil {
				return fmt.Errorf("copy %s: %w", rel, err)
			}
			filesCopied++
			return nil
		})
		if err != nil {
			return nil, xerrors.MergeFailure(fmt.Sprintf("walking agent %d project", p.AgentID), err)
		}
	}

	if err := writeMergeSummary(finalDir, len(completed), filesCopied, conflicts); err != nil {
		return nil, xerrors.MergeFailure("writing MERGE_SUMMARY.md", err)
	}

	if c.useGit {
		if err := commitAll(finalDir, "xenosync", "xenosync@local", "merge agent projects"); err != nil {
			c.log.Warn("final project commit failed", zap.Error(err))
		}
	}

	c.mu.Lock()
	for _, p := range completed {
		if tracked, ok := c.projects[p.AgentID]; ok {
			tracked.advance(StatusMerged)
		}
	}
	c.mu.Unlock()

	return &MergeResult{
		MergedProjects: len(completed),
		FilesCopied:    filesCopied,
		Conflicts:      conflicts,
	}, nil
}

// isSeedReadme is a best-effort check that a README.md is the one the
// coordinator seeded (so it doesn't count as a real "wrote the same
// file" conflict when every agent starts from the same template).
func isSeedReadme(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), "Work in progress by agent")
}

func copyFile(src, dest string, info os.FileInfo) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return os.Chtimes(dest, info.ModTime(), info.ModTime())
}

func writeMergeSummary(finalDir string, merged, filesCopied int, conflicts []MergeConflict) error {
	var b strings.Builder
	b.WriteString("# Merge Summary\n\n")
	b.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("- Merged Projects: %d\n", merged))
	b.WriteString(fmt.Sprintf("- Files Copied: %d\n", filesCopied))
	b.WriteString(fmt.Sprintf("- Conflicts: %d\n\n", len(conflicts)))

	if len(conflicts) > 0 {
		b.WriteString("## Conflicts\n\n")
		for _, c := range conflicts {
			agents := make([]string, len(c.Agents))
			for i, a := range c.Agents {
				agents[i] = fmt.Sprintf("agent-%d", a)
			}
			b.WriteString(fmt.Sprintf("- `%s`: %s\n", c.File, strings.Join(agents, ", ")))
		}
	}

	return os.WriteFile(filepath.Join(finalDir, "MERGE_SUMMARY.md"), []byte(b.String()), 0o644)
}
