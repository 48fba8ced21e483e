package workspace

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kspringfield13/xenosync/internal/common/logger"
)

const agentDirPrefix = "agent-"

// Coordinator owns <workspace>/agent-<id>/<project> per agent and
// <workspace>/final-project, and runs the merge algorithm across them.
type Coordinator struct {
	log *logger.Logger

	root        string // <sessions>/<sid>/workspace
	projectName string
	useGit      bool // mirrors project_merge_strategy == "git"

	mu       sync.Mutex
	projects map[int]*AgentProject
}

// Config configures one Coordinator.
type Config struct {
	SessionWorkspaceDir string
	ProjectName         string
	MergeStrategy       string // "combine" | "git"
}

// New creates <root>/final-project (initializing a git repo for it when
// the merge strategy is "git") and returns a Coordinator ready to accept
// agents.
func New(log *logger.Logger, cfg Config) (*Coordinator, error) {
	if cfg.ProjectName == "" {
		cfg.ProjectName = "project"
	}
	c := &Coordinator{
		log:         log,
		root:        cfg.SessionWorkspaceDir,
		projectName: cfg.ProjectName,
		useGit:      cfg.MergeStrategy == "git",
		projects:    make(map[int]*AgentProject),
	}

	finalDir := c.FinalProjectDir()
	if err := os.MkdirAll(finalDir, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create final project dir: %w", err)
	}
	if c.useGit {
		if err := initRepo(finalDir, "xenosync", "xenosync@local"); err != nil {
			return nil, fmt.Errorf("workspace: init final project repo: %w", err)
		}
	}
	return c, nil
}

// FinalProjectDir is <root>/final-project.
func (c *Coordinator) FinalProjectDir() string {
	return filepath.Join(c.root, FinalProjectDirName)
}

// AgentWorkspaceDir is <root>/agent-<id>.
func (c *Coordinator) AgentWorkspaceDir(agentID int) string {
	return filepath.Join(c.root, fmt.Sprintf("%s%d", agentDirPrefix, agentID))
}

// InitAgentProject creates the per-agent directory tree and (when the git
// merge strategy is active) a per-agent repository with its own commit
// identity, seeded with a README.
func (c *Coordinator) InitAgentProject(agentID int, agentUID, sessionID string) (*AgentProject, error) {
	workspaceDir := c.AgentWorkspaceDir(agentID)
	projectDir := filepath.Join(workspaceDir, c.projectName)
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create agent %d project dir: %w", agentID, err)
	}

	p := &AgentProject{
		AgentID:      agentID,
		AgentUID:     agentUID,
		SessionID:    sessionID,
		WorkspaceDir: workspaceDir,
		ProjectDir:   projectDir,
		Status:       StatusInitialized,
		CreatedAt:    time.Now(),
	}

	if c.useGit {
		identity := fmt.Sprintf("agent-%d", agentID)
		readme := filepath.Join(projectDir, "README.md")
		if err := os.WriteFile(readme, []byte(fmt.Sprintf("# %s\n\nWork in progress by agent %d.\n", c.projectName, agentID)), 0o644); err != nil {
			return nil, fmt.Errorf("workspace: seed agent %d README: %w", agentID, err)
		}
		if err := initRepo(projectDir, identity, identity+"@xenosync.local"); err != nil {
			return nil, fmt.Errorf("workspace: init agent %d repo: %w", agentID, err)
		}
		if err := commitAll(projectDir, identity, identity+"@xenosync.local", "initial commit"); err != nil {
			return nil, fmt.Errorf("workspace: commit agent %d seed: %w", agentID, err)
		}
	}

	c.mu.Lock()
	c.projects[agentID] = p
	c.mu.Unlock()
	return p, nil
}

// Project returns the current record for agentID.
func (c *Coordinator) Project(agentID int) (*AgentProject, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.projects[agentID]
	return p, ok
}

// Projects returns a snapshot of every tracked project, ordered by agent id.
func (c *Coordinator) Projects() []*AgentProject {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*AgentProject, 0, len(c.projects))
	for _, p := range c.projects {
		cp := *p
		out = append(out, &cp)
	}
	sortProjectsByAgentID(out)
	return out
}

// TrackAgentProgress recursively enumerates an agent's project tree
// (skipping .git) and transitions Initialized -> InProgress once it finds
// content beyond the seed commit. It never downgrades Completed/Merged.
func (c *Coordinator) TrackAgentProgress(agentID int) (*AgentProject, error) {
	c.mu.Lock()
	p, ok := c.projects[agentID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("workspace: no project for agent %d", agentID)
	}

	files, err := listFiles(p.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("workspace: enumerate agent %d project: %w", agentID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	p.Files = files
	if c.useGit {
		p.CommitCount = commitCount(p.ProjectDir)
	}
	meaningful := len(files) > 0
	if c.useGit {
		// Under git the seed README is the initial commit, not agent work.
		meaningful = p.CommitCount > 1 || len(files) > 1 || (len(files) == 1 && files[0] != "README.md")
	}
	if p.Status == StatusInitialized && meaningful {
		p.advance(StatusInProgress)
	}
	cp := *p
	return &cp, nil
}

// CompleteAgentProject commits any pending changes (git strategy only)
// and transitions the project to Completed.
func (c *Coordinator) CompleteAgentProject(agentID int) (*AgentProject, error) {
	c.mu.Lock()
	p, ok := c.projects[agentID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("workspace: no project for agent %d", agentID)
	}

	if c.useGit {
		identity := fmt.Sprintf("agent-%d", agentID)
		if err := commitAll(p.ProjectDir, identity, identity+"@xenosync.local", "agent work"); err != nil {
			c.log.Warn("commit on completion failed, continuing", zap.Int("agent_id", agentID), zap.Error(err))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	p.CompletedAt = &now
	p.advance(StatusCompleted)
	cp := *p
	return &cp, nil
}

// FailAgentProject marks a project Failed with a reason, e.g. after
// AgentRecoveryExhausted.
func (c *Coordinator) FailAgentProject(agentID int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.projects[agentID]; ok {
		p.Error = reason
		p.advance(StatusFailed)
	}
}

// FileActivity reports the most recent modification time across an
// agent's project tree (excluding .git) and how many files exist. A
// zero time with fileCount 0 means the project has no files yet.
func (c *Coordinator) FileActivity(agentID int) (newest time.Time, fileCount int, err error) {
	c.mu.Lock()
	p, ok := c.projects[agentID]
	c.mu.Unlock()
	if !ok {
		return time.Time{}, 0, fmt.Errorf("workspace: no project for agent %d", agentID)
	}

	walkErr := filepath.Walk(p.ProjectDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		fileCount++
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	if walkErr != nil {
		return time.Time{}, 0, walkErr
	}
	return newest, fileCount, nil
}

func listFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, rel)
		return nil
	})
	return files, err
}

func sortProjectsByAgentID(ps []*AgentProject) {
	for i := 1; i < len(ps); i++ {
		for j := i; j > 0 && ps[j-1].AgentID > ps[j].AgentID; j-- {
			ps[j-1], ps[j] = ps[j], ps[j-1]
		}
	}
}

func runGit(dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func initRepo(dir, userName, userEmail string) error {
	if _, err := runGit(dir, "init"); err != nil {
		return err
	}
	if _, err := runGit(dir, "config", "user.name", userName); err != nil {
		return err
	}
	if _, err := runGit(dir, "config", "user.email", userEmail); err != nil {
		return err
	}
	return nil
}

func commitAll(dir, userName, userEmail, message string) error {
	if _, err := runGit(dir, "add", "-A"); err != nil {
		return err
	}
	// Nothing staged is not an error: agents may be between writes.
	if out, err := runGit(dir, "diff", "--cached", "--quiet"); err != nil {
		_ = out
		_, commitErr := runGit(dir, "-c", "user.name="+userName, "-c", "user.email="+userEmail, "commit", "-m", message)
		return commitErr
	}
	return nil
}

func commitCount(dir string) int {
	out, err := runGit(dir, "rev-list", "--count", "HEAD")
	if err != nil {
		return 0
	}
	var n int
	_, _ = fmt.Sscanf(strings.TrimSpace(out), "%d", &n)
	return n
}
