// Package workspace owns the filesystem model that each agent writes into
// and the algorithm that unifies their independent output into one final
// project.
package workspace

import "time"

// Status is the lifecycle state of one agent's project directory.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusMerged      Status = "merged"
	StatusFailed      Status = "failed"
)

// AgentProject is the workspace coordinator's record of one agent's
// isolated project directory.
type AgentProject struct {
	AgentID      int       `json:"agent_id"`
	AgentUID     string    `json:"agent_uid"`
	SessionID    string    `json:"session_id"`
	WorkspaceDir string    `json:"workspace_dir"` // <workspace>/agent-<id>
	ProjectDir   string    `json:"project_dir"`   // <workspace_dir>/<project-name>
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Files        []string  `json:"files"`
	CommitCount  int       `json:"commit_count"`
	Error        string    `json:"error,omitempty"`
}

// advance moves the project to next unless it would downgrade a terminal
// or further-along state. Completed/Merged/Failed never regress to
// Initialized/InProgress through this path.
func (p *AgentProject) advance(next Status) {
	rank := map[Status]int{
		StatusInitialized: 0,
		StatusInProgress:  1,
		StatusCompleted:   2,
		StatusMerged:       3,
		StatusFailed:      2, // terminal, same rank as Completed so either can be set once
	}
	if next == StatusFailed {
		p.Status = StatusFailed
		return
	}
	if rank[next] < rank[p.Status] {
		return
	}
	p.Status = next
}

// FinalProjectDirName is the directory merged output is written into,
// relative to the session workspace root.
const FinalProjectDirName = "final-project"

// MergeConflict records that two or more agents wrote the same path.
type MergeConflict struct {
	File   string `json:"file"`
	Agents []int  `json:"agents"`
}

// MergeResult summarizes one run of merge_agent_projects.
type MergeResult struct {
	MergedProjects int             `json:"merged_projects"`
	FilesCopied    int             `json:"files_copied"`
	Conflicts      []MergeConflict `json:"conflicts"`
}
