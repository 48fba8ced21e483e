// Package session implements the on-disk Session and Step records that
// persist one orchestrator run, independent of whether it is currently
// executing.
package session

import (
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive      Status = "active"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
	StatusPaused      Status = "paused"
)

// Session is the top-level record for one orchestrator run.
type Session struct {
	ID            string                 `json:"id"`
	PromptFile    string                 `json:"prompt_file"`
	PromptName    string                 `json:"prompt_name"`
	ProjectName   string                 `json:"project_name"`
	NumAgents     int                    `json:"num_agents"`
	Status        Status                 `json:"status"`
	StartedAt     time.Time              `json:"started_at"`
	EndedAt       *time.Time             `json:"ended_at,omitempty"`
	CurrentStep   int                    `json:"current_step"`
	TotalSteps    int                    `json:"total_steps"`
	Error         string                 `json:"error,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	WorkspaceDir  string                 `json:"workspace_dir"`
}

// StepStatus is the lifecycle state of one task's assignment record.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
)

// Step is the persisted record of one task's assignment and progress.
type Step struct {
	SessionID   string     `json:"session_id"`
	StepNumber  int        `json:"step_number"`
	AgentID     int        `json:"agent_id"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	Status      StepStatus `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// MarkStarted transitions a step to in-progress and stamps the start time.
func (s *Step) MarkStarted() {
	now := time.Now().UTC()
	s.Status = StepInProgress
	s.StartedAt = &now
}

// MarkCompleted transitions a step to completed and stamps the end time.
func (s *Step) MarkCompleted() {
	now := time.Now().UTC()
	s.Status = StepCompleted
	s.CompletedAt = &now
}

// MarkFailed transitions a step to failed, recording the error.
func (s *Step) MarkFailed(err string) {
	now := time.Now().UTC()
	s.Status = StepFailed
	s.CompletedAt = &now
	s.Error = err
}

// IsTerminal reports whether status can no longer transition for the
// orchestration's purposes (Completed and Stopped in the agent state
// machine map onto this at the session level as Completed/Failed/Interrupted).
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusInterrupted:
		return true
	default:
		return false
	}
}
