// Package agentmgr owns the set of Agent records, the monitoring loop
// that classifies each agent from its terminal output, and error
// recovery. It has no notion of tasks or merging; those live in
// internal/strategy and internal/workspace respectively.
package agentmgr

import (
	"sync"
	"time"
)

// Status is the coarse lifecycle state of one agent, derived from pattern
// recognition over its terminal output.
type Status string

const (
	StatusStarting  Status = "starting"
	StatusWorking   Status = "working"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusStopped   Status = "stopped"
)

// maxConfidenceHistory bounds Agent.ConfidenceHistory; older readings are
// evicted.
const maxConfidenceHistory = 10

// Agent is one tracked process: a regular worker (id in [0,N)) or the
// finalization agent (id == N).
type Agent struct {
	mu sync.Mutex

	ID        int
	UID       string
	SessionID string

	Status Status

	StartTime         time.Time
	LastActivity       time.Time
	LastMessageSent    time.Time
	LastCompletionCheck time.Time

	Error            string
	RecoveryAttempts int

	CurrentTask   int
	TaskStartTime time.Time

	ProjectPath string

	ConfidenceHistory []float64

	// VerificationScore/VerificationAt cache the completion detector's
	// most recent semantic verification result so repeated checks within
	// verificationInterval don't re-send the probe message.
	VerificationScore float64
	VerificationAt    time.Time

	// stopMonitoring is not set or read anywhere: the monitor loop skips
	// regular agents during finalization via Manager.finalizationMode and
	// finalizationID instead.
	stopMonitoring bool
}

func newAgent(id int, uid, sessionID, projectPath string) *Agent {
	now := time.Now()
	return &Agent{
		ID:          id,
		UID:         uid,
		SessionID:   sessionID,
		Status:      StatusStarting,
		StartTime:   now,
		LastActivity: now,
		ProjectPath: projectPath,
	}
}

// Snapshot returns a copy safe to read without holding the agent's lock.
func (a *Agent) Snapshot() Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := *a
	cp.ConfidenceHistory = append([]float64(nil), a.ConfidenceHistory...)
	return cp
}

func (a *Agent) setStatus(s Status) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Status = s
}

func (a *Agent) startTask(taskNumber int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.CurrentTask = taskNumber
	a.TaskStartTime = time.Now()
	a.Status = StatusWorking
}

func (a *Agent) touchActivity() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.LastActivity = time.Now()
}

func (a *Agent) recordMessageSent() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.LastMessageSent = time.Now()
	a.Status = StatusWorking
}

// PushConfidence appends a confidence reading, evicting the oldest once
// more than maxConfidenceHistory are held.
func (a *Agent) PushConfidence(score float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ConfidenceHistory = append(a.ConfidenceHistory, score)
	if len(a.ConfidenceHistory) > maxConfidenceHistory {
		a.ConfidenceHistory = a.ConfidenceHistory[len(a.ConfidenceHistory)-maxConfidenceHistory:]
	}
}

// CacheVerification records the outcome of a semantic-verification probe
// so a subsequent check within the verification interval can reuse it.
func (a *Agent) CacheVerification(score float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.VerificationScore = score
	a.VerificationAt = time.Now()
}

func (a *Agent) markError(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Error = reason
	a.Status = StatusError
}

func (a *Agent) markRecovered() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Error = ""
	a.RecoveryAttempts = 0
	a.Status = StatusWorking
}

func (a *Agent) markStopped() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Status = StatusStopped
}

func (a *Agent) elapsedTaskDuration() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.TaskStartTime.IsZero() {
		return time.Since(a.StartTime)
	}
	return time.Since(a.TaskStartTime)
}
