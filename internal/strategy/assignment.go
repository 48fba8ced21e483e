package strategy

import (
	"sync"
	"time"

	"github.com/kspringfield13/xenosync/internal/prompt"
)

// AssignmentStatus is the lifecycle of one task-to-agent assignment.
type AssignmentStatus string

const (
	AssignmentClaimed    AssignmentStatus = "claimed"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
)

// Assignment records which agent owns a task and when it moved through
// its lifecycle.
type Assignment struct {
	TaskNumber  int
	AgentID     int
	Status      AssignmentStatus
	AssignedAt  time.Time
	CompletedAt time.Time
}

// agentQueue is one agent's FIFO slice of not-yet-delivered tasks plus
// its currently-executing task number (0 if idle).
type agentQueue struct {
	pending   []prompt.Task
	current   int
	total     int // tasks originally assigned to this agent
	delivered int // how many of them have been sent so far
}

// taskBook owns every agent's queue, the currently-executing map, the
// completed task list, and the assignment ledger. All access is
// serialized by mu since the strategy's monitor loop and the agent
// manager's completion callback both touch it.
type taskBook struct {
	mu sync.Mutex

	queues      map[int]*agentQueue
	assignments map[int]*Assignment // by task number
	completed   []int
	total       int
}

func newTaskBook(queues [][]prompt.Task) *taskBook {
	tb := &taskBook{
		queues:      make(map[int]*agentQueue, len(queues)),
		assignments: make(map[int]*Assignment),
	}
	for agentID, q := range queues {
		tb.queues[agentID] = &agentQueue{pending: append([]prompt.Task(nil), q...), total: len(q)}
		tb.total += len(q)
	}
	return tb
}

// claimNext pops the first task off agentID's queue (if any), records it
// as claimed/in-progress, and returns its 1-based position among this
// agent's total assignment for "TASK k of total" formatting.
func (tb *taskBook) claimNext(agentID int) (task prompt.Task, position, total int, ok bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	q := tb.queues[agentID]
	if q == nil || len(q.pending) == 0 {
		return prompt.Task{}, 0, 0, false
	}
	task = q.pending[0]
	q.pending = q.pending[1:]
	q.current = task.Number
	q.delivered++

	tb.assignments[task.Number] = &Assignment{
		TaskNumber: task.Number,
		AgentID:    agentID,
		Status:     AssignmentInProgress,
		AssignedAt: time.Now(),
	}
	return task, q.delivered, q.total, true
}

// completeCurrent marks agentID's currently-executing task completed.
func (tb *taskBook) completeCurrent(agentID int) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	q := tb.queues[agentID]
	if q == nil || q.current == 0 {
		return
	}
	if a, ok := tb.assignments[q.current]; ok {
		a.Status = AssignmentCompleted
		a.CompletedAt = time.Now()
	}
	tb.completed = append(tb.completed, q.current)
	q.current = 0
}

// remainingQueued reports how many not-yet-delivered tasks agentID still
// has, used to decide whether the quality gate applies now (only the
// agent's final task transition needs it) or whether the next task can
// simply be delivered.
func (tb *taskBook) remainingQueued(agentID int) int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	q := tb.queues[agentID]
	if q == nil {
		return 0
	}
	return len(q.pending)
}

// completedCount is the number of tasks marked completed across every
// agent.
func (tb *taskBook) completedCount() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.completed)
}

// allDone reports whether every distributed task has been completed.
func (tb *taskBook) allDone() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.completed) >= tb.total
}

// Assignments returns a snapshot of every assignment record, for status
// reporting.
func (tb *taskBook) Assignments() []Assignment {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	out := make([]Assignment, 0, len(tb.assignments))
	for _, a := range tb.assignments {
		out = append(out, *a)
	}
	return out
}
