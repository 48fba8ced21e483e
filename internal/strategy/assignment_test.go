package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaskBookClaimNextLifecycle(t *testing.T) {
	queues := distribute(tasksN(4), 2) // agent0: [1,3], agent1: [2,4]
	tb := newTaskBook(queues)

	task, position, total, ok := tb.claimNext(0)
	require.True(t, ok)
	require.Equal(t, 1, task.Number)
	require.Equal(t, 1, position)
	require.Equal(t, 2, total)
	require.Equal(t, 1, tb.remainingQueued(0))

	tb.completeCurrent(0)
	require.Equal(t, 1, tb.completedCount())

	task, position, total, ok = tb.claimNext(0)
	require.True(t, ok)
	require.Equal(t, 3, task.Number)
	require.Equal(t, 2, position)
	require.Equal(t, 2, total)
	require.Equal(t, 0, tb.remainingQueued(0))

	_, _, _, ok = tb.claimNext(0)
	require.False(t, ok, "agent 0 queue is exhausted")
}

func TestTaskBookAllDoneRequiresEveryTask(t *testing.T) {
	queues := distribute(tasksN(3), 2)
	tb := newTaskBook(queues)
	require.False(t, tb.allDone())

	for agentID, q := range queues {
		for range q {
			_, _, _, ok := tb.claimNext(agentID)
			require.True(t, ok)
			tb.completeCurrent(agentID)
		}
	}
	require.True(t, tb.allDone())
	require.Len(t, tb.Assignments(), 3)
}

func TestTaskBookCompleteCurrentIsNoopWhenIdle(t *testing.T) {
	queues := distribute(tasksN(1), 1)
	tb := newTaskBook(queues)
	tb.completeCurrent(0) // no current task claimed yet
	require.Equal(t, 0, tb.completedCount())
}

func TestTaskBookRemainingQueuedUnknownAgent(t *testing.T) {
	tb := newTaskBook(distribute(tasksN(2), 1))
	require.Equal(t, 0, tb.remainingQueued(99))
}
