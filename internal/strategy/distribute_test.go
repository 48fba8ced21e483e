package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kspringfield13/xenosync/internal/prompt"
)

func tasksN(n int) []prompt.Task {
	out := make([]prompt.Task, n)
	for i := range out {
		out[i] = prompt.Task{Number: i + 1, Content: "do thing", Description: "thing"}
	}
	return out
}

func TestDistributeIsRoundRobin(t *testing.T) {
	queues := distribute(tasksN(3), 2)
	require.Len(t, queues, 2)
	require.Equal(t, []int{1, 3}, numbers(queues[0]))
	require.Equal(t, []int{2}, numbers(queues[1]))
}

func TestDistributeSizesDifferByAtMostOne(t *testing.T) {
	queues := distribute(tasksN(10), 3)
	sizes := make([]int, len(queues))
	for i, q := range queues {
		sizes[i] = len(q)
	}
	min, max := sizes[0], sizes[0]
	for _, s := range sizes {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	require.LessOrEqual(t, max-min, 1)
}

func TestDistributeCoversEveryTaskExactlyOnce(t *testing.T) {
	tasks := tasksN(7)
	queues := distribute(tasks, 3)
	seen := make(map[int]bool)
	for _, q := range queues {
		for _, task := range q {
			require.NotZero(t, task.Number)
			seen[task.Number] = true
		}
	}
	require.Len(t, seen, len(tasks))
}

func numbers(tasks []prompt.Task) []int {
	out := make([]int, len(tasks))
	for i, t := range tasks {
		out[i] = t.Number
	}
	return out
}
