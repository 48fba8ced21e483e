package strategy

import "github.com/kspringfield13/xenosync/internal/prompt"

// distribute assigns task i (in prompt order) to agent i mod numAgents,
// producing one FIFO queue per agent. Sizes across agents differ by at
// most one task.
func distribute(tasks []prompt.Task, numAgents int) [][]prompt.Task {
	queues := make([][]prompt.Task, numAgents)
	for i, t := range tasks {
		agent := i % numAgents
		queues[agent] = append(queues[agent], t)
	}
	return queues
}
