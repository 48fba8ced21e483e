// Command xenosync drives a xenosync orchestration session: launch a
// fleet of agents against a prompt's task list, watch them work, and fold
// their output back into one project.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
