package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/kspringfield13/xenosync/internal/panemgr"
)

var attachFlags struct {
	hive bool
}

var attachCmd = &cobra.Command{
	Use:   "attach [session-id]",
	Short: "Attach to a running sync session's tmux view",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAttach,
}

func init() {
	attachCmd.Flags().BoolVar(&attachFlags.hive, "hive", false, "attach to the multi-agent hive session")
	rootCmd.AddCommand(attachCmd)
}

// runAttach execs into `tmux attach-session`. Every xenosync run shares
// one tmux session name (panemgr.DefaultSessionName), so --hive and a
// bare session id both resolve to the same target; the flag and the
// positional argument are accepted for CLI compatibility and to let the
// operator confirm which session they mean.
func runAttach(cmd *cobra.Command, args []string) error {
	if !attachFlags.hive && len(args) == 0 {
		return fmt.Errorf("provide a session id or use --hive")
	}
	if !panemgr.IsAvailable() {
		return fmt.Errorf("tmux not available")
	}

	check := exec.Command("tmux", "has-session", "-t", panemgr.DefaultSessionName)
	if err := check.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "No active hive session found")
		fmt.Fprintln(os.Stderr, "Start a multi-agent session with: xenosync start <prompt> --agents N")
		return nil
	}

	fmt.Printf("Attaching to hive session: %s\n", panemgr.DefaultSessionName)
	fmt.Println("Navigation: Ctrl+B,1 for agents | Ctrl+B,d to detach")

	attach := exec.Command("tmux", "attach-session", "-t", panemgr.DefaultSessionName)
	attach.Stdin = os.Stdin
	attach.Stdout = os.Stdout
	attach.Stderr = os.Stderr
	return attach.Run()
}
