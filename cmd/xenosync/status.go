package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kspringfield13/xenosync/internal/session"
)

var statusFlags struct {
	sessionID string
	detailed  bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync session status",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusFlags.sessionID, "session", "s", "", "specific session id")
	statusCmd.Flags().BoolVarP(&statusFlags.detailed, "detailed", "d", false, "show per-step detail")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	sessStore, err := sessionStore(cfg)
	if err != nil {
		return err
	}

	if statusFlags.sessionID != "" {
		sess, err := sessStore.LoadSession(statusFlags.sessionID)
		if err != nil {
			return fmt.Errorf("session %s not found", statusFlags.sessionID)
		}
		var steps []session.Step
		if statusFlags.detailed {
			steps, _ = sessStore.LoadSteps(sess.ID)
		}
		displaySessionStatus(sess, steps, statusFlags.detailed)
		return nil
	}

	all, err := sessStore.List()
	if err != nil {
		return err
	}
	var active []*session.Session
	for _, s := range all {
		if !s.Status.IsTerminal() {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		fmt.Println("No active sessions")
		return nil
	}
	fmt.Println("Active Sessions:")
	for _, s := range active {
		displaySessionSummary(s)
	}
	return nil
}
