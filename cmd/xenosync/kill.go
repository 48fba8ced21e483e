package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kspringfield13/xenosync/internal/panemgr"
	"github.com/kspringfield13/xenosync/internal/session"
)

var killFlags struct {
	force bool
}

var killCmd = &cobra.Command{
	Use:   "kill session-id",
	Short: "Kill a running sync session",
	Args:  cobra.ExactArgs(1),
	RunE:  runKill,
}

func init() {
	killCmd.Flags().BoolVarP(&killFlags.force, "force", "f", false, "kill without confirmation")
	rootCmd.AddCommand(killCmd)
}

func runKill(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	if !killFlags.force && !confirm(fmt.Sprintf("Are you sure you want to kill session %s?", sessionID)) {
		return fmt.Errorf("aborted")
	}

	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	sessStore, err := sessionStore(cfg)
	if err != nil {
		return err
	}
	sess, err := sessStore.LoadSession(sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to kill session %s\n", sessionID)
		return nil
	}

	sess.Status = session.StatusInterrupted
	now := time.Now().UTC()
	sess.EndedAt = &now
	if err := sessStore.SaveSession(sess); err != nil {
		return err
	}

	if mux := newMultiplexer(cfg); mux != nil {
		mux.KillSession(context.Background())
	} else if panemgr.IsAvailable() {
		panemgr.New(log, panemgr.DefaultSessionName).KillSession(context.Background())
	}

	if index, err := openIndex(cfg); err == nil && index != nil {
		defer index.Close()
		_ = index.Upsert(context.Background(), toSessionRow(sess))
	}

	fmt.Printf("Session %s killed\n", sessionID)
	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}
