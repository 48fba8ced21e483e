package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kspringfield13/xenosync/internal/session"
)

var listFlags struct {
	all   bool
	limit int
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List sync sessions",
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listFlags.all, "all", "a", false, "list all sessions, not just active ones")
	listCmd.Flags().IntVarP(&listFlags.limit, "limit", "l", 10, "number of sessions to show")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}

	index, err := openIndex(cfg)
	if err != nil {
		return err
	}
	if index != nil {
		defer index.Close()
		rows, err := index.List(context.Background(), !listFlags.all, listFlags.limit)
		if err != nil {
			return err
		}
		printListHeader(len(rows), listFlags.all)
		for _, r := range rows {
			displaySessionSummaryRow(r)
		}
		return nil
	}

	sessStore, err := sessionStore(cfg)
	if err != nil {
		return err
	}
	all, err := sessStore.List()
	if err != nil {
		return err
	}

	var sessions []*session.Session
	if listFlags.all {
		sessions = all
		if listFlags.limit > 0 && len(sessions) > listFlags.limit {
			sessions = sessions[:listFlags.limit]
		}
	} else {
		for _, s := range all {
			if !s.Status.IsTerminal() {
				sessions = append(sessions, s)
			}
		}
	}

	printListHeader(len(sessions), listFlags.all)
	if len(sessions) == 0 {
		fmt.Println("No sessions found")
		return nil
	}
	for _, s := range sessions {
		displaySessionSummary(s)
	}
	return nil
}

func printListHeader(shown int, all bool) {
	if all {
		fmt.Printf("All Sessions (showing %d):\n", shown)
	} else {
		fmt.Printf("Active Sessions (%d):\n", shown)
	}
}
