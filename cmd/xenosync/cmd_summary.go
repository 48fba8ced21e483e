package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kspringfield13/xenosync/internal/common/events"
)

var summaryFlags struct {
	format string
	output string
}

var summaryCmd = &cobra.Command{
	Use:   "summary session-id",
	Short: "Generate a session summary report",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummary,
}

func init() {
	summaryCmd.Flags().StringVarP(&summaryFlags.format, "format", "f", "markdown", "output format (markdown, json, html)")
	summaryCmd.Flags().StringVarP(&summaryFlags.output, "output", "o", "", "write report to this file instead of stdout")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

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
		fmt.Fprintf(os.Stderr, "Could not generate summary for session %s\n", sessionID)
		return nil
	}
	steps, _ := sessStore.LoadSteps(sessionID)
	evs, _ := events.ReadAll(sessStore.EventsPath(sessionID))

	report, err := generateSummary(sess, steps, evs, summaryFlags.format)
	if err != nil {
		return err
	}

	if summaryFlags.output != "" {
		if err := os.WriteFile(summaryFlags.output, []byte(report), 0o644); err != nil {
			return err
		}
		fmt.Printf("Summary written to %s\n", summaryFlags.output)
		return nil
	}
	fmt.Println(report)
	return nil
}
