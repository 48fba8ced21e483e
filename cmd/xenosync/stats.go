package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kspringfield13/xenosync/internal/store"
)

var statsFlags struct {
	days int
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show build statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVarP(&statsFlags.days, "days", "d", 30, "number of days to analyze")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}

	index, err := openIndex(cfg)
	if err != nil {
		return err
	}
	if index == nil {
		// No persistent index configured: build a disposable in-memory
		// one from the session.json files, so `stats` works without
		// requiring store.path to be set.
		index, err = store.Open("")
		if err != nil {
			return err
		}
		sessStore, err := sessionStore(cfg)
		if err != nil {
			return err
		}
		all, err := sessStore.List()
		if err != nil {
			return err
		}
		ctx := context.Background()
		for _, s := range all {
			_ = index.Upsert(ctx, toSessionRow(s))
		}
	}
	defer index.Close()

	agg, err := index.Aggregate(context.Background(), statsFlags.days)
	if err != nil {
		return err
	}
	displayStatistics(statsFlags.days, agg)
	return nil
}
