package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the SQLite session index from session.json files",
	Long: `reindex rewrites the store.path SQLite index from the authoritative
session.json files under sessions_dir. The index is never the source of
truth; this command exists to recover it after it is deleted or to pick
up sessions written by an older build that predates it.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("store.path is not configured, nothing to reindex")
	}

	index, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer index.Close()

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
		if err := index.Upsert(ctx, toSessionRow(s)); err != nil {
			return err
		}
	}
	fmt.Printf("Reindexed %d sessions\n", len(all))
	return nil
}
