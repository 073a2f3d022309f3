package ctl

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crashgate-systems/crashgate/internal/dedupe"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Dedup store commands",
}

var dedupePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all dedup claims",
	Long: `Delete every dedup claim from Redis.

Events resubmitted after a purge are accepted again, so only run this when
replaying traffic into a fresh pipeline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := dedupe.NewRedisStore(cfg.Redis.URL, cfg.Redis.DedupTTL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer store.Close()

		removed, err := store.Purge(cmd.Context())
		if err != nil {
			return fmt.Errorf("purge dedup claims: %w", err)
		}
		fmt.Printf("Removed %d dedup claims\n", removed)
		return nil
	},
}

func init() {
	dedupeCmd.AddCommand(dedupePurgeCmd)
}
