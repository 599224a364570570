package main

import (
	"fmt"

	"github.com/covercompare/membergate/internal/engine"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateFrom, migrateTo string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy every profile from one store to another",
	Long: `Copy every profile from one store to another. Existing profiles in the destination are overwritten.

Stores are given as kind:location, for example:
  membergated migrate --from file:./data --to postgres:postgres://svc@db/members`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(serveFlags)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		src, closeSrc, err := openStoreRef(ctx, migrateFrom, cfg.Store.DataKey)
		if err != nil {
			return fmt.Errorf("open source: %w", err)
		}
		defer closeSrc()

		dst, closeDst, err := openStoreRef(ctx, migrateTo, cfg.Store.DataKey)
		if err != nil {
			return fmt.Errorf("open destination: %w", err)
		}
		defer closeDst()

		n, err := engine.Migrate(ctx, src, dst)
		if err != nil {
			return err
		}
		log.Info().Int("profiles", n).Str("from", migrateFrom).Str("to", migrateTo).Msg("Migration complete")
		fmt.Fprintf(cmd.OutOrStdout(), "migrated %d profiles\n", n)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFrom, "from", "", "source store (kind:location)")
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "destination store (kind:location)")
	migrateCmd.MarkFlagRequired("from")
	migrateCmd.MarkFlagRequired("to")
}
