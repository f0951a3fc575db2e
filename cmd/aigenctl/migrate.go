package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/ai-gen-platform/internal/config"
	"github.com/iliyamo/ai-gen-platform/internal/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := database.Open(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := database.Migrate(cmd.Context(), db, cfg.DBDriver)
			if err != nil {
				return err
			}
			v, err := database.CurrentVersion(cmd.Context(), db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s), schema at version %d\n", n, v)
			return nil
		},
	}
}
