package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/ai-gen-platform/internal/config"
	"github.com/iliyamo/ai-gen-platform/internal/repository"
	"github.com/iliyamo/ai-gen-platform/internal/service"
)

func promoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the ADMIN role to an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			accounts := repository.NewAccountRepo(db)
			log := newLogger()
			svc := service.NewAccountService(cfg, accounts, service.NewTokenService(cfg, accounts, log), nil, log)
			if err := svc.Promote(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now an administrator\n", args[0])
			return nil
		},
	}
}
