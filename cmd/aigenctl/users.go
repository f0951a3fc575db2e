package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iliyamo/ai-gen-platform/internal/config"
	"github.com/iliyamo/ai-gen-platform/internal/repository"
)

func usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List accounts with balances, requests and purchases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := repository.NewAccountRepo(db).ListSummaries(cmd.Context())
			if err != nil {
				return err
			}
			return printUsers(cmd.OutOrStdout(), rows)
		},
	}
}

func printUsers(w io.Writer, rows []repository.AccountSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tROLE\tCREDITS\tREQUESTS\tPENDING\tPURCHASES\tSPENT\tCREATED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t$%s\t%s\n",
			r.ID, r.Email, r.Role, r.Credits, r.Requests, r.Pending, r.Purchases,
			decimal.New(r.PurchasedCent, -2).StringFixed(2),
			r.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(tw, "\n%d account(s)\n", len(rows))
	return tw.Flush()
}
