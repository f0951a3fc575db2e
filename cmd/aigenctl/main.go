// Command aigenctl is the operator tool: schema migrations, account
// listing, admin promotion and the queued mail worker.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iliyamo/ai-gen-platform/internal/config"
	"github.com/iliyamo/ai-gen-platform/internal/database"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "aigenctl",
		Short:         "Operate the AI generation platform",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(promoteCmd())
	rootCmd.AddCommand(mailerCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}

// openDB connects with the server's settings and brings the schema up to
// date.
func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
