package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/formbricks/insights/internal/jobs"
	"github.com/formbricks/insights/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Long: `Migrate applies pending schema migrations. For Postgres this includes the pgvector
extension and the job queue tables. SQLite databases are migrated whenever they are opened.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
			if app.db == nil {
				slog.InfoContext(ctx, "sqlite schema is up to date", "path", cfg.SQLitePath)

				return nil
			}

			if err := repository.Migrate(ctx, app.db); err != nil {
				return fmt.Errorf("migrate insights schema: %w", err)
			}

			if err := jobs.Migrate(ctx, app.db); err != nil {
				return err
			}

			slog.InfoContext(ctx, "postgres schema is up to date")

			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
