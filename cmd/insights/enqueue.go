package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formbricks/insights/internal/jobs"
	"github.com/formbricks/insights/internal/models"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a manual clustering run for the serve worker",
	Long: `Enqueue inserts a clustering run job. Nothing is inserted when a run is already queued or
running. Requires STORE_DRIVER=postgres.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
			if err := app.requirePostgres("enqueue"); err != nil {
				return err
			}

			client, err := jobs.NewInsertOnlyClient(app.db)
			if err != nil {
				return err
			}

			enqueuer := jobs.NewRunEnqueuer(client, cfg.Scheduler.RiverMaxAttempts, app.metrics.JobsOrNil())

			inserted, err := enqueuer.Enqueue(ctx, models.TriggerManual)
			if err != nil {
				return err
			}

			if !inserted {
				fmt.Fprintln(cmd.OutOrStdout(), "a clustering run is already queued")

				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), "clustering run queued")

			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
}
