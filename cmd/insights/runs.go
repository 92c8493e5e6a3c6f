package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent clustering runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
			runs, err := app.runs.ListRuns(ctx, runsLimit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tTRIGGER\tSTARTED\tDURATION\tFEEDBACK\tTHEMES\tINSIGHTS\tERROR")

			for _, r := range runs {
				lastError := ""
				if r.LastError != nil {
					lastError = *r.LastError
				}

				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					r.ID, r.Status, r.Trigger,
					r.StartedAt.Format(time.RFC3339),
					r.Duration.Round(time.Millisecond),
					r.FeedbackCount, r.ThemesCreated, r.InsightsCreated,
					lastError,
				)
			}

			return w.Flush()
		})
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}
