package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recompute metrics and scores for the current themes",
	Long: `Score recomputes frequency windows, ACV, sentiment, segment mix, trend and the final score
for every existing theme from its current members, without re-clustering. Insights are left
untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
			n, err := app.pipeline.Rescore(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "rescored %d themes\n", n)

			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}
