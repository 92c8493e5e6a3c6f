package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/formbricks/insights/internal/models"
)

var runTrigger string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once, inline",
	Long: `Run embeds missing feedback, clusters the corpus, synthesizes insights and replaces all
derived state in one transaction. The previous state is kept when the run fails or is
skipped for insufficient data.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		trigger, err := parseTrigger(runTrigger)
		if err != nil {
			return err
		}

		return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
			res, err := app.pipeline.Run(ctx, trigger)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

func init() {
	runCmd.Flags().StringVar(&runTrigger, "trigger", string(models.TriggerManual), "recorded trigger: manual or schedule")
	rootCmd.AddCommand(runCmd)
}

func parseTrigger(s string) (models.RunTrigger, error) {
	switch t := models.RunTrigger(s); t {
	case models.TriggerManual, models.TriggerSchedule:
		return t, nil
	default:
		return "", fmt.Errorf("invalid trigger %q (want manual or schedule)", s)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
