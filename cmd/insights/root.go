package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/formbricks/insights/internal/config"
	"github.com/formbricks/insights/internal/observability"
)

var (
	cfg     *config.Config
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "insights",
	Short: "Feedback clustering, theme scoring and insight synthesis",
	Long: `insights turns a corpus of customer feedback into scored themes and prioritized insights.

Configuration comes from the environment (and a .env file when present).

Example usage:
  insights migrate             # Create or upgrade the schema
  insights import data.json    # Load customers and feedback
  insights run                 # Run the pipeline once, inline
  insights serve               # Scheduler, job worker and /metrics
  insights enqueue             # Queue a run for the worker
  insights score               # Re-score current themes without re-clustering
  insights runs                # Show recent run history`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging (overrides LOG_LEVEL)")
}

// initConfig loads configuration and installs the process logger.
func initConfig() error {
	var err error

	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}

	slog.SetDefault(observability.NewLogger(os.Stderr, level, cfg.LogFormat))

	return nil
}

// withApp builds the App for the duration of fn.
func withApp(ctx context.Context, fn func(ctx context.Context, app *App) error) error {
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))

	return fn(ctx, app)
}
