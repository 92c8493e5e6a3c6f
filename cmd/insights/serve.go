package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/formbricks/insights/internal/huberrors"
	"github.com/formbricks/insights/internal/jobs"
	"github.com/formbricks/insights/internal/models"
	"github.com/formbricks/insights/internal/runlock"
	"github.com/formbricks/insights/internal/worker"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, the job worker and the /metrics endpoint",
	Long: `Serve runs until interrupted. With Postgres, scheduled runs are enqueued as River jobs and
executed by this process's worker, so several replicas can share the queue. With SQLite,
scheduled runs execute inline. REDIS_URL adds a lease so only one replica schedules per tick.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), serve)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, app *App) error {
	var (
		riverClient *river.Client[pgx.Tx]
		dispatcher  worker.Dispatcher
		err         error
	)

	if app.db != nil {
		runWorker := jobs.NewClusteringRunWorker(app.pipeline, cfg.Scheduler.StaleRunTimeout, app.metrics.JobsOrNil())

		riverClient, err = jobs.NewClient(app.db, runWorker, jobs.ClientConfig{
			Workers:     cfg.Scheduler.RiverWorkers,
			MaxAttempts: cfg.Scheduler.RiverMaxAttempts,
		}, app.metrics.JobsOrNil())
		if err != nil {
			return err
		}

		enqueuer := jobs.NewRunEnqueuer(riverClient, cfg.Scheduler.RiverMaxAttempts, app.metrics.JobsOrNil())
		dispatcher = worker.DispatcherFunc(func(ctx context.Context) error {
			_, err := enqueuer.Enqueue(ctx, models.TriggerSchedule)

			return err
		})
	} else {
		dispatcher = inlineDispatcher(app)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg     sync.WaitGroup
		runErr = make(chan error, 1)
	)

	if riverClient != nil {
		// Stop drives shutdown; cancelling the start context would abort in-flight runs.
		if err := riverClient.Start(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("start River: %w", err)
		}
	}

	if cfg.Scheduler.Enabled {
		scheduler, closeLocker, err := newScheduler(app, dispatcher)
		if err != nil {
			return err
		}
		defer closeLocker()

		wg.Add(1)

		go func() {
			defer wg.Done()
			scheduler.Start(runCtx)
		}()
	} else {
		slog.Info("scheduler disabled (SCHEDULER_ENABLED=false)")
	}

	if cfg.Scheduler.RescoreInterval > 0 {
		rescorer := worker.NewRescoreWorker(app.pipeline, cfg.Scheduler.RescoreInterval)
		wg.Add(1)

		go func() {
			defer wg.Done()
			rescorer.Start(runCtx)
		}()
	}

	server := newHTTPServer(app)

	go func() {
		slog.Info("Starting metrics server", "addr", server.Addr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr <- fmt.Errorf("server: %w", err)
		}
	}()

	select {
	case err = <-runErr:
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer stop()

	if serr := server.Shutdown(shutdownCtx); serr != nil {
		slog.Error("server shutdown", "error", serr)
	}

	if riverClient != nil {
		// Waits for an in-flight run to finish or the timeout to cancel it.
		if serr := riverClient.Stop(shutdownCtx); serr != nil {
			slog.Error("river stop", "error", serr)
		}
	}

	wg.Wait()

	return err
}

// inlineDispatcher runs scheduled runs in-process. A run already in flight is not an error.
func inlineDispatcher(app *App) worker.Dispatcher {
	return worker.DispatcherFunc(func(ctx context.Context) error {
		_, err := app.pipeline.Run(ctx, models.TriggerSchedule)
		if errors.Is(err, huberrors.ErrConflict) {
			slog.InfoContext(ctx, "scheduled run skipped, another run in progress")

			return nil
		}

		return err
	})
}

func newScheduler(app *App, dispatcher worker.Dispatcher) (*worker.Scheduler, func(), error) {
	opts := []worker.SchedulerOption{
		worker.WithStaleRunReaper(app.runs, cfg.Scheduler.StaleRunTimeout),
		worker.WithJobMetrics(app.metrics.JobsOrNil()),
	}

	closeLocker := func() {}

	if cfg.RedisURL != "" {
		locker, err := runlock.NewFromURL(cfg.RedisURL, runlock.WithTTL(cfg.Scheduler.StaleRunTimeout))
		if err != nil {
			return nil, nil, err
		}

		opts = append(opts, worker.WithLocker(locker))
		closeLocker = func() {
			if err := locker.Close(); err != nil {
				slog.Error("close redis client", "error", err)
			}
		}
	}

	return worker.NewScheduler(dispatcher, cfg.Scheduler.Interval, opts...), closeLocker, nil
}

func newHTTPServer(app *App) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthCheck(app))

	if app.meter != nil && app.meter.Handler != nil {
		mux.Handle("GET /metrics", app.meter.Handler)
	}

	handler := otelhttp.NewHandler(mux, "insights",
		// Only the scrape endpoint is worth tracing.
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	)

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 15 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         cfg.Observability.MetricsAddr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// healthCheck reports 503 when the Postgres pool cannot be pinged.
func healthCheck(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if app.db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := app.db.Ping(ctx); err != nil {
				slog.WarnContext(ctx, "health check failed", "error", err)
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)

				return
			}
		}

		w.WriteHeader(http.StatusOK)

		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Failed to write health check response", "error", err)
		}
	}
}
