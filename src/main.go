// Command budgee-monitor runs the recurring savings-goal and budget monitor
// for the budgee personal-finance tracker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"budgee-monitor/src/api"
	"budgee-monitor/src/config"
	"budgee-monitor/src/db"
	sqlstore "budgee-monitor/src/db/sql"
	"budgee-monitor/src/monitor"
	"budgee-monitor/src/scheduler"
)

const appName = "budgee-monitor"

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		cfg    config.Config
		logger *slog.Logger
	)

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Recurring savings-goal and budget monitor",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			level, _ := cfg.SlogLevel()
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
			return nil
		},
	}

	cmd.AddCommand(
		serveCmd(&cfg, &logger),
		scanCmd(&cfg, &logger),
		migrateCmd(&cfg, &logger),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

func serveCmd(cfg *config.Config, logger **slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*cfg, *logger)
		},
	}
}

func serve(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger, false)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(a.engine, scheduler.Config{
		Schedule: cfg.ScanSchedule,
		Location: a.loc,
	}, logger)
	if err != nil {
		a.Close(context.Background())
		return err
	}
	if err := sched.Start(ctx); err != nil {
		a.Close(context.Background())
		return err
	}
	if a.budgets != nil {
		if err := a.budgets.Watch(ctx, logger); err != nil {
			logger.Warn("Budgets file will not hot-reload", "error", err)
		}
	}

	router := api.NewRouter(api.RouterDeps{
		Pool:           a.pool,
		Aggregator:     a.engine.Aggregator(),
		Scans:          sched,
		Gatherer:       a.registry,
		JWTSecret:      []byte(cfg.JWTSecret),
		AllowedOrigins: cfg.AllowedOrigins,
		Location:       a.loc,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server running", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("HTTP shutdown incomplete", "error", serr)
	}
	sched.Stop()
	a.Close(shutdownCtx)
	return err
}

func scanCmd(cfg *config.Config, logger **slog.Logger) *cobra.Command {
	var (
		userID int64
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan pass now and print the per-user report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(*cfg, *logger, dryRun)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			report, err := a.engine.Scan(ctx, monitor.ScanOptions{Trigger: monitor.TriggerManual, UserID: userID})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Scan only this user id")
	cmd.Flags().BoolVar(&dryRun, "memory", false, "Hold latches in memory instead of the database (dry run)")
	return cmd
}

func migrateCmd(cfg *config.Config, logger **slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			pool, err := db.Connect(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("DB connection failed: %w", err)
			}
			defer pool.Close()
			if err := db.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			(*logger).Info("Schema applied")
			purged, err := sqlstore.PurgeExpiredLatches(cmd.Context(), pool, time.Now())
			if err != nil {
				return fmt.Errorf("purge expired latches: %w", err)
			}
			(*logger).Info("Expired budget latches purged", "count", purged)
			return nil
		},
	}
}
