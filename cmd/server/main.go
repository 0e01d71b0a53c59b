package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/DukeRupert/podforge/internal"
	"github.com/DukeRupert/podforge/internal/quota"
	"github.com/DukeRupert/podforge/internal/store/postgres"
)

// env is the shared state every command starts from.
type env struct {
	cfg    *internal.Config
	logger *slog.Logger
	db     *sql.DB
	store  *postgres.Store
}

// setup loads configuration and opens the database.
func setup(ctx context.Context) (*env, error) {
	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return &env{cfg: cfg, logger: logger, db: db, store: postgres.New(db)}, nil
}

func (e *env) close() {
	if err := e.db.Close(); err != nil {
		e.logger.Error("Failed to close database", "error", err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "podforge",
		Short:         "Entitlement, usage metering and billing API for podforge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newResetUsageCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, job worker and monthly reset trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			return serve(cmd.Context(), e)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			if err := internal.RunMigrations(cmd.Context(), e.db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			version, err := internal.MigrationVersion(cmd.Context(), e.db)
			if err != nil {
				return fmt.Errorf("failed to read schema version: %w", err)
			}
			e.logger.Info("Database migrated", "version", version)
			return nil
		},
	}
}

func newResetUsageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-usage",
		Short: "Zero usage counters left over from earlier months (safe to repeat)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			tracker := quota.NewTracker(e.store, e.logger)
			rows, err := tracker.ResetPeriod(cmd.Context())
			if err != nil {
				return fmt.Errorf("usage reset failed: %w", err)
			}
			e.logger.Info("Usage reset complete", "rows", rows)
			return nil
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		log.Fatal(err)
	}
}
