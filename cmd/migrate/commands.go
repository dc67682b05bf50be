package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/paper-retrieval-service/internal/config"
	"github.com/helixir/paper-retrieval-service/internal/database"
	"github.com/helixir/paper-retrieval-service/internal/observability"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Run all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(m *database.Migrator, logger zerolog.Logger) error {
			logger.Info().Msg("running all pending migrations")
			if err := m.Up(); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			printVersion(m, logger)
			return nil
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(m *database.Migrator, logger zerolog.Logger) error {
			logger.Warn().Msg("rolling back all migrations")
			if err := m.Down(); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			printVersion(m, logger)
			return nil
		})
	},
}

var stepsCmd = &cobra.Command{
	Use:   "steps N",
	Short: "Run N migration steps (positive=up, negative=down)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n == 0 {
			return fmt.Errorf("steps must be a non-zero integer, got %q", args[0])
		}
		return withMigrator(cmd.Context(), func(m *database.Migrator, logger zerolog.Logger) error {
			logger.Info().Int("steps", n).Msg("running migration steps")
			if err := m.Steps(n); err != nil {
				return fmt.Errorf("migrate steps: %w", err)
			}
			printVersion(m, logger)
			return nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current migration version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(m *database.Migrator, logger zerolog.Logger) error {
			printVersion(m, logger)
			return nil
		})
	},
}

var forceCmd = &cobra.Command{
	Use:   "force V",
	Short: "Force set the migration version (recovers from a failed migration)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return fmt.Errorf("version must be a non-negative integer, got %q", args[0])
		}
		return withMigrator(cmd.Context(), func(m *database.Migrator, logger zerolog.Logger) error {
			logger.Warn().Int("version", v).Msg("forcing migration version")
			if err := m.Force(v); err != nil {
				return fmt.Errorf("force version: %w", err)
			}
			printVersion(m, logger)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(upCmd, downCmd, stepsCmd, versionCmd, forceCmd)
}

// withMigrator loads configuration, opens the configured store and runs fn
// with a migrator bound to it.
func withMigrator(ctx context.Context, fn func(*database.Migrator, zerolog.Logger) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
	logger = logger.With().Str("component", "migrate").Logger()

	dir := cfg.Storage.MigrationPath
	if migrationsPath != "" {
		dir = migrationsPath
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var migrator *database.Migrator
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		if migrator, err = database.NewPostgresMigrator(db, dir, logger); err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.Storage.SQLitePath, logger)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		defer db.Close()
		if migrator, err = database.NewSQLiteMigrator(db, dir, logger); err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
	default:
		return fmt.Errorf("unsupported storage driver: %q", cfg.Storage.Driver)
	}
	logger.Info().Str("driver", cfg.Storage.Driver).Msg("database connection established")

	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	return fn(migrator, logger)
}

// printVersion prints the current migration version to stdout.
func printVersion(migrator *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine migration version")
		return
	}
	logger.Info().
		Uint("version", v).
		Bool("dirty", dirty).
		Msg("current migration version")
}
