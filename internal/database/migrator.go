package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-retrieval-service/migrations"
)

// MigrationsTable is the bookkeeping table used by every engine.
const MigrationsTable = "schema_migrations"

// Migrator handles database migrations.
type Migrator struct {
	migrate *migrate.Migrate
	source  source.Driver
	sqlDB   *sql.DB
	// ownsDB is false when sqlDB belongs to the caller and must outlive
	// the migrator.
	ownsDB bool
	logger zerolog.Logger
}

// NewPostgresMigrator creates a migrator for a PostgreSQL pool. An empty
// migrationsPath selects the migrations embedded in the binary; otherwise
// the directory at migrationsPath is used.
func NewPostgresMigrator(db *DB, migrationsPath string, logger zerolog.Logger) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if db.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	src, srcName, err := openSource(migrationsPath, migrations.Postgres)
	if err != nil {
		return nil, err
	}

	// Get a standard database/sql connection from pgx pool
	sqlDB := stdlib.OpenDBFromPool(db.pool)

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{
		MigrationsTable: MigrationsTable,
	})
	if err != nil {
		src.Close()
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	return newMigrator(src, srcName, "postgres", driver, sqlDB, true, logger)
}

// NewSQLiteMigrator creates a migrator for an open SQLite database. The
// database stays open when the migrator is closed.
func NewSQLiteMigrator(db *SQLiteDB, migrationsPath string, logger zerolog.Logger) (*Migrator, error) {
	if db == nil || db.conn == nil {
		return nil, fmt.Errorf("database is required")
	}

	src, srcName, err := openSource(migrationsPath, migrations.SQLite)
	if err != nil {
		return nil, err
	}

	driver, err := sqlite.WithInstance(db.conn, &sqlite.Config{
		MigrationsTable: MigrationsTable,
	})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	return newMigrator(src, srcName, "sqlite", driver, db.conn, false, logger)
}

func newMigrator(src source.Driver, srcName, dbName string, driver migratedb.Driver, sqlDB *sql.DB, ownsDB bool, logger zerolog.Logger) (*Migrator, error) {
	m, err := migrate.NewWithInstance(srcName, src, dbName, driver)
	if err != nil {
		src.Close()
		if ownsDB {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return &Migrator{
		migrate: m,
		source:  src,
		sqlDB:   sqlDB,
		ownsDB:  ownsDB,
		logger:  logger.With().Str("engine", dbName).Str("migrations", srcName).Logger(),
	}, nil
}

// openSource returns the embedded migrations for dialect, or a file source
// when path is set.
func openSource(path, dialect string) (source.Driver, string, error) {
	if path == "" {
		src, err := iofs.New(migrations.FS, dialect)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open embedded migrations: %w", err)
		}
		return src, "iofs", nil
	}

	// Validate migrations path exists before creating database connections
	if _, err := os.Stat(path); err != nil {
		return nil, "", fmt.Errorf("migrations path validation failed: %w", err)
	}

	src, err := source.Open("file://" + path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open migrations at %s: %w", path, err)
	}
	return src, "file", nil
}

// Up runs all pending migrations.
func (m *Migrator) Up() error {
	m.logger.Info().Msg("running database migrations...")

	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("no migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.logger.Info().Msg("migrations completed successfully")
	return nil
}

// Down rolls back all migrations.
func (m *Migrator) Down() error {
	m.logger.Warn().Msg("rolling back all migrations...")

	if err := m.migrate.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("no migrations to roll back")
			return nil
		}
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}

	m.logger.Info().Msg("migrations rolled back successfully")
	return nil
}

// Steps runs n migrations (positive = up, negative = down).
func (m *Migrator) Steps(n int) error {
	m.logger.Info().Int("steps", n).Msg("running migration steps...")

	if err := m.migrate.Steps(n); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("no migrations to apply")
			return nil
		}
		// Stepping past the last migration surfaces as a missing file.
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Info().Msg("no more migrations available")
			return nil
		}
		return fmt.Errorf("failed to run migration steps: %w", err)
	}

	m.logger.Info().Int("steps", n).Msg("migration steps completed successfully")
	return nil
}

// Version returns the current migration version. A database with no
// migrations applied reports version 0 and no error.
func (m *Migrator) Version() (uint, bool, error) {
	v, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Force sets the migration version without running migrations.
// This is useful for recovering from failed migrations.
func (m *Migrator) Force(version int) error {
	m.logger.Warn().Int("version", version).Msg("forcing migration version...")
	return m.migrate.Force(version)
}

// Close releases the migration source. A database owned by the migrator is
// closed as well; a caller-provided database is left open.
func (m *Migrator) Close() error {
	if !m.ownsDB {
		if err := m.source.Close(); err != nil {
			return fmt.Errorf("failed to close source: %w", err)
		}
		return nil
	}

	sourceErr, dbErr := m.migrate.Close()

	// Close the sql.DB wrapper to release connections back to the pool
	if m.sqlDB != nil {
		if err := m.sqlDB.Close(); err != nil && dbErr == nil {
			dbErr = err
		}
	}

	if sourceErr != nil && dbErr != nil {
		return fmt.Errorf("failed to close migrator: source error: %v, database error: %w", sourceErr, dbErr)
	}
	if sourceErr != nil {
		return fmt.Errorf("failed to close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}

// DropAll drops all tables in the database.
// WARNING: This is destructive and should only be used in testing.
func (m *Migrator) DropAll() error {
	m.logger.Warn().Msg("dropping all database objects...")
	return m.migrate.Drop()
}
