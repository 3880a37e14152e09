package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS catalog_items (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					unit_price TEXT NOT NULL,
					image_ref TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS accounts (
					id TEXT PRIMARY KEY,
					display_name TEXT NOT NULL,
					credential_hash TEXT NOT NULL DEFAULT '',
					account_class TEXT NOT NULL CHECK (account_class IN ('internal', 'external')),
					access_class TEXT NOT NULL CHECK (access_class IN ('admin', 'user')),
					must_change_credential INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS queue_requests (
					id TEXT PRIMARY KEY,
					catalog_item_id TEXT NOT NULL,
					quantity INTEGER NOT NULL CHECK (quantity > 0),
					account_id TEXT NOT NULL,
					status TEXT NOT NULL CHECK (status IN ('pending', 'preparing', 'ready', 'completed', 'cancelled')),
					account_class TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_queue_requests_status ON queue_requests(status, created_at)`,
				`CREATE INDEX idx_queue_requests_account ON queue_requests(account_id, created_at)`,

				`CREATE TABLE IF NOT EXISTS transaction_records (
					id TEXT PRIMARY KEY,
					request_id TEXT NOT NULL UNIQUE,
					catalog_item_id TEXT NOT NULL,
					quantity INTEGER NOT NULL CHECK (quantity > 0),
					value TEXT NOT NULL,
					account_id TEXT NOT NULL,
					account_class TEXT NOT NULL,
					requested_at DATETIME NOT NULL,
					completed_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_transaction_records_account ON transaction_records(account_id, completed_at)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Index account class partitions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_queue_requests_class ON queue_requests(account_class, status)`,
				`CREATE INDEX IF NOT EXISTS idx_transaction_records_class ON transaction_records(account_class, completed_at)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Index ledger by completion time",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_transaction_records_completed ON transaction_records(completed_at)`,
			})
		},
	},
}

// SchemaVersion reports the version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
