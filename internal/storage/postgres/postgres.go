// Package postgres implements the queue storage contract on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-queue-must-flow/internal/service"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

var _ service.Storage = (*Store)(nil)

// Store implements service.Storage on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database described by connString.
func New(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ExpectedSchemaVersion is the schema version this package writes.
const ExpectedSchemaVersion = 1

var schema = []string{
	`CREATE TABLE IF NOT EXISTS catalog_items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		unit_price NUMERIC NOT NULL CHECK (unit_price >= 0),
		image_ref TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		credential_hash TEXT NOT NULL DEFAULT '',
		account_class TEXT NOT NULL CHECK (account_class IN ('internal', 'external')),
		access_class TEXT NOT NULL CHECK (access_class IN ('admin', 'user')),
		must_change_credential BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS queue_requests (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		catalog_item_id TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		account_id TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'preparing', 'ready', 'completed', 'cancelled')),
		account_class TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_requests_status ON queue_requests(status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_requests_account ON queue_requests(account_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_requests_class ON queue_requests(account_class, status)`,
	`CREATE TABLE IF NOT EXISTS transaction_records (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL UNIQUE,
		catalog_item_id TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		value NUMERIC NOT NULL CHECK (value >= 0),
		account_id TEXT NOT NULL,
		account_class TEXT NOT NULL,
		requested_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transaction_records_account ON transaction_records(account_id, completed_at)`,
	`CREATE INDEX IF NOT EXISTS idx_transaction_records_completed ON transaction_records(completed_at)`,
	`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`,
}

// Migrate creates the schema if needed and records its version.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serialize concurrent migrators.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(7263541)"); err != nil {
		return fmt.Errorf("failed to lock schema: %w", err)
	}

	for _, stmt := range schema {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	var version int
	err = tx.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, version)
	}
	if version < ExpectedSchemaVersion {
		if _, err := tx.Exec(ctx, "INSERT INTO schema_version (version) VALUES ($1)", ExpectedSchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		slog.Info("Applied migration", "version", ExpectedSchemaVersion, "driver", "postgres")
	}

	return tx.Commit(ctx)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}

// whereClause joins conditions, numbering placeholders from len(args)+1.
type whereClause struct {
	conds []string
	args  []any
}

func (w *whereClause) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (w *whereClause) paging(limit, offset int) string {
	if limit <= 0 {
		return ""
	}
	w.args = append(w.args, limit)
	clause := fmt.Sprintf(" LIMIT $%d", len(w.args))
	if offset > 0 {
		w.args = append(w.args, offset)
		clause += fmt.Sprintf(" OFFSET $%d", len(w.args))
	}
	return clause
}

func utc(t time.Time) time.Time {
	return t.UTC()
}
