// Package storage is the SQLite implementation of the queue stores.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// DefaultCacheTTL bounds how long catalog and account reads are served from memory.
const DefaultCacheTTL = 5 * time.Minute

var _ service.Storage = (*SQLiteStorage)(nil)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db           *sql.DB
	catalogCache *readCache[model.CatalogItem]
	accountCache *readCache[model.Account]
	dbPath       string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dsn := ":memory:"
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections, and an in-memory
	// database only exists on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newSQLiteStorage(db, dbPath), nil
}

// NewSQLiteStorageFromDB wraps an already opened database handle.
func NewSQLiteStorageFromDB(db *sql.DB) *SQLiteStorage {
	return newSQLiteStorage(db, "")
}

func newSQLiteStorage(db *sql.DB, dbPath string) *SQLiteStorage {
	return &SQLiteStorage{
		db:           db,
		dbPath:       dbPath,
		catalogCache: newReadCache[model.CatalogItem](DefaultCacheTTL),
		accountCache: newReadCache[model.Account](DefaultCacheTTL),
	}
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file path, empty for wrapped handles.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// ClearCaches drops every cached catalog item and account.
func (s *SQLiteStorage) ClearCaches() {
	s.catalogCache.clear()
	s.accountCache.clear()
}

// queryable is an interface satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// utc normalizes timestamps so their stored text sorts chronologically.
func utc(t time.Time) time.Time {
	return t.UTC()
}
