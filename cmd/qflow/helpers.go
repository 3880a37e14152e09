package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/the-queue-must-flow/internal/admin"
	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/config"
	"github.com/Veraticus/the-queue-must-flow/internal/query"
	"github.com/Veraticus/the-queue-must-flow/internal/queue"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
	"github.com/Veraticus/the-queue-must-flow/internal/storage"
	"github.com/Veraticus/the-queue-must-flow/internal/storage/postgres"
)

// initStorage opens the configured store and brings its schema up to date.
func (e *env) initStorage(ctx context.Context) (service.Storage, error) {
	var (
		store service.Storage
		err   error
	)
	switch e.cfg.Database.Driver {
	case config.DriverPostgres:
		store, err = postgres.New(ctx, e.cfg.Database.URL)
	default:
		if mkErr := os.MkdirAll(filepath.Dir(e.cfg.Database.Path), 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", mkErr)
		}
		store, err = storage.NewSQLiteStorage(e.cfg.Database.Path)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// services bundles the domain services over one store.
type services struct {
	store   service.Storage
	engine  *queue.Engine
	queries *query.Service
	admin   *admin.Service
}

func (e *env) openServices(ctx context.Context, opts ...queue.Option) (*services, error) {
	store, err := e.initStorage(ctx)
	if err != nil {
		return nil, err
	}

	opts = append([]queue.Option{queue.WithMaxQuantity(e.cfg.Queue.MaxQuantity)}, opts...)
	return &services{
		store:   store,
		engine:  queue.NewEngine(store, opts...),
		queries: query.New(store),
		admin:   admin.New(store),
	}, nil
}

func (s *services) Close() {
	if err := s.store.Close(); err != nil {
		slog.Warn("failed to close store", "error", err)
	}
}

// resolveActor looks up the account named by --as.
func (e *env) resolveActor(ctx context.Context, store service.AccountStore) (service.Actor, error) {
	if e.actor == "" {
		return service.Actor{}, common.NewUserError("no acting account", errors.New("pass --as or set QFLOW_ACTOR"))
	}

	account, err := store.GetAccount(ctx, e.actor)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return service.Actor{}, common.NewUserError("unknown acting account "+e.actor, err)
		}
		return service.Actor{}, err
	}
	return service.Actor{AccountID: account.ID, Access: account.Access}, nil
}

// requireAdmin is the CLI-side check for operations that go straight to the
// engine, which does not know about access classes.
func requireAdmin(actor service.Actor, operation string) error {
	if !actor.IsAdmin() {
		return &common.ForbiddenError{AccountID: actor.AccountID, Operation: operation}
	}
	return nil
}
