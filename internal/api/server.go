// Package api serves the queue, history and administration over JSON HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Veraticus/the-queue-must-flow/internal/admin"
	"github.com/Veraticus/the-queue-must-flow/internal/metrics"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/query"
	"github.com/Veraticus/the-queue-must-flow/internal/queue"
)

// Store is the direct persistence access handlers need beyond the services.
type Store interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	ListCatalogItems(ctx context.Context) ([]model.CatalogItem, error)
	GetCatalogItem(ctx context.Context, id string) (*model.CatalogItem, error)
	GetRequest(ctx context.Context, id string) (*model.QueueRequest, error)
	GetRecordByRequest(ctx context.Context, requestID string) (*model.TransactionRecord, error)
}

// Config wires a Server.
type Config struct {
	Engine  *queue.Engine
	Queries *query.Service
	Admin   *admin.Service
	Store   Store
	Logger  *slog.Logger
	Metrics *metrics.Collector // optional
	Limiter *RateLimiter       // optional
}

// Server is the HTTP adapter.
type Server struct {
	engine  *queue.Engine
	queries *query.Service
	admin   *admin.Service
	store   Store
	logger  *slog.Logger
	metrics *metrics.Collector
	limiter *RateLimiter
}

// NewServer creates a Server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:  cfg.Engine,
		queries: cfg.Queries,
		admin:   cfg.Admin,
		store:   cfg.Store,
		logger:  logger,
		metrics: cfg.Metrics,
		limiter: cfg.Limiter,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	if s.metrics != nil {
		router.Use(s.metrics.Middleware)
		router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	if s.limiter != nil {
		v1.Use(s.limiter.Handler)
	}
	v1.Use(s.withActor)

	v1.HandleFunc("/requests", s.listRequests).Methods(http.MethodGet)
	v1.HandleFunc("/requests", s.enqueue).Methods(http.MethodPost)
	v1.HandleFunc("/requests/{id}", s.getRequest).Methods(http.MethodGet)
	v1.HandleFunc("/requests/{id}/advance", s.advance).Methods(http.MethodPost)
	v1.HandleFunc("/requests/{id}/step", s.step).Methods(http.MethodPost)
	v1.HandleFunc("/requests/{id}/cancel", s.cancel).Methods(http.MethodPost)
	v1.HandleFunc("/requests/{id}/complete", s.complete).Methods(http.MethodPost)

	v1.HandleFunc("/history", s.history).Methods(http.MethodGet)
	v1.HandleFunc("/summary", s.summary).Methods(http.MethodGet)

	v1.HandleFunc("/catalog", s.listItems).Methods(http.MethodGet)
	v1.HandleFunc("/catalog", s.addItem).Methods(http.MethodPost)
	v1.HandleFunc("/catalog/{id}", s.updateItem).Methods(http.MethodPatch)
	v1.HandleFunc("/catalog/{id}", s.deleteItem).Methods(http.MethodDelete)

	v1.HandleFunc("/accounts", s.listAccounts).Methods(http.MethodGet)
	v1.HandleFunc("/accounts", s.addAccount).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/{id}", s.updateAccount).Methods(http.MethodPatch)
	v1.HandleFunc("/accounts/{id}", s.deleteAccount).Methods(http.MethodDelete)
	v1.HandleFunc("/accounts/{id}/credential", s.changeCredential).Methods(http.MethodPut)
	v1.HandleFunc("/accounts/{id}/credential/reset", s.resetCredential).Methods(http.MethodPost)

	return s.recoverPanics(s.logRequests(router))
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
