// Package api serves the VRPTW solver over HTTP: synchronous and queued
// solves, run history, and run event streams.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"vrptw/internal/auth"
	"vrptw/internal/config"
	"vrptw/internal/metrics"
	"vrptw/internal/store"
	"vrptw/internal/webhooks"
)

type Server struct {
	Store  store.Store
	Pub    *webhooks.Publisher
	Hooks  *webhooks.Queue
	Auth   *auth.Verifier
	Broker EventBroker
	Config config.Config

	limits *limiter
	jobs   chan job
}

// NewServer wires a Server from cfg. DATABASE_URL selects Postgres, SQLITE_PATH
// selects SQLite, otherwise runs are kept in memory. REDIS_URL selects the
// Redis event broker.
func NewServer(ctx context.Context, cfg config.Config) (*Server, error) {
	var st store.Store
	switch {
	case cfg.DatabaseURL != "":
		sp, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st = sp
	case cfg.SQLitePath != "":
		sp, err := store.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		st = sp
	default:
		st = store.NewMemory()
	}

	var broker EventBroker = NewBroker()
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("redis broker: %w", err)
		}
		broker = rb
	}

	q := webhooks.NewQueue()
	s := &Server{
		Store:  st,
		Hooks:  q,
		Pub:    webhooks.NewPublisher(q, cfg.Webhooks.Secret),
		Auth:   auth.NewVerifier(cfg.Auth.Mode, cfg.Auth.HMACSecret),
		Broker: broker,
		Config: cfg,
		limits: newLimiter(cfg.Rate.RPS, cfg.Rate.Burst),
		jobs:   make(chan job, cfg.Workers.Queue),
	}
	metrics.RegisterDefault()
	log.Printf("server configured store=%s broker=%T auth=%s solver=%s workers=%d", storeName(st), broker, s.Auth.Mode, cfg.Solver.Default, cfg.Workers.Count)
	return s, nil
}

func storeName(st store.Store) string {
	if sn, ok := st.(fmt.Stringer); ok {
		return sn.String()
	}
	return fmt.Sprintf("%T", st)
}

// Routes registers every endpoint on a new mux wrapped in the metrics and
// rate limiting middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/solve", s.SolveHandler)
	mux.HandleFunc("/v1/runs", s.RunsHandler)
	mux.HandleFunc("/v1/runs/", s.RunByIDHandler) // includes /events
	mux.HandleFunc("/v1/solvers", s.SolversHandler)
	mux.HandleFunc("/v1/ws", s.WSHandler)

	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.Handle("/metrics", metricsHandler())
	mux.HandleFunc("/debug/info", s.DebugJSON)
	mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("/openapi.json", s.OpenAPIJSONHandler)
	mux.HandleFunc("/docs", s.DocsHandler)

	return instrument(s.rateLimit(mux))
}

// NewWebhookWorker creates a background worker for callback deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Hooks, s.Config.Webhooks.MaxAttempts, s.Config.Webhooks.Timeout)
}

// Close releases the store and broker connections.
func (s *Server) Close() error {
	if c, ok := s.Broker.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	return s.Store.Close()
}
