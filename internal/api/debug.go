package api

import (
	"encoding/json"
	"net/http"
	"time"

	"vrptw/internal/buildinfo"
	"vrptw/internal/solver"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	cfg := s.Config
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                 cfg.Port,
			"AUTH_MODE":            s.Auth.Mode,
			"VRPTW_SOLVER":         cfg.Solver.Default,
			"VRPTW_TIME_LIMIT":     cfg.Solver.Options.TimeLimit.String(),
			"VRPTW_TIGHT_BIG_M":    cfg.Solver.TightBigM,
			"VRPTW_MAX_CUSTOMERS":  cfg.Solver.MaxCustomers,
			"VRPTW_WORKERS":        cfg.Workers.Count,
			"RATE_RPS":             cfg.Rate.RPS,
			"RATE_BURST":           cfg.Rate.Burst,
			"WEBHOOK_MAX_ATTEMPTS": cfg.Webhooks.MaxAttempts,
			"HAS_DATABASE_URL":     cfg.DatabaseURL != "",
			"HAS_SQLITE_PATH":      cfg.SQLitePath != "",
			"HAS_REDIS_URL":        cfg.RedisURL != "",
		},
		"solvers":         solver.Names(),
		"queuedRuns":      len(s.jobs),
		"pendingWebhooks": s.Hooks.Pending(),
		"deadWebhooks":    len(s.Hooks.Dead()),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}
