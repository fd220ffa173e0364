package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"vrptw/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// CreateRun assigns an id and creation time when they are empty and saves the run.
	CreateRun(ctx context.Context, run model.Run) (model.Run, error)
	// UpdateRun replaces a saved run. Returns ErrNotFound for unknown ids.
	UpdateRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, tenantID, id string) (model.Run, error)
	// ListRuns pages through a tenant's runs oldest first. The returned cursor
	// is empty on the last page.
	ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]model.Run, string, error)
	Ping(ctx context.Context) error
	Close() error
}

var ErrNotFound = errors.New("not found")

const (
	defaultLimit = 100
	maxLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxLimit {
		return defaultLimit
	}
	return limit
}

// newID returns a time-ordered id, so ordering by id is ordering by creation.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
