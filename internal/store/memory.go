package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vrptw/internal/model"
)

// Memory is a simple in-memory store used when no database is configured.
type Memory struct {
	mu    sync.Mutex
	runs  map[string]model.Run // id -> run
	byTen map[string][]string  // tenant -> run ids, creation order
}

func NewMemory() *Memory {
	return &Memory{
		runs:  map[string]model.Run{},
		byTen: map[string][]string{},
	}
}

func (m *Memory) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = newID()
	}
	if _, dup := m.runs[run.ID]; dup {
		return model.Run{}, fmt.Errorf("create run: duplicate id %s", run.ID)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.State == "" {
		run.State = model.RunQueued
	}
	m.runs[run.ID] = run
	ids := append(m.byTen[run.TenantID], run.ID)
	sort.Strings(ids)
	m.byTen[run.TenantID] = ids
	return run, nil
}

func (m *Memory) UpdateRun(ctx context.Context, run model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.runs[run.ID]
	if !ok || old.TenantID != run.TenantID {
		return ErrNotFound
	}
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) GetRun(ctx context.Context, tenantID, id string) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || r.TenantID != tenantID {
		return model.Run{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]model.Run, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit)
	ids := m.byTen[tenantID]
	start := sort.SearchStrings(ids, cursor)
	if start < len(ids) && ids[start] == cursor {
		start++
	}
	out := []model.Run{}
	for _, id := range ids[start:] {
		out = append(out, m.runs[id])
		if len(out) == limit {
			break
		}
	}
	next := ""
	if len(out) == limit && start+limit < len(ids) {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
func (m *Memory) Close() error                   { return nil }
