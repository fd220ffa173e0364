//go:build postgres_integration

package store

import (
	"context"
	"os"
	"testing"

	"vrptw/internal/model"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	// Equivalent of ctx, which needs Go 1.24.
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	p, err := NewPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer p.Close()
	if err := p.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	r, err := p.CreateRun(ctx, model.Run{TenantID: "t_it", Instance: "it", Solver: "cbc"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if _, err := p.GetRun(ctx, "t_it", r.ID); err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if _, _, err := p.ListRuns(ctx, "t_it", "", 1); err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
}
