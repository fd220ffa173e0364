package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"vrptw/internal/model"
	"vrptw/internal/vrptw"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Dialect selects the driver and placeholder style of a SQL store.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func (d Dialect) driver() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// SQL stores runs in Postgres (pgx) or SQLite (modernc). Queries are written
// with $n placeholders and rewritten for SQLite.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// NewPostgres opens a Postgres store and applies the embedded migrations.
func NewPostgres(ctx context.Context, dsn string) (*SQL, error) {
	return Open(ctx, Postgres, dsn)
}

// NewSQLite opens a SQLite store at path (":memory:" for a private in-memory database).
func NewSQLite(ctx context.Context, path string) (*SQL, error) {
	return Open(ctx, SQLite, path)
}

func Open(ctx context.Context, dialect Dialect, dsn string) (*SQL, error) {
	db, err := sql.Open(dialect.driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", dialect, err)
	}
	if dialect == SQLite {
		// one connection keeps ":memory:" databases alive and serializes writers
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	s := &SQL{db: db, dialect: dialect}
	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s store: %w", dialect, err)
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate runs every embedded migration in file name order. Migrations are idempotent.
func (s *SQL) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("migrate: read %s: %w", name, err)
		}
		for _, stmt := range strings.Split(string(b), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %s: %w", name, err)
			}
		}
	}
	return nil
}

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQL) Close() error                   { return s.db.Close() }

// q rewrites $n placeholders to ?n for SQLite.
func (s *SQL) q(query string) string {
	if s.dialect != SQLite {
		return query
	}
	return strings.ReplaceAll(query, "$", "?")
}

const runColumns = `id, tenant_id, instance, customers, solver, state, solver_status, objective, outcome, error, callback_url, created_at, started_at, finished_at`

func (s *SQL) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	if run.ID == "" {
		run.ID = newID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.State == "" {
		run.State = model.RunQueued
	}
	args, err := runArgs(run)
	if err != nil {
		return model.Run{}, fmt.Errorf("create run: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.q(`INSERT INTO runs (`+runColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`), args...)
	if err != nil {
		return model.Run{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

func (s *SQL) UpdateRun(ctx context.Context, run model.Run) error {
	args, err := runArgs(run)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE runs SET instance=$3, customers=$4, solver=$5, state=$6, solver_status=$7, objective=$8,
		outcome=$9, error=$10, callback_url=$11, created_at=$12, started_at=$13, finished_at=$14
		WHERE id=$1 AND tenant_id=$2`), args...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQL) GetRun(ctx context.Context, tenantID, id string) (model.Run, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+runColumns+` FROM runs WHERE tenant_id=$1 AND id=$2`), tenantID, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

func (s *SQL) ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]model.Run, string, error) {
	limit = clampLimit(limit)
	// one extra row tells whether another page exists
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+runColumns+` FROM runs WHERE tenant_id=$1 AND id > $2 ORDER BY id LIMIT $3`), tenantID, cursor, limit+1)
	if err != nil {
		return nil, "", fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	out := []model.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", fmt.Errorf("list runs: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("list runs: %w", err)
	}
	next := ""
	if len(out) > limit {
		out = out[:limit]
		next = out[limit-1].ID
	}
	return out, next, nil
}

func runArgs(r model.Run) ([]any, error) {
	var (
		status    sql.NullString
		objective sql.NullFloat64
		outcome   sql.NullString
	)
	if r.Outcome != nil {
		b, err := json.Marshal(r.Outcome)
		if err != nil {
			return nil, fmt.Errorf("encode outcome: %w", err)
		}
		outcome = sql.NullString{String: string(b), Valid: true}
		status = sql.NullString{String: string(r.Outcome.Status), Valid: true}
		if r.Outcome.Solution != nil {
			objective = sql.NullFloat64{Float64: r.Outcome.Objective, Valid: true}
		}
	}
	return []any{
		r.ID, r.TenantID, r.Instance, r.Customers, r.Solver, string(r.State),
		status, objective, outcome, nullIfEmpty(r.Error), nullIfEmpty(r.CallbackURL),
		r.CreatedAt.UnixNano(), nanos(r.StartedAt), nanos(r.FinishedAt),
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (model.Run, error) {
	var (
		r                 model.Run
		state             string
		status, outcome   sql.NullString
		errText, callback sql.NullString
		objective         sql.NullFloat64
		created           int64
		started, finished sql.NullInt64
	)
	if err := sc.Scan(&r.ID, &r.TenantID, &r.Instance, &r.Customers, &r.Solver, &state, &status, &objective,
		&outcome, &errText, &callback, &created, &started, &finished); err != nil {
		return model.Run{}, err
	}
	r.State = model.RunState(state)
	r.Error = errText.String
	r.CallbackURL = callback.String
	r.CreatedAt = time.Unix(0, created).UTC()
	r.StartedAt = fromNanos(started)
	r.FinishedAt = fromNanos(finished)
	if outcome.Valid {
		var oc vrptw.Outcome
		if err := json.Unmarshal([]byte(outcome.String), &oc); err != nil {
			return model.Run{}, fmt.Errorf("decode outcome of run %s: %w", r.ID, err)
		}
		r.Outcome = &oc
	}
	return r, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}

// String names the dialect and pool state, for /debug/info.
func (s *SQL) String() string {
	return string(s.dialect) + " open=" + strconv.Itoa(s.db.Stats().OpenConnections)
}
