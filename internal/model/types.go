package model

import (
	"time"

	"vrptw/internal/instance"
	"vrptw/internal/vrptw"
)

// RunState tracks a solve request through the service.
type RunState string

const (
	RunQueued    RunState = "queued"
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
)

// Done reports whether the run reached a terminal state.
func (s RunState) Done() bool { return s == RunSucceeded || s == RunFailed }

// Run is one solve request and, once finished, its outcome. A run whose
// solver reported Infeasible still succeeded; Failed means the solver could
// not be run or the instance was rejected late.
type Run struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenantId,omitempty"`
	Instance    string         `json:"instance"`
	Customers   int            `json:"customers"`
	Solver      string         `json:"solver"`
	State       RunState       `json:"state"`
	Outcome     *vrptw.Outcome `json:"outcome,omitempty"`
	Error       string         `json:"error,omitempty"`
	CallbackURL string         `json:"callbackUrl,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	FinishedAt  *time.Time     `json:"finishedAt,omitempty"`
}

// SolveRequest is the JSON body of POST /v1/solve.
type SolveRequest struct {
	Instance    instance.Data `json:"instance"`
	Solver      string        `json:"solver,omitempty"`
	Customers   int           `json:"customers,omitempty"`
	TimeLimitS  float64       `json:"timeLimitSec,omitempty"`
	TightBigM   bool          `json:"tightBigM,omitempty"`
	Async       bool          `json:"async,omitempty"`
	CallbackURL string        `json:"callbackUrl,omitempty"`
}

// RunPage is a page of runs; NextCursor is empty on the last page.
type RunPage struct {
	Items      []Run  `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// RunEvent is published on the event broker and delivered to webhooks.
type RunEvent struct {
	Type  string    `json:"type"`
	RunID string    `json:"runId"`
	At    time.Time `json:"at"`
	Run   Run       `json:"run"`
}

const (
	EventRunQueued   = "run.queued"
	EventRunStarted  = "run.started"
	EventRunFinished = "run.finished"
	EventRunFailed   = "run.failed"
)

// SolverInfo describes a registered solver for GET /v1/solvers.
type SolverInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Default   bool   `json:"default,omitempty"`
}
