// Package logx carries the run id through a context and times operations
// with key=value log lines.
package logx

import (
	"context"
	"log"
	"time"
)

type ctxKey string

const runIDKey ctxKey = "run_id"

// WithRunID tags ctx with the run id printed by Time.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunID returns the run id stored in ctx, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// Time starts timing op. Call the returned func with the address of the
// operation's error when it finishes:
//
//	defer logx.Time(ctx, "vrptw.build")(&err)
func Time(ctx context.Context, op string) func(errp *error) {
	start := time.Now()
	id := RunID(ctx)
	return func(errp *error) {
		dur := time.Since(start)
		if errp != nil && *errp != nil {
			log.Printf("run_id=%s op=%s dur=%dms err=%v", id, op, dur.Milliseconds(), *errp)
			return
		}
		log.Printf("run_id=%s op=%s dur=%dms", id, op, dur.Milliseconds())
	}
}
