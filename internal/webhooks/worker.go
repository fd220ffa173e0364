package webhooks

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"vrptw/internal/metrics"
)

type Worker struct {
	Queue       *Queue
	HTTP        *http.Client
	MaxAttempts int
	Interval    time.Duration
}

func NewWorker(q *Queue, maxAttempts int, timeout time.Duration) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Worker{Queue: q, HTTP: &http.Client{Timeout: timeout}, MaxAttempts: maxAttempts, Interval: time.Second}
}

// Run delivers due callbacks until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processOnce(ctx)
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) {
	items := w.Queue.Due(time.Now(), 50)
	for _, it := range items {
		success := false
		next := time.Now().Add(nextBackoff(it.Attempts))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
		if err != nil {
			w.Queue.Fail(it.ID, err.Error(), 0)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Event-Type", it.EventType)
		if it.Secret != "" {
			req.Header.Set(SignatureHeader, SignHMAC(it.Secret, it.Payload))
		}
		start := time.Now()
		resp, err := w.HTTP.Do(req)
		latency := time.Since(start)
		code := 0
		if err == nil && resp != nil {
			code = resp.StatusCode
			if resp.Body != nil {
				_ = resp.Body.Close()
			}
			if code >= 200 && code < 300 {
				success = true
			}
		}
		lastErr := ""
		if !success {
			lastErr = "status " + strconv.Itoa(code)
			if err != nil {
				lastErr = err.Error()
			}
		}
		outcome := "delivered"
		switch {
		case success:
			w.Queue.Mark(it.ID, true, next, "", code)
		case it.Attempts+1 >= w.MaxAttempts:
			outcome = "failed"
			log.Printf("webhook dead-lettered run_id=%s url=%s attempts=%d err=%s", it.RunID, it.URL, it.Attempts+1, lastErr)
			w.Queue.Fail(it.ID, lastErr, code)
		default:
			outcome = "retry"
			w.Queue.Mark(it.ID, false, next, lastErr, code)
		}
		metrics.WebhookDeliveries.WithLabelValues(it.EventType, outcome).Inc()
		metrics.WebhookLatency.WithLabelValues(it.EventType, outcome).Observe(float64(latency.Milliseconds()))
	}
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
