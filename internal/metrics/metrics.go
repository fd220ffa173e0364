package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Solves counts finished solver runs by solver and terminal status ("error" when the run failed)
	Solves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vrptw_solves_total", Help: "Solver runs by solver and status."},
		[]string{"solver", "status"},
	)
	// SolveDuration is the wall time spent inside the external solver
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "vrptw_solve_duration_seconds", Help: "External solver wall time in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900}},
		[]string{"solver"},
	)
	// ModelSize records the number of variables and constraints of built models
	ModelSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "vrptw_model_size", Help: "Built model size.", Buckets: prometheus.ExponentialBuckets(8, 4, 8)},
		[]string{"kind"},
	)
	// QueueDepth is the number of async runs waiting for a worker
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "vrptw_queue_depth", Help: "Async solve runs waiting for a worker."},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

var regOnce sync.Once

// RegisterDefault registers the collectors on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(Solves, SolveDuration, ModelSize, QueueDepth)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// ObserveSolve records one finished solver run.
func ObserveSolve(solver, status string, seconds float64) {
	Solves.WithLabelValues(solver, status).Inc()
	if seconds > 0 {
		SolveDuration.WithLabelValues(solver).Observe(seconds)
	}
}

// ObserveModel records the size of a built model.
func ObserveModel(vars, constraints int) {
	ModelSize.WithLabelValues("vars").Observe(float64(vars))
	ModelSize.WithLabelValues("constraints").Observe(float64(constraints))
}
