package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric definitions for the lead exchange API

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slx",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "handler", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "slx",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
		[]string{"method", "handler"},
	)

	conversationTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slx",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Chat turns processed",
		},
		[]string{"stage", "tier"},
	)

	leadsQualified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slx",
			Subsystem: "lead",
			Name:      "qualified_total",
			Help:      "Leads that crossed a qualification tier",
		},
		[]string{"tier"},
	)

	feedbackReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slx",
			Subsystem: "feedback",
			Name:      "received_total",
			Help:      "Buyer feedback events received",
		},
		[]string{"type"},
	)
)

// metricsHandler serves the Prometheus scrape endpoint.
func metricsHandler() http.Handler {
	return promhttp.Handler()
}

// instrument wraps a handler with request counting and timing.
func instrument(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		httpRequestsTotal.WithLabelValues(r.Method, name, http.StatusText(sw.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
