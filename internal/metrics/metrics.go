// Package metrics provides Prometheus metrics for the download queue.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ytdlp_queue"

// Metrics holds the scheduler collectors on their own registry, so several
// schedulers (tests, for one) never collide on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	JobsTotal      *prometheus.CounterVec
	JobsInProgress prometheus.Gauge
	JobDuration    *prometheus.HistogramVec
	JobQueueDepth  prometheus.Gauge
	JobErrors      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "total",
				Help:      "Total number of jobs by terminal status",
			},
			[]string{"status"},
		),
		JobsInProgress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "in_progress",
				Help:      "Number of jobs currently running (0 or 1)",
			},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "duration_seconds",
				Help:      "Duration of a job from start to terminal state",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"status"},
		),
		JobQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "queue_depth",
				Help:      "Number of pending jobs",
			},
		),
		JobErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "errors_total",
				Help:      "Total number of failed jobs by reason",
			},
			[]string{"reason"},
		),
	}

	m.Registry.MustRegister(
		m.JobsTotal,
		m.JobsInProgress,
		m.JobDuration,
		m.JobQueueDepth,
		m.JobErrors,
	)
	return m
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordJobStarted() {
	m.JobsInProgress.Inc()
}

// RecordJobFinished counts a terminal job. reason is only used for failures.
func (m *Metrics) RecordJobFinished(status, reason string, durationSeconds float64) {
	m.JobsInProgress.Dec()
	m.JobsTotal.WithLabelValues(status).Inc()
	m.JobDuration.WithLabelValues(status).Observe(durationSeconds)
	if status == "failed" {
		m.JobErrors.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SetQueueDepth(depth int) {
	m.JobQueueDepth.Set(float64(depth))
}

// Serve exposes /metrics on addr until ctx ends.
func (m *Metrics) Serve(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	log.Info("metrics endpoint listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics endpoint stopped", "error", err)
		}
	}()
	return nil
}
