package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the migration engine. A nil
// *Metrics is a valid no-op collector, so callers never need to guard
// their recording calls.
type Metrics struct {
	config MetricsConfig

	migrationsStarted   prometheus.Counter
	migrationsCompleted *prometheus.CounterVec
	stepsExecuted       *prometheus.CounterVec
	stepDuration        *prometheus.HistogramVec
	checkpointsFired    *prometheus.CounterVec
	backupsCreated      prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with the given configuration.
// When metrics are disabled it returns nil, which records nothing.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		migrationsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_started_total",
			Help:      "Total number of migration attempts initialized",
		}),
		migrationsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "migrations_finished_total",
				Help:      "Total number of migration attempts reaching a terminal status",
			},
			[]string{"status"},
		),
		stepsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_executed_total",
				Help:      "Total number of step executions",
			},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of step execution in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"step"},
		),
		checkpointsFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkpoints_triggered_total",
				Help:      "Total number of checkpoint triggers",
			},
			[]string{"checkpoint"},
		),
		backupsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_backups_created_total",
			Help:      "Total number of state backups created",
		}),
	}

	collectors := []prometheus.Collector{
		m.migrationsStarted,
		m.migrationsCompleted,
		m.stepsExecuted,
		m.stepDuration,
		m.checkpointsFired,
		m.backupsCreated,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// RecordMigrationStarted counts an initialized migration attempt.
func (m *Metrics) RecordMigrationStarted() {
	if m == nil {
		return
	}
	m.migrationsStarted.Inc()
}

// RecordMigrationCompleted counts a migration reaching a terminal status.
func (m *Metrics) RecordMigrationCompleted(status string) {
	if m == nil {
		return
	}
	m.migrationsCompleted.WithLabelValues(status).Inc()
}

// RecordStepExecuted counts one step execution and its duration.
func (m *Metrics) RecordStepExecuted(step, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepsExecuted.WithLabelValues(step, status).Inc()
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordCheckpointTriggered counts a checkpoint trigger.
func (m *Metrics) RecordCheckpointTriggered(checkpointID string) {
	if m == nil {
		return
	}
	m.checkpointsFired.WithLabelValues(checkpointID).Inc()
}

// RecordBackupCreated counts a state backup.
func (m *Metrics) RecordBackupCreated() {
	if m == nil {
		return
	}
	m.backupsCreated.Inc()
}

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts the metrics HTTP listener. It blocks until the server
// stops.
func (m *Metrics) Serve() error {
	if m == nil {
		return nil
	}
	mux := http.NewServeMux()
	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux.Handle(path, m.Handler())
	return http.ListenAndServe(m.config.ListenAddress, mux)
}
