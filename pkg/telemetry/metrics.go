package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paramforge/paramforge/pkg/engine"
)

// Metrics provides Prometheus metrics for sessions and explorations. It
// implements engine.MetricsRecorder and is safe for concurrent use.
type Metrics struct {
	config MetricsConfig

	outcomes          *prometheus.CounterVec
	explorations      *prometheus.CounterVec
	explorationTime   *prometheus.HistogramVec
	configurations    *prometheus.CounterVec
	errorsByClass     *prometheus.CounterVec
	activeExploration prometheus.Gauge

	registry *prometheus.Registry
}

var _ engine.MetricsRecorder = (*Metrics)(nil)

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outcomes_total",
				Help:      "Visited paths, samples and submissions by outcome",
			},
			[]string{"component", "phase", "outcome"},
		),
		explorations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "explorations_total",
				Help:      "Finished explorations by strategy and status",
			},
			[]string{"component", "strategy", "status"},
		),
		explorationTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "exploration_duration_seconds",
				Help:      "Duration of explorations in seconds",
				Buckets:   buckets,
			},
			[]string{"component", "strategy"},
		),
		configurations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "configurations_found_total",
				Help:      "Legal configurations produced by explorations",
			},
			[]string{"component", "strategy"},
		),
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Errors by class and code",
			},
			[]string{"class", "code"},
		),
		activeExploration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_explorations",
				Help:      "Explorations currently running",
			},
		),
	}

	registry.MustRegister(
		m.outcomes,
		m.explorations,
		m.explorationTime,
		m.configurations,
		m.errorsByClass,
		m.activeExploration,
	)

	return m, nil
}

// Registry returns the registry backing the collector, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordOutcome implements engine.MetricsRecorder.
func (m *Metrics) RecordOutcome(component, phase string, outcome engine.Outcome) {
	if m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(component, phase, string(outcome)).Inc()
}

// RecordExploration implements engine.MetricsRecorder.
func (m *Metrics) RecordExploration(component string, strategy engine.Strategy, status engine.RunStatus, found int, elapsed time.Duration) {
	if m.explorations == nil {
		return
	}
	m.explorations.WithLabelValues(component, string(strategy), string(status)).Inc()
	m.explorationTime.WithLabelValues(component, string(strategy)).Observe(elapsed.Seconds())
	m.configurations.WithLabelValues(component, string(strategy)).Add(float64(found))
}

// RecordError counts a classified engine error. Unclassified errors are
// counted under class "other".
func (m *Metrics) RecordError(err error) {
	if m.errorsByClass == nil || err == nil {
		return
	}
	class, code := "other", ""
	var ee *engine.EngineError
	if errors.As(err, &ee) {
		class, code = string(ee.Class), ee.Code
	}
	m.errorsByClass.WithLabelValues(class, code).Inc()
}

// ExplorationStarted marks an exploration as running.
func (m *Metrics) ExplorationStarted() {
	if m.activeExploration == nil {
		return
	}
	m.activeExploration.Inc()
}

// ExplorationFinished marks a running exploration as done.
func (m *Metrics) ExplorationFinished() {
	if m.activeExploration == nil {
		return
	}
	m.activeExploration.Dec()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves the metrics endpoint until ctx is done. It
// returns nil without serving when metrics are disabled or no listen address
// is configured.
func (m *Metrics) StartMetricsServer(ctx context.Context, logger *Logger) error {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Infof("serving metrics on %s%s", m.config.ListenAddress, m.config.Path)
	return nil
}
