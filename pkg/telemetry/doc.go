// Package telemetry provides observability for paramforge sessions and
// explorations.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry) and
// metrics (Prometheus). Metrics implements engine.MetricsRecorder, so an
// explorer or session reports its outcome counters directly:
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	explorer := engine.NewExplorer(
//	    engine.WithExplorerLogger(tel.Logger.NewComponentLogger("explore").Zerolog()),
//	    engine.WithExplorerMetrics(tel.Metrics),
//	)
//
// # Logging
//
// Logger wraps zerolog with the fields used across the tools:
//
//	logger := tel.Logger.WithComponent("cumsum").WithRunID(runID)
//	logger.Info("exploration started")
//
// # Tracing
//
// NewTracer installs the global provider; the engine starts its own spans
// through it. Exporters are otlp (gRPC), stdout and none.
//
// # Metrics
//
// Counters are collected in a private registry. When MetricsConfig.ListenAddress
// is set, StartMetricsServer serves them until its context is done.
//
//	paramforge_outcomes_total{component,phase,outcome}
//	paramforge_explorations_total{component,strategy,status}
//	paramforge_exploration_duration_seconds{component,strategy}
//	paramforge_configurations_found_total{component,strategy}
//	paramforge_errors_total{class,code}
//	paramforge_active_explorations
package telemetry
