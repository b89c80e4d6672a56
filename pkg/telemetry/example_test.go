package telemetry_test

import (
	"context"
	"fmt"

	"github.com/paramforge/paramforge/pkg/engine"
	"github.com/paramforge/paramforge/pkg/telemetry"
)

// Example_basicSetup wires telemetry into an explorer.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = "1.0.0"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	explorer := engine.NewExplorer(
		engine.WithExplorerLogger(tel.Logger.NewComponentLogger("explore").Zerolog()),
		engine.WithExplorerMetrics(tel.Metrics),
	)
	_ = explorer

	telemetry.FromContext(ctx).Info("ready")

	// Output varies, no output specified
}

// Example_instrumentedOperation wraps one command in a span and a timer.
func Example_instrumentedOperation() {
	tel, _ := telemetry.NewTelemetry(telemetry.DevelopmentConfig())
	defer tel.Shutdown(context.Background())

	op := telemetry.StartOperation(tel.WithContext(context.Background()), "resolve",
		telemetry.AttrComponent.String("cumsum"),
	)
	err := fmt.Errorf("operator aborted")
	op.Logger.WithError(err).Warn("resolution ended early")
	op.End(err)

	// Output varies, no output specified
}
