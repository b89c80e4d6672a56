package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/paramforge/paramforge/pkg/components"
	"github.com/paramforge/paramforge/pkg/config"
	"github.com/paramforge/paramforge/pkg/engine"
	"github.com/paramforge/paramforge/pkg/telemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath  string
	metadataDir string
	verbose     bool
	jsonOutput  bool
	metricsAddr string

	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	buildVersion = version

	rootCmd := &cobra.Command{
		Use:   "paramforge",
		Short: "paramforge - parameter resolution and configuration-space exploration",
		Long: `paramforge resolves the template parameters of configurable components
in dependency order and explores the space of legal configurations.

Each parameter's legal domain is computed from the parameters declared
before it, and every candidate is validated against the same earlier
parameters. Components are built in or declared in YAML, JSON or CUE
metadata with Starlark capacity models.

Features:
  - Interactive resolution with backtracking
  - Exhaustive and randomized parallel exploration
  - Rego policies as exploration filters
  - Stored exploration results (SQLite)
  - Graph and port descriptor emission`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file path")
	rootCmd.PersistentFlags().StringVarP(&metadataDir, "metadata", "m", "", "directory of component metadata files")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newParamsCommand())
	rootCmd.AddCommand(newResolveCommand())
	rootCmd.AddCommand(newExploreCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newGraphCommand())
	rootCmd.AddCommand(newRunsCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}

// app holds what every command needs once flags are parsed.
type app struct {
	settings  *config.Settings
	telemetry *telemetry.Telemetry
	registry  *engine.Registry
	logger    zerolog.Logger

	// problems are the declarations under the metadata directory that failed to load.
	problems config.ValidationErrors
}

// setup loads settings, starts telemetry and builds the component registry.
// The command context is replaced by one carrying the telemetry.
func setup(cmd *cobra.Command) (*app, error) {
	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return nil, err
	}
	if buildVersion != "" {
		settings.Telemetry.ServiceVersion = buildVersion
	}
	if verbose {
		settings.Telemetry.Logging.Level = "debug"
	}
	if metricsAddr != "" {
		settings.Telemetry.Metrics.Enabled = true
		settings.Telemetry.Metrics.ListenAddress = metricsAddr
	}
	if metadataDir != "" {
		settings.Paths.Metadata = metadataDir
	}

	tel, err := telemetry.NewTelemetry(&settings.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if lvl := telemetry.ParseLevel(settings.Telemetry.Logging.Level); lvl < zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(lvl)
	}
	log.Logger = tel.Logger.Zerolog()

	ctx := tel.WithContext(cmd.Context())
	cmd.SetContext(ctx)

	if err := tel.Metrics.StartMetricsServer(ctx, tel.Logger); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	reg, problems, err := loadRegistry(ctx, settings.Paths.Metadata)
	if err != nil {
		return nil, err
	}
	for _, p := range problems {
		log.Warn().Str("file", p.File).Str("path", p.Path).Msg(p.Message)
	}

	return &app{
		settings:  settings,
		telemetry: tel,
		registry:  reg,
		logger:    tel.Logger.Zerolog(),
		problems:  problems,
	}, nil
}

// close flushes telemetry.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}

// component looks up a registered component by name.
func (a *app) component(name string) (*engine.Component, error) {
	c, err := a.registry.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w (available: %v)", err, a.registry.Names())
	}
	return c, nil
}

// loadRegistry returns the built-in components plus every component declared
// under dir. Declarations that fail to load are returned as problems.
func loadRegistry(ctx context.Context, dir string) (*engine.Registry, config.ValidationErrors, error) {
	reg, err := components.NewRegistry(ctx)
	if err != nil {
		return nil, nil, err
	}
	if dir == "" {
		return reg, nil, nil
	}
	problems, err := config.NewMetadataLoader().LoadInto(ctx, reg, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load metadata from %s: %w", dir, err)
	}
	return reg, problems, nil
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
