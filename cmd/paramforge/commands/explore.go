package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paramforge/paramforge/pkg/domain"
	"github.com/paramforge/paramforge/pkg/engine"
	"github.com/paramforge/paramforge/pkg/policy"
	"github.com/paramforge/paramforge/pkg/stores"
	"github.com/paramforge/paramforge/pkg/telemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type exploreFlags struct {
	strategy        string
	walks           int
	walkRetries     int
	target          int
	maxAttempts     int
	workers         int
	seed            uint64
	limit           int
	progressEvery   int64
	pingPong        bool
	hold            []string
	allow           []string
	policyDir       string
	builtinPolicies bool
	csvFile         string
	yamlFile        string
	quiet           bool
	save            bool
	dbPath          string
}

func newExploreCommand() *cobra.Command {
	var f exploreFlags

	cmd := &cobra.Command{
		Use:   "explore <component>",
		Short: "Enumerate or sample legal configurations",
		Long: `Explore the configuration space of a component.

The exhaustive strategy enumerates every legal assignment depth-first,
pruning a branch as soon as a candidate fails validation. The random
strategy runs random walks to learn which values each parameter can take,
then samples whole assignments from those values in parallel until the
target number of distinct legal configurations is reached or the attempt
budget runs out.

Configurations that validate can be filtered further by Rego policies.
Results are printed as a table and can be written as CSV or YAML or saved
to the exploration database.`,
		Example: `  # Enumerate every legal configuration
  paramforge explore ssr_casc

  # Sample 200 configurations with 8 workers, reproducibly
  paramforge explore cumsum --strategy random --target 200 --workers 8 --seed 42

  # Restrict two parameters and keep another at its first legal value
  paramforge explore cumsum --allow TT_DATA=int16,int32 --allow TP_DIM_A=16,32 --hold AIE_VARIANT

  # Filter with policies and save the run
  paramforge explore ssr_casc --builtin-policies --policy ./policies --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			c, err := a.component(args[0])
			if err != nil {
				return err
			}

			ctx, span := a.telemetry.Tracer.StartCommandSpan(cmd.Context(), "explore", c.Name)
			defer func() {
				telemetry.RecordError(span, err)
				span.End()
			}()

			opts, err := f.options(cmd, a, c)
			if err != nil {
				return err
			}

			filter, err := f.policies(ctx, a)
			if err != nil {
				return err
			}
			if filter != nil {
				opts.Filters = append(opts.Filters, filter)
			}

			explorer := engine.NewExplorer(
				engine.WithExplorerLogger(a.logger),
				engine.WithExplorerMetrics(a.telemetry.Metrics),
			)
			res, err := explorer.Explore(ctx, c, opts)
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				log.Warn().Err(w).Str("run_id", res.RunID).Msg("Exploration warning")
			}
			logSummary(res)

			return f.report(cmd, a, res)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.strategy, "strategy", string(engine.StrategyExhaustive), "exploration strategy (exhaustive or random)")
	flags.IntVar(&f.walks, "walks", engine.DefaultWalks, "random walks of the exploration phase")
	flags.IntVar(&f.walkRetries, "walk-retries", engine.DefaultWalkRetries, "rejected draws allowed per walk step")
	flags.IntVar(&f.target, "target", engine.DefaultTarget, "distinct configurations to sample")
	flags.IntVar(&f.maxAttempts, "max-attempts", 0, "sampling attempt budget (0 = default, negative = unbounded)")
	flags.IntVar(&f.workers, "workers", 1, "sampling goroutines")
	flags.Uint64Var(&f.seed, "seed", 0, "random seed (0 = seed from the clock)")
	flags.IntVar(&f.limit, "limit", 0, "stop an exhaustive run after this many configurations")
	flags.Int64Var(&f.progressEvery, "progress-every", 0, "log progress every N accepted configurations")
	flags.BoolVar(&f.pingPong, "pingpong", false, "use the narrower double-buffered domains")
	flags.StringSliceVar(&f.hold, "hold", nil, "parameters kept at their first legal value")
	flags.StringArrayVar(&f.allow, "allow", nil, "restrict a parameter as NAME=v1,v2 (vectors separated by ';')")
	flags.StringVar(&f.policyDir, "policy", "", "directory of Rego policies filtering configurations")
	flags.BoolVar(&f.builtinPolicies, "builtin-policies", false, "apply the built-in policies")
	flags.StringVar(&f.csvFile, "csv", "", "write the configurations to a CSV file")
	flags.StringVar(&f.yamlFile, "yaml", "", "write the configurations to a YAML file")
	flags.BoolVarP(&f.quiet, "quiet", "q", false, "do not print the configuration table")
	flags.BoolVar(&f.save, "save", false, "save the run to the exploration database")
	flags.StringVar(&f.dbPath, "db", "", "exploration database path")

	return cmd
}

// options merges the explore settings with the flags set on the command line.
func (f *exploreFlags) options(cmd *cobra.Command, a *app, c *engine.Component) (engine.ExploreOptions, error) {
	s := a.settings.Explore
	opts := engine.ExploreOptions{
		Strategy:      engine.Strategy(s.Strategy),
		Walks:         s.Walks,
		WalkRetries:   s.WalkRetries,
		Target:        s.Target,
		MaxAttempts:   s.MaxAttempts,
		Workers:       s.Workers,
		ProgressEvery: s.ProgressEvery,
		PingPong:      s.PingPong,
		Limit:         f.limit,
		Seed:          f.seed,
		HoldFixed:     f.hold,
	}

	flags := cmd.Flags()
	if flags.Changed("strategy") {
		opts.Strategy = engine.Strategy(f.strategy)
	}
	if flags.Changed("walks") {
		opts.Walks = f.walks
	}
	if flags.Changed("walk-retries") {
		opts.WalkRetries = f.walkRetries
	}
	if flags.Changed("target") {
		opts.Target = f.target
	}
	if flags.Changed("max-attempts") {
		opts.MaxAttempts = f.maxAttempts
	}
	if flags.Changed("workers") {
		opts.Workers = f.workers
	}
	if flags.Changed("progress-every") {
		opts.ProgressEvery = f.progressEvery
	}
	if flags.Changed("pingpong") {
		opts.PingPong = f.pingPong
	}
	if err := opts.Strategy.Validate(); err != nil {
		return opts, err
	}

	for _, name := range f.hold {
		if _, ok := c.Param(name); !ok {
			return opts, fmt.Errorf("--hold: unknown parameter %s", name)
		}
	}

	allow, err := parseAllow(c, f.allow)
	if err != nil {
		return opts, err
	}
	opts.Allow = allow

	if opts.ProgressEvery > 0 {
		opts.Progress = func(r engine.ProgressReport) {
			log.Info().
				Str("run_id", r.RunID).
				Str("component", r.Component).
				Str("strategy", string(r.Strategy)).
				Int("found", r.Found).
				Int64("pruned", r.Stats.Pruned).
				Int64("attempts", r.Stats.Attempts).
				Dur("elapsed", r.Stats.Elapsed).
				Msg("Exploration progress")
		}
	}
	return opts, nil
}

// parseAllow reads NAME=v1,v2 restrictions. Vector values are separated by
// semicolons since their elements use commas.
func parseAllow(c *engine.Component, specs []string) (map[string][]domain.Value, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	allow := make(map[string][]domain.Value, len(specs))
	for _, s := range specs {
		name, list, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.TrimSpace(list) == "" {
			return nil, fmt.Errorf("invalid --allow %q (want NAME=v1,v2)", s)
		}
		spec, ok := c.Param(name)
		if !ok {
			return nil, fmt.Errorf("--allow: unknown parameter %s", name)
		}

		sep := ","
		if spec.Type == domain.VectorKind {
			sep = ";"
		}
		for _, field := range strings.Split(list, sep) {
			v, err := domain.Parse(spec.Type, field)
			if err != nil {
				return nil, fmt.Errorf("--allow %s: %w", name, err)
			}
			allow[name] = append(allow[name], v)
		}
	}
	return allow, nil
}

// policies returns the policy filter selected by the flags, or nil. A policy
// directory is watched for changes for the rest of the run.
func (f *exploreFlags) policies(ctx context.Context, a *app) (*policy.Engine, error) {
	dir := f.policyDir
	if dir == "" {
		dir = a.settings.Explore.PolicyDir
	}
	if dir == "" && !f.builtinPolicies {
		return nil, nil
	}

	eng := policy.NewEngine(a.logger)
	if f.builtinPolicies {
		if err := eng.LoadBuiltins(ctx); err != nil {
			return nil, err
		}
	}
	if dir != "" {
		if err := eng.Watch(ctx, []string{dir}); err != nil {
			return nil, fmt.Errorf("failed to load policies: %w", err)
		}
	}
	log.Debug().Int("policies", eng.Len()).Msg("Exploration policies loaded")
	return eng, nil
}

func logSummary(res *engine.ExploreResult) {
	log.Info().
		Str("run_id", res.RunID).
		Str("component", res.Component).
		Str("strategy", string(res.Strategy)).
		Str("status", string(res.Status)).
		Int("configurations", len(res.Configurations)).
		Int64("pruned", res.Stats.Pruned).
		Int64("abandoned", res.Stats.Abandoned).
		Int64("filtered", res.Stats.Filtered).
		Int64("attempts", res.Stats.Attempts).
		Int64("duplicates", res.Stats.Duplicates).
		Dur("elapsed", res.Stats.Elapsed).
		Msg("Exploration finished")
}

type exploreOutput struct {
	RunID          string              `json:"run_id"`
	Component      string              `json:"component"`
	Strategy       engine.Strategy     `json:"strategy"`
	Status         engine.RunStatus    `json:"status"`
	StartedAt      time.Time           `json:"started_at"`
	CompletedAt    time.Time           `json:"completed_at"`
	Stats          engine.ExploreStats `json:"stats"`
	Warnings       []string            `json:"warnings,omitempty"`
	Configurations []map[string]any    `json:"configurations"`
}

// report prints, exports and saves the result as the flags request.
func (f *exploreFlags) report(cmd *cobra.Command, a *app, res *engine.ExploreResult) error {
	table := tableFromResult(res)

	if f.csvFile != "" {
		if err := writeFile(f.csvFile, table.writeCSV); err != nil {
			return err
		}
		log.Info().Str("path", f.csvFile).Msg("CSV written")
	}
	if f.yamlFile != "" {
		if err := writeFile(f.yamlFile, table.writeYAML); err != nil {
			return err
		}
		log.Info().Str("path", f.yamlFile).Msg("YAML written")
	}

	if f.save {
		path := f.dbPath
		if path == "" {
			path = a.settings.Paths.Database
		}
		// A cancelled run still saves what it found.
		exp, err := saveResult(context.WithoutCancel(cmd.Context()), path, res)
		if err != nil {
			return err
		}
		log.Info().Str("run_id", exp.ID).Str("db", path).Msg("Exploration saved")
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		out := exploreOutput{
			RunID:          res.RunID,
			Component:      res.Component,
			Strategy:       res.Strategy,
			Status:         res.Status,
			StartedAt:      res.StartedAt,
			CompletedAt:    res.CompletedAt,
			Stats:          res.Stats,
			Configurations: make([]map[string]any, 0, len(res.Configurations)),
		}
		for _, warn := range res.Warnings {
			out.Warnings = append(out.Warnings, warn.Error())
		}
		if !f.quiet {
			for _, cfg := range res.Configurations {
				out.Configurations = append(out.Configurations, cfg.Map())
			}
		}
		return printJSON(w, out)
	}
	if f.quiet {
		return nil
	}
	return table.writeText(w)
}

func saveResult(ctx context.Context, path string, res *engine.ExploreResult) (*stores.Exploration, error) {
	store, err := openStore(ctx, path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return stores.SaveResult(ctx, store, res)
}

// openStore opens and migrates the exploration database at path.
func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database %s: %w", path, err)
	}
	return store, nil
}
