package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/paramforge/paramforge/pkg/domain"
)

const (
	// DefaultProgressEvery is the number of accepted leaves between progress reports.
	DefaultProgressEvery = 100_000

	// DefaultWalks is the number of random walks when none is requested.
	DefaultWalks = 100

	// DefaultWalkRetries bounds the rejected draws per walk step.
	DefaultWalkRetries = 20

	// DefaultTarget is the sampling target when none is requested.
	DefaultTarget = 100

	minSampleBudget    = 1000
	sampleBudgetFactor = 200
)

// ExploreOptions selects and tunes an exploration strategy.
type ExploreOptions struct {
	// Strategy selects exhaustive or randomized traversal.
	Strategy Strategy

	// HoldFixed names parameters kept at their first observed legal value.
	HoldFixed []string

	// Allow restricts parameters to listed values, intersected with the
	// computed domain before traversal.
	Allow map[string][]domain.Value

	// PingPong intersects the narrower double-buffered domain when one exists.
	PingPong bool

	// Limit stops an exhaustive run after this many configurations (0 = no limit).
	Limit int

	// Walks is the number of random walks of the exploration phase.
	Walks int

	// WalkRetries bounds rejected draws per walk step.
	WalkRetries int

	// Target is the number of distinct legal configurations to sample.
	Target int

	// MaxAttempts bounds sampling attempts. Zero selects the default budget,
	// a negative value removes the bound.
	MaxAttempts int

	// Workers is the number of sampling goroutines.
	Workers int

	// Seed seeds the random strategy; zero seeds from the clock.
	Seed uint64

	// ProgressEvery is the number of accepted leaves between progress reports.
	ProgressEvery int64

	// Progress receives periodic reports; it may be nil.
	Progress func(ProgressReport)

	// Filters are applied to every configuration that validates.
	Filters []ConfigurationFilter
}

// ProgressReport is passed to ExploreOptions.Progress.
type ProgressReport struct {
	RunID     string
	Component string
	Strategy  Strategy
	Found     int
	Stats     ExploreStats
}

// withDefaults returns a copy of o with zero values replaced by defaults.
func (o ExploreOptions) withDefaults() ExploreOptions {
	if o.Strategy == "" {
		o.Strategy = StrategyExhaustive
	}
	if o.Walks <= 0 {
		o.Walks = DefaultWalks
	}
	if o.WalkRetries <= 0 {
		o.WalkRetries = DefaultWalkRetries
	}
	if o.Target <= 0 {
		o.Target = DefaultTarget
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = o.Target * sampleBudgetFactor
		if o.MaxAttempts < minSampleBudget {
			o.MaxAttempts = minSampleBudget
		}
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Seed == 0 {
		o.Seed = uint64(time.Now().UnixNano())
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = DefaultProgressEvery
	}
	return o
}

// Explorer enumerates or samples the legal configurations of a component.
// An Explorer holds no per-run state and may be reused.
type Explorer struct {
	logger  zerolog.Logger
	metrics MetricsRecorder
}

// ExplorerOption configures an Explorer.
type ExplorerOption func(*Explorer)

// WithExplorerLogger sets the logger.
func WithExplorerLogger(logger zerolog.Logger) ExplorerOption {
	return func(e *Explorer) { e.logger = logger }
}

// WithExplorerMetrics sets the metrics recorder. It must be safe for
// concurrent use.
func WithExplorerMetrics(m MetricsRecorder) ExplorerOption {
	return func(e *Explorer) {
		if m != nil {
			e.metrics = m
		}
	}
}

// NewExplorer creates an explorer.
func NewExplorer(opts ...ExplorerOption) *Explorer {
	e := &Explorer{
		logger:  zerolog.Nop(),
		metrics: nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Explore runs the selected strategy on c. Failures inside capabilities only
// abandon the affected path; the returned error is reserved for invalid
// options. Cancellation returns the partial result with status cancelled.
func (e *Explorer) Explore(ctx context.Context, c *Component, opts ExploreOptions) (res *ExploreResult, err error) {
	opts = opts.withDefaults()
	if err := opts.Strategy.Validate(); err != nil {
		return nil, NewPermanentError("invalid exploration options", err)
	}
	if err := e.checkOptions(c, opts); err != nil {
		return nil, err
	}

	ctx, span := startSpan(ctx, "engine.Explore",
		attribute.String("component", c.Name),
		attribute.String("strategy", string(opts.Strategy)))
	defer func() { endSpan(span, err) }()

	res = &ExploreResult{
		RunID:          uuid.New().String(),
		Component:      c.Name,
		Strategy:       opts.Strategy,
		Status:         RunStatusRunning,
		StartedAt:      time.Now(),
		Configurations: make([]*Configuration, 0),
	}
	run := &exploreRun{
		explorer: e,
		ctx:      ctx,
		c:        c,
		opts:     opts,
		res:      res,
		names:    c.Names(),
		held:     make([]bool, len(c.Params)),
		pins:     make([]domain.Value, len(c.Params)),
		logger:   e.logger.With().Str("run_id", res.RunID).Str("component", c.Name).Logger(),
	}
	for _, name := range opts.HoldFixed {
		p, _ := c.Param(name)
		run.held[p.Index] = true
	}

	run.logger.Info().
		Str("strategy", string(opts.Strategy)).
		Int("parameters", len(c.Params)).
		Msg("exploration started")

	switch opts.Strategy {
	case StrategyExhaustive:
		run.exhaustive()
	case StrategyRandom:
		run.randomized()
	}

	res.CompletedAt = time.Now()
	res.Stats.Elapsed = res.CompletedAt.Sub(res.StartedAt)
	if res.Status == RunStatusRunning {
		res.Status = RunStatusCompleted
	}
	e.metrics.RecordExploration(c.Name, opts.Strategy, res.Status, len(res.Configurations), res.Stats.Elapsed)

	span.SetAttributes(
		attribute.Int("found", len(res.Configurations)),
		attribute.String("status", string(res.Status)))
	run.logger.Info().
		Str("status", string(res.Status)).
		Int("found", len(res.Configurations)).
		Int64("pruned", res.Stats.Pruned).
		Int64("abandoned", res.Stats.Abandoned).
		Dur("elapsed", res.Stats.Elapsed).
		Msg("exploration finished")
	return res, nil
}

func (e *Explorer) checkOptions(c *Component, opts ExploreOptions) error {
	var errs []error
	for _, name := range opts.HoldFixed {
		if _, ok := c.Param(name); !ok {
			errs = append(errs, fmt.Errorf("hold-fixed parameter %s is not declared", name))
		}
	}
	for name := range opts.Allow {
		if _, ok := c.Param(name); !ok {
			errs = append(errs, fmt.Errorf("allow-listed parameter %s is not declared", name))
		}
	}
	if len(errs) > 0 {
		return NewPermanentError("invalid exploration options", errors.Join(errs...)).
			WithComponent(c.Name)
	}
	return nil
}

// exploreRun carries the state of one exploration.
type exploreRun struct {
	explorer *Explorer
	ctx      context.Context
	c        *Component
	opts     ExploreOptions
	res      *ExploreResult
	names    []string
	held     []bool
	pins     []domain.Value
	logger   zerolog.Logger
}

// candidates narrows the general domain d of spec to the values traversal
// should try.
func (r *exploreRun) candidates(spec *ParameterSpec, d domain.Domain) domain.Domain {
	cand := d
	if r.opts.PingPong {
		cand = cand.PingPong()
	}
	if allow, ok := r.opts.Allow[spec.Name]; ok {
		cand = domain.Intersect(cand, allow)
	}
	if r.held[spec.Index] {
		if pin := r.pins[spec.Index]; !pin.IsZero() && cand.Contains(pin) {
			cand = domain.NewEnum(pin)
		}
	}
	return cand
}

// pathFailed records why a path or attempt ended and logs it with the
// partial environment.
func (r *exploreRun) pathFailed(t *tally, phase, param string, prefix []domain.Value, err error) {
	switch {
	case IsValidationFailed(err) || IsDomainEmpty(err):
		t.pruned++
		r.explorer.metrics.RecordOutcome(r.c.Name, phase, OutcomePruned)
		return
	case IsOrderViolation(err):
		t.violations++
		t.abandoned++
		r.explorer.metrics.RecordOutcome(r.c.Name, phase, OutcomeViolation)
		r.logger.Error().Err(err).
			Str("phase", phase).
			Str("parameter", param).
			Interface("environment", r.environment(prefix)).
			Msg("dependency order violation; path abandoned")
	default:
		t.abandoned++
		r.explorer.metrics.RecordOutcome(r.c.Name, phase, OutcomeAbandoned)
		r.logger.Warn().Err(err).
			Str("phase", phase).
			Str("parameter", param).
			Interface("environment", r.environment(prefix)).
			Msg("capability failed; path abandoned")
	}
}

func (r *exploreRun) environment(prefix []domain.Value) map[string]string {
	env := make(map[string]string, len(prefix))
	for i, v := range prefix {
		env[r.names[i]] = v.String()
	}
	return env
}

// filtered applies the configured filters. It reports whether cfg is excluded.
func (r *exploreRun) filtered(t *tally, phase string, cfg *Configuration) bool {
	for _, f := range r.opts.Filters {
		reasons, err := f.Allow(r.ctx, r.c.Name, cfg)
		if err != nil {
			t.abandoned++
			r.explorer.metrics.RecordOutcome(r.c.Name, phase, OutcomeAbandoned)
			r.logger.Warn().Err(err).Str("configuration", cfg.String()).Msg("filter failed; configuration dropped")
			return true
		}
		if len(reasons) > 0 {
			t.filtered++
			r.explorer.metrics.RecordOutcome(r.c.Name, phase, OutcomeFiltered)
			r.logger.Trace().Strs("reasons", reasons).Str("configuration", cfg.String()).Msg("configuration filtered")
			return true
		}
	}
	return false
}

func (r *exploreRun) report() {
	if r.opts.Progress == nil {
		return
	}
	r.opts.Progress(ProgressReport{
		RunID:     r.res.RunID,
		Component: r.c.Name,
		Strategy:  r.opts.Strategy,
		Found:     len(r.res.Configurations),
		Stats:     r.res.Stats,
	})
}

// tally holds counters owned by one goroutine; tallies are merged into the
// result under a lock.
type tally struct {
	leaves, pruned, abandoned, violations int64
	walks, walksAbandoned                 int64
	attempts, duplicates, filtered        int64
}

func (t *tally) mergeInto(s *ExploreStats) {
	s.Leaves += t.leaves
	s.Pruned += t.pruned
	s.Abandoned += t.abandoned
	s.Violations += t.violations
	s.Walks += t.walks
	s.WalksAbandoned += t.walksAbandoned
	s.Attempts += t.attempts
	s.Duplicates += t.duplicates
	s.Filtered += t.filtered
	*t = tally{}
}
