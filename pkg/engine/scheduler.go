package engine

import (
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/paramforge/paramforge/pkg/domain"
)

const phaseSample = "sample"

// sampleScheduler runs the sampling phase of the randomized strategy on a
// pool of workers. Workers reserve attempts from a shared budget, draw one
// value per parameter from the observed sets and verify the assignment in one
// shot. Accepted configurations are deduplicated under the lock.
type sampleScheduler struct {
	run      *exploreRun
	observed []observedSet

	// budget is the attempt bound; negative means unbounded
	budget   int64
	attempts atomic.Int64
	done     atomic.Bool

	// mu protects seen and the result
	mu   sync.Mutex
	seen map[string]struct{}
}

// sample draws configurations from the cartesian product of the observed
// sets until the target is met, the budget is spent or ctx is cancelled.
func (r *exploreRun) sample(observed []observedSet) {
	s := &sampleScheduler{
		run:      r,
		observed: observed,
		budget:   int64(r.opts.MaxAttempts),
		seen:     make(map[string]struct{}, r.opts.Target),
	}

	workerCount := r.opts.Workers
	if s.budget >= 0 && int64(workerCount) > s.budget {
		workerCount = int(s.budget)
	}

	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			s.work(rand.New(rand.NewPCG(r.opts.Seed, uint64(w)+1)))
		}(w)
	}
	wg.Wait()

	found := len(r.res.Configurations)
	switch {
	case found >= r.opts.Target:
		r.res.Status = RunStatusCompleted
	case r.ctx.Err() != nil:
		r.res.Status = RunStatusCancelled
		r.logger.Warn().Err(r.ctx.Err()).Int("found", found).Msg("sampling cancelled")
	default:
		warn := NewBudgetExceededError(found, r.opts.Target, int(s.attempts.Load())).
			WithComponent(r.c.Name)
		r.res.Warnings = append(r.res.Warnings, warn)
		r.res.Status = RunStatusPartial
		r.logger.Warn().Err(warn).Msg("sampling budget exhausted before target")
	}
}

// reserve claims one attempt from the budget.
func (s *sampleScheduler) reserve() bool {
	if s.budget < 0 {
		s.attempts.Add(1)
		return true
	}
	for {
		n := s.attempts.Load()
		if n >= s.budget {
			return false
		}
		if s.attempts.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (s *sampleScheduler) work(rng *rand.Rand) {
	r := s.run
	t := &tally{}
	defer func() {
		s.mu.Lock()
		t.mergeInto(&r.res.Stats)
		s.mu.Unlock()
	}()

	values := make([]domain.Value, len(r.c.Params))
	for !s.done.Load() && r.ctx.Err() == nil && s.reserve() {
		t.attempts++
		s.draw(rng, values)

		if err := r.c.verifyValues(values, r.candidates); err != nil {
			r.pathFailed(t, phaseSample, failedParameter(err), values, err)
			continue
		}
		cfg, err := NewConfiguration(r.names, values)
		if err != nil {
			t.abandoned++
			continue
		}
		if s.duplicate(cfg.Key()) {
			t.duplicates++
			r.explorer.metrics.RecordOutcome(r.c.Name, phaseSample, OutcomeDuplicate)
			continue
		}
		if r.filtered(t, phaseSample, cfg) {
			continue
		}
		s.accept(t, cfg)
	}
}

// draw fills values with one uniform choice per observed set. Held
// parameters always take their pinned value.
func (s *sampleScheduler) draw(rng *rand.Rand, values []domain.Value) {
	r := s.run
	for i, o := range s.observed {
		switch {
		case r.held[i] && !r.pins[i].IsZero():
			values[i] = r.pins[i]
		case r.held[i]:
			values[i] = o.values[0]
		default:
			values[i] = o.values[rng.IntN(len(o.values))]
		}
	}
}

func (s *sampleScheduler) duplicate(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[key]
	return ok
}

func (s *sampleScheduler) accept(t *tally, cfg *Configuration) {
	r := s.run
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[cfg.Key()]; ok {
		t.duplicates++
		return
	}
	if len(r.res.Configurations) >= r.opts.Target {
		return
	}
	s.seen[cfg.Key()] = struct{}{}
	r.res.Configurations = append(r.res.Configurations, cfg)
	t.leaves++
	r.explorer.metrics.RecordOutcome(r.c.Name, phaseSample, OutcomeAccepted)

	found := len(r.res.Configurations)
	if found >= r.opts.Target {
		s.done.Store(true)
	}
	if int64(found)%r.opts.ProgressEvery == 0 || found >= r.opts.Target {
		t.mergeInto(&r.res.Stats)
		r.logger.Info().
			Int("found", found).
			Int("target", r.opts.Target).
			Int64("attempts", s.attempts.Load()).
			Msg("sampling progress")
		r.report()
	}
}

// failedParameter names the parameter an engine error was raised for.
func failedParameter(err error) string {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Parameter
	}
	return ""
}
