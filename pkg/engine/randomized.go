package engine

import (
	"math/rand/v2"

	"github.com/paramforge/paramforge/pkg/domain"
)

const phaseWalk = "walk"

// observedSet is an insertion-ordered set of values.
type observedSet struct {
	seen   map[string]struct{}
	values []domain.Value
}

func (o *observedSet) add(v domain.Value) {
	if o.seen == nil {
		o.seen = make(map[string]struct{})
	}
	if _, ok := o.seen[v.Key()]; ok {
		return
	}
	o.seen[v.Key()] = struct{}{}
	o.values = append(o.values, v)
}

// randomized runs the two-phase hypercube strategy: random walks collect the
// values reachable for each parameter, then whole assignments are drawn from
// those sets and validated in one shot.
func (r *exploreRun) randomized() {
	observed := r.explore()

	r.res.Observed = make(map[string][]domain.Value, len(observed))
	for i, o := range observed {
		r.res.Observed[r.names[i]] = append([]domain.Value(nil), o.values...)
	}

	if r.ctx.Err() != nil {
		r.res.Status = RunStatusCancelled
		return
	}
	for i, o := range observed {
		if len(o.values) == 0 {
			warn := NewBudgetExceededError(0, r.opts.Target, 0).
				WithComponent(r.c.Name).
				WithParameter(r.names[i]).
				WithDetail("reason", "no walk reached this parameter")
			r.res.Warnings = append(r.res.Warnings, warn)
			r.res.Status = RunStatusPartial
			r.logger.Warn().Err(warn).Msg("sampling skipped")
			return
		}
	}

	r.sample(observed)
}

// explore performs the random walks of the exploration phase.
func (r *exploreRun) explore() []observedSet {
	n := len(r.c.Params)
	observed := make([]observedSet, n)
	rng := rand.New(rand.NewPCG(r.opts.Seed, 0))
	t := &tally{}
	defer t.mergeInto(&r.res.Stats)

	values := make([]domain.Value, n)
	for w := 0; w < r.opts.Walks; w++ {
		if r.ctx.Err() != nil {
			return observed
		}
		t.walks++
		if !r.walk(rng, t, values, observed) {
			t.walksAbandoned++
		}
	}
	r.logger.Debug().
		Int64("walks", t.walks).
		Int64("abandoned", t.walksAbandoned).
		Msg("exploration phase finished")
	return observed
}

// walk assigns every parameter a uniformly random legal value, retrying
// rejected draws up to the configured bound. It reports whether the walk
// reached the last parameter.
func (r *exploreRun) walk(rng *rand.Rand, t *tally, values []domain.Value, observed []observedSet) bool {
	for i := range r.c.Params {
		spec := &r.c.Params[i]
		d, err := r.c.updateDomain(spec, values[:i])
		if err != nil {
			r.pathFailed(t, phaseWalk, spec.Name, values[:i], err)
			return false
		}
		cand := r.candidates(spec, d)
		if cand.Empty() {
			t.pruned++
			return false
		}

		accepted := false
		for try := 0; try < r.opts.WalkRetries; try++ {
			var v domain.Value
			if r.held[i] {
				// held parameters walk their domain in order so the first
				// legal value is the one kept
				if int64(try) >= cand.Len() {
					break
				}
				v = cand.At(int64(try))
			} else {
				v = cand.At(rng.Int64N(cand.Len()))
			}

			if err := r.c.validateValue(spec, v, d, values[:i]); err != nil {
				r.pathFailed(t, phaseWalk, spec.Name, values[:i], err)
				if !IsValidationFailed(err) {
					return false
				}
				continue
			}
			if r.held[i] && r.pins[i].IsZero() {
				r.pins[i] = v
			}
			values[i] = v
			observed[i].add(v)
			accepted = true
			break
		}
		if !accepted {
			return false
		}
	}
	return true
}
