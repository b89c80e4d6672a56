package engine

import (
	"github.com/paramforge/paramforge/pkg/domain"
)

const (
	phaseExhaustive = "exhaustive"

	// cancelCheckEvery is how many stack steps pass between context checks.
	cancelCheckEvery = 1024
)

// frame is one level of the exhaustive work-stack: the domain of the
// parameter at depth and the next candidate index to try.
type frame struct {
	depth   int
	general domain.Domain
	cand    domain.Domain
	next    int64
	done    bool
}

// exhaustive enumerates every legal assignment depth-first with an explicit
// stack. An invalid assignment prunes its whole subtree: later parameters
// cannot make an earlier invalid value legal.
func (r *exploreRun) exhaustive() {
	n := len(r.c.Params)
	t := &tally{}
	defer t.mergeInto(&r.res.Stats)

	if n == 0 {
		if cfg, err := NewConfiguration(nil, nil); err == nil {
			r.res.Configurations = append(r.res.Configurations, cfg)
			t.leaves++
		}
		return
	}

	values := make([]domain.Value, n)
	stack := make([]frame, 0, n)

	push := func(depth int) {
		spec := &r.c.Params[depth]
		d, err := r.c.updateDomain(spec, values[:depth])
		if err != nil {
			r.pathFailed(t, phaseExhaustive, spec.Name, values[:depth], err)
			return
		}
		cand := r.candidates(spec, d)
		if cand.Empty() {
			t.pruned++
			r.explorer.metrics.RecordOutcome(r.c.Name, phaseExhaustive, OutcomePruned)
			return
		}
		stack = append(stack, frame{depth: depth, general: d, cand: cand})
	}

	push(0)
	var steps int
	for len(stack) > 0 {
		steps++
		if steps%cancelCheckEvery == 0 && r.ctx.Err() != nil {
			r.res.Status = RunStatusCancelled
			r.logger.Warn().Err(r.ctx.Err()).Msg("exhaustive exploration cancelled")
			return
		}

		top := &stack[len(stack)-1]
		if top.done || top.next >= top.cand.Len() {
			stack = stack[:len(stack)-1]
			continue
		}

		v := top.cand.At(top.next)
		top.next++
		depth := top.depth
		spec := &r.c.Params[depth]

		if err := r.c.validateValue(spec, v, top.general, values[:depth]); err != nil {
			r.pathFailed(t, phaseExhaustive, spec.Name, values[:depth], err)
			continue
		}
		if r.held[depth] {
			top.done = true
			if r.pins[depth].IsZero() {
				r.pins[depth] = v
			}
		}
		values[depth] = v

		if depth < n-1 {
			push(depth + 1)
			continue
		}

		cfg, err := NewConfiguration(r.names, values)
		if err != nil {
			t.abandoned++
			continue
		}
		if r.filtered(t, phaseExhaustive, cfg) {
			continue
		}
		r.res.Configurations = append(r.res.Configurations, cfg)
		t.leaves++
		r.explorer.metrics.RecordOutcome(r.c.Name, phaseExhaustive, OutcomeAccepted)

		if t.leaves%r.opts.ProgressEvery == 0 || r.limitReached() {
			t.mergeInto(&r.res.Stats)
			r.logger.Info().
				Int("found", len(r.res.Configurations)).
				Int64("pruned", r.res.Stats.Pruned).
				Msg("exhaustive exploration progress")
			r.report()
		}
		if r.limitReached() {
			r.logger.Info().Int("limit", r.opts.Limit).Msg("configuration limit reached")
			return
		}
	}
}

func (r *exploreRun) limitReached() bool {
	return r.opts.Limit > 0 && len(r.res.Configurations) >= r.opts.Limit
}
