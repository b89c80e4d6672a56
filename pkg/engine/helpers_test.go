package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paramforge/paramforge/pkg/domain"
)

func fixed(d domain.Domain) UpdateFunc {
	return func(*Env) (domain.Domain, error) { return d, nil }
}

func intParam(name string, reads ...string) ParameterDecl {
	p := ParameterDecl{Name: name, Type: domain.IntKind}
	if len(reads) > 0 {
		p.UpdaterArgs = reads
		p.ValidatorArgs = reads
	}
	return p
}

// newToy builds A in {0,1}, B in {0,1,2}, C in {0,1}, optionally with a
// validator on C over A and B.
func newToy(t testing.TB, validateC ValidateFunc) *Component {
	t.Helper()
	decl := Declaration{
		Name: "toy",
		Params: []ParameterDecl{
			intParam("A"),
			intParam("B", "A"),
			intParam("C", "A", "B"),
		},
	}
	model := Capabilities{
		"A": {Update: fixed(domain.NewRange(0, 1))},
		"B": {Update: fixed(domain.NewEnum(domain.Ints(0, 1, 2)...))},
		"C": {Update: fixed(domain.NewRange(0, 1)), Validate: validateC},
	}
	c, err := NewComponent(decl, model, nil)
	require.NoError(t, err)
	return c
}

// newSSRCasc builds the SSR/CASC component: SSR divides 16, CASC divides 8,
// and their product may not exceed 64.
func newSSRCasc(t testing.TB) *Component {
	t.Helper()
	decl := Declaration{
		Name: "ssr_casc_small",
		Params: []ParameterDecl{
			intParam("TP_SSR"),
			intParam("TP_CASC_LEN", "TP_SSR"),
		},
	}
	model := Capabilities{
		"TP_SSR": {Update: fixed(domain.NewEnum(domain.Divisors(16, 1, 16)...))},
		"TP_CASC_LEN": {
			Update: fixed(domain.NewEnum(domain.Divisors(8, 1, 16)...)),
			Validate: func(v domain.Value, env *Env) error {
				if p := env.Int("TP_SSR") * v.AsInt(); p > 64 {
					return fmt.Errorf("TP_SSR*TP_CASC_LEN=%d exceeds 64", p)
				}
				return nil
			},
		},
	}
	c, err := NewComponent(decl, model, nil)
	require.NoError(t, err)
	return c
}

// countingRange returns an updater producing [0, limit-B] and counts calls.
func countingRange(calls *atomic.Int64, limit int64) UpdateFunc {
	return func(env *Env) (domain.Domain, error) {
		calls.Add(1)
		return domain.NewRange(0, limit-env.Int("B")), nil
	}
}

type scriptedPrompter struct {
	answers  []Answer
	offers   []*Offer
	verdicts []*Verdict
}

func (p *scriptedPrompter) Ask(_ context.Context, offer *Offer, verdict *Verdict) (Answer, error) {
	p.offers = append(p.offers, offer)
	p.verdicts = append(p.verdicts, verdict)
	if len(p.answers) == 0 {
		return Answer{Action: AnswerAbort}, nil
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

type recordingMetrics struct {
	outcomes     atomic.Int64
	explorations atomic.Int64
}

func (m *recordingMetrics) RecordOutcome(string, string, Outcome) { m.outcomes.Add(1) }

func (m *recordingMetrics) RecordExploration(string, Strategy, RunStatus, int, time.Duration) {
	m.explorations.Add(1)
}

func keys(cfgs []*Configuration) map[string]struct{} {
	out := make(map[string]struct{}, len(cfgs))
	for _, c := range cfgs {
		out[c.Key()] = struct{}{}
	}
	return out
}
