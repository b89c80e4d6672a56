package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paramforge/paramforge/pkg/domain"
)

func newBacktrackComponent(t *testing.T, calls *atomic.Int64) *Component {
	t.Helper()
	decl := Declaration{
		Name:   "backtrack",
		Params: []ParameterDecl{intParam("A"), intParam("B", "A"), intParam("C", "A", "B")},
	}
	model := Capabilities{
		"A": {Update: fixed(domain.NewRange(0, 3))},
		"B": {Update: fixed(domain.NewRange(0, 10))},
		"C": {Update: countingRange(calls, 8)},
	}
	c, err := NewComponent(decl, model, nil)
	require.NoError(t, err)
	return c
}

func commit(t *testing.T, s *Session, v int64) {
	t.Helper()
	ctx := context.Background()
	_, err := s.Offer(ctx)
	require.NoError(t, err)
	verdict, err := s.Submit(ctx, domain.Int(v))
	require.NoError(t, err)
	require.True(t, verdict.Accepted, verdict.Reason)
}

func TestSession_ResolvesInOrder(t *testing.T) {
	ctx := context.Background()
	c := newToy(t, nil)
	s := NewSession(c)

	assert.Equal(t, 0, s.FocusIndex())
	offer, err := s.Offer(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", offer.Parameter)
	assert.True(t, offer.HasDefault)
	assert.Equal(t, domain.Int(0), offer.Default)

	commit(t, s, 1)
	commit(t, s, 2)
	commit(t, s, 0)
	require.True(t, s.Done())
	assert.Nil(t, s.Focus())

	cfg, err := s.Configuration()
	require.NoError(t, err)
	assert.Equal(t, "A=1 B=2 C=0", cfg.String())
	assert.NoError(t, Verify(ctx, c, cfg))

	for _, st := range s.States() {
		assert.True(t, st.Committed, st.Spec.Name)
		assert.True(t, st.Valid, st.Spec.Name)
		assert.True(t, st.Domain.Contains(st.Value), st.Spec.Name)
	}
}

func TestSession_RejectionSuggestsNearestLegal(t *testing.T) {
	ctx := context.Background()
	c := newToy(t, nil)
	s := NewSession(c)

	_, err := s.Offer(ctx)
	require.NoError(t, err)

	verdict, err := s.Submit(ctx, domain.Int(9))
	require.NoError(t, err)
	assert.False(t, verdict.Accepted)
	assert.True(t, IsValidationFailed(verdict.Err))
	require.True(t, verdict.HasSuggestion)
	assert.Equal(t, domain.Int(1), verdict.Suggestion)

	// the rejected value is never coerced
	assert.Equal(t, 0, s.FocusIndex())
	assert.False(t, s.Focus().Committed)

	verdict, err = s.Submit(ctx, domain.Str("x"))
	require.NoError(t, err)
	assert.False(t, verdict.Accepted)
}

func TestSession_ValidatorRejection(t *testing.T) {
	ctx := context.Background()
	c := newToy(t, func(v domain.Value, env *Env) error {
		if env.Int("A")+env.Int("B")+v.AsInt() > 2 {
			return errors.New("A+B+C must not exceed 2")
		}
		return nil
	})
	s := NewSession(c)
	commit(t, s, 1)
	commit(t, s, 1)

	_, err := s.Offer(ctx)
	require.NoError(t, err)
	verdict, err := s.Submit(ctx, domain.Int(1))
	require.NoError(t, err)
	assert.False(t, verdict.Accepted)
	assert.Equal(t, "A+B+C must not exceed 2", verdict.Reason)
}

func TestSession_BacktrackRecomputesDownstream(t *testing.T) {
	ctx := context.Background()

	t.Run("still legal value is offered again", func(t *testing.T) {
		var calls atomic.Int64
		s := NewSession(newBacktrackComponent(t, &calls))
		commit(t, s, 1)
		commit(t, s, 2)
		commit(t, s, 3)
		require.True(t, s.Done())
		require.Equal(t, int64(1), calls.Load())

		// from the done state the first step reopens C, the second B
		require.NoError(t, s.Back())
		require.NoError(t, s.Back())
		assert.Equal(t, 1, s.FocusIndex())

		offer, err := s.Offer(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.Int(2), offer.Default)
		verdict, err := s.Submit(ctx, domain.Int(5))
		require.NoError(t, err)
		require.True(t, verdict.Accepted)

		assert.True(t, s.States()[2].Stale)
		offer, err = s.Offer(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), calls.Load())
		assert.Equal(t, "C", offer.Parameter)
		assert.Equal(t, domain.NewRange(0, 3), offer.Domain)
		assert.Equal(t, domain.Int(3), offer.Default)
	})

	t.Run("illegal value is not reused", func(t *testing.T) {
		var calls atomic.Int64
		s := NewSession(newBacktrackComponent(t, &calls))
		commit(t, s, 1)
		commit(t, s, 2)
		commit(t, s, 3)
		require.NoError(t, s.Back())
		require.NoError(t, s.Back())

		commit(t, s, 7)
		offer, err := s.Offer(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.NewRange(0, 1), offer.Domain)
		assert.NotEqual(t, domain.Int(3), offer.Default)

		verdict, err := s.Submit(ctx, domain.Int(3))
		require.NoError(t, err)
		assert.False(t, verdict.Accepted)
		assert.Equal(t, domain.Int(1), verdict.Suggestion)
	})
}

func TestSession_BackAtFirstParameter(t *testing.T) {
	s := NewSession(newToy(t, nil))
	err := s.Back()
	require.Error(t, err)
	assert.True(t, IsValidationFailed(err))
	assert.Equal(t, 0, s.FocusIndex())
}

func TestSession_ConfigurationIncomplete(t *testing.T) {
	s := NewSession(newToy(t, nil))
	commit(t, s, 0)
	_, err := s.Configuration()
	require.Error(t, err)
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeIncomplete, ee.Code)
}

func TestSession_OrderViolation(t *testing.T) {
	decl := Declaration{
		Name:   "bad",
		Params: []ParameterDecl{intParam("A"), intParam("B"), intParam("C")},
	}
	model := Capabilities{
		"A": {Update: fixed(domain.NewRange(0, 1))},
		"B": {Update: func(env *Env) (domain.Domain, error) {
			return domain.NewRange(0, env.Int("C")), nil
		}},
		"C": {Update: fixed(domain.NewRange(0, 1))},
	}
	c, err := NewComponent(decl, model, nil)
	require.NoError(t, err)

	metrics := &recordingMetrics{}
	s := NewSession(c, WithSessionMetrics(metrics))
	commit(t, s, 0)
	_, err = s.Offer(context.Background())
	require.Error(t, err)
	assert.True(t, IsOrderViolation(err))
	assert.False(t, IsRecoverable(err))
	assert.Equal(t, int64(2), metrics.outcomes.Load())
}

func TestSession_CapabilityPanicIsRecovered(t *testing.T) {
	decl := Declaration{Name: "panicky", Params: []ParameterDecl{intParam("A")}}
	model := Capabilities{"A": {Update: func(*Env) (domain.Domain, error) { panic("boom") }}}
	c, err := NewComponent(decl, model, nil)
	require.NoError(t, err)

	_, err = NewSession(c).Offer(context.Background())
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestSession_EmptyDomain(t *testing.T) {
	decl := Declaration{Name: "empty", Params: []ParameterDecl{intParam("A")}}
	model := Capabilities{"A": {Update: fixed(domain.NewRange(5, 1))}}
	c, err := NewComponent(decl, model, nil)
	require.NoError(t, err)

	_, err = NewSession(c).Offer(context.Background())
	require.Error(t, err)
	assert.True(t, IsDomainEmpty(err))
	assert.True(t, IsRecoverable(err))
}

func TestSession_DefaultsPriority(t *testing.T) {
	ctx := context.Background()
	decl := Declaration{Name: "defaults", Params: []ParameterDecl{
		{Name: "A", Type: domain.IntKind, Default: domain.Int(40)},
		{Name: "B", Type: domain.IntKind, Default: domain.Int(7)},
	}}
	model := Capabilities{
		"A": {Update: fixed(domain.NewRange(1, 100).WithStep(16))},
		"B": {Update: fixed(domain.NewRange(0, 10))},
	}
	c, err := NewComponent(decl, model, nil)
	require.NoError(t, err)

	s := NewSession(c, WithDefaults(map[string]domain.Value{"B": domain.Int(3)}))
	offer, err := s.Offer(ctx)
	require.NoError(t, err)
	// the declared default snaps to the step grid
	assert.Equal(t, domain.Int(48), offer.Default)

	commit(t, s, 32)
	offer, err = s.Offer(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Int(3), offer.Default)
}

func TestResolve_Interactive(t *testing.T) {
	ctx := context.Background()
	c := newToy(t, nil)
	p := &scriptedPrompter{answers: []Answer{
		{Action: AnswerValue, Value: domain.Int(4)}, // rejected
		{Action: AnswerValue, Value: domain.Int(1)},
		{Action: AnswerValue, Value: domain.Int(2)},
		{Action: AnswerBack},
		{Action: AnswerValue, Value: domain.Int(1)},
		{Action: AnswerAcceptDefault},
	}}

	cfg, err := Resolve(ctx, c, p)
	require.NoError(t, err)
	assert.Equal(t, "A=1 B=1 C=0", cfg.String())
	require.NoError(t, Verify(ctx, c, cfg))

	require.Len(t, p.verdicts, 6)
	require.NotNil(t, p.verdicts[1])
	assert.False(t, p.verdicts[1].Accepted)
	assert.Equal(t, domain.Int(1), p.verdicts[1].Suggestion)
	assert.Equal(t, "B", p.offers[4].Parameter)
	assert.Equal(t, domain.Int(2), p.offers[4].Default)
}

func TestResolve_Abort(t *testing.T) {
	_, err := Resolve(context.Background(), newToy(t, nil), &scriptedPrompter{})
	assert.ErrorIs(t, err, ErrAborted)
}

func TestResolve_EmptyDomainLetsOperatorGoBack(t *testing.T) {
	decl := Declaration{
		Name:   "dead_end",
		Params: []ParameterDecl{intParam("A"), intParam("B", "A")},
	}
	model := Capabilities{
		"A": {Update: fixed(domain.NewRange(0, 1))},
		"B": {Update: func(env *Env) (domain.Domain, error) {
			if env.Int("A") == 1 {
				return domain.NewEnum(), nil
			}
			return domain.NewRange(0, 2), nil
		}},
	}
	c, err := NewComponent(decl, model, nil)
	require.NoError(t, err)

	p := &scriptedPrompter{answers: []Answer{
		{Action: AnswerValue, Value: domain.Int(1)},
		{Action: AnswerBack},
		{Action: AnswerValue, Value: domain.Int(0)},
		{Action: AnswerAcceptDefault},
	}}
	cfg, err := Resolve(context.Background(), c, p)
	require.NoError(t, err)
	assert.Equal(t, "A=0 B=0", cfg.String())
	require.NotNil(t, p.verdicts[1])
	assert.True(t, IsDomainEmpty(p.verdicts[1].Err))
	assert.Nil(t, p.offers[1].Domain)
}

func TestResolveDefaults(t *testing.T) {
	ctx := context.Background()
	c := newToy(t, nil)

	t.Run("fills unset parameters", func(t *testing.T) {
		cfg, err := ResolveDefaults(ctx, c, map[string]domain.Value{"B": domain.Int(2)})
		require.NoError(t, err)
		assert.Equal(t, "A=0 B=2 C=0", cfg.String())
		assert.NoError(t, Verify(ctx, c, cfg))
	})

	t.Run("rejects out of domain value", func(t *testing.T) {
		_, err := ResolveDefaults(ctx, c, map[string]domain.Value{"B": domain.Int(7)})
		require.Error(t, err)
		assert.True(t, IsValidationFailed(err))
		var ee *EngineError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, "B", ee.Parameter)
		assert.Equal(t, "2", ee.Details["suggestion"])
	})

	t.Run("rejects declared default outside domain", func(t *testing.T) {
		_, err := ResolveDefaults(ctx, newWindowed(t, 100), nil)
		require.Error(t, err)
		assert.True(t, IsValidationFailed(err))
		var ee *EngineError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, "WINDOW", ee.Parameter)
		assert.Equal(t, "64", ee.Details["suggestion"])
	})

	t.Run("keeps declared default inside domain", func(t *testing.T) {
		cfg, err := ResolveDefaults(ctx, newWindowed(t, 32), nil)
		require.NoError(t, err)
		assert.Equal(t, "WINDOW=32", cfg.String())
	})

	t.Run("rejects unknown parameter", func(t *testing.T) {
		_, err := ResolveDefaults(ctx, c, map[string]domain.Value{"Z": domain.Int(0)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown parameter Z")
	})
}

// newWindowed builds one WINDOW parameter in [1,64] with the given declared
// default.
func newWindowed(t *testing.T, def int64) *Component {
	t.Helper()
	p := intParam("WINDOW")
	p.Default = domain.Int(def)
	c, err := NewComponent(
		Declaration{Name: "windowed", Params: []ParameterDecl{p}},
		Capabilities{"WINDOW": {Update: fixed(domain.NewRange(1, 64))}},
		nil)
	require.NoError(t, err)
	return c
}

func TestSession_OffersSnappedDeclaredDefault(t *testing.T) {
	s := NewSession(newWindowed(t, 100))
	offer, err := s.Offer(context.Background())
	require.NoError(t, err)
	require.True(t, offer.HasDefault)
	assert.Equal(t, domain.Int(64), offer.Default)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	c := newSSRCasc(t)

	good, err := NewConfiguration(c.Names(), domain.Ints(8, 8))
	require.NoError(t, err)
	assert.NoError(t, Verify(ctx, c, good))

	bad, err := NewConfiguration(c.Names(), domain.Ints(16, 8))
	require.NoError(t, err)
	err = Verify(ctx, c, bad)
	assert.True(t, IsValidationFailed(err))

	short, err := NewConfiguration([]string{"TP_SSR"}, domain.Ints(1))
	require.NoError(t, err)
	assert.Error(t, Verify(ctx, c, short))
}
