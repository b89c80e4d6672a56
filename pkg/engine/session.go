package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/paramforge/paramforge/pkg/domain"
)

const phaseSession = "session"

// Session drives one topologically ordered pass over the parameters of a
// component and produces a single Configuration. Exactly one parameter is
// focused until every parameter is committed.
//
// A Session is not safe for concurrent use.
type Session struct {
	id        string
	component *Component
	states    []ParameterState
	focus     int
	defaults  map[string]domain.Value
	logger    zerolog.Logger
	metrics   MetricsRecorder
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDefaults supplies externally known values used as offered defaults.
func WithDefaults(defaults map[string]domain.Value) SessionOption {
	return func(s *Session) {
		for k, v := range defaults {
			s.defaults[k] = v
		}
	}
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// WithSessionMetrics sets the metrics recorder.
func WithSessionMetrics(m MetricsRecorder) SessionOption {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewSession creates a session focused on the first parameter of c.
func NewSession(c *Component, opts ...SessionOption) *Session {
	s := &Session{
		id:        uuid.New().String(),
		component: c,
		states:    make([]ParameterState, len(c.Params)),
		defaults:  make(map[string]domain.Value),
		logger:    zerolog.Nop(),
		metrics:   nopRecorder{},
	}
	for i := range c.Params {
		s.states[i] = ParameterState{Spec: &c.Params[i]}
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("session_id", s.id).Str("component", c.Name).Logger()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Component returns the component being resolved.
func (s *Session) Component() *Component { return s.component }

// FocusIndex returns the index of the focused parameter, or the parameter
// count once the session is done.
func (s *Session) FocusIndex() int { return s.focus }

// Focus returns the state of the focused parameter, nil once done.
func (s *Session) Focus() *ParameterState {
	if s.Done() {
		return nil
	}
	return &s.states[s.focus]
}

// Done reports whether every parameter is committed.
func (s *Session) Done() bool { return s.focus >= len(s.states) }

// States returns a copy of every parameter state.
func (s *Session) States() []ParameterState {
	out := make([]ParameterState, len(s.states))
	copy(out, s.states)
	return out
}

// prefix returns the committed values before the focus.
func (s *Session) prefix() []domain.Value {
	out := make([]domain.Value, s.focus)
	for i := 0; i < s.focus; i++ {
		out[i] = s.states[i].Value
	}
	return out
}

// Offer recomputes the domain of the focused parameter from the committed
// prefix and proposes a default. Domains are never reused across offers.
func (s *Session) Offer(ctx context.Context) (*Offer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Done() {
		return nil, NewPermanentError("session is complete", nil).WithCode(ErrCodeInternal)
	}

	st := &s.states[s.focus]
	d, err := s.component.updateDomain(st.Spec, s.prefix())
	if err != nil {
		st.Domain = nil
		st.Valid = false
		st.Message = err.Error()
		s.logUpdateFailure(st.Spec.Name, err)
		return nil, err
	}
	st.Domain = d
	st.Stale = false

	offer := &Offer{
		Parameter: st.Spec.Name,
		Index:     s.focus,
		Domain:    d,
		Message:   d.Describe(),
	}
	offer.Default, offer.HasDefault = s.defaultFor(st, d)
	return offer, nil
}

// defaultFor picks the candidate offered for st: the value it held before a
// backtrack, an external default, the declared default, then the first legal
// value. Out-of-domain candidates are replaced by their nearest legal value or
// skipped.
func (s *Session) defaultFor(st *ParameterState, d domain.Domain) (domain.Value, bool) {
	if !st.Value.IsZero() && d.Contains(st.Value) {
		return st.Value, true
	}
	for _, cand := range []domain.Value{s.defaults[st.Spec.Name], st.Spec.Default} {
		if cand.IsZero() {
			continue
		}
		if d.Contains(cand) {
			return cand, true
		}
		if near, ok := d.NearestLegal(cand); ok {
			return near, true
		}
	}
	if d.Len() > 0 {
		return d.At(0), true
	}
	return domain.Value{}, false
}

// Submit validates v for the focused parameter. An accepted value is committed
// and the focus advances. A rejection is returned as a Verdict carrying the
// reason and the nearest legal suggestion; the value is never coerced.
// Errors other than rejections (dependency order violations, failing
// capabilities) are returned as errors.
func (s *Session) Submit(ctx context.Context, v domain.Value) (*Verdict, error) {
	if s.Done() {
		return nil, NewPermanentError("session is complete", nil).WithCode(ErrCodeInternal)
	}
	st := &s.states[s.focus]
	if st.Domain == nil || st.Stale {
		if _, err := s.Offer(ctx); err != nil {
			return nil, err
		}
	}

	err := s.component.validateValue(st.Spec, v, st.Domain, s.prefix())
	if err != nil {
		if !IsValidationFailed(err) {
			st.Valid = false
			st.Message = err.Error()
			s.metrics.RecordOutcome(s.component.Name, phaseSession, OutcomeViolation)
			s.logger.Error().Err(err).
				Str("parameter", st.Spec.Name).
				Interface("environment", s.environment()).
				Msg("capability failed during validation")
			return nil, err
		}

		st.Valid = false
		st.Message = reason(err)
		verdict := &Verdict{Reason: st.Message, Err: err}
		verdict.Suggestion, verdict.HasSuggestion = st.Domain.NearestLegal(v)
		s.metrics.RecordOutcome(s.component.Name, phaseSession, OutcomePruned)
		s.logger.Debug().
			Str("parameter", st.Spec.Name).
			Str("value", v.String()).
			Str("reason", st.Message).
			Msg("candidate rejected")
		return verdict, nil
	}

	st.Value = v
	st.Committed = true
	st.Valid = true
	st.Message = ""
	s.metrics.RecordOutcome(s.component.Name, phaseSession, OutcomeAccepted)
	s.logger.Debug().Str("parameter", st.Spec.Name).Str("value", v.String()).Msg("committed")

	s.focus++
	if !s.Done() {
		s.markStale(s.focus)
	}
	return &Verdict{Accepted: true}, nil
}

// Back moves the focus to the previous parameter. The focused parameter loses
// its tentative value's committed status, the previous parameter is reopened
// with its committed value as the next default, and every downstream domain is
// marked stale so it is recomputed on the next forward pass.
func (s *Session) Back() error {
	if s.focus == 0 {
		return NewValidationError("already at the first parameter", nil)
	}
	if !s.Done() {
		s.states[s.focus].Committed = false
	}
	s.focus--
	s.states[s.focus].Committed = false
	s.markStale(s.focus + 1)
	s.logger.Debug().Str("parameter", s.states[s.focus].Spec.Name).Msg("backtracked")
	return nil
}

func (s *Session) markStale(from int) {
	for j := from; j < len(s.states); j++ {
		s.states[j].Committed = false
		s.states[j].Stale = true
	}
}

// Configuration returns the resolved configuration once the session is done.
func (s *Session) Configuration() (*Configuration, error) {
	if !s.Done() {
		return nil, NewPermanentError(
			fmt.Sprintf("parameter %s is not resolved", s.states[s.focus].Spec.Name), nil).
			WithCode(ErrCodeIncomplete).
			WithComponent(s.component.Name)
	}
	names := make([]string, len(s.states))
	values := make([]domain.Value, len(s.states))
	for i, st := range s.states {
		names[i] = st.Spec.Name
		values[i] = st.Value
	}
	return NewConfiguration(names, values)
}

func (s *Session) environment() map[string]string {
	env := make(map[string]string, s.focus)
	for i := 0; i < s.focus; i++ {
		env[s.states[i].Spec.Name] = s.states[i].Value.String()
	}
	return env
}

func (s *Session) logUpdateFailure(param string, err error) {
	ev := s.logger.Warn()
	if IsOrderViolation(err) || IsPermanent(err) {
		ev = s.logger.Error()
		s.metrics.RecordOutcome(s.component.Name, phaseSession, OutcomeViolation)
	}
	ev.Err(err).
		Str("parameter", param).
		Interface("environment", s.environment()).
		Msg("domain update failed")
}

// reason extracts the operator-facing message of a rejection.
func reason(err error) string {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Message
	}
	return err.Error()
}
