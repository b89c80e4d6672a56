package engine

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/paramforge/paramforge/pkg/domain"
)

const tracerName = "github.com/paramforge/paramforge/pkg/engine"

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Resolve runs an interactive session, asking p for every candidate.
// Rejections and empty domains are shown to the operator, who may choose
// again, go back or abort. Dependency order violations and failing
// capabilities end the session with an error.
func Resolve(ctx context.Context, c *Component, p Prompter, opts ...SessionOption) (cfg *Configuration, err error) {
	ctx, span := startSpan(ctx, "engine.Resolve", attribute.String("component", c.Name))
	defer func() { endSpan(span, err) }()

	s := NewSession(c, opts...)
	var verdict *Verdict

	for !s.Done() {
		offer, oerr := s.Offer(ctx)
		if oerr != nil {
			if !IsDomainEmpty(oerr) {
				return nil, oerr
			}
			offer = &Offer{
				Parameter: s.Focus().Spec.Name,
				Index:     s.FocusIndex(),
				Message:   "no legal values remain; go back or abort",
			}
			verdict = &Verdict{Reason: reason(oerr), Err: oerr}
		}

		ans, aerr := p.Ask(ctx, offer, verdict)
		if aerr != nil {
			return nil, aerr
		}

		var v domain.Value
		switch ans.Action {
		case AnswerAbort:
			return nil, ErrAborted
		case AnswerBack:
			verdict = nil
			if berr := s.Back(); berr != nil {
				verdict = &Verdict{Reason: reason(berr), Err: berr}
			}
			continue
		case AnswerAcceptDefault:
			if !offer.HasDefault {
				verdict = &Verdict{Reason: "no default is available; enter a value"}
				continue
			}
			v = offer.Default
		case AnswerValue:
			v = ans.Value
		default:
			return nil, fmt.Errorf("unknown answer action %d", ans.Action)
		}

		if offer.Domain == nil {
			continue
		}

		verdict, err = s.Submit(ctx, v)
		if err != nil {
			return nil, err
		}
		if verdict.Accepted {
			verdict = nil
		}
	}

	cfg, err = s.Configuration()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("configuration", cfg.String()))
	return cfg, nil
}

// ResolveDefaults resolves c without an operator. Each parameter takes its
// value from defaults when present and from the offered default otherwise.
// Any rejection fails the whole configuration; values are never coerced.
func ResolveDefaults(ctx context.Context, c *Component, defaults map[string]domain.Value, opts ...SessionOption) (cfg *Configuration, err error) {
	ctx, span := startSpan(ctx, "engine.ResolveDefaults", attribute.String("component", c.Name))
	defer func() { endSpan(span, err) }()

	for name := range defaults {
		if _, ok := c.Param(name); !ok {
			return nil, NewPermanentError(fmt.Sprintf("unknown parameter %s", name), nil).
				WithCode(ErrCodeNotFound).
				WithComponent(c.Name)
		}
	}

	s := NewSession(c, append([]SessionOption{WithDefaults(defaults)}, opts...)...)
	for !s.Done() {
		offer, oerr := s.Offer(ctx)
		if oerr != nil {
			return nil, oerr
		}

		v, supplied := defaults[offer.Parameter]
		if !supplied {
			// a declared default is submitted as written, never snapped
			if spec, ok := c.Param(offer.Parameter); ok && !spec.Default.IsZero() {
				v = spec.Default
				supplied = true
			}
		}
		if !supplied {
			if !offer.HasDefault {
				return nil, NewDomainEmptyError(offer.Parameter)
			}
			v = offer.Default
		}

		verdict, serr := s.Submit(ctx, v)
		if serr != nil {
			return nil, serr
		}
		if !verdict.Accepted {
			var verr *EngineError
			if !errors.As(verdict.Err, &verr) {
				verr = NewValidationError(verdict.Reason, verdict.Err)
			}
			verr.WithParameter(offer.Parameter).WithComponent(c.Name)
			if verdict.HasSuggestion {
				verr.WithDetail("suggestion", verdict.Suggestion.String())
			}
			return nil, verr
		}
	}
	return s.Configuration()
}
