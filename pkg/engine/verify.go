package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/paramforge/paramforge/pkg/domain"
)

// Verify replays every parameter's updater and validator, in declared order,
// against the final assignment. A configuration is legal iff Verify succeeds.
func Verify(ctx context.Context, c *Component, cfg *Configuration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	values, err := alignConfiguration(c, cfg)
	if err != nil {
		return err
	}
	return c.verifyValues(values, nil)
}

// verifyValues checks a full assignment in one shot, stopping at the first
// failing parameter. When narrow is set, each value must also lie in the
// domain narrow derives from the general one.
func (c *Component) verifyValues(values []domain.Value, narrow func(*ParameterSpec, domain.Domain) domain.Domain) error {
	for i := range c.Params {
		spec := &c.Params[i]
		d, err := c.updateDomain(spec, values[:i])
		if err != nil {
			return err
		}
		if narrow != nil {
			d = narrow(spec, d)
		}
		if err := c.validateValue(spec, values[i], d, values[:i]); err != nil {
			return err
		}
	}
	return nil
}

// alignConfiguration returns the values of cfg in the declared order of c.
func alignConfiguration(c *Component, cfg *Configuration) ([]domain.Value, error) {
	if cfg == nil {
		return nil, NewPermanentError("configuration is nil", nil).WithCode(ErrCodeIncomplete)
	}
	if cfg.Len() != len(c.Params) {
		return nil, NewPermanentError(
			fmt.Sprintf("configuration assigns %d of %d parameters", cfg.Len(), len(c.Params)), nil).
			WithCode(ErrCodeIncomplete).
			WithComponent(c.Name)
	}
	values := make([]domain.Value, len(c.Params))
	for i, p := range c.Params {
		v, ok := cfg.Get(p.Name)
		if !ok {
			return nil, NewPermanentError(fmt.Sprintf("configuration does not assign %s", p.Name), nil).
				WithCode(ErrCodeIncomplete).
				WithComponent(c.Name).
				WithParameter(p.Name)
		}
		values[i] = v
	}
	return values, nil
}

// EmitVerified verifies cfg and hands it to the component's emitter.
func EmitVerified(ctx context.Context, c *Component, cfg *Configuration, graphName string) (art *Artifact, err error) {
	ctx, span := startSpan(ctx, "engine.Emit",
		attribute.String("component", c.Name),
		attribute.String("graph_name", graphName))
	defer func() { endSpan(span, err) }()

	if c.Emitter == nil {
		return nil, NewPermanentError(fmt.Sprintf("component %s has no artifact emitter", c.Name), nil).
			WithCode(ErrCodeNotFound).
			WithComponent(c.Name).
			WithOperation(opEmit)
	}
	if err := Verify(ctx, c, cfg); err != nil {
		return nil, err
	}
	art, err = c.Emitter.Emit(ctx, cfg, graphName)
	if err != nil {
		return nil, NewPermanentError("artifact emission failed", err).
			WithCode(ErrCodeCapability).
			WithComponent(c.Name).
			WithOperation(opEmit)
	}
	return art, nil
}

// CheckCanary resolves c from its defaults alone and replays Verify on the
// result. A component whose defaults do not resolve cannot be offered to an
// operator without an immediate rejection.
func CheckCanary(ctx context.Context, c *Component, defaults map[string]domain.Value) (*Configuration, error) {
	cfg, err := ResolveDefaults(ctx, c, defaults)
	if err != nil {
		return nil, err
	}
	if err := Verify(ctx, c, cfg); err != nil {
		return nil, NewPermanentError("resolved defaults do not verify", err).
			WithCode(ErrCodeInternal).
			WithComponent(c.Name)
	}
	return cfg, nil
}
