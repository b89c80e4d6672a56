package engine

import (
	"errors"
	"fmt"

	"github.com/paramforge/paramforge/pkg/domain"
)

const (
	opUpdate   = "update"
	opValidate = "validate"
	opEmit     = "emit"
)

// recoverCapability converts a panic in plugin code into a permanent error.
func recoverCapability(param, op string, err *error) {
	if r := recover(); r != nil {
		*err = NewPermanentError(fmt.Sprintf("capability panicked: %v", r), nil).
			WithCode(ErrCodeCapability).
			WithParameter(param).
			WithOperation(op)
	}
}

// updateDomain runs the updater of spec over the resolved prefix.
// The result is never nil on success and never empty.
func (c *Component) updateDomain(spec *ParameterSpec, prefix []domain.Value) (d domain.Domain, err error) {
	if spec.Update == nil {
		return nil, NewPermanentError("parameter has no domain updater", nil).
			WithCode(ErrCodeDeclaration).
			WithComponent(c.Name).
			WithParameter(spec.Name)
	}

	env := newEnv(c, spec, opUpdate, prefix)
	defer recoverCapability(spec.Name, opUpdate, &err)

	d, uerr := spec.Update(env)
	if verr := env.Err(); verr != nil {
		return nil, verr
	}
	if uerr != nil {
		return nil, classifyCapabilityError(uerr, spec.Name, opUpdate)
	}
	if d == nil {
		return nil, NewPermanentError("domain updater returned no domain", nil).
			WithCode(ErrCodeCapability).
			WithParameter(spec.Name).
			WithOperation(opUpdate)
	}
	if d.Empty() {
		return nil, NewDomainEmptyError(spec.Name).WithDetail("domain", d.Describe())
	}
	return d, nil
}

// validateValue checks v against the general domain d, then runs the
// validator of spec unless validation is skipped.
func (c *Component) validateValue(spec *ParameterSpec, v domain.Value, d domain.Domain, prefix []domain.Value) (err error) {
	if v.Kind() != spec.Type {
		return NewValidationError(
			fmt.Sprintf("%s expects a %s value, got %s", spec.Name, spec.Type, v.Kind()), nil).
			WithParameter(spec.Name)
	}
	if !d.Contains(v) {
		verr := NewValidationError(
			fmt.Sprintf("%s=%s is outside the legal %s", spec.Name, v, d.Describe()), nil).
			WithParameter(spec.Name)
		if s, ok := d.NearestLegal(v); ok {
			verr.WithDetail("suggestion", s.String())
		}
		return verr
	}
	if spec.SkipValidation || spec.Validate == nil {
		return nil
	}

	env := newEnv(c, spec, opValidate, prefix)
	defer recoverCapability(spec.Name, opValidate, &err)

	rerr := spec.Validate(v, env)
	if verr := env.Err(); verr != nil {
		return verr
	}
	if rerr != nil {
		var ee *EngineError
		if errors.As(rerr, &ee) {
			return rerr
		}
		return NewValidationError(rerr.Error(), nil).WithParameter(spec.Name)
	}
	return nil
}

func classifyCapabilityError(err error, param, op string) error {
	var ee *EngineError
	if errors.As(err, &ee) {
		if ee.Parameter == "" {
			ee.Parameter = param
		}
		return err
	}
	return NewPermanentError("capability failed", err).
		WithCode(ErrCodeCapability).
		WithParameter(param).
		WithOperation(op)
}
