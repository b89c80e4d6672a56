package engine

import (
	"fmt"

	"github.com/paramforge/paramforge/pkg/domain"
)

// Env is the read-only view of the resolved prefix handed to one capability
// call. Only parameters strictly earlier than the owner are visible, further
// restricted to the declared args when the declaration lists them.
//
// Reading anything else does not panic: the accessor returns the zero value
// and the Env records a dependency order violation, which the engine reports
// once the call returns. Callers must not retain an Env after the call.
type Env struct {
	owner   string
	op      string
	values  map[string]domain.Value
	order   []string
	err     error
	touched []string
}

// newEnv builds the view for spec over the resolved prefix values.
// prefix[i] holds the value of c.Params[i] for i < spec.Index.
func newEnv(c *Component, spec *ParameterSpec, op string, prefix []domain.Value) *Env {
	var args []string
	switch op {
	case opUpdate:
		args = spec.UpdaterArgs
	case opValidate:
		args = spec.ValidatorArgs
	default:
		args = nil
	}

	env := &Env{
		owner:  spec.Name,
		op:     op,
		values: make(map[string]domain.Value, spec.Index),
	}

	var allowed map[string]struct{}
	if args != nil {
		allowed = make(map[string]struct{}, len(args))
		for _, a := range args {
			allowed[a] = struct{}{}
		}
	}

	for i := 0; i < spec.Index && i < len(prefix); i++ {
		name := c.Params[i].Name
		if allowed != nil {
			if _, ok := allowed[name]; !ok {
				continue
			}
		}
		env.values[name] = prefix[i]
		env.order = append(env.order, name)
	}
	return env
}

// NewEnv builds a standalone view for owner over names and values, for
// exercising a capability outside a session.
func NewEnv(owner string, names []string, values []domain.Value) *Env {
	env := &Env{
		owner:  owner,
		op:     "standalone",
		values: make(map[string]domain.Value, len(names)),
	}
	for i, n := range names {
		if i >= len(values) {
			break
		}
		env.values[n] = values[i]
		env.order = append(env.order, n)
	}
	return env
}

// Owner returns the parameter whose capability is running.
func (e *Env) Owner() string { return e.owner }

// Names returns the readable parameter names in declared order.
func (e *Env) Names() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Lookup returns the value of an earlier parameter. A miss records a
// violation.
func (e *Env) Lookup(name string) (domain.Value, bool) {
	v, ok := e.values[name]
	if !ok {
		e.violate(name)
		return domain.Value{}, false
	}
	e.touched = append(e.touched, name)
	return v, true
}

// Value returns the value of an earlier parameter, or the zero Value after
// recording a violation.
func (e *Env) Value(name string) domain.Value {
	v, _ := e.Lookup(name)
	return v
}

// Int returns an earlier integer parameter.
func (e *Env) Int(name string) int64 {
	v, ok := e.Lookup(name)
	if ok && v.Kind() != domain.IntKind {
		e.fail(fmt.Errorf("%s read %s as int, but it holds a %s", e.owner, name, v.Kind()))
	}
	return v.AsInt()
}

// String returns an earlier string parameter.
func (e *Env) String(name string) string {
	v, ok := e.Lookup(name)
	if ok && v.Kind() != domain.StringKind {
		e.fail(fmt.Errorf("%s read %s as string, but it holds a %s", e.owner, name, v.Kind()))
	}
	return v.AsString()
}

// Vector returns an earlier vector parameter.
func (e *Env) Vector(name string) []int64 {
	v, ok := e.Lookup(name)
	if ok && v.Kind() != domain.VectorKind {
		e.fail(fmt.Errorf("%s read %s as vector, but it holds a %s", e.owner, name, v.Kind()))
	}
	return v.AsVector()
}

// Reads returns the parameters successfully read so far, in read order.
func (e *Env) Reads() []string {
	out := make([]string, len(e.touched))
	copy(out, e.touched)
	return out
}

// Snapshot returns the readable environment as name -> text, for diagnostics.
func (e *Env) Snapshot() map[string]string {
	out := make(map[string]string, len(e.values))
	for k, v := range e.values {
		out[k] = v.String()
	}
	return out
}

// Err returns the first violation or type mismatch recorded during the call.
func (e *Env) Err() error { return e.err }

func (e *Env) violate(name string) {
	if e.err != nil {
		return
	}
	e.err = NewOrderViolationError(e.owner, name).WithOperation(e.op)
}

func (e *Env) fail(err error) {
	if e.err != nil {
		return
	}
	e.err = NewPermanentError("capability read a parameter with the wrong type", err).
		WithCode(ErrCodeCapability).
		WithParameter(e.owner).
		WithOperation(e.op)
}
