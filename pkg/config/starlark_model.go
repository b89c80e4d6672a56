package config

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/paramforge/paramforge/pkg/domain"
	"github.com/paramforge/paramforge/pkg/engine"
)

// DefaultMaxSteps bounds the Starlark steps of one capability call.
const DefaultMaxSteps = 1_000_000

// StarlarkModel is a capacity model written in Starlark. Every capability is
// bound once at load time; the module globals are frozen afterwards, so one
// model may be called from several goroutines.
//
// A script defines, for a parameter P:
//
//	def update_P(args):    # -> {"enum": [...]} or {"minimum": a, "maximum": b, ...}
//	def validate_P(args):  # -> {"is_valid": bool, "err_message": str}
//
// args maps earlier parameter names to their values; validators also see the
// candidate under its own name. The optional functions info_ports(args) and
// generate_graph(graphname, args) make the model an artifact emitter.
type StarlarkModel struct {
	filename   string
	globals    starlark.StringDict
	updaters   map[string]starlark.Callable
	validators map[string]starlark.Callable
	ports      starlark.Callable
	graph      starlark.Callable
	maxSteps   uint64
}

var (
	_ engine.CapacityModel   = (*StarlarkModel)(nil)
	_ engine.ArtifactEmitter = (*StarlarkModel)(nil)
)

// StarlarkOption configures a StarlarkModel.
type StarlarkOption func(*StarlarkModel)

// WithMaxSteps bounds the Starlark steps of one capability call.
func WithMaxSteps(n uint64) StarlarkOption {
	return func(m *StarlarkModel) {
		if n > 0 {
			m.maxSteps = n
		}
	}
}

// LoadStarlarkModel reads a script from path and binds it to the parameters of f.
func LoadStarlarkModel(path string, f *ComponentFile, opts ...StarlarkOption) (*StarlarkModel, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return NewStarlarkModel(path, string(src), f, opts...)
}

// NewStarlarkModel executes src and binds its functions to the parameters of f.
// Missing updaters, and validators named explicitly but not defined, are
// reported together.
func NewStarlarkModel(filename, src string, f *ComponentFile, opts ...StarlarkOption) (*StarlarkModel, error) {
	m := &StarlarkModel{
		filename:   filename,
		updaters:   make(map[string]starlark.Callable, len(f.Parameters)),
		validators: make(map[string]starlark.Callable, len(f.Parameters)),
		maxSteps:   DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(m)
	}

	thread := m.thread(filename)
	globals, err := starlark.ExecFile(thread, filename, src, predeclared())
	if err != nil {
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}
	globals.Freeze()
	m.globals = globals

	var errs ValidationErrors
	for _, p := range f.Parameters {
		name := "update_" + p.Name
		if p.Updater != nil && p.Updater.Function != "" {
			name = p.Updater.Function
		}
		fn, ok := m.callable(name)
		if !ok {
			errs = append(errs, ValidationError{File: filename, Path: p.Name, Message: fmt.Sprintf("domain updater %s is not defined", name), Severity: SeverityError})
		} else {
			m.updaters[p.Name] = fn
		}

		explicit := p.Validator != nil && p.Validator.Function != ""
		name = "validate_" + p.Name
		if explicit {
			name = p.Validator.Function
		}
		if fn, ok := m.callable(name); ok {
			m.validators[p.Name] = fn
		} else if explicit {
			errs = append(errs, ValidationError{File: filename, Path: p.Name, Message: fmt.Sprintf("validator %s is not defined", name), Severity: SeverityError})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	m.ports, _ = m.callable("info_ports")
	m.graph, _ = m.callable("generate_graph")
	return m, nil
}

func (m *StarlarkModel) callable(name string) (starlark.Callable, bool) {
	v, ok := m.globals[name]
	if !ok {
		return nil, false
	}
	fn, ok := v.(starlark.Callable)
	return fn, ok
}

func (m *StarlarkModel) thread(name string) *starlark.Thread {
	t := &starlark.Thread{
		Name:  name,
		Print: func(*starlark.Thread, string) {},
	}
	t.SetMaxExecutionSteps(m.maxSteps)
	return t
}

func (m *StarlarkModel) call(fn starlark.Callable, param, op string, args ...starlark.Value) (starlark.Value, error) {
	out, err := starlark.Call(m.thread(m.filename), fn, starlark.Tuple(args), nil)
	if err != nil {
		return nil, engine.NewPermanentError(fmt.Sprintf("%s failed", fn.Name()), err).
			WithCode(engine.ErrCodeCapability).
			WithParameter(param).
			WithOperation(op)
	}
	return out, nil
}

// HasEmitter reports whether the script defines generate_graph.
func (m *StarlarkModel) HasEmitter() bool {
	return m.graph != nil
}

// Updater implements engine.CapacityModel.
func (m *StarlarkModel) Updater(param string) (engine.UpdateFunc, bool) {
	fn, ok := m.updaters[param]
	if !ok {
		return nil, false
	}
	return func(env *engine.Env) (domain.Domain, error) {
		out, err := m.call(fn, param, "update", &envMapping{env: env})
		if err != nil {
			return nil, err
		}
		return toDomain(out)
	}, true
}

// Validator implements engine.CapacityModel.
func (m *StarlarkModel) Validator(param string) (engine.ValidateFunc, bool) {
	fn, ok := m.validators[param]
	if !ok {
		return nil, false
	}
	return func(v domain.Value, env *engine.Env) error {
		out, err := m.call(fn, param, "validate", &envMapping{env: env, self: param, value: v})
		if err != nil {
			return err
		}
		return toVerdict(out)
	}, true
}

// Emit implements engine.ArtifactEmitter.
func (m *StarlarkModel) Emit(_ context.Context, cfg *engine.Configuration, graphName string) (*engine.Artifact, error) {
	if m.graph == nil {
		return nil, fmt.Errorf("%s defines no generate_graph", m.filename)
	}
	args := &envMapping{env: engine.NewEnv("emit", cfg.Names(), cfg.Values())}

	text, err := m.call(m.graph, "", "emit", starlark.String(graphName), args)
	if err != nil {
		return nil, err
	}
	s, ok := starlark.AsString(text)
	if !ok {
		return nil, fmt.Errorf("generate_graph returned %s, want string", text.Type())
	}

	art := &engine.Artifact{Text: s}
	if hv, ok := m.globals["HEADER_FILE"]; ok {
		art.HeaderFile, _ = starlark.AsString(hv)
	}
	if sp, ok := m.globals["SEARCH_PATHS"]; ok {
		paths, err := fromStarlarkValue(sp)
		if err != nil {
			return nil, fmt.Errorf("SEARCH_PATHS: %w", err)
		}
		if list, ok := paths.([]interface{}); ok {
			for _, p := range list {
				art.SearchPaths = append(art.SearchPaths, fmt.Sprint(p))
			}
		}
	}

	if m.ports != nil {
		out, err := m.call(m.ports, "", "emit", args)
		if err != nil {
			return nil, err
		}
		if art.Ports, err = toPorts(out); err != nil {
			return nil, err
		}
	}
	return art, nil
}

// envMapping exposes an engine.Env to Starlark as a read-only mapping. Reads
// go through the Env, so out-of-order reads become dependency violations.
type envMapping struct {
	env   *engine.Env
	self  string
	value domain.Value
}

var _ starlark.Mapping = (*envMapping)(nil)

func (e *envMapping) String() string        { return fmt.Sprintf("args(%s)", e.env.Owner()) }
func (e *envMapping) Type() string          { return "args" }
func (e *envMapping) Freeze()               {}
func (e *envMapping) Truth() starlark.Bool  { return starlark.True }
func (e *envMapping) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: args") }

// Get implements starlark.Mapping.
func (e *envMapping) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("args key must be a string, got %s", k.Type())
	}
	if e.self != "" && name == e.self {
		return toStarlark(e.value), true, nil
	}
	v, found := e.env.Lookup(name)
	if !found {
		return nil, false, nil
	}
	return toStarlark(v), true, nil
}

func toStarlark(v domain.Value) starlark.Value {
	switch v.Kind() {
	case domain.IntKind:
		return starlark.MakeInt64(v.AsInt())
	case domain.StringKind:
		return starlark.String(v.AsString())
	case domain.VectorKind:
		elems := v.AsVector()
		list := make([]starlark.Value, len(elems))
		for i, x := range elems {
			list[i] = starlark.MakeInt64(x)
		}
		l := starlark.NewList(list)
		l.Freeze()
		return l
	default:
		return starlark.None
	}
}

// toDomain converts an updater result dict into a Domain.
func toDomain(out starlark.Value) (domain.Domain, error) {
	raw, err := fromStarlarkValue(out)
	if err != nil {
		return nil, err
	}
	d, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("updater returned %s, want dict", out.Type())
	}

	if enum, ok := d["enum"]; ok {
		vals, err := toValues(enum)
		if err != nil {
			return nil, fmt.Errorf("enum: %w", err)
		}
		if pp, ok := d["enum_pingpong"]; ok {
			ppVals, err := toValues(pp)
			if err != nil {
				return nil, fmt.Errorf("enum_pingpong: %w", err)
			}
			return domain.NewEnumWithPingPong(vals, ppVals), nil
		}
		return domain.NewEnum(vals...), nil
	}

	if n, ok := d["length"]; ok {
		length, err := toInt(n)
		if err != nil {
			return nil, fmt.Errorf("length: %w", err)
		}
		elem, _ := d["element_type"].(string)
		return domain.NewVectorLength(length, elem), nil
	}

	if _, ok := d["minimum"]; !ok {
		return nil, fmt.Errorf("updater result needs enum, length or minimum/maximum, got keys %v", sortedKeys(d))
	}
	lo, err := toInt(d["minimum"])
	if err != nil {
		return nil, fmt.Errorf("minimum: %w", err)
	}
	hi, err := toInt(d["maximum"])
	if err != nil {
		return nil, fmt.Errorf("maximum: %w", err)
	}
	r := domain.NewRange(lo, hi)
	if pp, ok := d["maximum_pingpong_buf"]; ok && pp != nil {
		ppMax, err := toInt(pp)
		if err != nil {
			return nil, fmt.Errorf("maximum_pingpong_buf: %w", err)
		}
		r = domain.NewRangeWithPingPong(lo, hi, ppMax)
	}
	if g, ok := d["granularity"]; ok && g != nil {
		step, err := toInt(g)
		if err != nil {
			return nil, fmt.Errorf("granularity: %w", err)
		}
		r = r.WithStep(step)
	}
	return r, nil
}

// toVerdict converts a validator result dict into nil or a rejection.
func toVerdict(out starlark.Value) error {
	raw, err := fromStarlarkValue(out)
	if err != nil {
		return err
	}
	d, ok := raw.(map[string]interface{})
	if !ok {
		return fmt.Errorf("validator returned %s, want dict", out.Type())
	}
	if valid, _ := d["is_valid"].(bool); valid {
		return nil
	}
	msg, _ := d["err_message"].(string)
	if msg == "" {
		msg = "rejected by validator"
	}
	return fmt.Errorf("%s", msg)
}

// toPorts converts an info_ports result into port descriptors.
func toPorts(out starlark.Value) ([]engine.Port, error) {
	raw, err := fromStarlarkValue(out)
	if err != nil {
		return nil, err
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("info_ports returned %s, want list", out.Type())
	}
	ports := make([]engine.Port, 0, len(list))
	for i, item := range list {
		d, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("port %d is not a dict", i)
		}
		p := engine.Port{}
		p.Name, _ = d["name"].(string)
		dir, _ := d["direction"].(string)
		p.Direction = engine.PortDirection(dir)
		kind, _ := d["kind"].(string)
		p.Kind = engine.PortKind(kind)
		p.DataType, _ = d["data_type"].(string)
		if p.Count, err = toInt(d["count"]); err != nil {
			return nil, fmt.Errorf("port %s count: %w", p.Name, err)
		}
		if m, ok := d["margin"]; ok {
			if p.Margin, err = toInt(m); err != nil {
				return nil, fmt.Errorf("port %s margin: %w", p.Name, err)
			}
		}
		if err := p.Kind.Validate(); err != nil {
			return nil, fmt.Errorf("port %s: %w", p.Name, err)
		}
		ports = append(ports, p)
	}
	return ports, nil
}

func toValues(x interface{}) ([]domain.Value, error) {
	list, ok := x.([]interface{})
	if !ok {
		return nil, fmt.Errorf("want list, got %T", x)
	}
	vals := make([]domain.Value, 0, len(list))
	for _, item := range list {
		v, err := domain.FromInterface(item)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func toInt(x interface{}) (int64, error) {
	switch n := x.(type) {
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("non-integral number %v", n)
		}
		return int64(n), nil
	case nil:
		return 0, fmt.Errorf("missing")
	default:
		return 0, fmt.Errorf("want number, got %T", x)
	}
}

func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"struct":        starlarkstruct.Default,
		"divisors":      starlark.NewBuiltin("divisors", builtinDivisors),
		"ceil_multiple": starlark.NewBuiltin("ceil_multiple", builtinCeilMultiple),
	}
}

// builtinDivisors implements divisors(n, lo, hi): the divisors of n inside [lo, hi].
func builtinDivisors(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var n, lo, hi int64
	lo, hi = 1, -1
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n", &n, "lo?", &lo, "hi?", &hi); err != nil {
		return nil, err
	}
	if hi < 0 {
		hi = n
	}
	vals := domain.Divisors(n, lo, hi)
	list := make([]starlark.Value, len(vals))
	for i, v := range vals {
		list[i] = starlark.MakeInt64(v.AsInt())
	}
	return starlark.NewList(list), nil
}

// builtinCeilMultiple implements ceil_multiple(x, m): the smallest multiple of m not below x.
func builtinCeilMultiple(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x, m int64
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x", &x, "m", &m); err != nil {
		return nil, err
	}
	if m <= 0 {
		return nil, fmt.Errorf("%s: multiple must be positive", b.Name())
	}
	return starlark.MakeInt64((x + m - 1) / m * m), nil
}

// sortedKeys returns the keys of a decoded dict in order, for stable errors.
func sortedKeys(d map[string]interface{}) []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
