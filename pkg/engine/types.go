package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/paramforge/paramforge/pkg/domain"
)

// UpdateFunc computes the legal domain of one parameter from the parameters
// resolved before it. It must be pure: the same environment yields the same domain.
type UpdateFunc func(env *Env) (domain.Domain, error)

// ValidateFunc checks side constraints of a candidate beyond domain membership.
// A returned error is a rejection and its message is shown to the operator.
type ValidateFunc func(v domain.Value, env *Env) error

// ParameterSpec describes one declared parameter of a component. Specs are
// built once at registration and never mutated afterwards.
type ParameterSpec struct {
	// Name is the parameter identifier, usually the template parameter name.
	Name string `json:"name"`

	// Type is the declared value kind.
	Type domain.ValueKind `json:"type"`

	// Index is the position in the declared topological order.
	Index int `json:"index"`

	// Description is free text shown when listing parameters.
	Description string `json:"description,omitempty"`

	// ElementType is the datatype tag of vector elements, if any.
	ElementType string `json:"element_type,omitempty"`

	// UpdaterArgs restricts what the updater may read. Nil means every earlier parameter.
	UpdaterArgs []string `json:"updater_args,omitempty"`

	// ValidatorArgs restricts what the validator may read. Nil means every earlier parameter.
	ValidatorArgs []string `json:"validator_args,omitempty"`

	// SkipValidation bypasses the validator for bulk parameters; domain
	// membership is still enforced.
	SkipValidation bool `json:"skip_validation,omitempty"`

	// Default is the declared default candidate; the zero Value means none.
	Default domain.Value `json:"-"`

	// Update is the bound domain-updater capability.
	Update UpdateFunc `json:"-"`

	// Validate is the bound validator capability, nil for membership-only checks.
	Validate ValidateFunc `json:"-"`
}

// ParameterState is the per-session or per-attempt runtime record of a parameter.
type ParameterState struct {
	// Spec is the immutable declaration.
	Spec *ParameterSpec `json:"-"`

	// Domain is the most recently computed domain; nil until first offered.
	Domain domain.Domain `json:"-"`

	// Value is the tentative or committed value.
	Value domain.Value `json:"-"`

	// Committed reports whether Value has been accepted and written to the environment.
	Committed bool `json:"committed"`

	// Valid reports whether the last candidate passed validation.
	Valid bool `json:"valid"`

	// Stale marks a domain computed under an ancestor assignment that has since changed.
	Stale bool `json:"stale"`

	// Message is the last diagnostic for this parameter.
	Message string `json:"message,omitempty"`
}

// Component is a registered configurable block with its bound capabilities.
type Component struct {
	// Name identifies the component on the command line.
	Name string

	// Description is a one-line summary.
	Description string

	// Params lists the parameters in declared topological order.
	Params []ParameterSpec

	// Emitter renders resolved configurations; nil when the component has none.
	Emitter ArtifactEmitter

	index map[string]int
}

// Param returns the spec of the named parameter.
func (c *Component) Param(name string) (*ParameterSpec, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return &c.Params[i], true
}

// Names returns the parameter names in declared order.
func (c *Component) Names() []string {
	names := make([]string, len(c.Params))
	for i := range c.Params {
		names[i] = c.Params[i].Name
	}
	return names
}

// Configuration is an immutable, complete assignment of values to the
// parameters of a component, in declared order.
type Configuration struct {
	names  []string
	values []domain.Value
	index  map[string]int
}

// NewConfiguration builds a configuration from parallel name and value slices.
func NewConfiguration(names []string, values []domain.Value) (*Configuration, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("configuration has %d names and %d values", len(names), len(values))
	}
	cfg := &Configuration{
		names:  make([]string, len(names)),
		values: make([]domain.Value, len(values)),
		index:  make(map[string]int, len(names)),
	}
	copy(cfg.names, names)
	copy(cfg.values, values)
	for i, n := range names {
		if _, dup := cfg.index[n]; dup {
			return nil, fmt.Errorf("configuration names %s twice", n)
		}
		cfg.index[n] = i
	}
	return cfg, nil
}

// Len returns the number of assigned parameters.
func (c *Configuration) Len() int { return len(c.names) }

// Get returns the value assigned to name.
func (c *Configuration) Get(name string) (domain.Value, bool) {
	i, ok := c.index[name]
	if !ok {
		return domain.Value{}, false
	}
	return c.values[i], true
}

// Names returns the parameter names in declared order.
func (c *Configuration) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Values returns the values in declared order.
func (c *Configuration) Values() []domain.Value {
	out := make([]domain.Value, len(c.values))
	copy(out, c.values)
	return out
}

// Map returns the assignment with encoder-friendly payloads.
func (c *Configuration) Map() map[string]any {
	m := make(map[string]any, len(c.names))
	for i, n := range c.names {
		m[n] = c.values[i].Interface()
	}
	return m
}

// Row returns the values formatted as text, one column per parameter.
func (c *Configuration) Row() []string {
	row := make([]string, len(c.values))
	for i, v := range c.values {
		row[i] = v.String()
	}
	return row
}

// Key returns a string that identifies the assignment; equal configurations
// share a key.
func (c *Configuration) Key() string {
	var sb strings.Builder
	for i, v := range c.values {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(v.Key())
	}
	return sb.String()
}

// String formats the configuration as NAME=value pairs.
func (c *Configuration) String() string {
	parts := make([]string, len(c.names))
	for i, n := range c.names {
		parts[i] = n + "=" + c.values[i].String()
	}
	return strings.Join(parts, " ")
}

// Port describes one connection point of an emitted artifact.
type Port struct {
	// Name is the port name, indexed for port arrays (in[0]).
	Name string `json:"name" yaml:"name"`

	// Direction is in or out.
	Direction PortDirection `json:"direction" yaml:"direction"`

	// Kind is block-buffered, stream or run-time parameter.
	Kind PortKind `json:"kind" yaml:"kind"`

	// DataType is the element datatype tag.
	DataType string `json:"data_type" yaml:"data_type"`

	// Count is the number of elements per block.
	Count int64 `json:"count" yaml:"count"`

	// Margin is the contiguous margin in bytes.
	Margin int64 `json:"margin" yaml:"margin"`
}

// Artifact is the output of an ArtifactEmitter.
type Artifact struct {
	// Text is the generated source. The core treats it as opaque.
	Text string `json:"-" yaml:"-"`

	// HeaderFile is the header the generated source includes.
	HeaderFile string `json:"header_file,omitempty" yaml:"header_file,omitempty"`

	// SearchPaths are include directories needed to compile Text.
	SearchPaths []string `json:"search_paths,omitempty" yaml:"search_paths,omitempty"`

	// Ports lists the connection points.
	Ports []Port `json:"ports" yaml:"ports"`
}

// Offer is what the session presents for the focused parameter.
type Offer struct {
	Parameter  string
	Index      int
	Domain     domain.Domain
	Default    domain.Value
	HasDefault bool
	Message    string
}

// Verdict is the result of submitting a candidate.
type Verdict struct {
	Accepted      bool
	Reason        string
	Suggestion    domain.Value
	HasSuggestion bool
	Err           error
}

// ExploreStats counts what happened during an exploration.
type ExploreStats struct {
	Leaves         int64         `json:"leaves"`
	Pruned         int64         `json:"pruned"`
	Abandoned      int64         `json:"abandoned"`
	Violations     int64         `json:"violations"`
	Walks          int64         `json:"walks"`
	WalksAbandoned int64         `json:"walks_abandoned"`
	Attempts       int64         `json:"attempts"`
	Duplicates     int64         `json:"duplicates"`
	Filtered       int64         `json:"filtered"`
	Elapsed        time.Duration `json:"elapsed"`
}

// ExploreResult is the table produced by an exploration run.
type ExploreResult struct {
	RunID          string
	Component      string
	Strategy       Strategy
	Status         RunStatus
	StartedAt      time.Time
	CompletedAt    time.Time
	Configurations []*Configuration
	Stats          ExploreStats

	// Observed holds, per parameter, the values seen by random walks.
	Observed map[string][]domain.Value

	// Warnings carries non-fatal errors such as an exceeded sampling budget.
	Warnings []error
}
