package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/paramforge/paramforge/pkg/domain"
)

// Declaration is the ordered parameter list of a component as written in its
// metadata, before capabilities are bound.
type Declaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Params      []ParameterDecl `json:"parameters"`
}

// ParameterDecl declares one parameter.
type ParameterDecl struct {
	Name           string           `json:"name"`
	Type           domain.ValueKind `json:"type"`
	Description    string           `json:"description,omitempty"`
	ElementType    string           `json:"element_type,omitempty"`
	UpdaterArgs    []string         `json:"updater_args,omitempty"`
	ValidatorArgs  []string         `json:"validator_args,omitempty"`
	SkipValidation bool             `json:"skip_validation,omitempty"`
	Default        domain.Value     `json:"-"`
}

// NewComponent checks decl and binds every declared parameter to the
// capabilities of model. All problems are reported together.
func NewComponent(decl Declaration, model CapacityModel, emitter ArtifactEmitter) (*Component, error) {
	if decl.Name == "" {
		return nil, NewPermanentError("component has empty name", nil).WithCode(ErrCodeDeclaration)
	}
	if model == nil {
		return nil, NewPermanentError("component has no capacity model", nil).
			WithCode(ErrCodeDeclaration).
			WithComponent(decl.Name)
	}

	var errs []error
	for _, issue := range CheckOrder(decl) {
		errs = append(errs, issue.Err())
	}

	c := &Component{
		Name:        decl.Name,
		Description: decl.Description,
		Params:      make([]ParameterSpec, len(decl.Params)),
		Emitter:     emitter,
		index:       make(map[string]int, len(decl.Params)),
	}

	for i, p := range decl.Params {
		if p.Type == domain.InvalidKind {
			errs = append(errs, fmt.Errorf("parameter %s has no type", p.Name))
		}
		update, ok := model.Updater(p.Name)
		if !ok {
			errs = append(errs, fmt.Errorf("parameter %s has no domain updater", p.Name))
		}
		validate, _ := model.Validator(p.Name)

		c.Params[i] = ParameterSpec{
			Name:           p.Name,
			Type:           p.Type,
			Index:          i,
			Description:    p.Description,
			ElementType:    p.ElementType,
			UpdaterArgs:    cloneArgs(p.UpdaterArgs),
			ValidatorArgs:  cloneArgs(p.ValidatorArgs),
			SkipValidation: p.SkipValidation,
			Default:        p.Default,
			Update:         update,
			Validate:       validate,
		}
		c.index[p.Name] = i
	}

	if len(errs) > 0 {
		return nil, NewPermanentError(
			fmt.Sprintf("component %s failed registration", decl.Name), errors.Join(errs...)).
			WithCode(ErrCodeDeclaration).
			WithComponent(decl.Name)
	}
	return c, nil
}

func cloneArgs(args []string) []string {
	if args == nil {
		return nil
	}
	out := make([]string, len(args))
	copy(out, args)
	return out
}

// Registry holds the components available to sessions and explorations.
type Registry struct {
	mu         sync.RWMutex
	components map[string]*Component
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{components: make(map[string]*Component)}
}

// Register binds decl to model and adds the resulting component.
func (r *Registry) Register(decl Declaration, model CapacityModel, emitter ArtifactEmitter) (*Component, error) {
	c, err := NewComponent(decl, model, emitter)
	if err != nil {
		return nil, err
	}
	if err := r.Add(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Add adds an already bound component.
func (r *Registry) Add(c *Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.components[c.Name]; exists {
		return NewPermanentError(fmt.Sprintf("component %s already registered", c.Name), nil).
			WithCode(ErrCodeAlreadyExists).
			WithComponent(c.Name)
	}
	r.components[c.Name] = c
	return nil
}

// Replace adds c, overwriting a component of the same name.
func (r *Registry) Replace(c *Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[c.Name] = c
}

// Get returns the named component.
func (r *Registry) Get(name string) (*Component, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.components[name]
	if !ok {
		return nil, NewPermanentError(fmt.Sprintf("unknown component %q", name), nil).
			WithCode(ErrCodeNotFound)
	}
	return c, nil
}

// List returns all components sorted by name.
func (r *Registry) List() []*Component {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Component, 0, len(r.components))
	for _, c := range r.components {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered component names, sorted.
func (r *Registry) Names() []string {
	list := r.List()
	names := make([]string, len(list))
	for i, c := range list {
		names[i] = c.Name
	}
	return names
}
