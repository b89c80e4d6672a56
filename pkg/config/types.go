package config

import (
	"fmt"
	"strings"

	"github.com/paramforge/paramforge/pkg/domain"
	"github.com/paramforge/paramforge/pkg/engine"
)

// ComponentFile is the on-disk declaration of one component: its parameters in
// topological order and, optionally, the Starlark script providing its
// capacity model.
type ComponentFile struct {
	// Name identifies the component.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Description is a one-line summary.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Script is the Starlark capacity model, relative to the declaring file.
	Script string `json:"script,omitempty" yaml:"script,omitempty"`

	// Parameters are listed in resolution order.
	Parameters []ParameterEntry `json:"parameters" yaml:"parameters" validate:"required,min=1,dive"`

	// Source is the file the declaration was read from.
	Source string `json:"-" yaml:"-"`
}

// ParameterEntry declares one parameter.
type ParameterEntry struct {
	// Name is the template parameter name, e.g. TP_DIM_A.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Type is int, string or vector (aliases: uint, typename, list).
	Type string `json:"type" yaml:"type" validate:"required"`

	// Description is free text for listings.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// ElementType is the datatype tag of vector elements.
	ElementType string `json:"element_type,omitempty" yaml:"element_type,omitempty"`

	// Updater names the domain-updater function and what it may read.
	Updater *CapabilityRef `json:"updater,omitempty" yaml:"updater,omitempty"`

	// Validator names the validator function and what it may read.
	Validator *CapabilityRef `json:"validator,omitempty" yaml:"validator,omitempty"`

	// SkipValidation bypasses the validator for bulk parameters.
	SkipValidation bool `json:"skip_validation,omitempty" yaml:"skip_validation,omitempty"`

	// Default is the declared default candidate.
	Default any `json:"default,omitempty" yaml:"default,omitempty"`
}

// CapabilityRef points at a capability function of a scripted model.
type CapabilityRef struct {
	// Function is the script function; empty selects update_<P> or validate_<P>.
	Function string `json:"function,omitempty" yaml:"function,omitempty"`

	// Args lists the earlier parameters the function reads. Omitted means
	// every earlier parameter; an empty list means none.
	Args []string `json:"args" yaml:"args"`
}

// ToDeclaration converts the file into an engine declaration.
func (f *ComponentFile) ToDeclaration() (engine.Declaration, error) {
	decl := engine.Declaration{
		Name:        f.Name,
		Description: f.Description,
		Params:      make([]engine.ParameterDecl, 0, len(f.Parameters)),
	}

	var errs ValidationErrors
	for i, p := range f.Parameters {
		path := fmt.Sprintf("parameters[%d]", i)
		kind, err := domain.ParseValueKind(p.Type)
		if err != nil {
			errs = append(errs, ValidationError{File: f.Source, Path: path + ".type", Message: err.Error(), Severity: SeverityError})
			continue
		}

		pd := engine.ParameterDecl{
			Name:           p.Name,
			Type:           kind,
			Description:    p.Description,
			ElementType:    p.ElementType,
			SkipValidation: p.SkipValidation,
		}
		if p.Updater != nil {
			pd.UpdaterArgs = p.Updater.Args
		}
		if p.Validator != nil {
			pd.ValidatorArgs = p.Validator.Args
		}
		if p.Default != nil {
			v, err := coerceValue(kind, p.Default)
			if err != nil {
				errs = append(errs, ValidationError{File: f.Source, Path: path + ".default", Message: err.Error(), Severity: SeverityError})
				continue
			}
			pd.Default = v
		}
		decl.Params = append(decl.Params, pd)
	}

	if len(errs) > 0 {
		return engine.Declaration{}, errs
	}
	return decl, nil
}

// coerceValue converts a decoded payload to a value of kind, accepting text
// forms such as "16" for an int parameter.
func coerceValue(kind domain.ValueKind, x any) (domain.Value, error) {
	v, err := domain.FromInterface(x)
	if err == nil && v.Kind() == kind {
		return v, nil
	}
	return domain.Parse(kind, fmt.Sprint(x))
}

// Severity levels of a ValidationError.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents a problem found while loading a declaration or
// settings file.
type ValidationError struct {
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Path     string `json:"path,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	var sb strings.Builder
	if e.File != "" {
		sb.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&sb, ":%d:%d", e.Line, e.Column)
		}
		sb.WriteString(": ")
	}
	if e.Path != "" {
		sb.WriteString(e.Path)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	return sb.String()
}

// ValidationErrors collects every problem of one load.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// HasErrors reports whether any entry has error severity.
func (es ValidationErrors) HasErrors() bool {
	for _, e := range es {
		if e.Severity != SeverityWarning {
			return true
		}
	}
	return false
}
