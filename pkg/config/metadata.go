package config

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/paramforge/paramforge/pkg/engine"
)

// MetadataLoader reads component declarations from YAML, JSON or CUE files,
// validates them and binds their Starlark capacity models.
type MetadataLoader struct {
	ctx            *cue.Context
	schemaRegistry *SchemaRegistry
	validator      *validator.Validate
	starlarkOpts   []StarlarkOption
}

// NewMetadataLoader creates a new loader.
func NewMetadataLoader(opts ...StarlarkOption) *MetadataLoader {
	return &MetadataLoader{
		ctx:            cuecontext.New(),
		schemaRegistry: NewSchemaRegistry(),
		validator:      validator.New(),
		starlarkOpts:   opts,
	}
}

// GetSchemaRegistry returns the schema registry.
func (ml *MetadataLoader) GetSchemaRegistry() *SchemaRegistry {
	return ml.schemaRegistry
}

// IsMetadataFile reports whether path has a declaration extension.
func IsMetadataFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".cue":
		return true
	default:
		return false
	}
}

// LoadFile reads and validates one declaration file. Problems are returned
// as ValidationErrors.
func (ml *MetadataLoader) LoadFile(ctx context.Context, path string) (*ComponentFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, ValidationErrors{{File: path, Message: fmt.Sprintf("failed to read file: %v", err), Severity: SeverityError}}
	}
	return ml.Parse(ctx, content, path)
}

// Parse decodes content, choosing the format from the extension of source.
func (ml *MetadataLoader) Parse(ctx context.Context, content []byte, source string) (*ComponentFile, error) {
	var f ComponentFile
	switch strings.ToLower(filepath.Ext(source)) {
	case ".cue":
		val := ml.ctx.CompileBytes(content, cue.Filename(source))
		if err := val.Err(); err != nil {
			return nil, convertCUEErrors(err)
		}
		if err := ml.schemaRegistry.ValidateValue(SchemaComponent, val); err != nil {
			return nil, convertCUEErrors(err)
		}
		if err := val.Decode(&f); err != nil {
			return nil, ValidationErrors{{File: source, Message: fmt.Sprintf("failed to decode component: %v", err), Severity: SeverityError}}
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, yamlError(source, err)
		}
		if err := ml.schemaRegistry.ValidateComponent(ctx, &f); err != nil {
			return nil, withFile(convertCUEErrors(err), source)
		}
	}
	f.Source = source

	if err := ml.validator.Struct(f); err != nil {
		return nil, ValidationErrors{{File: source, Message: err.Error(), Severity: SeverityError}}
	}
	return &f, nil
}

// LoadDirectory loads every declaration file under dir. Files that fail are
// reported in the returned ValidationErrors and skipped.
func (ml *MetadataLoader) LoadDirectory(ctx context.Context, dir string) ([]*ComponentFile, ValidationErrors, error) {
	paths, err := ListMetadataFiles(dir)
	if err != nil {
		return nil, nil, err
	}

	var files []*ComponentFile
	var problems ValidationErrors
	for _, path := range paths {
		f, err := ml.LoadFile(ctx, path)
		if err != nil {
			problems = append(problems, asValidationErrors(err, path)...)
			continue
		}
		files = append(files, f)
	}
	return files, problems, nil
}

// ListMetadataFiles returns the declaration files under dir in lexical order.
func ListMetadataFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsMetadataFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// Bind builds the component declared by f with its Starlark model. The script
// path is relative to the declaring file.
func (ml *MetadataLoader) Bind(f *ComponentFile) (*engine.Component, error) {
	decl, err := f.ToDeclaration()
	if err != nil {
		return nil, err
	}
	if f.Script == "" {
		return nil, fmt.Errorf("component %s declares no script", f.Name)
	}

	script := f.Script
	if !filepath.IsAbs(script) && f.Source != "" {
		script = filepath.Join(filepath.Dir(f.Source), script)
	}
	model, err := LoadStarlarkModel(script, f, ml.starlarkOpts...)
	if err != nil {
		return nil, fmt.Errorf("component %s: %w", f.Name, err)
	}

	var emitter engine.ArtifactEmitter
	if model.HasEmitter() {
		emitter = model
	}
	return engine.NewComponent(decl, model, emitter)
}

// LoadInto loads and binds every scripted declaration under dir into reg,
// replacing components with the same name.
func (ml *MetadataLoader) LoadInto(ctx context.Context, reg *engine.Registry, dir string) (ValidationErrors, error) {
	files, problems, err := ml.LoadDirectory(ctx, dir)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		c, err := ml.Bind(f)
		if err != nil {
			problems = append(problems, ValidationError{File: f.Source, Message: err.Error(), Severity: SeverityError})
			continue
		}
		reg.Replace(c)
	}
	return problems, nil
}

// convertCUEErrors converts CUE errors to ValidationErrors.
func convertCUEErrors(err error) ValidationErrors {
	var out ValidationErrors
	for _, e := range errors.Errors(err) {
		ve := ValidationError{
			Message:  errors.Details(e, nil),
			Severity: SeverityError,
		}
		if pos := errors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		if path := e.Path(); len(path) > 0 {
			ve.Path = strings.Join(path, ".")
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Message: err.Error(), Severity: SeverityError})
	}
	return out
}

func yamlError(source string, err error) ValidationErrors {
	if te, ok := err.(*yaml.TypeError); ok {
		out := make(ValidationErrors, 0, len(te.Errors))
		for _, msg := range te.Errors {
			out = append(out, ValidationError{File: source, Message: msg, Severity: SeverityError})
		}
		return out
	}
	return ValidationErrors{{File: source, Message: err.Error(), Severity: SeverityError}}
}

func withFile(errs ValidationErrors, source string) ValidationErrors {
	for i := range errs {
		if errs[i].File == "" {
			errs[i].File = source
		}
	}
	return errs
}

func asValidationErrors(err error, source string) ValidationErrors {
	if ve, ok := err.(ValidationErrors); ok {
		return withFile(ve, source)
	}
	return ValidationErrors{{File: source, Message: err.Error(), Severity: SeverityError}}
}
