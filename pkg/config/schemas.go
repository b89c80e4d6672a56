package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation. Each schema is a CUE
// source plus the definition inside it that data is checked against.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	sr.registerBuiltInSchemas()
	return sr
}

// Built-in schema names.
const (
	SchemaComponent = "component"
	SchemaParameter = "parameter"
)

func (sr *SchemaRegistry) registerBuiltInSchemas() {
	if err := sr.RegisterSchema(SchemaComponent, "#Component", builtinComponentSchema); err != nil {
		panic(err)
	}
	if err := sr.RegisterSchema(SchemaParameter, "#Parameter", builtinComponentSchema); err != nil {
		panic(err)
	}
}

// RegisterSchema compiles schema and registers its definition under name.
func (sr *SchemaRegistry) RegisterSchema(name, definition, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	def := val.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return fmt.Errorf("schema %s has no definition %s", name, definition)
	}

	sr.schemas[name] = def
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates Go data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}
	return sr.ValidateValue(schemaName, dataVal)
}

// ValidateValue validates a CUE value against a named schema. Errors keep
// the positions of val.
func (sr *SchemaRegistry) ValidateValue(schemaName string, val cue.Value) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	return schema.Unify(val).Validate(cue.Concrete(true))
}

// ListSchemas returns all registered schema names in order.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateComponent validates a component declaration against #Component.
func (sr *SchemaRegistry) ValidateComponent(ctx context.Context, f *ComponentFile) error {
	return sr.ValidateAgainstSchema(ctx, SchemaComponent, f)
}

const builtinComponentSchema = `
#Identifier: string & =~"^[A-Za-z_][A-Za-z0-9_]*$"

// Capability names a script function and the earlier parameters it reads.
#Capability: {
	function?: #Identifier
	args?:     null | [...#Identifier]
}

// Parameter declares one configurable parameter.
#Parameter: {
	name: #Identifier

	// int covers sizes, factors and modes; string covers datatype tags.
	type: "int" | "uint" | "integer" | "unsigned int" | "string" | "typename" | "str" | "vector" | "vector<int>" | "list"

	description?:     string
	element_type?:    string
	updater?:         null | #Capability
	validator?:       null | #Capability
	skip_validation?: bool
	default?:         _
}

// Component declares the parameters of one component in resolution order.
#Component: {
	name:         #Identifier
	description?: string
	script?:      =~"^$|\\.star$"
	parameters: [#Parameter, ...#Parameter]
}
`
