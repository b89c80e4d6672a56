package components

import (
	"context"
	"embed"
	"fmt"
	"path"

	"github.com/paramforge/paramforge/pkg/config"
	"github.com/paramforge/paramforge/pkg/engine"
)

//go:embed declarations/*.yaml
var declarations embed.FS

// Builtin pairs an embedded declaration with its Go capacity model.
type Builtin struct {
	// File is the declaration file under declarations/.
	File string

	// Model provides the capabilities of every declared parameter.
	Model engine.CapacityModel

	// Emitter renders resolved configurations; nil when the component has none.
	Emitter engine.ArtifactEmitter
}

// Builtins returns the components compiled into the binary.
func Builtins() []Builtin {
	return []Builtin{
		{File: "toy.yaml", Model: ToyModel(nil)},
		{File: "ssr_casc.yaml", Model: SSRCascModel(), Emitter: engine.EmitterFunc(emitSSRCasc)},
		{File: "cumsum.yaml", Model: CumsumModel(), Emitter: engine.EmitterFunc(emitCumsum)},
	}
}

// Declaration parses the embedded declaration file.
func Declaration(ctx context.Context, file string) (engine.Declaration, error) {
	content, err := declarations.ReadFile(path.Join("declarations", file))
	if err != nil {
		return engine.Declaration{}, fmt.Errorf("unknown built-in declaration %s: %w", file, err)
	}
	f, err := config.NewMetadataLoader().Parse(ctx, content, file)
	if err != nil {
		return engine.Declaration{}, err
	}
	return f.ToDeclaration()
}

// Build binds b into a component.
func (b Builtin) Build(ctx context.Context) (*engine.Component, error) {
	decl, err := Declaration(ctx, b.File)
	if err != nil {
		return nil, err
	}
	return engine.NewComponent(decl, b.Model, b.Emitter)
}

// RegisterBuiltins adds every built-in component to reg.
func RegisterBuiltins(ctx context.Context, reg *engine.Registry) error {
	for _, b := range Builtins() {
		c, err := b.Build(ctx)
		if err != nil {
			return fmt.Errorf("built-in %s: %w", b.File, err)
		}
		if err := reg.Add(c); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in components.
func NewRegistry(ctx context.Context) (*engine.Registry, error) {
	reg := engine.NewRegistry()
	if err := RegisterBuiltins(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}
