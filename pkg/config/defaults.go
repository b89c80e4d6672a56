package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/paramforge/paramforge/pkg/domain"
	"github.com/paramforge/paramforge/pkg/engine"
)

// LoadDefaults reads externally supplied defaults for c from a YAML, JSON,
// CUE or Starlark file. A Starlark file defines one global per parameter.
func LoadDefaults(ctx context.Context, path string, c *engine.Component) (map[string]domain.Value, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read defaults: %w", err)
	}

	raw := make(map[string]interface{})
	switch strings.ToLower(filepath.Ext(path)) {
	case ".star":
		res, err := NewStarlarkEvaluator(10*time.Second).Evaluate(ctx, string(content), nil)
		if err != nil {
			return nil, err
		}
		raw = res.Output
	case ".cue":
		val := cuecontext.New().CompileBytes(content, cue.Filename(path))
		if err := val.Err(); err != nil {
			return nil, convertCUEErrors(err)
		}
		if err := val.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode defaults: %w", err)
		}
	default:
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, yamlError(path, err)
		}
	}

	return CoerceDefaults(c, raw)
}

// CoerceDefaults converts raw values to the declared kinds of c. Unknown
// names are rejected.
func CoerceDefaults(c *engine.Component, raw map[string]interface{}) (map[string]domain.Value, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]domain.Value, len(raw))
	var errs ValidationErrors
	for _, name := range names {
		spec, ok := c.Param(name)
		if !ok {
			errs = append(errs, ValidationError{Path: name, Message: fmt.Sprintf("%s has no parameter %s", c.Name, name), Severity: SeverityError})
			continue
		}
		v, err := coerceValue(spec.Type, raw[name])
		if err != nil {
			errs = append(errs, ValidationError{Path: name, Message: err.Error(), Severity: SeverityError})
			continue
		}
		out[name] = v
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// ParseAssignments reads NAME=VALUE pairs, as given on the command line, in
// the declared kinds of c.
func ParseAssignments(c *engine.Component, pairs []string) (map[string]domain.Value, error) {
	raw := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q (want NAME=VALUE)", pair)
		}
		raw[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return CoerceDefaults(c, raw)
}
