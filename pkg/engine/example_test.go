package engine_test

import (
	"context"
	"fmt"

	"github.com/paramforge/paramforge/pkg/domain"
	"github.com/paramforge/paramforge/pkg/engine"
)

// Example_exploration enumerates the legal (SSR, cascade) pairs of a small
// component whose two parameters may not multiply past 16.
func Example_exploration() {
	decl := engine.Declaration{
		Name: "pairs",
		Params: []engine.ParameterDecl{
			{Name: "TP_SSR", Type: domain.IntKind},
			{Name: "TP_CASC_LEN", Type: domain.IntKind, ValidatorArgs: []string{"TP_SSR"}},
		},
	}
	model := engine.Capabilities{
		"TP_SSR": {Update: func(*engine.Env) (domain.Domain, error) {
			return domain.NewEnum(domain.Divisors(8, 1, 16)...), nil
		}},
		"TP_CASC_LEN": {
			Update: func(*engine.Env) (domain.Domain, error) {
				return domain.NewEnum(domain.Divisors(4, 1, 16)...), nil
			},
			Validate: func(v domain.Value, env *engine.Env) error {
				if env.Int("TP_SSR")*v.AsInt() > 16 {
					return fmt.Errorf("too many kernels")
				}
				return nil
			},
		},
	}

	c, err := engine.NewComponent(decl, model, nil)
	if err != nil {
		panic(err)
	}

	res, err := engine.NewExplorer().Explore(context.Background(), c, engine.ExploreOptions{})
	if err != nil {
		panic(err)
	}
	for _, cfg := range res.Configurations {
		fmt.Println(cfg)
	}
	fmt.Println(res.Status, res.Stats.Pruned)

	// Output:
	// TP_SSR=1 TP_CASC_LEN=1
	// TP_SSR=1 TP_CASC_LEN=2
	// TP_SSR=1 TP_CASC_LEN=4
	// TP_SSR=2 TP_CASC_LEN=1
	// TP_SSR=2 TP_CASC_LEN=2
	// TP_SSR=2 TP_CASC_LEN=4
	// TP_SSR=4 TP_CASC_LEN=1
	// TP_SSR=4 TP_CASC_LEN=2
	// TP_SSR=4 TP_CASC_LEN=4
	// TP_SSR=8 TP_CASC_LEN=1
	// TP_SSR=8 TP_CASC_LEN=2
	// completed 1
}

// Example_defaults resolves a component without an operator.
func Example_defaults() {
	decl := engine.Declaration{
		Name: "window",
		Params: []engine.ParameterDecl{
			{Name: "TP_WINDOW_VSIZE", Type: domain.IntKind, Default: domain.Int(96)},
		},
	}
	model := engine.Capabilities{
		"TP_WINDOW_VSIZE": {Update: func(*engine.Env) (domain.Domain, error) {
			return domain.NewRange(16, 4096).WithStep(16), nil
		}},
	}
	c, err := engine.NewComponent(decl, model, nil)
	if err != nil {
		panic(err)
	}

	cfg, err := engine.ResolveDefaults(context.Background(), c, nil)
	if err != nil {
		panic(err)
	}
	fmt.Println(cfg)

	_, err = engine.ResolveDefaults(context.Background(), c, map[string]domain.Value{
		"TP_WINDOW_VSIZE": domain.Int(100),
	})
	fmt.Println(engine.IsValidationFailed(err))

	// Output:
	// TP_WINDOW_VSIZE=96
	// true
}
