package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/paramforge/paramforge/pkg/components"
	"github.com/paramforge/paramforge/pkg/domain"
	"github.com/paramforge/paramforge/pkg/engine"
)

func newTestEngine(t *testing.T, builtins bool) *Engine {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng := NewEngine(logger)
	if builtins {
		if err := eng.LoadBuiltins(context.Background()); err != nil {
			t.Fatalf("Failed to load built-in policies: %v", err)
		}
	}
	return eng
}

func testConfig(t *testing.T, pairs ...interface{}) *engine.Configuration {
	t.Helper()
	var names []string
	var values []domain.Value
	for i := 0; i < len(pairs); i += 2 {
		names = append(names, pairs[i].(string))
		switch v := pairs[i+1].(type) {
		case int:
			values = append(values, domain.Int(int64(v)))
		case string:
			values = append(values, domain.Str(v))
		default:
			t.Fatalf("unsupported value %v", v)
		}
	}
	cfg, err := engine.NewConfiguration(names, values)
	if err != nil {
		t.Fatalf("Failed to build configuration: %v", err)
	}
	return cfg
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t, false)
	if eng.Len() != 0 {
		t.Fatalf("Expected no policies, got %d", eng.Len())
	}

	eng = newTestEngine(t, true)
	policies := eng.ListPolicies()
	expected := []string{"power-of-two-sizes", "tile-budget"}
	if len(policies) != len(expected) {
		t.Fatalf("Expected %d built-in policies, got %d", len(expected), len(policies))
	}
	for i, p := range policies {
		if p.Name != expected[i] {
			t.Errorf("Expected policy %s at %d, got %s", expected[i], i, p.Name)
		}
		if !p.Builtin {
			t.Errorf("Policy %s should be marked built-in", p.Name)
		}
	}
}

func TestAllow_TileBudget(t *testing.T) {
	eng := newTestEngine(t, true)

	tests := []struct {
		name       string
		ssr, casc  int
		wantReason string
	}{
		{name: "within budget", ssr: 4, casc: 8},
		{name: "exactly at budget", ssr: 16, casc: 2},
		{name: "over budget", ssr: 8, casc: 8, wantReason: "tile-budget: 64 kernels exceed the budget of 32"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, "TT_DATA", "cint16", "TP_SSR", tt.ssr, "TP_CASC_LEN", tt.casc, "TP_WINDOW_VSIZE", 512)
			reasons, err := eng.Allow(context.Background(), "ssr_casc", cfg)
			if err != nil {
				t.Fatalf("Evaluation failed: %v", err)
			}

			if tt.wantReason == "" {
				if len(reasons) != 0 {
					t.Errorf("Expected no reasons, got %v", reasons)
				}
				return
			}
			if len(reasons) != 1 || reasons[0] != tt.wantReason {
				t.Errorf("Expected [%s], got %v", tt.wantReason, reasons)
			}
		})
	}
}

func TestAllow_PowerOfTwoSizes(t *testing.T) {
	eng := newTestEngine(t, true)

	tests := []struct {
		name    string
		cfg     *engine.Configuration
		blocked bool
	}{
		{"power of two", testConfig(t, "TP_DIM_A", 16, "TP_DIM_B", 1), false},
		{"dim a not a power of two", testConfig(t, "TP_DIM_A", 12, "TP_DIM_B", 4), true},
		{"string values ignored", testConfig(t, "TP_DIM_A", "wide"), false},
		{"unrelated parameters", testConfig(t, "A", 3, "B", 5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.Evaluate(context.Background(), "cumsum", tt.cfg)
			if err != nil {
				t.Fatalf("Evaluation failed: %v", err)
			}
			if result.Allowed == tt.blocked {
				t.Errorf("Expected allowed=%v, got violations %+v", !tt.blocked, result.Violations)
			}
			if tt.blocked && !strings.Contains(result.Violations[0].Message, "TP_DIM_A=12") {
				t.Errorf("Unexpected message: %s", result.Violations[0].Message)
			}
			if len(result.EvaluatedPolicies) != 2 {
				t.Errorf("Expected 2 evaluated policies, got %v", result.EvaluatedPolicies)
			}
		})
	}
}

func TestAdd_Validation(t *testing.T) {
	eng := newTestEngine(t, false)

	tests := []struct {
		name    string
		rego    string
		wantErr string
	}{
		{
			name:    "syntax error",
			rego:    "package paramforge.explore.bad\n\ndeny contains msg if {",
			wantErr: "failed to parse policy",
		},
		{
			name:    "wrong package",
			rego:    "package deploy.policies\n\nimport rego.v1\n\ndeny contains \"x\" if { true }\n",
			wantErr: "not under paramforge.explore",
		},
		{
			name: "root package",
			rego: "package paramforge.explore\n\nimport rego.v1\n\ndeny contains \"x\" if { input.config.A == 9 }\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eng.Add(context.Background(), Policy{Name: tt.name, Rego: tt.rego, Enabled: true})
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEvaluate_SeverityAndDetails(t *testing.T) {
	eng := newTestEngine(t, false)
	err := eng.Add(context.Background(), Policy{
		Name:    "odd-values",
		Enabled: true,
		Rego: `package paramforge.explore.odd

import rego.v1

deny contains v if {
	some name in input.params
	x := input.config[name]
	x % 2 == 1
	v := {"message": sprintf("%s is odd", [name]), "severity": "warning", "param": name}
}
`,
	})
	if err != nil {
		t.Fatalf("Failed to add policy: %v", err)
	}

	p, err := eng.GetPolicy("odd-values")
	if err != nil {
		t.Fatalf("GetPolicy failed: %v", err)
	}
	if p.Severity != SeverityError {
		t.Errorf("Expected default severity error, got %s", p.Severity)
	}

	cfg := testConfig(t, "A", 1, "B", 2)
	result, err := eng.Evaluate(context.Background(), "toy", cfg)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("Warnings must not block, got %+v", result.Violations)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %d", len(result.Warnings))
	}
	w := result.Warnings[0]
	if w.Message != "A is odd" || w.Severity != SeverityWarning || w.Details["param"] != "A" {
		t.Errorf("Unexpected warning: %+v", w)
	}
	if w.Configuration != "A=1 B=2" || w.Component != "toy" {
		t.Errorf("Unexpected context: %+v", w)
	}

	reasons, err := eng.Allow(context.Background(), "toy", cfg)
	if err != nil || len(reasons) != 0 {
		t.Errorf("Expected allow, got %v, %v", reasons, err)
	}
}

func TestEvaluate_ComponentScopeAndDisable(t *testing.T) {
	eng := newTestEngine(t, false)
	err := eng.Add(context.Background(), Policy{
		Name:       "no-a",
		Enabled:    true,
		Components: []string{"toy"},
		Rego:       "package paramforge.explore.noa\n\nimport rego.v1\n\ndeny contains \"A must be 0\" if { input.config.A != 0 }\n",
	})
	if err != nil {
		t.Fatalf("Failed to add policy: %v", err)
	}
	cfg := testConfig(t, "A", 1)

	reasons, _ := eng.Allow(context.Background(), "toy", cfg)
	if len(reasons) != 1 {
		t.Errorf("Expected toy to be filtered, got %v", reasons)
	}
	reasons, _ = eng.Allow(context.Background(), "other", cfg)
	if len(reasons) != 0 {
		t.Errorf("Policy should not apply to other components, got %v", reasons)
	}

	if err := eng.DisablePolicy("no-a"); err != nil {
		t.Fatalf("DisablePolicy failed: %v", err)
	}
	reasons, _ = eng.Allow(context.Background(), "toy", cfg)
	if len(reasons) != 0 {
		t.Errorf("Disabled policy still applied: %v", reasons)
	}
	if err := eng.EnablePolicy("no-a"); err != nil {
		t.Fatalf("EnablePolicy failed: %v", err)
	}
	if err := eng.EnablePolicy("missing"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

func TestReplacePolicies_KeepsBuiltins(t *testing.T) {
	eng := newTestEngine(t, true)
	ctx := context.Background()

	custom := Policy{
		Name:    "custom",
		Enabled: true,
		Rego:    "package paramforge.explore.custom\n\nimport rego.v1\n\ndeny contains \"no\" if { input.config.A == 2 }\n",
	}
	if err := eng.ReplacePolicies(ctx, []Policy{custom}); err != nil {
		t.Fatalf("ReplacePolicies failed: %v", err)
	}
	if eng.Len() != 3 {
		t.Fatalf("Expected 3 policies, got %d", eng.Len())
	}

	broken := Policy{Name: "broken", Rego: "package paramforge.explore.broken\n\ndeny contains"}
	if err := eng.ReplacePolicies(ctx, []Policy{broken}); err == nil {
		t.Fatal("Expected compile error")
	}
	if _, err := eng.GetPolicy("custom"); err != nil {
		t.Errorf("Failed replace must leave policies untouched: %v", err)
	}

	if err := eng.ReplacePolicies(ctx, nil); err != nil {
		t.Fatalf("ReplacePolicies failed: %v", err)
	}
	if eng.Len() != 2 {
		t.Errorf("Expected only built-ins to remain, got %d", eng.Len())
	}
}

func TestExplore_FilteredByPolicies(t *testing.T) {
	ctx := context.Background()
	reg, err := components.NewRegistry(ctx)
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}
	c, err := reg.Get("ssr_casc")
	if err != nil {
		t.Fatalf("Failed to get component: %v", err)
	}

	eng := newTestEngine(t, true)
	res, err := engine.NewExplorer().Explore(ctx, c, engine.ExploreOptions{
		Allow: map[string][]domain.Value{
			"TT_DATA":         {domain.Str("cint16")},
			"TP_WINDOW_VSIZE": {domain.Int(512)},
		},
		Filters: []engine.ConfigurationFilter{eng},
	})
	if err != nil {
		t.Fatalf("Explore failed: %v", err)
	}

	// 19 pairs pass the kernel-count validator; (8,8) and (16,4) exceed 32 tiles.
	if len(res.Configurations) != 17 {
		t.Errorf("Expected 17 configurations, got %d", len(res.Configurations))
	}
	if res.Stats.Filtered != 2 {
		t.Errorf("Expected 2 filtered configurations, got %d", res.Stats.Filtered)
	}
}
