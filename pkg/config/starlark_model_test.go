package config

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paramforge/paramforge/pkg/domain"
	"github.com/paramforge/paramforge/pkg/engine"
)

func loadCasc(t *testing.T) *engine.Component {
	t.Helper()
	ml := NewMetadataLoader()
	f, err := ml.LoadFile(context.Background(), filepath.Join("testdata", "casc.yaml"))
	if err != nil {
		t.Fatalf("failed to load casc.yaml: %v", err)
	}
	c, err := ml.Bind(f)
	if err != nil {
		t.Fatalf("failed to bind casc: %v", err)
	}
	return c
}

func TestStarlarkModel_ResolveDefaultsAndEmit(t *testing.T) {
	c := loadCasc(t)
	ctx := context.Background()

	cfg, err := engine.ResolveDefaults(ctx, c, nil)
	if err != nil {
		t.Fatalf("ResolveDefaults failed: %v", err)
	}

	want := map[string]domain.Value{
		"TT_DATA":         domain.Str("int16"),
		"TP_SSR":          domain.Int(1),
		"TP_CASC_LEN":     domain.Int(1),
		"TP_WINDOW_VSIZE": domain.Int(256),
	}
	for name, v := range want {
		got, ok := cfg.Get(name)
		if !ok || !got.Equal(v) {
			t.Errorf("%s = %s, want %s", name, got, v)
		}
	}

	art, err := engine.EmitVerified(ctx, c, cfg, "casc_graph")
	if err != nil {
		t.Fatalf("EmitVerified failed: %v", err)
	}
	if !strings.Contains(art.Text, "class casc_graph : public adf::graph") {
		t.Errorf("unexpected graph text:\n%s", art.Text)
	}
	if !strings.Contains(art.Text, "casc<int16, 1, 1, 256>") {
		t.Errorf("graph text lacks the parameter list:\n%s", art.Text)
	}
	if art.HeaderFile != "casc_graph.hpp" {
		t.Errorf("HeaderFile = %q", art.HeaderFile)
	}
	if len(art.SearchPaths) != 2 || art.SearchPaths[0] != "L2/include/aie" {
		t.Errorf("SearchPaths = %v", art.SearchPaths)
	}

	if len(art.Ports) != 2 {
		t.Fatalf("expected 2 ports, got %+v", art.Ports)
	}
	in, out := art.Ports[0], art.Ports[1]
	if in.Name != "in[0]" || in.Direction != engine.PortIn || in.Kind != engine.PortBlock || in.Count != 256 || in.Margin != 0 {
		t.Errorf("unexpected input port %+v", in)
	}
	if out.Name != "out[0]" || out.Direction != engine.PortOut || out.Kind != engine.PortStream || out.Count != 256 {
		t.Errorf("unexpected output port %+v", out)
	}
	if in.DataType != "int16" {
		t.Errorf("input port data type = %q", in.DataType)
	}
}

func TestStarlarkModel_ExploreSSRCascPairs(t *testing.T) {
	c := loadCasc(t)

	res, err := engine.NewExplorer().Explore(context.Background(), c, engine.ExploreOptions{
		Strategy: engine.StrategyExhaustive,
		Allow: map[string][]domain.Value{
			"TT_DATA":         {domain.Str("int16")},
			"TP_WINDOW_VSIZE": {domain.Int(256)},
		},
	})
	if err != nil {
		t.Fatalf("Explore failed: %v", err)
	}
	if len(res.Configurations) != 19 {
		t.Fatalf("expected 19 configurations, got %d", len(res.Configurations))
	}
	for _, cfg := range res.Configurations {
		ssr, _ := cfg.Get("TP_SSR")
		casc, _ := cfg.Get("TP_CASC_LEN")
		if ssr.AsInt()*casc.AsInt() > 64 {
			t.Errorf("configuration %s exceeds the cascade budget", cfg)
		}
	}
	if res.Stats.Pruned == 0 {
		t.Error("expected the cascade validator to prune some paths")
	}
}

func TestStarlarkModel_GranularityAndPingPong(t *testing.T) {
	c := loadCasc(t)
	ctx := context.Background()

	_, err := engine.ResolveDefaults(ctx, c, map[string]domain.Value{
		"TP_SSR":          domain.Int(4),
		"TP_WINDOW_VSIZE": domain.Int(100),
	})
	if !engine.IsValidationFailed(err) {
		t.Fatalf("expected a validation failure for a window off the granularity, got %v", err)
	}

	cfg, err := engine.ResolveDefaults(ctx, c, map[string]domain.Value{
		"TP_SSR":          domain.Int(4),
		"TP_WINDOW_VSIZE": domain.Int(3072),
	})
	if err != nil {
		t.Fatalf("3072 is legal without ping-pong: %v", err)
	}

	res, err := engine.NewExplorer().Explore(ctx, c, engine.ExploreOptions{
		PingPong: true,
		Allow: map[string][]domain.Value{
			"TT_DATA":         {domain.Str("int16")},
			"TP_SSR":          {domain.Int(4)},
			"TP_CASC_LEN":     {domain.Int(1)},
			"TP_WINDOW_VSIZE": {domain.Int(3072)},
		},
	})
	if err != nil {
		t.Fatalf("Explore failed: %v", err)
	}
	if len(res.Configurations) != 0 {
		t.Errorf("expected ping-pong to exclude %s", cfg)
	}
}

func TestStarlarkModel_ValidatorSeesCandidate(t *testing.T) {
	c := loadCasc(t)

	_, err := engine.ResolveDefaults(context.Background(), c, map[string]domain.Value{
		"TP_SSR":      domain.Int(16),
		"TP_CASC_LEN": domain.Int(8),
	})
	if !engine.IsValidationFailed(err) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "must not exceed 64") {
		t.Errorf("expected the script's message, got %v", err)
	}
}

func TestStarlarkModel_UndeclaredReadIsOrderViolation(t *testing.T) {
	f := &ComponentFile{
		Name: "sneaky",
		Parameters: []ParameterEntry{
			{Name: "A", Type: "int", Updater: &CapabilityRef{Args: []string{}}},
			{Name: "B", Type: "int", Updater: &CapabilityRef{Args: []string{}}},
		},
	}
	src := `
def update_A(args):
    return {"minimum": 1, "maximum": 4}

def update_B(args):
    return {"minimum": 0, "maximum": args["A"]}
`
	model, err := NewStarlarkModel("sneaky.star", src, f)
	if err != nil {
		t.Fatalf("NewStarlarkModel failed: %v", err)
	}
	decl, err := f.ToDeclaration()
	if err != nil {
		t.Fatal(err)
	}
	c, err := engine.NewComponent(decl, model, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = engine.ResolveDefaults(context.Background(), c, nil)
	if !engine.IsOrderViolation(err) {
		t.Fatalf("expected an order violation, got %v", err)
	}
}

func TestStarlarkModel_StepLimit(t *testing.T) {
	f := &ComponentFile{
		Name:       "spin",
		Parameters: []ParameterEntry{{Name: "A", Type: "int"}},
	}
	src := `
def update_A(args):
    n = 0
    for i in range(1000000):
        n += i
    return {"minimum": 0, "maximum": 1}
`
	model, err := NewStarlarkModel("spin.star", src, f, WithMaxSteps(1000))
	if err != nil {
		t.Fatalf("NewStarlarkModel failed: %v", err)
	}
	update, ok := model.Updater("A")
	if !ok {
		t.Fatal("expected updater for A")
	}

	_, err = update(engine.NewEnv("A", nil, nil))
	if err == nil {
		t.Fatal("expected the step limit to stop the updater")
	}
	var eerr *engine.EngineError
	if !errors.As(err, &eerr) || eerr.Code != engine.ErrCodeCapability {
		t.Errorf("expected a capability error, got %v", err)
	}
}

func TestStarlarkModel_DomainShapes(t *testing.T) {
	f := &ComponentFile{
		Name: "shapes",
		Parameters: []ParameterEntry{
			{Name: "MODE", Type: "int"},
			{Name: "TAPS", Type: "vector"},
			{Name: "BAD", Type: "int"},
		},
	}
	src := `
def update_MODE(args):
    return {"enum": [0, 1, 2], "enum_pingpong": [0, 1]}

def update_TAPS(args):
    return {"length": 4, "element_type": "int16"}

def update_BAD(args):
    return {"values": [1]}
`
	model, err := NewStarlarkModel("shapes.star", src, f)
	if err != nil {
		t.Fatalf("NewStarlarkModel failed: %v", err)
	}
	env := engine.NewEnv("test", nil, nil)

	mode, _ := model.Updater("MODE")
	d, err := mode(env)
	if err != nil {
		t.Fatalf("MODE: %v", err)
	}
	if d.Len() != 3 || d.PingPong().Len() != 2 {
		t.Errorf("unexpected MODE domain %s", d.Describe())
	}

	taps, _ := model.Updater("TAPS")
	d, err = taps(env)
	if err != nil {
		t.Fatalf("TAPS: %v", err)
	}
	if !d.Contains(domain.Vector(1, 2, 3, 4)) || d.Contains(domain.Vector(1, 2)) {
		t.Errorf("unexpected TAPS domain %s", d.Describe())
	}

	bad, _ := model.Updater("BAD")
	if _, err := bad(env); err == nil || !strings.Contains(err.Error(), "values") {
		t.Errorf("expected an error naming the unexpected keys, got %v", err)
	}
}

func TestBuiltins(t *testing.T) {
	f := &ComponentFile{
		Name:       "builtins",
		Parameters: []ParameterEntry{{Name: "A", Type: "int"}},
	}
	src := `
def update_A(args):
    return {"enum": divisors(24, 2, 12) + [ceil_multiple(10, 8)]}
`
	model, err := NewStarlarkModel("builtins.star", src, f)
	if err != nil {
		t.Fatalf("NewStarlarkModel failed: %v", err)
	}
	update, _ := model.Updater("A")
	d, err := update(engine.NewEnv("A", nil, nil))
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	want := []int64{2, 3, 4, 6, 8, 12, 16}
	if d.Len() != int64(len(want)) {
		t.Fatalf("expected %d values, got %s", len(want), d.Describe())
	}
	for _, w := range want {
		if !d.Contains(domain.Int(w)) {
			t.Errorf("expected %d in %s", w, d.Describe())
		}
	}
}
