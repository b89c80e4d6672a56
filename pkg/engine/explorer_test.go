package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paramforge/paramforge/pkg/domain"
)

type filterFunc func(cfg *Configuration) []string

func (f filterFunc) Allow(_ context.Context, _ string, cfg *Configuration) ([]string, error) {
	return f(cfg), nil
}

func sumAtMost(limit int64) ValidateFunc {
	return func(v domain.Value, env *Env) error {
		if s := env.Int("A") + env.Int("B") + v.AsInt(); s > limit {
			return fmt.Errorf("A+B+C=%d exceeds %d", s, limit)
		}
		return nil
	}
}

func TestExplore_ExhaustiveToy(t *testing.T) {
	ctx := context.Background()
	c := newToy(t, nil)
	metrics := &recordingMetrics{}

	res, err := NewExplorer(WithExplorerMetrics(metrics)).Explore(ctx, c, ExploreOptions{})
	require.NoError(t, err)

	assert.Equal(t, RunStatusCompleted, res.Status)
	assert.Equal(t, StrategyExhaustive, res.Strategy)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Configurations, 12)
	assert.Len(t, keys(res.Configurations), 12)
	assert.Equal(t, int64(12), res.Stats.Leaves)
	assert.Zero(t, res.Stats.Pruned)
	assert.Equal(t, "A=0 B=0 C=0", res.Configurations[0].String())
	assert.Equal(t, "A=1 B=2 C=1", res.Configurations[11].String())
	assert.Equal(t, int64(1), metrics.explorations.Load())

	for _, cfg := range res.Configurations {
		assert.NoError(t, Verify(ctx, c, cfg), cfg.String())
	}
}

func TestExplore_ExhaustiveConstraintPrunes(t *testing.T) {
	c := newToy(t, sumAtMost(2))

	res, err := NewExplorer().Explore(context.Background(), c, ExploreOptions{})
	require.NoError(t, err)

	assert.Less(t, len(res.Configurations), 12)
	assert.Len(t, res.Configurations, 8)
	assert.Equal(t, int64(4), res.Stats.Pruned)
	for _, cfg := range res.Configurations {
		var sum int64
		for _, v := range cfg.Values() {
			sum += v.AsInt()
		}
		assert.LessOrEqual(t, sum, int64(2), cfg.String())
	}
}

func TestExplore_SSRCascPairs(t *testing.T) {
	c := newSSRCasc(t)

	res, err := NewExplorer().Explore(context.Background(), c, ExploreOptions{})
	require.NoError(t, err)

	want := make(map[string]struct{})
	for ssr := int64(1); ssr <= 16; ssr++ {
		for casc := int64(1); casc <= 16; casc++ {
			if 16%ssr == 0 && 8%casc == 0 && ssr*casc <= 64 {
				cfg, err := NewConfiguration(c.Names(), domain.Ints(ssr, casc))
				require.NoError(t, err)
				want[cfg.Key()] = struct{}{}
			}
		}
	}
	require.Len(t, want, 19)
	assert.Equal(t, want, keys(res.Configurations))
	assert.Len(t, res.Configurations, 19)
}

func TestExplore_RandomToyFindsEverything(t *testing.T) {
	ctx := context.Background()
	c := newToy(t, nil)

	exhaustive, err := NewExplorer().Explore(ctx, c, ExploreOptions{})
	require.NoError(t, err)

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			res, err := NewExplorer().Explore(ctx, c, ExploreOptions{
				Strategy: StrategyRandom,
				Walks:    50,
				Target:   12,
				Workers:  workers,
				Seed:     42,
			})
			require.NoError(t, err)

			assert.Equal(t, RunStatusCompleted, res.Status)
			assert.Empty(t, res.Warnings)
			require.Len(t, res.Configurations, 12)
			assert.Equal(t, keys(exhaustive.Configurations), keys(res.Configurations))
			assert.Equal(t, int64(50), res.Stats.Walks)
			assert.Equal(t, domain.Ints(0, 1), sortedInts(res.Observed["A"]))
			assert.Equal(t, domain.Ints(0, 1, 2), sortedInts(res.Observed["B"]))
		})
	}
}

func TestExplore_RandomStopsAtBudget(t *testing.T) {
	c := newToy(t, sumAtMost(2))

	res, err := NewExplorer().Explore(context.Background(), c, ExploreOptions{
		Strategy:    StrategyRandom,
		Walks:       100,
		Target:      12,
		MaxAttempts: 500,
		Seed:        7,
	})
	require.NoError(t, err)

	assert.Equal(t, RunStatusPartial, res.Status)
	assert.Len(t, res.Configurations, 8)
	assert.Equal(t, int64(500), res.Stats.Attempts)
	require.Len(t, res.Warnings, 1)
	assert.True(t, IsBudgetExceeded(res.Warnings[0]))
	for _, cfg := range res.Configurations {
		assert.NoError(t, Verify(context.Background(), c, cfg))
	}
}

func TestExplore_HoldFixed(t *testing.T) {
	c := newToy(t, nil)

	for _, strategy := range []Strategy{StrategyExhaustive, StrategyRandom} {
		t.Run(string(strategy), func(t *testing.T) {
			res, err := NewExplorer().Explore(context.Background(), c, ExploreOptions{
				Strategy:  strategy,
				HoldFixed: []string{"B"},
				Walks:     60,
				Target:    4,
				Seed:      3,
			})
			require.NoError(t, err)
			require.Len(t, res.Configurations, 4)
			for _, cfg := range res.Configurations {
				b, ok := cfg.Get("B")
				require.True(t, ok)
				assert.Equal(t, domain.Int(0), b)
			}
		})
	}
}

func TestExplore_AllowList(t *testing.T) {
	c := newToy(t, nil)

	res, err := NewExplorer().Explore(context.Background(), c, ExploreOptions{
		Allow: map[string][]domain.Value{
			"A": domain.Ints(1),
			"B": domain.Ints(2, 5),
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Configurations, 2)
	assert.Equal(t, "A=1 B=2 C=0", res.Configurations[0].String())
	assert.Equal(t, "A=1 B=2 C=1", res.Configurations[1].String())
}

func TestExplore_AllowListOutsideDomainPrunes(t *testing.T) {
	c := newToy(t, nil)

	res, err := NewExplorer().Explore(context.Background(), c, ExploreOptions{
		Allow: map[string][]domain.Value{"B": domain.Ints(9)},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Configurations)
	assert.Equal(t, int64(2), res.Stats.Pruned)
}

func TestExplore_PingPong(t *testing.T) {
	decl := Declaration{Name: "buffers", Params: []ParameterDecl{intParam("WINDOW"), intParam("MODE")}}
	model := Capabilities{
		"WINDOW": {Update: fixed(domain.NewRangeWithPingPong(1, 8, 4))},
		"MODE":   {Update: fixed(domain.NewEnumWithPingPong(domain.Ints(0, 1, 2), domain.Ints(0)))},
	}
	c, err := NewComponent(decl, model, nil)
	require.NoError(t, err)

	full, err := NewExplorer().Explore(context.Background(), c, ExploreOptions{})
	require.NoError(t, err)
	assert.Len(t, full.Configurations, 24)

	pp, err := NewExplorer().Explore(context.Background(), c, ExploreOptions{PingPong: true})
	require.NoError(t, err)
	assert.Len(t, pp.Configurations, 4)
	for _, cfg := range pp.Configurations {
		w, _ := cfg.Get("WINDOW")
		assert.LessOrEqual(t, w.AsInt(), int64(4))
	}
}

func TestExplore_PingPongDependsOnEarlier(t *testing.T) {
	decl := Declaration{Name: "lanes", Params: []ParameterDecl{intParam("A"), intParam("W", "A")}}
	model := Capabilities{
		"A": {Update: fixed(domain.NewRange(1, 2))},
		"W": {Update: func(env *Env) (domain.Domain, error) {
			a := env.Int("A")
			return domain.NewRangeWithPingPong(1, 10*a, 5*a), nil
		}},
	}
	c, err := NewComponent(decl, model, nil)
	require.NoError(t, err)

	exhaustive, err := NewExplorer().Explore(context.Background(), c, ExploreOptions{PingPong: true})
	require.NoError(t, err)
	require.Len(t, exhaustive.Configurations, 15)

	random, err := NewExplorer().Explore(context.Background(), c, ExploreOptions{
		Strategy: StrategyRandom,
		PingPong: true,
		Walks:    200,
		Target:   100,
		Workers:  3,
		Seed:     7,
	})
	require.NoError(t, err)
	assert.Equal(t, RunStatusPartial, random.Status)
	assert.Equal(t, keys(exhaustive.Configurations), keys(random.Configurations))
	for _, cfg := range random.Configurations {
		a, _ := cfg.Get("A")
		w, _ := cfg.Get("W")
		assert.LessOrEqual(t, w.AsInt(), 5*a.AsInt(), cfg.String())
	}
}

func TestExplore_LimitAndProgress(t *testing.T) {
	c := newToy(t, nil)

	var reports []ProgressReport
	res, err := NewExplorer().Explore(context.Background(), c, ExploreOptions{
		ProgressEvery: 4,
		Progress:      func(r ProgressReport) { reports = append(reports, r) },
	})
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, 4, reports[0].Found)
	assert.Equal(t, 12, reports[2].Found)
	assert.Equal(t, res.RunID, reports[0].RunID)

	limited, err := NewExplorer().Explore(context.Background(), c, ExploreOptions{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, limited.Configurations, 5)
}

func TestExplore_Filters(t *testing.T) {
	c := newToy(t, nil)
	noA1 := filterFunc(func(cfg *Configuration) []string {
		if a, _ := cfg.Get("A"); a.AsInt() == 1 {
			return []string{"A=1 is reserved"}
		}
		return nil
	})

	res, err := NewExplorer().Explore(context.Background(), c, ExploreOptions{
		Filters: []ConfigurationFilter{noA1},
	})
	require.NoError(t, err)
	assert.Len(t, res.Configurations, 6)
	assert.Equal(t, int64(6), res.Stats.Filtered)
}

func TestExplore_OrderViolationAbandonsPaths(t *testing.T) {
	decl := Declaration{Name: "bad", Params: []ParameterDecl{intParam("A"), intParam("B")}}
	model := Capabilities{
		"A": {Update: fixed(domain.NewRange(0, 1))},
		"B": {
			Update: fixed(domain.NewRange(0, 1)),
			Validate: func(v domain.Value, env *Env) error {
				_ = env.Int("B")
				return nil
			},
		},
	}
	c, err := NewComponent(decl, model, nil)
	require.NoError(t, err)

	res, err := NewExplorer().Explore(context.Background(), c, ExploreOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Configurations)
	assert.Equal(t, int64(4), res.Stats.Violations)
	assert.Equal(t, int64(4), res.Stats.Abandoned)
}

func TestExplore_FailingUpdaterAbandonsSubtree(t *testing.T) {
	decl := Declaration{Name: "flaky", Params: []ParameterDecl{intParam("A"), intParam("B", "A")}}
	model := Capabilities{
		"A": {Update: fixed(domain.NewRange(0, 2))},
		"B": {Update: func(env *Env) (domain.Domain, error) {
			if env.Int("A") == 1 {
				return nil, errors.New("model table missing")
			}
			return domain.NewRange(0, 1), nil
		}},
	}
	c, err := NewComponent(decl, model, nil)
	require.NoError(t, err)

	res, err := NewExplorer().Explore(context.Background(), c, ExploreOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Configurations, 4)
	assert.Equal(t, int64(1), res.Stats.Abandoned)
}

func TestExplore_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewExplorer().Explore(ctx, newToy(t, nil), ExploreOptions{Strategy: StrategyRandom, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, RunStatusCancelled, res.Status)
	assert.Empty(t, res.Configurations)
}

func TestExplore_InvalidOptions(t *testing.T) {
	c := newToy(t, nil)

	_, err := NewExplorer().Explore(context.Background(), c, ExploreOptions{HoldFixed: []string{"Z"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hold-fixed parameter Z is not declared")

	_, err = NewExplorer().Explore(context.Background(), c, ExploreOptions{Strategy: "annealing"})
	assert.Error(t, err)
}

func TestExploreOptions_Defaults(t *testing.T) {
	o := ExploreOptions{Target: 3}.withDefaults()
	assert.Equal(t, minSampleBudget, o.MaxAttempts)

	o = ExploreOptions{Target: 50}.withDefaults()
	assert.Equal(t, 50*sampleBudgetFactor, o.MaxAttempts)

	o = ExploreOptions{MaxAttempts: -1}.withDefaults()
	assert.Equal(t, -1, o.MaxAttempts)
	assert.Equal(t, int64(DefaultProgressEvery), o.ProgressEvery)
}

func sortedInts(vs []domain.Value) []domain.Value {
	out := append([]domain.Value(nil), vs...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].AsInt() < out[j-1].AsInt(); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
