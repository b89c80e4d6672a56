package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paramforge/paramforge/pkg/domain"
)

func TestEnv_RestrictsToDeclaredArgs(t *testing.T) {
	c := newToy(t, nil)
	prefix := domain.Ints(1, 2)

	env := newEnv(c, &c.Params[1], opUpdate, prefix)
	assert.Equal(t, []string{"A"}, env.Names())
	assert.Equal(t, int64(1), env.Int("A"))
	assert.NoError(t, env.Err())

	env.Int("C")
	require.Error(t, env.Err())
	assert.True(t, IsOrderViolation(env.Err()))
	assert.Equal(t, []string{"A"}, env.Reads())
}

func TestEnv_UnrestrictedSeesWholePrefix(t *testing.T) {
	decl := Declaration{Name: "open", Params: []ParameterDecl{intParam("A"), intParam("B"), intParam("C")}}
	model := Capabilities{
		"A": {Update: fixed(domain.NewRange(0, 1))},
		"B": {Update: fixed(domain.NewRange(0, 1))},
		"C": {Update: fixed(domain.NewRange(0, 1))},
	}
	c, err := NewComponent(decl, model, nil)
	require.NoError(t, err)

	env := newEnv(c, &c.Params[2], opValidate, domain.Ints(0, 1))
	assert.Equal(t, []string{"A", "B"}, env.Names())
	assert.Equal(t, map[string]string{"A": "0", "B": "1"}, env.Snapshot())
}

func TestEnv_KindMismatch(t *testing.T) {
	env := NewEnv("TP_SSR", []string{"TT_DATA"}, []domain.Value{domain.Str("cint16")})

	assert.Equal(t, "cint16", env.String("TT_DATA"))
	assert.NoError(t, env.Err())

	assert.Zero(t, env.Int("TT_DATA"))
	require.Error(t, env.Err())
	assert.True(t, IsPermanent(env.Err()))
	assert.False(t, IsOrderViolation(env.Err()))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	toy := newToy(t, nil)
	require.NoError(t, r.Add(toy))

	err := r.Add(toy)
	require.Error(t, err)
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeAlreadyExists, ee.Code)

	ssr := newSSRCasc(t)
	r.Replace(ssr)

	got, err := r.Get("toy")
	require.NoError(t, err)
	assert.Same(t, toy, got)

	_, err = r.Get("fft")
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeNotFound, ee.Code)

	names := make([]string, 0)
	for _, c := range r.List() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"ssr_casc_small", "toy"}, names)
	assert.Equal(t, names, r.Names())
}

func TestDeclarationOfRoundTrip(t *testing.T) {
	c := newToy(t, nil)
	decl := DeclarationOf(c)
	assert.Equal(t, "toy", decl.Name)
	require.Len(t, decl.Params, 3)
	assert.Equal(t, []string{"A", "B"}, decl.Params[2].UpdaterArgs)
	assert.Empty(t, CheckOrder(decl))
}

func TestCheckCanary(t *testing.T) {
	ctx := context.Background()

	cfg, err := CheckCanary(ctx, newSSRCasc(t), nil)
	require.NoError(t, err)
	assert.Equal(t, "TP_SSR=1 TP_CASC_LEN=1", cfg.String())

	_, err = CheckCanary(ctx, newSSRCasc(t), map[string]domain.Value{"TP_SSR": domain.Int(3)})
	assert.True(t, IsValidationFailed(err))
	assert.False(t, IsPathFatal(err))

	_, err = CheckCanary(ctx, newWindowed(t, 100), nil)
	assert.True(t, IsValidationFailed(err), "a broken declared default fails the canary")
}
