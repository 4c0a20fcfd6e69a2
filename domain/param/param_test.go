package param

import (
	"sync"
	"testing"

	"gosobol/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameter_ValidateBounds(t *testing.T) {
	tests := []struct {
		name    string
		param   Parameter
		wantErr bool
	}{
		{"triangle ok", Parameter{Name: "p1", Distribution: Triangle, Low: 0.5, Default: 1, High: 1.5}, false},
		{"default below low", Parameter{Name: "p1", Distribution: Triangle, Low: 0.5, Default: 0.4, High: 1.5}, true},
		{"default above high", Parameter{Name: "p1", Distribution: Uniform, Low: 0.5, Default: 2, High: 1.5}, true},
		{"zero width", Parameter{Name: "p1", Distribution: Uniform, Low: 1, Default: 1, High: 1}, true},
		{"bad name", Parameter{Name: "p-1", Distribution: Uniform, Low: 0, Default: 1, High: 2}, true},
		{"normal without std", Parameter{Name: "p1", Distribution: Normal, Low: 0, Default: 1, High: 2}, true},
		{"lognormal non-positive low", Parameter{Name: "p1", Distribution: LogNormal, Low: 0, Default: 1, High: 2, Std: 0.2}, true},
		{"unknown distribution", Parameter{Name: "p1", Distribution: "beta", Low: 0, Default: 1, High: 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.param.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsConfigurationError(err), "expected configuration error, got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParameter_QuantileStaysInBounds(t *testing.T) {
	params := []Parameter{
		{Name: "u", Distribution: Uniform, Low: -1, Default: 0, High: 1},
		{Name: "t", Distribution: Triangle, Low: 1, Default: 2, High: 3},
		{Name: "n", Distribution: Normal, Low: 0, Default: 1, High: 2, Std: 0.5},
		{Name: "ln", Distribution: LogNormal, Low: 0.5, Default: 1, High: 2, Std: 0.3},
	}
	d, err := NewDiscrete("d", 2, 3, 1, 2)
	require.NoError(t, err)
	params = append(params, d)

	for _, p := range params {
		require.NoError(t, p.Validate(), p.Name)
		for _, u := range []float64{0, 1e-9, 0.25, 0.5, 0.75, 1 - 1e-9, 1} {
			v := p.Quantile(u)
			assert.GreaterOrEqual(t, v, p.Low, "%s at u=%g", p.Name, u)
			assert.LessOrEqual(t, v, p.High, "%s at u=%g", p.Name, u)
		}
	}
}

func TestParameter_QuantileShapes(t *testing.T) {
	tri, err := NewTriangle("t", 1, 2, 3)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, tri.Quantile(0.5), 1e-9)
	assert.InDelta(t, 1.0, tri.Quantile(0), 1e-9)

	norm, err := NewNormal("n", 0, 1, 2, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, norm.Quantile(0.5), 1e-9)
	assert.InDelta(t, 0.0, norm.Quantile(0), 1e-6)
	assert.InDelta(t, 2.0, norm.Quantile(1), 1e-6)

	d, err := NewDiscrete("d", 2, 3, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, d.Quantile(0.1))
	assert.Equal(t, 2.0, d.Quantile(0.5))
	assert.Equal(t, 3.0, d.Quantile(0.99))
}

func TestRegistry_DefineDuplicateFails(t *testing.T) {
	reg := NewRegistry()
	p1, err := NewTriangle("p1", 0.5, 1, 1.5)
	require.NoError(t, err)

	require.NoError(t, reg.Define(p1))

	other, err := NewUniform("p1", 0, 5, 10)
	require.NoError(t, err)
	err = reg.Define(other)
	require.Error(t, err)
	assert.True(t, core.IsDuplicateParameter(err))

	// Original definition survives.
	got, err := reg.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, Triangle, got.Distribution)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_InvalidDefinitionIsConfigurationError(t *testing.T) {
	reg := NewRegistry()
	err := reg.Define(Parameter{Name: "p1", Distribution: Triangle, Low: 1, Default: 5, High: 2})
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
	assert.False(t, reg.Has("p1"))
}

func TestRegistry_SealBlocksWriters(t *testing.T) {
	reg := NewRegistry()
	p1, _ := NewTriangle("p1", 0.5, 1, 1.5)
	p2, _ := NewTriangle("p2", 1, 2, 3)
	require.NoError(t, reg.Define(p1))
	reg.Seal()

	err := reg.Define(p2)
	assert.ErrorIs(t, err, core.ErrRegistrySealed)
	assert.True(t, reg.Sealed())

	// Many concurrent readers after sealing.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, []string{"p1"}, reg.Names())
		}()
	}
	wg.Wait()
}

func TestAssignment_Immutable(t *testing.T) {
	layout, err := NewLayout([]string{"a", "b"})
	require.NoError(t, err)

	values := []float64{1, 2}
	a, err := NewAssignment(layout, values)
	require.NoError(t, err)

	values[0] = 99
	v, ok := a.Value("a")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	out := a.Values()
	out[1] = 42
	v, _ = a.Value("b")
	assert.Equal(t, 2.0, v)

	b, err := a.With("b", 7)
	require.NoError(t, err)
	v, _ = a.Value("b")
	assert.Equal(t, 2.0, v)
	v, _ = b.Value("b")
	assert.Equal(t, 7.0, v)

	_, err = a.With("missing", 1)
	assert.ErrorIs(t, err, core.ErrUnknownParameter)
}

func TestDefaults(t *testing.T) {
	p1, _ := NewTriangle("p1", 0.5, 1, 1.5)
	p2, _ := NewTriangle("p2", 1, 2, 3)
	a, err := Defaults([]Parameter{p1, p2})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"p1": 1, "p2": 2}, a.Map())
	assert.Equal(t, []string{"p1", "p2"}, a.Names())
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "bg1", SanitizeName("bg1"))
	assert.Equal(t, "fg_db_bg_1", SanitizeName("fg-db.bg 1"))
	assert.Equal(t, "_1abc", SanitizeName("1abc"))
}
