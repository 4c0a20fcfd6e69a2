package expression

import (
	"context"
	"testing"

	"gosobol/domain/core"
	"gosobol/domain/param"
	"gosobol/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linear = `
parameters:
  - {name: p1, distribution: triangle, low: 0.5, default: 1, high: 1.5}
  - {name: p2, distribution: triangle, low: 1, default: 2, high: 3}
outputs:
  - {name: f, expression: "2 * p1 + 3 * p2"}
  - {name: g, expression: "p1 * p2 ** 2"}
`

var (
	_ ports.Evaluator       = (*Model)(nil)
	_ ports.AlgebraicModel  = (*Model)(nil)
	_ ports.ParameterSource = (*Model)(nil)
)

func TestParse_Evaluate(t *testing.T) {
	m, err := Parse([]byte(linear))
	require.NoError(t, err)
	assert.Equal(t, []string{"f", "g"}, m.Outputs())
	require.Len(t, m.Parameters(), 2)
	assert.Equal(t, param.Triangle, m.Parameters()[1].Distribution)

	defaults, err := param.Defaults(m.Parameters())
	require.NoError(t, err)
	out, err := m.Evaluate(context.Background(), defaults)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{8, 4}, []float64(out), 1e-12)

	exprs, err := m.Expressions()
	require.NoError(t, err)
	assert.Equal(t, "p1 * p2 ** 2", exprs["g"])
}

func TestCompile_Errors(t *testing.T) {
	p1, err := param.NewUniform("p1", 0, 0.5, 1)
	require.NoError(t, err)

	_, err = Compile(Definition{Parameters: []param.Parameter{p1}})
	assert.True(t, core.IsConfigurationError(err))

	_, err = Compile(Definition{Parameters: []param.Parameter{p1}, Outputs: []Output{{Name: "f", Expression: "p1 + q"}}})
	assert.True(t, core.IsConfigurationError(err))

	_, err = Compile(Definition{Parameters: []param.Parameter{p1}, Outputs: []Output{{Name: "f", Expression: `"text"`}}})
	assert.True(t, core.IsConfigurationError(err))

	_, err = Compile(Definition{
		Parameters: []param.Parameter{p1},
		Outputs:    []Output{{Name: "f", Expression: "p1"}, {Name: "f", Expression: "2 * p1"}},
	})
	assert.True(t, core.IsConfigurationError(err))

	_, err = Compile(Definition{Parameters: []param.Parameter{p1}, Outputs: []Output{{Name: "<img src=x onerror=alert(1)>", Expression: "p1"}}})
	assert.True(t, core.IsConfigurationError(err))

	m, err := Compile(Definition{Parameters: []param.Parameter{p1}, Outputs: []Output{{Name: "GWP100 (kg CO2-eq)", Expression: "p1"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"GWP100 (kg CO2-eq)"}, m.Outputs())

	_, err = Compile(Definition{Parameters: []param.Parameter{p1, p1}, Outputs: []Output{{Name: "f", Expression: "p1"}}})
	assert.True(t, core.IsDuplicateParameter(err))

	_, err = Parse([]byte("parameters: [{name: bad name, distribution: uniform, low: 0, default: 0, high: 1}]\noutputs: [{name: f, expression: '1'}]"))
	assert.True(t, core.IsConfigurationError(err))
}

func TestEvaluate_NonFinite(t *testing.T) {
	m, err := Parse([]byte(`
parameters:
  - {name: x, distribution: uniform, low: 0, default: 0, high: 1}
outputs:
  - {name: inv, expression: "1 / x"}
`))
	require.NoError(t, err)
	defaults, err := param.Defaults(m.Parameters())
	require.NoError(t, err)
	_, err = m.Evaluate(context.Background(), defaults)
	assert.ErrorContains(t, err, "non-finite")
}
