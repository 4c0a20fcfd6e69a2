package validation

import (
	"context"
	"errors"
	"math"
	"testing"

	"gosobol/domain/core"
	"gosobol/domain/gsa"
	"gosobol/domain/param"
	"gosobol/internal/evaluation"
	"gosobol/internal/sampling"
	"gosobol/internal/simplify"
	"gosobol/internal/sobol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeParams(t *testing.T) []param.Parameter {
	t.Helper()
	p1, err := param.NewTriangle("p1", 0.5, 1, 1.5)
	require.NoError(t, err)
	p2, err := param.NewTriangle("p2", 1, 2, 3)
	require.NoError(t, err)
	p3, err := param.NewUniform("p3", 0, 0.5, 1)
	require.NoError(t, err)
	return []param.Parameter{p1, p2, p3}
}

func model() evaluation.Func {
	return evaluation.Func{Names: []string{"f", "c"}, Fn: func(_ context.Context, a param.Assignment) (gsa.OutputVector, error) {
		p1, p2, p3 := a.MustValue("p1"), a.MustValue("p2"), a.MustValue("p3")
		return gsa.OutputVector{2*p1 + 3*p2 + 0.5*p3, 7}, nil
	}}
}

func newComparator() *Comparator {
	return NewComparator(sampling.NewSampler(nil), evaluation.NewRunner(evaluation.Options{Workers: 4, BatchSize: 50}, nil), nil)
}

func simplified(t *testing.T, params []param.Parameter, criterion simplify.Criterion) []gsa.SimplifiedModel {
	t.Helper()
	ctx := context.Background()
	ev := model()
	m, err := sampling.NewSampler(nil).Generate(params, sampling.Options{N: 256, Seed: 3, Scheme: gsa.SchemeSaltelli})
	require.NoError(t, err)
	outputs, err := evaluation.NewRunner(evaluation.Options{}, nil).Run(ctx, ev, m)
	require.NoError(t, err)
	res, err := sobol.NewEngine(sobol.Options{}, nil).Compute(ctx, m, outputs, ev.Outputs())
	require.NoError(t, err)
	s, err := simplify.NewSimplifier(simplify.Options{Criterion: criterion, Strategy: gsa.StrategyRegression, Degree: 1}, nil)
	require.NoError(t, err)
	models, err := s.Simplify(ctx, simplify.Input{Result: res, Parameters: params, Design: m, Outputs: outputs})
	require.NoError(t, err)
	return models
}

func TestCompare_ExplainedVarianceGrowsWithCutoff(t *testing.T) {
	params := threeParams(t)
	c := newComparator()

	previous := math.Inf(-1)
	for k := 1; k <= 3; k++ {
		models := simplified(t, params, simplify.TopKCriterion(k))
		reports, err := c.Compare(context.Background(), model(), models[:1], params, Options{Samples: 400, Seed: 3})
		require.NoError(t, err)
		require.Len(t, reports, 1)

		r := reports[0]
		assert.Equal(t, "f", r.Output)
		assert.Equal(t, k, r.Retained)
		assert.Equal(t, 400, r.Samples)
		assert.GreaterOrEqual(t, r.ExplainedVariance, previous-1e-9)
		previous = r.ExplainedVariance
	}
	// With every parameter retained the linear fit is exact.
	assert.InDelta(t, 1.0, previous, 1e-9)
}

func TestCompare_Metrics(t *testing.T) {
	params := threeParams(t)
	models := simplified(t, params, simplify.TopKCriterion(1))

	reports, err := newComparator().Compare(context.Background(), model(), models, params, Options{Samples: 300, Seed: 9})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	f := reports[0]
	assert.Greater(t, f.ExplainedVariance, 0.5)
	assert.Less(t, f.ExplainedVariance, 1.0)
	assert.Greater(t, f.Correlation, 0.7)
	assert.Greater(t, f.RankCorrelation, 0.6)
	assert.Greater(t, f.MaxAbsDeviation, 0.0)
	assert.LessOrEqual(t, f.MeanAbsDeviation, f.MaxAbsDeviation)
	assert.InDelta(t, f.FullMean, f.SurrogateMean, 0.1)

	constant := reports[1]
	assert.Equal(t, "c", constant.Output)
	assert.True(t, math.IsNaN(constant.ExplainedVariance))
	assert.True(t, math.IsNaN(constant.Correlation))
	assert.True(t, math.IsNaN(constant.RankCorrelation))
	assert.InDelta(t, 0.0, constant.MaxAbsDeviation, 1e-9)
}

func TestCompare_Deterministic(t *testing.T) {
	params := threeParams(t)
	models := simplified(t, params, simplify.TopKCriterion(2))
	c := newComparator()

	a, err := c.Compare(context.Background(), model(), models, params, Options{Samples: 100, Seed: 5})
	require.NoError(t, err)
	b, err := c.Compare(context.Background(), model(), models, params, Options{Samples: 100, Seed: 5})
	require.NoError(t, err)
	assert.Equal(t, a[0], b[0])
}

func TestCompare_Errors(t *testing.T) {
	params := threeParams(t)
	models := simplified(t, params, simplify.TopKCriterion(1))
	c := newComparator()

	_, err := c.Compare(context.Background(), model(), models, params, Options{Samples: 1, Seed: 1})
	assert.ErrorIs(t, err, core.ErrInsufficientSamples)

	other := evaluation.Func{Names: []string{"g"}, Fn: func(context.Context, param.Assignment) (gsa.OutputVector, error) {
		return gsa.OutputVector{1}, nil
	}}
	_, err = c.Compare(context.Background(), other, models, params, Options{Samples: 10, Seed: 1})
	assert.True(t, core.IsConfigurationError(err))

	boom := errors.New("boom")
	failing := evaluation.Func{Names: []string{"f", "c"}, Fn: func(context.Context, param.Assignment) (gsa.OutputVector, error) {
		return nil, boom
	}}
	_, err = c.Compare(context.Background(), failing, models, params, Options{Samples: 10, Seed: 1})
	assert.ErrorIs(t, err, boom)
	assert.True(t, core.IsEvaluationError(err))
}

func TestRanks_Ties(t *testing.T) {
	assert.Equal(t, []float64{3, 1.5, 4, 1.5}, ranks([]float64{2, 1, 5, 1}))
}

func TestSpearman_Monotone(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 1.0, spearman(x, []float64{1, 8, 27, 64, 125}), 1e-12)
	assert.InDelta(t, -1.0, spearman(x, []float64{5, 3, 2, 0, -9}), 1e-12)
	assert.True(t, math.IsNaN(spearman(x, []float64{2, 2, 2, 2, 2})))
}
