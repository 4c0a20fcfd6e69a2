package app

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"

	"gosobol/domain/core"
	"gosobol/domain/gsa"
	"gosobol/domain/param"
	"gosobol/internal/config"
	"gosobol/internal/evaluation"
	"gosobol/internal/sampling"
	"gosobol/internal/simplify"
	"gosobol/internal/sobol"
	"gosobol/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunRepository struct {
	mock.Mock
}

func (m *mockRunRepository) SaveRun(ctx context.Context, run *gsa.RunSummary) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockRunRepository) GetRun(ctx context.Context, id core.RunID) (*gsa.RunSummary, error) {
	args := m.Called(ctx, id)
	run, _ := args.Get(0).(*gsa.RunSummary)
	return run, args.Error(1)
}

func (m *mockRunRepository) ListRuns(ctx context.Context, filters ports.RunFilters) ([]gsa.RunSummary, error) {
	args := m.Called(ctx, filters)
	runs, _ := args.Get(0).([]gsa.RunSummary)
	return runs, args.Error(1)
}

func twoTriangles(t *testing.T) []param.Parameter {
	t.Helper()
	p1, err := param.NewTriangle("p1", 0.5, 1, 1.5)
	require.NoError(t, err)
	p2, err := param.NewTriangle("p2", 1, 2, 3)
	require.NoError(t, err)
	return []param.Parameter{p1, p2}
}

// linearModel evaluates f = 2*p1 + 3*p2 and counts calls.
type linearModel struct {
	calls atomic.Int64
}

func (m *linearModel) Outputs() []string { return []string{"f"} }

func (m *linearModel) Evaluate(_ context.Context, a param.Assignment) (gsa.OutputVector, error) {
	m.calls.Add(1)
	return gsa.OutputVector{2*a.MustValue("p1") + 3*a.MustValue("p2")}, nil
}

func topOne(n int) AnalysisOptions {
	return AnalysisOptions{
		Sampling:          sampling.Options{N: n, Seed: 11, Scheme: gsa.SchemeSaltelli},
		Evaluation:        evaluation.Options{Workers: 4, BatchSize: 100},
		Sensitivity:       sobol.Options{Tolerance: 0.05, Resamples: 50, ConfidenceLevel: 0.95},
		Simplify:          simplify.Options{Criterion: simplify.TopKCriterion(1), Strategy: gsa.StrategyRegression, Degree: 1},
		ValidationSamples: 500,
	}
}

func TestAnalysisService_LinearScenario(t *testing.T) {
	repo := &mockRunRepository{}
	repo.On("SaveRun", mock.Anything, mock.AnythingOfType("*gsa.RunSummary")).Return(nil).Once()

	model := &linearModel{}
	svc := NewAnalysisService(repo, nil)
	run, err := svc.Run(context.Background(), AnalysisRequest{Model: model, Parameters: twoTriangles(t), Options: topOne(500)})
	require.NoError(t, err)

	assert.Equal(t, 500*6, run.Rows)
	assert.Equal(t, int64(500*6+500), model.calls.Load())

	p1, _ := run.Result.Index("p1", "f")
	p2, _ := run.Result.Index("p2", "f")
	assert.Greater(t, p2.S1, p1.S1)

	m, ok := run.Model("f")
	require.True(t, ok)
	assert.Equal(t, []string{"p2"}, m.Retained)

	report, ok := run.Report("f")
	require.True(t, ok)
	assert.Greater(t, report.ExplainedVariance, 0.8)

	for _, stage := range []core.Stage{core.StageSampling, core.StageEvaluation, core.StageSensitivity, core.StageSimplify, core.StageValidation} {
		assert.Contains(t, run.Timings, stage)
	}

	repo.AssertExpectations(t)
	saved := repo.Calls[0].Arguments.Get(1).(*gsa.RunSummary)
	assert.Equal(t, run.ID.String(), saved.ID)
	require.Len(t, saved.Outputs, 1)
	assert.Equal(t, "p2", saved.Outputs[0].Ranking[0].Parameter)
}

func TestAnalysisService_SkipValidation(t *testing.T) {
	opts := topOne(64)
	opts.SkipValidation = true
	opts.ValidationSamples = 0

	model := &linearModel{}
	run, err := NewAnalysisService(nil, nil).Run(context.Background(), AnalysisRequest{Model: model, Parameters: twoTriangles(t), Options: opts})
	require.NoError(t, err)
	assert.Empty(t, run.Reports)
	assert.Equal(t, int64(64*6), model.calls.Load())
	assert.NotContains(t, run.Timings, core.StageValidation)
}

// failOnRow fails when it sees the exact values of one design row.
type failOnRow struct {
	target []float64
	cause  error
}

func (f *failOnRow) Outputs() []string { return []string{"f"} }

func (f *failOnRow) Evaluate(_ context.Context, a param.Assignment) (gsa.OutputVector, error) {
	if slices.Equal(a.Values(), f.target) {
		return nil, f.cause
	}
	return gsa.OutputVector{a.MustValue("p1")}, nil
}

func TestAnalysisService_EvaluationFailureAbortsRun(t *testing.T) {
	var params []param.Parameter
	for _, name := range []string{"p1", "p2", "p3", "p4"} {
		p, err := param.NewUniform(name, 0, 0.5, 1)
		require.NoError(t, err)
		params = append(params, p)
	}
	opts := topOne(200)
	design, err := sampling.NewSampler(nil).Generate(params, opts.Sampling)
	require.NoError(t, err)
	require.Equal(t, 2000, design.Rows())

	repo := &mockRunRepository{}
	cause := errors.New("solver diverged")
	model := &failOnRow{target: design.Row(37).Values(), cause: cause}

	run, err := NewAnalysisService(repo, nil).Run(context.Background(), AnalysisRequest{Model: model, Parameters: params, Options: opts})
	require.Error(t, err)
	assert.Nil(t, run)
	assert.ErrorIs(t, err, cause)
	row, ok := core.FailedRow(err)
	require.True(t, ok)
	assert.Equal(t, 37, row)
	repo.AssertNotCalled(t, "SaveRun", mock.Anything, mock.Anything)
}

func TestAnalysisService_ConfigurationFailsBeforeEvaluation(t *testing.T) {
	params := twoTriangles(t)
	cases := map[string]struct {
		params []param.Parameter
		mutate func(*AnalysisOptions)
		check  func(error) bool
	}{
		"symbolic without closed form": {
			params: params,
			mutate: func(o *AnalysisOptions) { o.Simplify.Strategy = gsa.StrategySymbolic },
			check:  core.IsConfigurationError,
		},
		"quasi random scheme": {
			params: params,
			mutate: func(o *AnalysisOptions) { o.Sampling.Scheme = gsa.SchemeQuasiRandom },
			check:  core.IsConfigurationError,
		},
		"both criteria": {
			params: params,
			mutate: func(o *AnalysisOptions) {
				c := 0.8
				o.Simplify.Criterion.Cutoff = &c
			},
			check: core.IsConfigurationError,
		},
		"too few samples": {
			params: params,
			mutate: func(o *AnalysisOptions) { o.Sampling.N = 1 },
			check:  func(err error) bool { return errors.Is(err, core.ErrInsufficientSamples) },
		},
		"duplicate parameter": {
			params: append(params, params[0]),
			mutate: func(*AnalysisOptions) {},
			check:  core.IsDuplicateParameter,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			opts := topOne(16)
			tc.mutate(&opts)
			model := &linearModel{}
			_, err := NewAnalysisService(nil, nil).Run(context.Background(), AnalysisRequest{Model: model, Parameters: tc.params, Options: opts})
			require.Error(t, err)
			assert.True(t, tc.check(err), err.Error())
			assert.Zero(t, model.calls.Load())
		})
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg, err := config.ParseAnalysis([]byte(`
sampling:
  n: 128
  seed: 9
  scheme: saltelli
simplify:
  top_k: 2
  strategy: regression
`))
	require.NoError(t, err)

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 128, opts.Sampling.N)
	assert.Equal(t, uint64(9), opts.Sampling.Seed)
	assert.Equal(t, gsa.SchemeSaltelli, opts.Sampling.Scheme)
	require.NotNil(t, opts.Simplify.Criterion.TopK)
	assert.Equal(t, 2, *opts.Simplify.Criterion.TopK)
	assert.Equal(t, config.DefaultDegree, opts.Simplify.Degree)
	assert.Equal(t, config.DefaultValidationSamples, opts.ValidationSamples)
	assert.Equal(t, config.DefaultWorkers, opts.Evaluation.Workers)
}
