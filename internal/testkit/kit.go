// Package testkit provides reference models and ready-made runs for tests.
package testkit

import (
	"context"
	"fmt"

	"gosobol/adapters/expression"
	"gosobol/adapters/lca"
	"gosobol/adapters/memory"
	"gosobol/app"
	"gosobol/domain/gsa"
	"gosobol/domain/param"
	"gosobol/internal"
	"gosobol/internal/evaluation"
	"gosobol/internal/sampling"
	"gosobol/internal/simplify"
	"gosobol/internal/sobol"
)

// LinearYAML is the two-parameter reference model: f = 2 p1 + 3 p2, whose
// variance is dominated by p2, and g, which has a p1 x p2 interaction.
const LinearYAML = `
parameters:
  - {name: p1, distribution: triangle, low: 0.5, default: 1, high: 1.5}
  - {name: p2, distribution: triangle, low: 1, default: 2, high: 3}
outputs:
  - {name: f, expression: "2 * p1 + 3 * p2"}
  - {name: g, expression: "p1 * p2 ** 2"}
`

// TestKit wires the analysis service to an in-memory run store.
type TestKit struct {
	Runs     *memory.RunRepository
	Analysis *app.AnalysisService
	Logger   *internal.Logger
}

// NewTestKit creates a kit with a quiet logger.
func NewTestKit() *TestKit {
	logger := internal.NewNopLogger()
	runs := memory.NewRunRepository()
	return &TestKit{
		Runs:     runs,
		Analysis: app.NewAnalysisService(runs, logger),
		Logger:   logger,
	}
}

// LinearModel compiles LinearYAML.
func LinearModel() *expression.Model {
	m, err := expression.Parse([]byte(LinearYAML))
	if err != nil {
		panic(fmt.Sprintf("testkit: linear model: %v", err))
	}
	return m
}

// Options returns small, fast analysis options retaining the top k
// parameters with a quadratic regression surrogate.
func Options(n int, seed uint64, topK int) app.AnalysisOptions {
	return app.AnalysisOptions{
		Sampling:          sampling.Options{N: n, Seed: seed, Scheme: gsa.SchemeSaltelli},
		Evaluation:        evaluation.Options{Workers: 2, BatchSize: 64},
		Sensitivity:       sobol.Options{Tolerance: 0.05, Resamples: 20, ConfidenceLevel: 0.95, SecondOrder: true},
		Simplify:          simplify.Options{Criterion: simplify.TopKCriterion(topK), Strategy: gsa.StrategyRegression, Degree: 2},
		ValidationSamples: 200,
	}
}

// RunLinear analyses LinearModel and stores the run.
func (k *TestKit) RunLinear(ctx context.Context, n int) (*gsa.Run, error) {
	m := LinearModel()
	return k.Analysis.Run(ctx, app.AnalysisRequest{Model: m, Parameters: m.Parameters(), Options: Options(n, 7, 1)})
}

// RunDemo parameterizes every foreground exchange of the demo inventory
// and analyses it.
func (k *TestKit) RunDemo(ctx context.Context, n int) (*gsa.Run, *lca.Inventory, error) {
	inv := lca.Demo()
	reg := param.NewRegistry()
	_, err := app.NewUncertaintyService(k.Logger).Assign(reg, inv.ExchangesIn(lca.Foreground), app.AssignOptions{
		Fraction:     1,
		Spread:       0.5,
		Distribution: param.Triangle,
		ZeroPolicy:   app.ZeroSkip,
		Naming:       app.NamingInputOutput,
		Seed:         7,
	})
	if err != nil {
		return nil, nil, err
	}
	reg.Seal()
	run, err := k.Analysis.Run(ctx, app.AnalysisRequest{Model: inv, Parameters: reg.Parameters(), Options: Options(n, 7, 2)})
	return run, inv, err
}
