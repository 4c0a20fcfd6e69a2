// Package simplify reduces a model to its most influential parameters and
// fits a surrogate per output.
package simplify

import (
	"context"
	"fmt"

	"gosobol/domain/core"
	"gosobol/domain/gsa"
	"gosobol/domain/param"
	"gosobol/internal"
	"gosobol/ports"
)

// Options fix the retention rule and the surrogate strategy for one run.
type Options struct {
	Criterion Criterion
	Strategy  gsa.Strategy
	// Degree and Interactions apply to the regression strategy.
	Degree       int
	Interactions bool
}

// Validate checks the options before any work is done.
func (o Options) Validate() error {
	if err := o.Criterion.Validate(); err != nil {
		return err
	}
	switch o.Strategy {
	case gsa.StrategyRegression:
		if o.Degree < 1 || o.Degree > MaxDegree {
			return core.NewConfigurationError(core.StageSimplify, "degree", "must be in [1, %d], got %d", MaxDegree, o.Degree)
		}
	case gsa.StrategySymbolic:
	default:
		return core.NewConfigurationError(core.StageSimplify, "strategy", "unknown strategy %q", o.Strategy)
	}
	return nil
}

// Input is everything the simplifier reads. Nothing in it is modified.
type Input struct {
	Result     *gsa.SobolResult
	Parameters []param.Parameter
	// Design and Outputs are the rows the regression strategy fits against.
	Design  *gsa.DesignMatrix
	Outputs []gsa.OutputVector
	// Model is required by the symbolic strategy.
	Model ports.AlgebraicModel
}

type Simplifier struct {
	opts   Options
	logger *internal.Logger
}

func NewSimplifier(opts Options, logger *internal.Logger) (*Simplifier, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Simplifier{opts: opts, logger: logger.Named("simplify")}, nil
}

// Simplify builds one SimplifiedModel per output of in.Result, in output order.
func (s *Simplifier) Simplify(ctx context.Context, in Input) ([]gsa.SimplifiedModel, error) {
	if in.Result == nil {
		return nil, core.NewConfigurationError(core.StageSimplify, "result", "sobol result is required")
	}
	byName := make(map[string]param.Parameter, len(in.Parameters))
	for _, p := range in.Parameters {
		byName[p.Name] = p
	}
	for _, name := range in.Result.Parameters {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("%s: %w %q", core.StageSimplify, core.ErrUnknownParameter, name)
		}
	}

	var expressions map[string]string
	switch s.opts.Strategy {
	case gsa.StrategySymbolic:
		if in.Model == nil {
			return nil, core.NewConfigurationError(core.StageSimplify, "strategy",
				"symbolic strategy needs a model with closed-form expressions")
		}
		var err error
		if expressions, err = in.Model.Expressions(); err != nil {
			return nil, core.NewConfigurationError(core.StageSimplify, "strategy", "model has no closed form: %v", err)
		}
	case gsa.StrategyRegression:
		if in.Design == nil || len(in.Outputs) != in.Design.Rows() {
			return nil, core.NewConfigurationError(core.StageSimplify, "design",
				"regression strategy needs the design rows and their outputs")
		}
	}

	models := make([]gsa.SimplifiedModel, 0, len(in.Result.Outputs))
	for o, output := range in.Result.Outputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sel, err := Select(in.Result, output, s.opts.Criterion)
		if err != nil {
			return nil, err
		}

		m := gsa.SimplifiedModel{
			Output:       output,
			Strategy:     s.opts.Strategy,
			Retained:     sel.Retained,
			Fixed:        make(map[string]float64),
			Sobols:       make(map[string]float64, len(in.Result.Parameters)),
			CumulativeS1: sel.CumulativeS1,
			Reached:      sel.Reached,
		}
		kept := make(map[string]bool, len(sel.Retained))
		for _, name := range sel.Retained {
			kept[name] = true
		}
		for _, name := range in.Result.Parameters {
			idx, _ := in.Result.Index(name, output)
			m.Sobols[name] = idx.S1
			if !kept[name] {
				m.Fixed[name] = byName[name].Default
			}
		}

		switch s.opts.Strategy {
		case gsa.StrategyRegression:
			retained := make([]param.Parameter, len(sel.Retained))
			for i, name := range sel.Retained {
				retained[i] = byName[name]
			}
			m.Surrogate, err = fitPolynomial(retained, in.Design, in.Outputs, o, s.opts.Degree, s.opts.Interactions)
		case gsa.StrategySymbolic:
			source, ok := expressions[output]
			if !ok {
				return nil, core.NewConfigurationError(core.StageSimplify, "expression", "no expression for output %q", output)
			}
			m.Surrogate, err = compileRestricted(output, source, sel.Retained, m.Fixed)
		}
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", output, err)
		}

		if !sel.Reached {
			s.logger.Warn("output %q: cutoff not reached with all %d parameters (cumulative S1 %.3f)",
				output, len(sel.Retained), sel.CumulativeS1)
		}
		s.logger.Info("output %q: retained %d of %d parameters (cumulative S1 %.3f)",
			output, len(sel.Retained), len(in.Result.Parameters), sel.CumulativeS1)
		models = append(models, m)
	}
	return models, nil
}
