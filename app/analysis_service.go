package app

import (
	"context"
	"fmt"
	"time"

	"gosobol/domain/core"
	"gosobol/domain/gsa"
	"gosobol/domain/param"
	"gosobol/internal"
	"gosobol/internal/config"
	"gosobol/internal/evaluation"
	"gosobol/internal/sampling"
	"gosobol/internal/simplify"
	"gosobol/internal/sobol"
	"gosobol/internal/validation"
	"gosobol/ports"
)

// AnalysisOptions fix every stage of one run. Sampling.Seed is the root
// seed; bootstrap and validation streams are derived from it.
type AnalysisOptions struct {
	Sampling          sampling.Options
	Evaluation        evaluation.Options
	Sensitivity       sobol.Options
	Simplify          simplify.Options
	ValidationSamples int
	SkipValidation    bool
}

// OptionsFromConfig converts a validated analysis section.
func OptionsFromConfig(cfg *config.AnalysisConfig) (AnalysisOptions, error) {
	scheme, err := gsa.ParseScheme(cfg.Sampling.Scheme)
	if err != nil {
		return AnalysisOptions{}, core.NewConfigurationError(core.StageConfig, "sampling.scheme", "%v", err)
	}
	strategy, err := gsa.ParseStrategy(cfg.Simplify.Strategy)
	if err != nil {
		return AnalysisOptions{}, core.NewConfigurationError(core.StageConfig, "simplify.strategy", "%v", err)
	}
	return AnalysisOptions{
		Sampling: sampling.Options{N: cfg.Sampling.N, Seed: cfg.Seed(), Scheme: scheme},
		Evaluation: evaluation.Options{
			Workers:   cfg.Evaluation.Workers,
			BatchSize: cfg.Evaluation.BatchSize,
		},
		Sensitivity: sobol.Options{
			Tolerance:       cfg.Tolerance(),
			Resamples:       cfg.Resamples(),
			ConfidenceLevel: cfg.Sensitivity.ConfidenceLevel,
			SecondOrder:     cfg.Sensitivity.SecondOrder,
			Workers:         cfg.Evaluation.Workers,
		},
		Simplify: simplify.Options{
			Criterion:    simplify.Criterion{Cutoff: cfg.Simplify.Cutoff, TopK: cfg.Simplify.TopK},
			Strategy:     strategy,
			Degree:       cfg.Simplify.Degree,
			Interactions: cfg.Simplify.Interactions,
		},
		ValidationSamples: cfg.Validation.Samples,
		SkipValidation:    cfg.Validation.Skip,
	}, nil
}

// AssignOptionsFromConfig converts a validated assignment section.
func AssignOptionsFromConfig(cfg *config.AnalysisConfig) AssignOptions {
	a := cfg.Assignment
	return AssignOptions{
		Fraction:       a.Fraction,
		Spread:         a.Spread,
		Distribution:   param.Distribution(a.Distribution),
		ZeroPolicy:     ZeroPolicy(a.ZeroPolicy),
		AbsoluteSpread: a.AbsoluteSpread,
		Naming:         Naming(a.Naming),
		Seed:           cfg.Seed(),
	}
}

// AnalysisRequest is one model and its parameters.
type AnalysisRequest struct {
	Model      ports.Evaluator
	Parameters []param.Parameter
	Options    AnalysisOptions
}

// AnalysisService runs the sampling, evaluation, sensitivity,
// simplification and validation stages in order.
type AnalysisService struct {
	sampler *sampling.Sampler
	runs    ports.RunRepository
	logger  *internal.Logger
}

// NewAnalysisService creates the pipeline. runs may be nil, in which case
// nothing is persisted.
func NewAnalysisService(runs ports.RunRepository, logger *internal.Logger) *AnalysisService {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &AnalysisService{
		sampler: sampling.NewSampler(logger),
		runs:    runs,
		logger:  logger,
	}
}

// Run executes the whole pipeline. Configuration problems are reported
// before the model is evaluated even once.
func (s *AnalysisService) Run(ctx context.Context, req AnalysisRequest) (*gsa.Run, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	opts := req.Options
	root := opts.Sampling.Seed

	simplifier, err := simplify.NewSimplifier(opts.Simplify, s.logger)
	if err != nil {
		return nil, err
	}
	runner := evaluation.NewRunner(opts.Evaluation, s.logger)
	sensOpts := opts.Sensitivity
	sensOpts.Seed = root
	engine := sobol.NewEngine(sensOpts, s.logger)

	run := &gsa.Run{
		ID:         core.NewRunID(),
		StartedAt:  time.Now().UTC(),
		Seed:       root,
		Scheme:     opts.Sampling.Scheme,
		Parameters: append([]param.Parameter(nil), req.Parameters...),
		Outputs:    req.Model.Outputs(),
		Timings:    make(map[core.Stage]time.Duration),
	}
	log := s.logger.With("run", run.ID.String())
	log.Info("starting analysis of %d parameters, %d outputs (%s, n=%d, seed=%d)",
		len(req.Parameters), len(run.Outputs), opts.Sampling.Scheme, opts.Sampling.N, root)

	stage := func(name core.Stage, fn func() error) error {
		start := time.Now()
		err := fn()
		run.Timings[name] = time.Since(start)
		if err != nil {
			log.Error("%s failed after %s: %v", name, run.Timings[name], err)
		}
		return err
	}

	var design *gsa.DesignMatrix
	if err := stage(core.StageSampling, func() (err error) {
		design, err = s.sampler.Generate(req.Parameters, opts.Sampling)
		return err
	}); err != nil {
		return nil, err
	}
	run.BaseSamples = design.BaseSamples()
	run.Rows = design.Rows()
	run.Fingerprint = design.Fingerprint()
	log.Info("design has %d rows (fingerprint %s)", run.Rows, run.Fingerprint.Short())

	var outputs []gsa.OutputVector
	if err := stage(core.StageEvaluation, func() (err error) {
		outputs, err = runner.Run(ctx, req.Model, design)
		return err
	}); err != nil {
		return nil, err
	}

	if err := stage(core.StageSensitivity, func() (err error) {
		run.Result, err = engine.Compute(ctx, design, outputs, run.Outputs)
		return err
	}); err != nil {
		return nil, err
	}

	in := simplify.Input{Result: run.Result, Parameters: req.Parameters, Design: design, Outputs: outputs}
	if algebraic, ok := req.Model.(ports.AlgebraicModel); ok {
		in.Model = algebraic
	}
	if err := stage(core.StageSimplify, func() (err error) {
		run.Models, err = simplifier.Simplify(ctx, in)
		return err
	}); err != nil {
		return nil, err
	}

	if !opts.SkipValidation {
		comparator := validation.NewComparator(s.sampler, runner, s.logger)
		if err := stage(core.StageValidation, func() (err error) {
			run.Reports, err = comparator.Compare(ctx, req.Model, run.Models, req.Parameters,
				validation.Options{Samples: opts.ValidationSamples, Seed: root})
			return err
		}); err != nil {
			return nil, err
		}
	}

	run.FinishedAt = time.Now().UTC()
	log.Info("analysis finished in %s", run.FinishedAt.Sub(run.StartedAt))

	if s.runs != nil {
		summary := run.Summary()
		if err := s.runs.SaveRun(ctx, &summary); err != nil {
			return nil, fmt.Errorf("failed to save run %s: %w", run.ID, err)
		}
	}
	return run, nil
}

// check fails fast on anything that would otherwise surface mid-run.
func (s *AnalysisService) check(req AnalysisRequest) error {
	if req.Model == nil {
		return core.NewConfigurationError(core.StageConfig, "model", "a model is required")
	}
	if len(req.Model.Outputs()) == 0 {
		return core.NewConfigurationError(core.StageConfig, "model", "the model declares no outputs")
	}
	if len(req.Parameters) == 0 {
		return core.NewConfigurationError(core.StageConfig, "parameters", "at least one parameter is required")
	}
	reg := param.NewRegistry()
	for _, p := range req.Parameters {
		if err := reg.Define(p); err != nil {
			return err
		}
	}

	opts := req.Options
	if opts.Sampling.Scheme != gsa.SchemeSaltelli {
		return core.NewConfigurationError(core.StageConfig, "sampling.scheme",
			"sobol analysis needs the %s scheme, got %q", gsa.SchemeSaltelli, opts.Sampling.Scheme)
	}
	if opts.Sampling.N < sampling.MinBaseSamples {
		return core.NewInsufficientSamplesError(core.StageSampling, opts.Sampling.N, sampling.MinBaseSamples)
	}
	if err := opts.Simplify.Validate(); err != nil {
		return err
	}
	if opts.Simplify.Strategy == gsa.StrategySymbolic {
		if _, ok := req.Model.(ports.AlgebraicModel); !ok {
			return core.NewConfigurationError(core.StageConfig, "simplify.strategy",
				"symbolic strategy needs a model with closed-form expressions")
		}
	}
	if !opts.SkipValidation && opts.ValidationSamples < sampling.MinBaseSamples {
		return core.NewInsufficientSamplesError(core.StageValidation, opts.ValidationSamples, sampling.MinBaseSamples)
	}
	return nil
}
