package gsa

import (
	"fmt"
	"strings"
	"time"

	"gosobol/domain/core"
	"gosobol/domain/param"
)

// Strategy selects how a surrogate is fitted.
type Strategy string

const (
	// StrategyRegression fits a polynomial against the existing design rows.
	StrategyRegression Strategy = "regression"
	// StrategySymbolic restricts the model's own closed form to the retained parameters.
	StrategySymbolic Strategy = "symbolic"
)

// ParseStrategy parses a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyRegression:
		return StrategyRegression, nil
	case StrategySymbolic:
		return StrategySymbolic, nil
	}
	return "", fmt.Errorf("unknown surrogate strategy %q (want regression|symbolic)", s)
}

// Surrogate approximates one output from an assignment.
type Surrogate interface {
	Predict(a param.Assignment) (float64, error)
	// Describe returns the surrogate as an expression over parameter names.
	Describe() string
}

// SimplifiedModel is the reduced model of one output. It is built once by
// the simplifier and treated as read-only afterwards.
type SimplifiedModel struct {
	Output   string
	Strategy Strategy
	// Retained parameters, most influential first.
	Retained []string
	// Fixed binds every non-retained parameter to its default.
	Fixed map[string]float64
	// Sobols holds S1 for every parameter, retained or not.
	Sobols       map[string]float64
	CumulativeS1 float64
	// Reached is false when the cutoff could not be met even with every parameter.
	Reached   bool
	Surrogate Surrogate
}

// Predict evaluates the surrogate.
func (m SimplifiedModel) Predict(a param.Assignment) (float64, error) {
	if m.Surrogate == nil {
		return 0, fmt.Errorf("%s: output %q has no surrogate", core.StageSimplify, m.Output)
	}
	return m.Surrogate.Predict(a)
}

// Describe returns the surrogate's expression.
func (m SimplifiedModel) Describe() string {
	if m.Surrogate == nil {
		return ""
	}
	return m.Surrogate.Describe()
}

// RetainedParameters returns a copy of the retained names.
func (m SimplifiedModel) RetainedParameters() []string {
	return append([]string(nil), m.Retained...)
}

// ComparisonReport compares the full model against one surrogate on a
// fresh validation sample.
type ComparisonReport struct {
	Output   string
	Retained int
	Samples  int
	// ExplainedVariance is 1 - SS_res/SS_tot of the surrogate against the full model.
	ExplainedVariance float64
	MaxAbsDeviation   float64
	MeanAbsDeviation  float64
	Correlation       float64
	// RankCorrelation is Spearman's rho; it ignores monotone distortion.
	RankCorrelation float64
	FullMean        float64
	SurrogateMean   float64
}

// Run is the full record of one analysis.
type Run struct {
	ID          core.RunID
	StartedAt   time.Time
	FinishedAt  time.Time
	Seed        uint64
	Scheme      Scheme
	BaseSamples int
	Rows        int
	Fingerprint core.Hash
	Parameters  []param.Parameter
	Outputs     []string
	Result      *SobolResult
	Models      []SimplifiedModel
	Reports     []ComparisonReport
	Timings     map[core.Stage]time.Duration
}

// Model returns the simplified model of output.
func (r *Run) Model(output string) (SimplifiedModel, bool) {
	for _, m := range r.Models {
		if m.Output == output {
			return m, true
		}
	}
	return SimplifiedModel{}, false
}

// Report returns the comparison report of output.
func (r *Run) Report(output string) (ComparisonReport, bool) {
	for _, c := range r.Reports {
		if c.Output == output {
			return c, true
		}
	}
	return ComparisonReport{}, false
}
