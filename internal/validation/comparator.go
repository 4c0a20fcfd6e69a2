// Package validation compares simplified models with the full model on a
// fresh sample.
package validation

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gosobol/domain/core"
	"gosobol/domain/gsa"
	"gosobol/domain/param"
	"gosobol/internal"
	"gosobol/internal/evaluation"
	"gosobol/internal/sampling"
	"gosobol/ports"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// Options size the validation sample. Seed is the run's root seed; the
// validation stream is derived from it so it never reuses design points.
type Options struct {
	Samples int
	Seed    uint64
}

// Comparator is read-only with respect to both models.
type Comparator struct {
	sampler *sampling.Sampler
	runner  *evaluation.Runner
	logger  *internal.Logger
}

func NewComparator(sampler *sampling.Sampler, runner *evaluation.Runner, logger *internal.Logger) *Comparator {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Comparator{sampler: sampler, runner: runner, logger: logger.Named("validation")}
}

// Compare evaluates full and every model on the same quasi-random sample
// and reports one ComparisonReport per model, in model order.
func (c *Comparator) Compare(ctx context.Context, full ports.Evaluator, models []gsa.SimplifiedModel, params []param.Parameter, opts Options) ([]gsa.ComparisonReport, error) {
	seed := core.DeriveSeed(opts.Seed, "validation")
	m, err := c.sampler.Generate(params, sampling.Options{N: opts.Samples, Seed: seed, Scheme: gsa.SchemeQuasiRandom})
	if err != nil {
		return nil, err
	}
	outputs, err := c.runner.Run(ctx, full, m)
	if err != nil {
		return nil, err
	}

	column := make(map[string]int)
	for i, name := range full.Outputs() {
		column[name] = i
	}

	reports := make([]gsa.ComparisonReport, 0, len(models))
	for _, model := range models {
		o, ok := column[model.Output]
		if !ok {
			return nil, core.NewConfigurationError(core.StageValidation, "output", "model output %q is not produced by the full model", model.Output)
		}
		values := make([]float64, m.Rows())
		estimates := make([]float64, m.Rows())
		for i := 0; i < m.Rows(); i++ {
			values[i] = outputs[i][o]
			y, err := model.Predict(m.Row(i))
			if err != nil {
				return nil, fmt.Errorf("%s: output %q row %d: %w", core.StageValidation, model.Output, i, err)
			}
			estimates[i] = y
		}
		report := compare(values, estimates)
		report.Output = model.Output
		report.Retained = len(model.Retained)
		c.logger.Info("output %q: explained variance %.4f, max |dev| %.4g over %d samples",
			model.Output, report.ExplainedVariance, report.MaxAbsDeviation, report.Samples)
		reports = append(reports, report)
	}
	return reports, nil
}

func compare(values, estimates []float64) gsa.ComparisonReport {
	r := gsa.ComparisonReport{
		Samples:       len(values),
		FullMean:      stat.Mean(values, nil),
		SurrogateMean: stat.Mean(estimates, nil),
	}
	var sum float64
	for i := range values {
		d := math.Abs(values[i] - estimates[i])
		sum += d
		r.MaxAbsDeviation = math.Max(r.MaxAbsDeviation, d)
	}
	r.MeanAbsDeviation = sum / float64(len(values))

	if mean, variance := stat.PopMeanVariance(values, nil); gsa.ZeroVariance(mean, variance) {
		r.ExplainedVariance = math.NaN()
		r.Correlation = math.NaN()
		r.RankCorrelation = math.NaN()
		return r
	}
	r.ExplainedVariance = stat.RSquaredFrom(estimates, values, nil)
	if corr, err := stats.Pearson(values, estimates); err == nil {
		r.Correlation = corr
	} else {
		r.Correlation = math.NaN()
	}
	r.RankCorrelation = spearman(values, estimates)
	return r
}

// spearman is the Pearson correlation of the mid-ranks of x and y. A
// constant surrogate has no rank order and yields NaN.
func spearman(x, y []float64) float64 {
	rx, ry := ranks(x), ranks(y)
	if _, v := stat.PopMeanVariance(ry, nil); v == 0 {
		return math.NaN()
	}
	return stat.Correlation(rx, ry, nil)
}

// ranks assigns 1-based ranks, averaging over ties.
func ranks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	out := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i + 1
		for j < len(idx) && values[idx[j]] == values[idx[i]] {
			j++
		}
		mid := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			out[idx[k]] = mid
		}
		i = j
	}
	return out
}
