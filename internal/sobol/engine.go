// Package sobol estimates variance-based sensitivity indices from a
// saltelli design and its model outputs.
package sobol

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"gosobol/domain/core"
	"gosobol/domain/gsa"
	"gosobol/internal"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Options tune the estimator.
type Options struct {
	// Tolerance is the slack allowed on S1 <= ST before a violation is reported.
	Tolerance float64
	// Resamples is the number of bootstrap draws; 0 disables confidence intervals.
	Resamples       int
	ConfidenceLevel float64
	SecondOrder     bool
	// Seed drives bootstrap resampling.
	Seed    uint64
	Workers int
}

// Engine computes SobolResults. It keeps no state between calls.
type Engine struct {
	opts   Options
	logger *internal.Logger
}

func NewEngine(opts Options, logger *internal.Logger) *Engine {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Engine{opts: opts, logger: logger.Named("sobol")}
}

// Compute estimates S1 (Saltelli 2010), ST (Jansen) and optionally S2 for
// every (parameter, output) pair. outputs must be aligned with the rows of m.
func (e *Engine) Compute(ctx context.Context, m *gsa.DesignMatrix, outputs []gsa.OutputVector, names []string) (*gsa.SobolResult, error) {
	if m.Scheme() != gsa.SchemeSaltelli {
		return nil, core.NewConfigurationError(core.StageSensitivity, "scheme",
			"sobol indices need a %s design, got %s", gsa.SchemeSaltelli, m.Scheme())
	}
	if len(outputs) != m.Rows() {
		return nil, fmt.Errorf("%s: %w: %d output vectors for %d rows", core.StageSensitivity, core.ErrOutputShape, len(outputs), m.Rows())
	}
	for i, out := range outputs {
		if len(out) != len(names) {
			return nil, fmt.Errorf("%s: %w: row %d has %d values for %d outputs", core.StageSensitivity, core.ErrOutputShape, i, len(out), len(names))
		}
	}

	k := m.Layout().Len()
	res := newResult(m.Parameters(), names, m.BaseSamples(), e.opts)

	sem := semaphore.NewWeighted(int64(e.opts.Workers))
	var wg sync.WaitGroup
	for o := range names {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, fmt.Errorf("%s: %w", core.StageSensitivity, err)
		}
		wg.Add(1)
		go func(o int) {
			defer wg.Done()
			defer sem.Release(1)
			e.computeOutput(res, o, split(outputs, o, k, m.BaseSamples()))
		}(o)
	}
	wg.Wait()

	for o, name := range names {
		if math.IsNaN(res.Variance[o]) {
			res.Degenerate = append(res.Degenerate, name)
			e.logger.Warn("output %q has zero variance; indices are undefined", name)
			continue
		}
		for p, pname := range res.Parameters {
			if s1, st := res.S1[o][p], res.ST[o][p]; s1 > st+e.opts.Tolerance {
				res.Violations = append(res.Violations, gsa.Violation{Parameter: pname, Output: name, S1: s1, ST: st})
			}
		}
	}
	if len(res.Violations) > 0 {
		e.logger.Warn("%d (parameter, output) pairs have S1 > ST + %g", len(res.Violations), e.opts.Tolerance)
	}
	e.logger.Debug("computed indices for %d parameters x %d outputs (n=%d)", k, len(names), m.BaseSamples())
	return res, nil
}

func newResult(params, outputs []string, n int, opts Options) *gsa.SobolResult {
	grid := func() [][]float64 {
		g := make([][]float64, len(outputs))
		for o := range g {
			g[o] = nanSlice(len(params))
		}
		return g
	}
	res := &gsa.SobolResult{
		Parameters:  append([]string(nil), params...),
		Outputs:     append([]string(nil), outputs...),
		BaseSamples: n,
		Tolerance:   opts.Tolerance,
		S1:          grid(),
		ST:          grid(),
		Variance:    nanSlice(len(outputs)),
		Mean:        nanSlice(len(outputs)),
	}
	if opts.Resamples > 0 {
		res.S1Conf = grid()
		res.STConf = grid()
	}
	if opts.SecondOrder {
		res.S2 = make([][][]float64, len(outputs))
		for o := range res.S2 {
			res.S2[o] = make([][]float64, len(params))
			for i := range res.S2[o] {
				res.S2[o][i] = nanSlice(len(params))
			}
		}
	}
	return res
}

// computeOutput fills row o of every result grid. Each goroutine writes only
// its own row.
func (e *Engine) computeOutput(res *gsa.SobolResult, o int, s *samples) {
	all := append(append([]float64(nil), s.a...), s.b...)
	mean, variance := stat.PopMeanVariance(all, nil)
	res.Mean[o] = mean
	if gsa.ZeroVariance(mean, variance) {
		return
	}
	res.Variance[o] = variance
	s.center(mean)

	est := s.estimate(nil, e.opts.SecondOrder)
	copy(res.S1[o], est.s1)
	copy(res.ST[o], est.st)
	if e.opts.SecondOrder {
		for i := range est.s2 {
			copy(res.S2[o][i], est.s2[i])
		}
	}

	if e.opts.Resamples > 0 {
		s1c, stc := e.bootstrap(s, o)
		copy(res.S1Conf[o], s1c)
		copy(res.STConf[o], stc)
	}
}

// bootstrap resamples base rows with replacement and returns the half-width
// of the normal confidence interval for S1 and ST.
func (e *Engine) bootstrap(s *samples, o int) (s1Conf, stConf []float64) {
	k := len(s.ab)
	n := len(s.a)
	rng := rand.New(rand.NewPCG(e.opts.Seed, core.DeriveSeed(e.opts.Seed, fmt.Sprintf("bootstrap/%d", o))))
	z := distuv.UnitNormal.Quantile(0.5 + e.opts.ConfidenceLevel/2)

	s1Draws := make([][]float64, k)
	stDraws := make([][]float64, k)
	idx := make([]int, n)
	for r := 0; r < e.opts.Resamples; r++ {
		for j := range idx {
			idx[j] = rng.IntN(n)
		}
		est := s.estimate(idx, false)
		for i := 0; i < k; i++ {
			if !math.IsNaN(est.s1[i]) {
				s1Draws[i] = append(s1Draws[i], est.s1[i])
				stDraws[i] = append(stDraws[i], est.st[i])
			}
		}
	}

	s1Conf = nanSlice(k)
	stConf = nanSlice(k)
	for i := 0; i < k; i++ {
		if len(s1Draws[i]) < 2 {
			continue
		}
		if sd, err := stats.StandardDeviationSample(s1Draws[i]); err == nil {
			s1Conf[i] = z * sd
		}
		if sd, err := stats.StandardDeviationSample(stDraws[i]); err == nil {
			stConf[i] = z * sd
		}
	}
	return s1Conf, stConf
}

// samples are one output's values regrouped by saltelli block role.
type samples struct {
	a, b   []float64
	ab, ba [][]float64 // [parameter][base sample]
}

func split(outputs []gsa.OutputVector, o, k, n int) *samples {
	l := gsa.SaltelliLayout{K: k}
	s := &samples{a: make([]float64, n), b: make([]float64, n), ab: make([][]float64, k), ba: make([][]float64, k)}
	for i := 0; i < k; i++ {
		s.ab[i] = make([]float64, n)
		s.ba[i] = make([]float64, n)
	}
	for j := 0; j < n; j++ {
		s.a[j] = outputs[l.A(j)][o]
		s.b[j] = outputs[l.B(j)][o]
		for i := 0; i < k; i++ {
			s.ab[i][j] = outputs[l.AB(j, i)][o]
			s.ba[i][j] = outputs[l.BA(j, i)][o]
		}
	}
	return s
}

func (s *samples) center(mean float64) {
	sub := func(xs []float64) {
		for j := range xs {
			xs[j] -= mean
		}
	}
	sub(s.a)
	sub(s.b)
	for i := range s.ab {
		sub(s.ab[i])
		sub(s.ba[i])
	}
}

type indices struct {
	s1, st []float64
	s2     [][]float64
}

// estimate computes indices over the base samples listed in idx (all when nil).
func (s *samples) estimate(idx []int, secondOrder bool) indices {
	n := len(s.a)
	if idx == nil {
		idx = make([]int, n)
		for j := range idx {
			idx[j] = j
		}
	}
	k := len(s.ab)
	pick := func(xs []float64) []float64 {
		out := make([]float64, len(idx))
		for t, j := range idx {
			out[t] = xs[j]
		}
		return out
	}

	a, b := pick(s.a), pick(s.b)
	variance := stat.PopVariance(append(append([]float64(nil), a...), b...), nil)
	est := indices{s1: nanSlice(k), st: nanSlice(k)}
	if variance <= 0 {
		return est
	}

	ab := make([][]float64, k)
	for i := 0; i < k; i++ {
		ab[i] = pick(s.ab[i])
		var first, total float64
		for t := range a {
			d := ab[i][t] - a[t]
			first += b[t] * d
			total += d * d
		}
		est.s1[i] = first / float64(len(a)) / variance
		est.st[i] = 0.5 * total / float64(len(a)) / variance
	}

	if secondOrder {
		est.s2 = make([][]float64, k)
		for i := range est.s2 {
			est.s2[i] = nanSlice(k)
		}
		for i := 0; i < k; i++ {
			ba := pick(s.ba[i])
			for j := i + 1; j < k; j++ {
				var joint float64
				for t := range a {
					joint += ba[t]*ab[j][t] - a[t]*b[t]
				}
				est.s2[i][j] = joint/float64(len(a))/variance - est.s1[i] - est.s1[j]
			}
		}
	}
	return est
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
