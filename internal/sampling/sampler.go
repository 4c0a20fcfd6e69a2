// Package sampling builds low-discrepancy design matrices over a parameter set.
package sampling

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"

	"gosobol/domain/core"
	"gosobol/domain/gsa"
	"gosobol/domain/param"
	"gosobol/internal"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/samplemv"
)

const (
	// MinBaseSamples is the smallest n that yields a variance estimate.
	MinBaseSamples = 2
	// MaxDimensions is the largest sequence dimension the Halton generator supports.
	MaxDimensions = 1000
)

// Options select the design.
type Options struct {
	N      int
	Seed   uint64
	Scheme gsa.Scheme
}

// Sampler draws design matrices. It holds no per-run state and is safe for
// concurrent use.
type Sampler struct {
	logger *internal.Logger
}

func NewSampler(logger *internal.Logger) *Sampler {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Sampler{logger: logger.Named("sampling")}
}

// Generate draws a design for params. The same (params, options) always
// produces the same matrix.
func (s *Sampler) Generate(params []param.Parameter, opts Options) (*gsa.DesignMatrix, error) {
	if opts.N < MinBaseSamples {
		return nil, core.NewInsufficientSamplesError(core.StageSampling, opts.N, MinBaseSamples)
	}
	k := len(params)
	if k == 0 {
		return nil, core.NewConfigurationError(core.StageSampling, "parameters", "at least one parameter is required")
	}
	for _, p := range params {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	names := make([]string, k)
	for i, p := range params {
		names[i] = p.Name
	}
	layout, err := param.NewLayout(names)
	if err != nil {
		return nil, err
	}

	var data *mat.Dense
	switch opts.Scheme {
	case gsa.SchemeSaltelli:
		if 2*k > MaxDimensions {
			return nil, core.NewConfigurationError(core.StageSampling, "parameters",
				"saltelli design supports at most %d parameters, got %d", MaxDimensions/2, k)
		}
		data = saltelli(params, opts.N, opts.Seed)
	case gsa.SchemeQuasiRandom:
		if k > MaxDimensions {
			return nil, core.NewConfigurationError(core.StageSampling, "parameters",
				"quasi-random design supports at most %d parameters, got %d", MaxDimensions, k)
		}
		data = sequence(params, opts.N, 1, opts.Seed)
	default:
		return nil, core.NewConfigurationError(core.StageSampling, "scheme", "unknown scheme %q", opts.Scheme)
	}

	m, err := gsa.NewDesignMatrix(opts.Scheme, opts.N, opts.Seed, layout, data)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("generated %s design: n=%d k=%d rows=%d seed=%d", opts.Scheme, opts.N, k, m.Rows(), opts.Seed)
	return m, nil
}

// sequence draws n points of a scrambled Halton sequence in k*copies
// dimensions, mapping column j through params[j%k].
func sequence(params []param.Parameter, n, copies int, seed uint64) *mat.Dense {
	k := len(params)
	batch := mat.NewDense(n, k*copies, nil)
	h := samplemv.Halton{
		Kind: samplemv.Owen,
		Q:    marginals(params),
		Src:  rand.NewPCG(seed, core.DeriveSeed(seed, "halton")),
	}
	h.Sample(batch)
	return batch
}

// saltelli expands n points of a 2k-dimensional sequence into blocks of
// A, AB_1..AB_k, BA_1..BA_k, B.
func saltelli(params []param.Parameter, n int, seed uint64) *mat.Dense {
	k := len(params)
	base := sequence(params, n, 2, seed)
	layout := gsa.SaltelliLayout{K: k}
	out := mat.NewDense(n*layout.Stride(), k, nil)

	a := make([]float64, k)
	b := make([]float64, k)
	row := make([]float64, k)
	for j := 0; j < n; j++ {
		src := base.RawRowView(j)
		copy(a, src[:k])
		copy(b, src[k:])

		out.SetRow(layout.A(j), a)
		for i := 0; i < k; i++ {
			copy(row, a)
			row[i] = b[i]
			out.SetRow(layout.AB(j, i), row)

			copy(row, b)
			row[i] = a[i]
			out.SetRow(layout.BA(j, i), row)
		}
		out.SetRow(layout.B(j), b)
	}
	return out
}

// marginals maps unit-cube points through each parameter's inverse CDF.
// Column j uses parameter j modulo the parameter count.
type marginals []param.Parameter

func (m marginals) Quantile(x, p []float64) []float64 {
	if x == nil {
		x = make([]float64, len(p))
	}
	for j, u := range p {
		x[j] = m[j%len(m)].Quantile(u)
	}
	return x
}

// WriteCSV writes the design as a header of parameter names followed by one
// line per row.
func WriteCSV(w io.Writer, m *gsa.DesignMatrix) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(m.Parameters()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	cols := m.Layout().Len()
	record := make([]string, cols)
	for i := 0; i < m.Rows(); i++ {
		for j := 0; j < cols; j++ {
			record[j] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
