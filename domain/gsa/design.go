package gsa

import (
	"fmt"
	"strings"

	"gosobol/domain/core"
	"gosobol/domain/param"

	"gonum.org/v1/gonum/mat"
)

// Scheme is the sampling design of a DesignMatrix.
type Scheme string

const (
	// SchemeSaltelli lays out n blocks of 2k+2 rows: A, AB_1..AB_k, BA_1..BA_k, B.
	SchemeSaltelli Scheme = "saltelli"
	// SchemeQuasiRandom is n plain low-discrepancy rows.
	SchemeQuasiRandom Scheme = "quasi_random"
)

// ParseScheme parses a scheme name.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case SchemeSaltelli:
		return SchemeSaltelli, nil
	case SchemeQuasiRandom:
		return SchemeQuasiRandom, nil
	}
	return "", fmt.Errorf("unknown sampling scheme %q (want saltelli|quasi_random)", s)
}

// RowsPerBase returns how many rows one base sample expands to for k parameters.
func (s Scheme) RowsPerBase(k int) int {
	if s == SchemeSaltelli {
		return 2*k + 2
	}
	return 1
}

// DesignMatrix is the ordered set of sampled rows for one analysis run.
// It is never mutated after construction; resampling builds a new one.
type DesignMatrix struct {
	scheme Scheme
	base   int
	seed   uint64
	layout *param.Layout
	data   *mat.Dense
}

// NewDesignMatrix wraps data (rows x parameters). The matrix takes
// ownership of data; callers must not modify it afterwards.
func NewDesignMatrix(scheme Scheme, base int, seed uint64, layout *param.Layout, data *mat.Dense) (*DesignMatrix, error) {
	r, c := data.Dims()
	if c != layout.Len() {
		return nil, fmt.Errorf("design matrix: %d columns for %d parameters", c, layout.Len())
	}
	if want := base * scheme.RowsPerBase(c); r != want {
		return nil, fmt.Errorf("design matrix: %d rows, scheme %s with n=%d needs %d", r, scheme, base, want)
	}
	return &DesignMatrix{scheme: scheme, base: base, seed: seed, layout: layout, data: data}, nil
}

func (m *DesignMatrix) Scheme() Scheme        { return m.scheme }
func (m *DesignMatrix) BaseSamples() int      { return m.base }
func (m *DesignMatrix) Seed() uint64          { return m.seed }
func (m *DesignMatrix) Layout() *param.Layout { return m.layout }
func (m *DesignMatrix) Parameters() []string  { return m.layout.Names() }

// Rows returns the number of rows.
func (m *DesignMatrix) Rows() int {
	r, _ := m.data.Dims()
	return r
}

// At returns the value of parameter column j in row i.
func (m *DesignMatrix) At(i, j int) float64 { return m.data.At(i, j) }

// Row returns row i as an Assignment.
func (m *DesignMatrix) Row(i int) param.Assignment {
	a, _ := param.NewAssignment(m.layout, m.data.RawRowView(i))
	return a
}

// Column returns a copy of parameter column j.
func (m *DesignMatrix) Column(j int) []float64 {
	return mat.Col(nil, j, m.data)
}

// Fingerprint hashes the layout and every value. Two matrices generated
// from the same (parameters, n, seed) have the same fingerprint.
func (m *DesignMatrix) Fingerprint() core.Hash {
	f := &core.Fingerprinter{}
	f.String(string(m.scheme)).Int(m.base)
	for _, n := range m.layout.Names() {
		f.String(n)
	}
	rows, cols := m.data.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			f.Float(m.data.At(i, j))
		}
	}
	return f.Sum()
}

// OutputVector is one evaluator result: a value per output, aligned with the
// run's output names.
type OutputVector []float64

// SaltelliLayout locates the rows of one base sample's block in a
// saltelli-scheme DesignMatrix with K parameters.
type SaltelliLayout struct {
	K int
}

// Stride is the number of rows per base sample.
func (l SaltelliLayout) Stride() int { return 2*l.K + 2 }

// A is the row of the base sample j drawn from the first half of the sequence.
func (l SaltelliLayout) A(j int) int { return j * l.Stride() }

// AB is A with column i taken from B.
func (l SaltelliLayout) AB(j, i int) int { return j*l.Stride() + 1 + i }

// BA is B with column i taken from A.
func (l SaltelliLayout) BA(j, i int) int { return j*l.Stride() + 1 + l.K + i }

// B is the row of the base sample j drawn from the second half of the sequence.
func (l SaltelliLayout) B(j int) int { return j*l.Stride() + 2*l.K + 1 }
