package gsa

import (
	"fmt"
	"math"
	"sort"

	"gosobol/domain/core"
)

// Indices are the Sobol indices of one (parameter, output) pair.
// NaN marks an undefined index (zero-variance output).
type Indices struct {
	S1     float64
	ST     float64
	S1Conf float64
	STConf float64
}

// Violation records an S1 > ST inconsistency beyond the tolerance.
// Values are reported as estimated; nothing is clamped.
type Violation struct {
	Parameter string
	Output    string
	S1        float64
	ST        float64
}

// RankedParameter is one row of an ordered (parameter, S1, ST) listing.
type RankedParameter struct {
	Parameter string
	Indices
}

// SobolResult holds first-, total- and second-order indices for every
// (parameter, output) pair. Slices are indexed [output][parameter].
type SobolResult struct {
	Parameters  []string
	Outputs     []string
	BaseSamples int
	Tolerance   float64

	S1     [][]float64
	ST     [][]float64
	S1Conf [][]float64
	STConf [][]float64
	// S2[o][i][j] for i < j; NaN elsewhere.
	S2 [][][]float64

	Variance   []float64
	Mean       []float64
	Degenerate []string
	Violations []Violation
}

func (r *SobolResult) outputIndex(output string) (int, bool) {
	for i, o := range r.Outputs {
		if o == output {
			return i, true
		}
	}
	return 0, false
}

func (r *SobolResult) parameterIndex(name string) (int, bool) {
	for i, p := range r.Parameters {
		if p == name {
			return i, true
		}
	}
	return 0, false
}

// Index returns the indices of one (parameter, output) pair.
func (r *SobolResult) Index(parameter, output string) (Indices, bool) {
	o, ok := r.outputIndex(output)
	if !ok {
		return Indices{}, false
	}
	p, ok := r.parameterIndex(parameter)
	if !ok {
		return Indices{}, false
	}
	return r.indicesAt(o, p), true
}

func (r *SobolResult) indicesAt(o, p int) Indices {
	idx := Indices{S1: r.S1[o][p], ST: r.ST[o][p], S1Conf: math.NaN(), STConf: math.NaN()}
	if r.S1Conf != nil {
		idx.S1Conf = r.S1Conf[o][p]
		idx.STConf = r.STConf[o][p]
	}
	return idx
}

// SecondOrder returns S2 for a parameter pair on output.
func (r *SobolResult) SecondOrder(a, b, output string) (float64, bool) {
	o, ok := r.outputIndex(output)
	if !ok || r.S2 == nil {
		return 0, false
	}
	i, ok1 := r.parameterIndex(a)
	j, ok2 := r.parameterIndex(b)
	if !ok1 || !ok2 || i == j {
		return 0, false
	}
	if i > j {
		i, j = j, i
	}
	return r.S2[o][i][j], true
}

// zeroRelVariance bounds Var(Y)/mean^2 for rounding noise around a constant.
const zeroRelVariance = 1e-24

// ZeroVariance reports whether samples with the given mean and population
// variance are constant up to floating-point rounding. The test is relative
// to the mean only, so rescaling an output never changes the answer.
func ZeroVariance(mean, variance float64) bool {
	return variance <= 0 || variance <= zeroRelVariance*mean*mean
}

// IsDegenerate reports whether output had zero variance.
func (r *SobolResult) IsDegenerate(output string) bool {
	for _, d := range r.Degenerate {
		if d == output {
			return true
		}
	}
	return false
}

// Ranked lists parameters for output by descending S1, ties broken by name.
// Undefined (NaN) and negative indices rank as zero.
func (r *SobolResult) Ranked(output string) ([]RankedParameter, error) {
	o, ok := r.outputIndex(output)
	if !ok {
		return nil, fmt.Errorf("%w: output %q", core.ErrNotFound, output)
	}

	ranked := make([]RankedParameter, len(r.Parameters))
	for p, name := range r.Parameters {
		ranked[p] = RankedParameter{Parameter: name, Indices: r.indicesAt(o, p)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := RankKey(ranked[i].S1), RankKey(ranked[j].S1)
		if si != sj {
			return si > sj
		}
		return ranked[i].Parameter < ranked[j].Parameter
	})
	return ranked, nil
}

// RankKey maps an S1 estimate to the value used for ordering and for
// cumulative coverage. Negative estimates are sampling noise around zero.
func RankKey(s1 float64) float64 {
	if math.IsNaN(s1) || s1 < 0 {
		return 0
	}
	return s1
}
