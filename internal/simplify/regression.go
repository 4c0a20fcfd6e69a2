package simplify

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gosobol/domain/core"
	"gosobol/domain/gsa"
	"gosobol/domain/param"

	"gonum.org/v1/gonum/mat"
)

// MaxDegree is the highest polynomial degree the regression strategy fits.
const MaxDegree = 3

// scaled maps a parameter onto [-1, 1] over its declared bounds.
type scaled struct {
	name      string
	mid, half float64
}

func (s scaled) z(v float64) float64 { return (v - s.mid) / s.half }

func (s scaled) expr() string {
	return fmt.Sprintf("((%s - %s) / %s)", s.name, formatFloat(s.mid), formatFloat(s.half))
}

// term is a product of scaled variables raised to powers.
type term struct {
	vars   []int
	powers []int
}

func (t term) eval(z []float64) float64 {
	v := 1.0
	for i, idx := range t.vars {
		v *= math.Pow(z[idx], float64(t.powers[i]))
	}
	return v
}

// polynomial is a least-squares surrogate in scaled retained parameters.
type polynomial struct {
	vars      []scaled
	terms     []term
	coef      []float64
	intercept float64
}

// Predict evaluates the polynomial at the retained values of a.
func (p *polynomial) Predict(a param.Assignment) (float64, error) {
	z := make([]float64, len(p.vars))
	for i, v := range p.vars {
		x, ok := a.Value(v.name)
		if !ok {
			return 0, fmt.Errorf("%s: %w %q", core.StageSimplify, core.ErrUnknownParameter, v.name)
		}
		z[i] = v.z(x)
	}
	y := p.intercept
	for i, t := range p.terms {
		y += p.coef[i] * t.eval(z)
	}
	return y, nil
}

// Describe renders the polynomial in expr syntax over the original parameter names.
func (p *polynomial) Describe() string {
	var b strings.Builder
	b.WriteString(formatFloat(p.intercept))
	for i, t := range p.terms {
		c := p.coef[i]
		if c < 0 {
			b.WriteString(" - ")
			c = -c
		} else {
			b.WriteString(" + ")
		}
		b.WriteString(formatFloat(c))
		for j, idx := range t.vars {
			b.WriteString(" * ")
			b.WriteString(p.vars[idx].expr())
			if t.powers[j] > 1 {
				b.WriteString(" ** ")
				b.WriteString(strconv.Itoa(t.powers[j]))
			}
		}
	}
	return b.String()
}

// buildTerms lists the monomials: powers 1..degree of every variable, then
// pairwise products when interactions are on.
func buildTerms(m, degree int, interactions bool) []term {
	var terms []term
	for i := 0; i < m; i++ {
		for d := 1; d <= degree; d++ {
			terms = append(terms, term{vars: []int{i}, powers: []int{d}})
		}
	}
	if interactions {
		for i := 0; i < m; i++ {
			for j := i + 1; j < m; j++ {
				terms = append(terms, term{vars: []int{i, j}, powers: []int{1, 1}})
			}
		}
	}
	return terms
}

// fitPolynomial solves the least-squares problem over the design rows for
// output column o.
func fitPolynomial(retained []param.Parameter, design *gsa.DesignMatrix, outputs []gsa.OutputVector, o, degree int, interactions bool) (*polynomial, error) {
	p := &polynomial{}
	cols := make([]int, len(retained))
	for i, prm := range retained {
		p.vars = append(p.vars, scaled{name: prm.Name, mid: (prm.Low + prm.High) / 2, half: (prm.High - prm.Low) / 2})
		j, ok := design.Layout().Index(prm.Name)
		if !ok {
			return nil, fmt.Errorf("%s: %w %q not in design", core.StageSimplify, core.ErrUnknownParameter, prm.Name)
		}
		cols[i] = j
	}
	p.terms = buildTerms(len(retained), degree, interactions)

	rows := design.Rows()
	width := len(p.terms) + 1
	if rows < width {
		return nil, core.NewInsufficientSamplesError(core.StageSimplify, rows, width)
	}

	x := mat.NewDense(rows, width, nil)
	y := mat.NewVecDense(rows, nil)
	z := make([]float64, len(retained))
	for r := 0; r < rows; r++ {
		for i, c := range cols {
			z[i] = p.vars[i].z(design.At(r, c))
		}
		x.Set(r, 0, 1)
		for t, tm := range p.terms {
			x.Set(r, t+1, tm.eval(z))
		}
		y.SetVec(r, outputs[r][o])
	}

	var beta mat.VecDense
	if err := beta.SolveVec(x, y); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("%s: least squares: %w", core.StageSimplify, err)
		}
		// Ill-conditioned but solved; discrete parameters with few levels do this
		// at high degree. Reject only unusable coefficients.
		for i := 0; i < beta.Len(); i++ {
			if v := beta.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%s: least squares: %w", core.StageSimplify, err)
			}
		}
	}

	p.intercept = beta.AtVec(0)
	p.coef = make([]float64, len(p.terms))
	for t := range p.terms {
		p.coef[t] = beta.AtVec(t + 1)
	}
	return p, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}
