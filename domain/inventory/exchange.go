package inventory

import (
	"fmt"
	"strconv"

	"gosobol/domain/core"
	"gosobol/domain/param"
)

// Amount is the value slot of an exchange: either a literal number or a
// reference to a registered parameter, resolved only at evaluation time.
type Amount struct {
	literal float64
	ref     string
}

// Literal returns a fixed amount.
func Literal(v float64) Amount { return Amount{literal: v} }

// ParameterRef returns an amount bound to the named parameter.
func ParameterRef(name string) Amount { return Amount{ref: name} }

// IsParameter reports whether the amount references a parameter.
func (a Amount) IsParameter() bool { return a.ref != "" }

// Parameter returns the referenced parameter name ("" for literals).
func (a Amount) Parameter() string { return a.ref }

// Value returns the literal value; it is meaningless for references.
func (a Amount) Value() float64 { return a.literal }

// Resolve returns the concrete value under assignment as.
func (a Amount) Resolve(as param.Assignment) (float64, error) {
	if a.ref == "" {
		return a.literal, nil
	}
	v, ok := as.Value(a.ref)
	if !ok {
		return 0, fmt.Errorf("resolve amount: %w %q", core.ErrUnknownParameter, a.ref)
	}
	return v, nil
}

// String renders a literal as a number and a reference as its name, which
// is the form used in closed-form model expressions.
func (a Amount) String() string {
	if a.ref != "" {
		return a.ref
	}
	return strconv.FormatFloat(a.literal, 'g', -1, 64)
}

// Kind classifies an exchange.
type Kind string

const (
	// Production exchanges fix the reference output of an activity and
	// carry mass balance; they are structural and never parameterized.
	Production   Kind = "production"
	Technosphere Kind = "technosphere"
	Biosphere    Kind = "biosphere"
)

// Exchange is one raw numeric quantity of the host model: Output consumes
// (or emits) Amount of Input. The host model owns exchanges; uncertainty
// assignment rewrites Amount in place and never copies them.
type Exchange struct {
	ID     string
	Input  string
	Output string
	Amount Amount
	Kind   Kind
}

// Structural reports whether the exchange must stay deterministic.
func (e *Exchange) Structural() bool {
	return e.Kind == Production
}

func (e *Exchange) String() string {
	return fmt.Sprintf("%s[%s -> %s = %s]", e.Kind, e.Input, e.Output, e.Amount)
}
