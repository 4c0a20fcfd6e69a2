package param

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"gosobol/domain/core"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Parameter is a named, bounded, distributed model input.
// INVARIANTS (checked by Validate):
// - Name is a valid identifier, so it can appear in surrogate expressions
// - Low <= Default <= High and Low < High
// - Std > 0 for normal and lognormal; Low > 0 for lognormal
// - Values is non-empty for discrete, and spans exactly [Low, High]
type Parameter struct {
	Name         string       `json:"name" yaml:"name"`
	Distribution Distribution `json:"distribution" yaml:"distribution"`
	Low          float64      `json:"low" yaml:"low"`
	High         float64      `json:"high" yaml:"high"`
	Default      float64      `json:"default" yaml:"default"`
	Std          float64      `json:"std,omitempty" yaml:"std,omitempty"`
	Values       []float64    `json:"values,omitempty" yaml:"values,omitempty"`
}

// NewTriangle builds a triangle parameter with its mode at def.
func NewTriangle(name string, low, def, high float64) (Parameter, error) {
	p := Parameter{Name: name, Distribution: Triangle, Low: low, High: high, Default: def}
	return p, p.Validate()
}

// NewUniform builds a uniform parameter; def is the value used when fixed.
func NewUniform(name string, low, def, high float64) (Parameter, error) {
	p := Parameter{Name: name, Distribution: Uniform, Low: low, High: high, Default: def}
	return p, p.Validate()
}

// NewNormal builds a normal parameter centred on def and truncated to [low, high].
func NewNormal(name string, low, def, high, std float64) (Parameter, error) {
	p := Parameter{Name: name, Distribution: Normal, Low: low, High: high, Default: def, Std: std}
	return p, p.Validate()
}

// NewDiscrete builds a parameter drawn uniformly from a finite set of values.
func NewDiscrete(name string, def float64, values ...float64) (Parameter, error) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	p := Parameter{Name: name, Distribution: Discrete, Default: def, Values: sorted}
	if len(sorted) > 0 {
		p.Low, p.High = sorted[0], sorted[len(sorted)-1]
	}
	return p, p.Validate()
}

// Validate checks the parameter invariants. Violations are configuration errors.
func (p Parameter) Validate() error {
	if !identifierPattern.MatchString(p.Name) {
		return core.NewConfigurationError(core.StageRegistry, "name", "%q is not a valid identifier", p.Name)
	}
	for _, v := range []float64{p.Low, p.High, p.Default} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return core.NewConfigurationError(core.StageRegistry, p.Name, "bounds and default must be finite")
		}
	}
	if p.Low > p.Default || p.Default > p.High {
		return core.NewConfigurationError(core.StageRegistry, p.Name,
			"default %g outside [%g, %g]", p.Default, p.Low, p.High)
	}
	if p.Distribution != Discrete && !(p.Low < p.High) {
		return core.NewConfigurationError(core.StageRegistry, p.Name,
			"zero-width range [%g, %g]", p.Low, p.High)
	}

	switch p.Distribution {
	case Uniform, Triangle:
	case Normal:
		if !(p.Std > 0) {
			return core.NewConfigurationError(core.StageRegistry, p.Name, "normal distribution needs std > 0")
		}
	case LogNormal:
		if !(p.Std > 0) {
			return core.NewConfigurationError(core.StageRegistry, p.Name, "lognormal distribution needs std > 0")
		}
		if !(p.Low > 0) {
			return core.NewConfigurationError(core.StageRegistry, p.Name, "lognormal distribution needs low > 0")
		}
	case Discrete:
		if len(p.Values) == 0 {
			return core.NewConfigurationError(core.StageRegistry, p.Name, "discrete distribution needs values")
		}
		if !sort.Float64sAreSorted(p.Values) || p.Values[0] != p.Low || p.Values[len(p.Values)-1] != p.High {
			return core.NewConfigurationError(core.StageRegistry, p.Name, "discrete values must be sorted and span [low, high]")
		}
	default:
		return core.NewConfigurationError(core.StageRegistry, p.Name, "unknown distribution %q", p.Distribution)
	}
	return nil
}

// Quantile is the inverse CDF of the parameter's (possibly truncated)
// distribution evaluated at u in [0,1].
func (p Parameter) Quantile(u float64) float64 {
	return p.quantile(u)
}

// SanitizeName turns an arbitrary host identifier into a parameter-safe one.
func SanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "_" + out
	}
	return out
}
