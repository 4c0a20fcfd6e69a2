// Package expression is a model defined by one formula per output over a
// declared parameter set.
package expression

import (
	"context"
	"fmt"
	"math"
	"regexp"

	"gosobol/domain/core"
	"gosobol/domain/gsa"
	"gosobol/domain/param"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"
)

// Output is one named formula in expr-lang syntax.
type Output struct {
	Name       string `yaml:"name" json:"name"`
	Expression string `yaml:"expression" json:"expression"`
}

// Definition is the serialized form of a model.
type Definition struct {
	Parameters []param.Parameter `yaml:"parameters" json:"parameters"`
	Outputs    []Output          `yaml:"outputs" json:"outputs"`
}

// outputNamePattern admits labels such as "GWP100 (kg CO2-eq)" but no markup.
var outputNamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_ .,:()/+-]*$`)

// Model evaluates compiled formulas. It is immutable and safe for
// concurrent use.
type Model struct {
	params   []param.Parameter
	outputs  []Output
	programs []*vm.Program
}

// Compile validates the definition and compiles every formula. Unknown
// identifiers and non-numeric results are configuration errors.
func Compile(def Definition) (*Model, error) {
	if len(def.Outputs) == 0 {
		return nil, core.NewConfigurationError(core.StageConfig, "outputs", "at least one output is required")
	}
	reg := param.NewRegistry()
	for _, p := range def.Parameters {
		if err := reg.Define(p); err != nil {
			return nil, err
		}
	}

	env := make(map[string]interface{}, reg.Len())
	for _, name := range reg.Names() {
		env[name] = 0.0
	}
	m := &Model{params: reg.Parameters(), outputs: append([]Output(nil), def.Outputs...)}
	seen := make(map[string]bool, len(def.Outputs))
	for _, out := range def.Outputs {
		if out.Name == "" || seen[out.Name] {
			return nil, core.NewConfigurationError(core.StageConfig, "outputs", "output names must be unique and non-empty, got %q", out.Name)
		}
		if !outputNamePattern.MatchString(out.Name) {
			return nil, core.NewConfigurationError(core.StageConfig, "outputs", "invalid output name %q", out.Name)
		}
		seen[out.Name] = true
		program, err := expr.Compile(out.Expression, expr.Env(env), expr.AsFloat64())
		if err != nil {
			return nil, core.NewConfigurationError(core.StageConfig, "outputs."+out.Name, "%v", err)
		}
		m.programs = append(m.programs, program)
	}
	return m, nil
}

// Parse decodes a YAML (or JSON) definition and compiles it.
func Parse(data []byte) (*Model, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, core.NewConfigurationError(core.StageConfig, "model", "invalid document: %v", err)
	}
	return Compile(def)
}

func (m *Model) Outputs() []string {
	names := make([]string, len(m.outputs))
	for i, o := range m.outputs {
		names[i] = o.Name
	}
	return names
}

// Parameters returns the declared parameters in declaration order.
func (m *Model) Parameters() []param.Parameter {
	return append([]param.Parameter(nil), m.params...)
}

// Expressions returns the source formulas keyed by output.
func (m *Model) Expressions() (map[string]string, error) {
	out := make(map[string]string, len(m.outputs))
	for _, o := range m.outputs {
		out[o.Name] = o.Expression
	}
	return out, nil
}

// Definition returns the model in serializable form.
func (m *Model) Definition() Definition {
	return Definition{Parameters: m.Parameters(), Outputs: append([]Output(nil), m.outputs...)}
}

func (m *Model) Evaluate(ctx context.Context, a param.Assignment) (gsa.OutputVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env := make(map[string]interface{}, len(m.params))
	for _, p := range m.params {
		v, ok := a.Value(p.Name)
		if !ok {
			return nil, fmt.Errorf("%w %q", core.ErrUnknownParameter, p.Name)
		}
		env[p.Name] = v
	}

	out := make(gsa.OutputVector, len(m.programs))
	for i, program := range m.programs {
		res, err := expr.Run(program, env)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", m.outputs[i].Name, err)
		}
		v, ok := res.(float64)
		if !ok {
			return nil, fmt.Errorf("output %q: result is %T, not a number", m.outputs[i].Name, res)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("output %q: non-finite result %v", m.outputs[i].Name, v)
		}
		out[i] = v
	}
	return out, nil
}
