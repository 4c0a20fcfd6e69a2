package simplify

import (
	"fmt"

	"gosobol/domain/core"
	"gosobol/domain/param"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"
)

// fixedValues replaces identifiers of fixed parameters with their values
// before type checking, so the optimizer can fold them away.
type fixedValues map[string]float64

func (f fixedValues) Visit(node *ast.Node) {
	id, ok := (*node).(*ast.IdentifierNode)
	if !ok {
		return
	}
	if v, ok := f[id.Value]; ok {
		ast.Patch(node, &ast.FloatNode{Value: v})
	}
}

// restricted is the model's own closed form with non-retained parameters
// bound to their defaults.
type restricted struct {
	program  *vm.Program
	retained []string
	source   string
}

func compileRestricted(output, source string, retained []string, fixed map[string]float64) (*restricted, error) {
	env := make(map[string]interface{}, len(retained))
	for _, name := range retained {
		env[name] = 0.0
	}
	program, err := expr.Compile(source,
		expr.Env(env),
		expr.AsFloat64(),
		expr.Patch(fixedValues(fixed)),
	)
	if err != nil {
		return nil, core.NewConfigurationError(core.StageSimplify, "expression",
			"output %q: cannot restrict %q: %v", output, source, err)
	}
	return &restricted{program: program, retained: retained, source: program.Node().String()}, nil
}

// Predict runs the restricted expression on the retained values of a.
func (r *restricted) Predict(a param.Assignment) (float64, error) {
	env := make(map[string]interface{}, len(r.retained))
	for _, name := range r.retained {
		v, ok := a.Value(name)
		if !ok {
			return 0, fmt.Errorf("%s: %w %q", core.StageSimplify, core.ErrUnknownParameter, name)
		}
		env[name] = v
	}
	out, err := expr.Run(r.program, env)
	if err != nil {
		return 0, fmt.Errorf("%s: evaluate surrogate: %w", core.StageSimplify, err)
	}
	v, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("%s: surrogate returned %T", core.StageSimplify, out)
	}
	return v, nil
}

// Describe returns the folded expression.
func (r *restricted) Describe() string { return r.source }
