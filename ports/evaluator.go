package ports

import (
	"context"

	"gosobol/domain/gsa"
	"gosobol/domain/param"
)

// Evaluator is the black-box model under analysis. Evaluate must be a pure
// function of the assignment and safe to call from many goroutines.
type Evaluator interface {
	Evaluate(ctx context.Context, a param.Assignment) (gsa.OutputVector, error)
	// Outputs names the values of every OutputVector, in order.
	Outputs() []string
}

// BatchEvaluator is implemented by models that evaluate many rows at once
// more cheaply than one by one. On failure it returns a core.EvaluationError
// whose Row is relative to rows.
type BatchEvaluator interface {
	Evaluator
	EvaluateBatch(ctx context.Context, rows []param.Assignment) ([]gsa.OutputVector, error)
}

// AlgebraicModel exposes closed-form expressions per output, written in
// expr-lang syntax over parameter names.
type AlgebraicModel interface {
	Expressions() (map[string]string, error)
}

// ParameterSource is a model that declares its own uncertain parameters.
type ParameterSource interface {
	Parameters() []param.Parameter
}
