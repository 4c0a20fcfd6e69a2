package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluationError_Unwrap(t *testing.T) {
	cause := errors.New("solver diverged")
	err := fmt.Errorf("run: %w", NewEvaluationError(37, cause))

	assert.True(t, IsEvaluationError(err))
	assert.ErrorIs(t, err, cause)
	row, ok := FailedRow(err)
	assert.True(t, ok)
	assert.Equal(t, 37, row)
	assert.Contains(t, err.Error(), "row 37")

	_, ok = FailedRow(cause)
	assert.False(t, ok)
}

func TestTypedErrors(t *testing.T) {
	assert.True(t, IsConfigurationError(NewConfigurationError(StageSimplify, "top_k", "must be positive")))
	assert.Equal(t, "simplify: invalid configuration: top_k: must be positive",
		NewConfigurationError(StageSimplify, "top_k", "must be positive").Error())
	assert.Equal(t, "config: invalid configuration: bad", NewConfigurationError(StageConfig, "", "bad").Error())

	dup := NewDuplicateParameterError(StageAssignment, "p_bg1")
	assert.True(t, IsDuplicateParameter(dup))
	var typed *DuplicateParameterError
	assert.True(t, errors.As(dup, &typed))
	assert.Equal(t, "p_bg1", typed.Name)

	assert.ErrorIs(t, NewInsufficientSamplesError(StageSampling, 1, 2), ErrInsufficientSamples)
	assert.True(t, IsNotFoundError(NewNotFoundError("run", "x")))
	assert.ErrorIs(t, &DegenerateOutputError{Output: "c"}, ErrDegenerateOutput)
}
