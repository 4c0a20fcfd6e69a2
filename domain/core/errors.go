package core

import (
	"errors"
	"fmt"
)

// Stage names the pipeline stage that produced an error or a log line.
type Stage string

const (
	StageConfig      Stage = "config"
	StageRegistry    Stage = "registry"
	StageAssignment  Stage = "assignment"
	StageSampling    Stage = "sampling"
	StageEvaluation  Stage = "evaluation"
	StageSensitivity Stage = "sensitivity"
	StageSimplify    Stage = "simplify"
	StageValidation  Stage = "validation"
)

// Domain errors - centralized error definitions
var (
	ErrDuplicateParameter  = errors.New("duplicate parameter")
	ErrInsufficientSamples = errors.New("insufficient samples")
	ErrEvaluation          = errors.New("evaluation failed")
	ErrDegenerateOutput    = errors.New("degenerate output")
	ErrConfiguration       = errors.New("invalid configuration")

	ErrRegistrySealed   = errors.New("parameter registry is sealed")
	ErrUnknownParameter = errors.New("unknown parameter")
	ErrOutputShape      = errors.New("output vector length mismatch")
	ErrNotFound         = errors.New("resource not found")
)

// DuplicateParameterError reports a parameter name that already exists.
// It is fatal: the assignment that produced it is aborted as a whole.
type DuplicateParameterError struct {
	Stage Stage
	Name  string
}

func (e *DuplicateParameterError) Error() string {
	return fmt.Sprintf("%s: %v: %q", e.Stage, ErrDuplicateParameter, e.Name)
}

func (e *DuplicateParameterError) Unwrap() error { return ErrDuplicateParameter }

// InsufficientSamplesError is returned before any evaluation when the
// requested sample count cannot support a variance estimate.
type InsufficientSamplesError struct {
	Stage     Stage
	Requested int
	Minimum   int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("%s: %v: requested %d, need at least %d", e.Stage, ErrInsufficientSamples, e.Requested, e.Minimum)
}

func (e *InsufficientSamplesError) Unwrap() error { return ErrInsufficientSamples }

// EvaluationError identifies the design-matrix row whose evaluation failed.
type EvaluationError struct {
	Row   int
	Cause error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("%s: %v at row %d: %v", StageEvaluation, ErrEvaluation, e.Row, e.Cause)
}

// Unwrap exposes both the sentinel and the evaluator's own error.
func (e *EvaluationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrEvaluation}
	}
	return []error{ErrEvaluation, e.Cause}
}

// DegenerateOutputError describes a zero-variance output. It is never
// returned by the pipeline; it is attached to results for reporting.
type DegenerateOutputError struct {
	Output string
}

func (e *DegenerateOutputError) Error() string {
	return fmt.Sprintf("%s: %v: %q has zero variance", StageSensitivity, ErrDegenerateOutput, e.Output)
}

func (e *DegenerateOutputError) Unwrap() error { return ErrDegenerateOutput }

// ConfigurationError is raised for conflicting, missing or out-of-range
// options. Field names the offending option or entity.
type ConfigurationError struct {
	Stage  Stage
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v: %s", e.Stage, ErrConfiguration, e.Reason)
	}
	return fmt.Sprintf("%s: %v: %s: %s", e.Stage, ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// Error constructors with context
func NewConfigurationError(stage Stage, field, format string, args ...interface{}) error {
	return &ConfigurationError{Stage: stage, Field: field, Reason: fmt.Sprintf(format, args...)}
}

func NewDuplicateParameterError(stage Stage, name string) error {
	return &DuplicateParameterError{Stage: stage, Name: name}
}

func NewInsufficientSamplesError(stage Stage, requested, minimum int) error {
	return &InsufficientSamplesError{Stage: stage, Requested: requested, Minimum: minimum}
}

func NewEvaluationError(row int, cause error) error {
	return &EvaluationError{Row: row, Cause: cause}
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// Error checking helpers
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsDuplicateParameter(err error) bool {
	return errors.Is(err, ErrDuplicateParameter)
}

func IsEvaluationError(err error) bool {
	return errors.Is(err, ErrEvaluation)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// FailedRow returns the offending row of an EvaluationError anywhere in the chain.
func FailedRow(err error) (int, bool) {
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return evalErr.Row, true
	}
	return 0, false
}
