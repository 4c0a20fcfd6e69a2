package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"gosobol/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context. Domain errors keep the code
// FromDomain assigns them.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    GetCode(err),
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the code of the outermost AppError in the chain, falling
// back to the domain classification.
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return FromDomain(err).Code
}

// Predefined error codes
const (
	CodeConfigInvalid       = "CONFIG_INVALID"
	CodeDuplicateParameter  = "DUPLICATE_PARAMETER"
	CodeInsufficientSamples = "INSUFFICIENT_SAMPLES"
	CodeEvaluationFailed    = "EVALUATION_FAILED"
	CodeDatabaseError       = "DATABASE_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeInternalError       = "INTERNAL_ERROR"
	CodeInvalidInput        = "INVALID_INPUT"
)

// FromDomain classifies an error raised by the analysis pipeline.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	code := CodeInternalError
	switch {
	case stderrors.Is(err, core.ErrConfiguration), stderrors.Is(err, core.ErrRegistrySealed),
		stderrors.Is(err, core.ErrUnknownParameter):
		code = CodeConfigInvalid
	case stderrors.Is(err, core.ErrDuplicateParameter):
		code = CodeDuplicateParameter
	case stderrors.Is(err, core.ErrInsufficientSamples):
		code = CodeInsufficientSamples
	case stderrors.Is(err, core.ErrEvaluation):
		code = CodeEvaluationFailed
	case stderrors.Is(err, core.ErrNotFound):
		code = CodeNotFound
	}
	return &AppError{Code: code, Message: err.Error(), Cause: err}
}

// HTTPStatus maps an error code to the status the API answers with.
func HTTPStatus(code string) int {
	switch code {
	case CodeConfigInvalid, CodeDuplicateParameter, CodeInsufficientSamples, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeEvaluationFailed:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}
