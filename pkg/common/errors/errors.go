package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the pipex library

var (
	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnregisteredStrategy indicates that a fallible stage has no resolvable
	// error handling strategy
	ErrUnregisteredStrategy = errors.New("unregistered strategy")

	// ErrCancelled indicates that a pipeline run was cancelled by the caller
	ErrCancelled = errors.New("pipeline cancelled")

	// ErrDefect indicates that an infallible transformation failed
	ErrDefect = errors.New("defect in infallible stage")

	// ErrTypeMismatch indicates that an item does not match the type a stage accepts
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrClosed indicates that an operation was attempted on a closed resource
	ErrClosed = errors.New("resource is closed")
)

// ValidationError describes an invalid configuration value.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

// NewValidationError creates a ValidationError without a hint.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint attaches a remediation hint and returns the same error for chaining.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Unwrap makes every ValidationError match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// OperationError describes a failed operation of a module.
type OperationError struct {
	Module    string
	Operation string
	Cause     error
	Context   string
}

// NewOperationError creates an OperationError for the given cause.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// WithContext attaches additional context and returns the same error for chaining.
func (e *OperationError) WithContext(context string) *OperationError {
	e.Context = context
	return e
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s.%s failed: %v", e.Module, e.Operation, e.Cause)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// StageError ties a fatal error to the pipeline stage that produced it.
type StageError struct {
	Stage string
	Index int
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (%s): %v", e.Index, e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// DefectError reports a panic raised by a transformation that declared no
// failure channel. Item is the index of the offending input.
type DefectError struct {
	Stage     string
	Item      int
	Recovered interface{}
	Stack     []byte
}

func (e *DefectError) Error() string {
	return fmt.Sprintf("stage %s: item %d panicked: %v", e.Stage, e.Item, e.Recovered)
}

// Unwrap returns the panic value when it is an error, so callers can match on it,
// and ErrDefect otherwise.
func (e *DefectError) Unwrap() []error {
	if err, ok := e.Recovered.(error); ok {
		return []error{ErrDefect, err}
	}
	return []error{ErrDefect}
}

// TypeMismatchError reports an item whose dynamic type does not match the
// input type declared by a stage.
type TypeMismatchError struct {
	Stage string
	Item  int
	Want  string
	Got   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("stage %s: item %d has type %s, want %s", e.Stage, e.Item, e.Got, e.Want)
}

func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}

// IsConfigurationError returns true if the error was caused by invalid
// configuration or an unresolvable strategy
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) || errors.Is(err, ErrUnregisteredStrategy)
}

// IsDefect returns true if the error reports a failed infallible stage or an
// incompatible item type
func IsDefect(err error) bool {
	return errors.Is(err, ErrDefect) || errors.Is(err, ErrTypeMismatch)
}

// IsCancelled returns true if the run was cancelled rather than failed
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsValidationError returns true if err is or wraps a ValidationError
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
