// Package huberrors provides sentinel and custom error types for the insights pipeline.
package huberrors

import "strconv"

// ErrNotFound represents a "not found" error.
// Use when a requested resource doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when a constructed record is missing required fields.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrConflict is the sentinel for conflict errors (e.g. a clustering run is already in flight).
var ErrConflict = &ConflictError{}

// ConflictError is a sentinel error for resource conflicts.
type ConflictError struct {
	Message string
}

// NewConflictError creates a ConflictError with a custom message.
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "conflict"
}

// Is implements the error interface for error comparison.
func (e *ConflictError) Is(target error) bool {
	_, ok := target.(*ConflictError)

	return ok
}

// ErrConfiguration is the sentinel for invalid or missing configuration.
// Configuration errors are raised before any work begins.
var ErrConfiguration = &ConfigurationError{}

// ConfigurationError reports an invalid configuration key.
type ConfigurationError struct {
	Key     string
	Message string
}

// NewConfigurationError creates a ConfigurationError for key.
func NewConfigurationError(key, message string) *ConfigurationError {
	return &ConfigurationError{Key: key, Message: message}
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	switch {
	case e.Key != "" && e.Message != "":
		return "invalid configuration " + e.Key + ": " + e.Message
	case e.Key != "":
		return "invalid configuration: " + e.Key
	case e.Message != "":
		return e.Message
	default:
		return "invalid configuration"
	}
}

// Is implements the error interface for error comparison.
func (e *ConfigurationError) Is(target error) bool {
	_, ok := target.(*ConfigurationError)

	return ok
}

// ErrInsufficientData is the sentinel for runs that have too little feedback to cluster.
// It is a soft condition: the pipeline reports it as a skipped run, never as a failure.
var ErrInsufficientData = &InsufficientDataError{}

// InsufficientDataError reports how much data was available against the required minimum.
type InsufficientDataError struct {
	Have int
	Need int
}

// NewInsufficientDataError creates an InsufficientDataError.
func NewInsufficientDataError(have, need int) *InsufficientDataError {
	return &InsufficientDataError{Have: have, Need: need}
}

// Error implements the error interface.
func (e *InsufficientDataError) Error() string {
	if e.Need > 0 {
		return "insufficient data: have " + strconv.Itoa(e.Have) + ", need " + strconv.Itoa(e.Need)
	}

	return "insufficient data"
}

// Is implements the error interface for error comparison.
func (e *InsufficientDataError) Is(target error) bool {
	_, ok := target.(*InsufficientDataError)

	return ok
}

// ErrPersistence is the sentinel for failed storage operations.
var ErrPersistence = &PersistenceError{}

// PersistenceError wraps a storage failure. The run that produced it is aborted.
type PersistenceError struct {
	Op  string
	Err error
}

// NewPersistenceError wraps err for operation op.
func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	msg := "persistence failure"
	if e.Op != "" {
		msg += " during " + e.Op
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying storage error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is implements the error interface for error comparison.
func (e *PersistenceError) Is(target error) bool {
	_, ok := target.(*PersistenceError)

	return ok
}

// ErrGeneration is the sentinel for text-generation collaborator failures.
var ErrGeneration = &GenerationError{}

// GenerationError reports a failed or unusable text-generation call.
// Malformed is set when the collaborator answered but the output could not be parsed.
type GenerationError struct {
	Malformed bool
	Message   string
	Err       error
}

// NewGenerationError wraps an unavailable-collaborator failure.
func NewGenerationError(message string, err error) *GenerationError {
	return &GenerationError{Message: message, Err: err}
}

// NewMalformedOutputError reports output that could not be parsed.
func NewMalformedOutputError(message string, err error) *GenerationError {
	return &GenerationError{Malformed: true, Message: message, Err: err}
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "generation failed"
		if e.Malformed {
			msg = "malformed generation output"
		}
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is implements the error interface for error comparison.
func (e *GenerationError) Is(target error) bool {
	_, ok := target.(*GenerationError)

	return ok
}
