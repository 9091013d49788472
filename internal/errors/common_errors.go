package errors

import (
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeSource           ErrorType = "SOURCE"
	ErrTypeSink             ErrorType = "SINK"
	ErrTypeValidation       ErrorType = "VALIDATION"
	ErrTypeConfig           ErrorType = "CONFIG"
	ErrTypeNotFound         ErrorType = "NOT_FOUND"
	ErrTypeFit              ErrorType = "FIT"
	ErrTypeInsufficientData ErrorType = "INSUFFICIENT_DATA"
	ErrTypeReport           ErrorType = "REPORT"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewSourceError wraps a failure to read transactions
func NewSourceError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSource, message, cause)
}

// NewSinkError wraps a failure to persist projections
func NewSinkError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSink, message, cause)
}

// NewReportError wraps a failure to write the metrics report
func NewReportError(message string, cause error) *AppError {
	return NewAppError(ErrTypeReport, message, cause)
}

// NewFitError wraps a model fitting failure of one segment
func NewFitError(segment string, cause error) *AppError {
	return NewAppError(ErrTypeFit, "model fit failed", cause).WithContext("segment", segment)
}

// NewInsufficientDataError reports a segment without enough history
func NewInsufficientDataError(segment string, cause error) *AppError {
	return NewAppError(ErrTypeInsufficientData, "insufficient data", cause).WithContext("segment", segment)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// IsType reports whether err wraps an AppError of type t
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}
