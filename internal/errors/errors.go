package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

/**
 * Custom error types for the Waybill Worker
 *
 * Design Pattern: Factory Pattern for error creation
 * SOLID Principle: Single Responsibility (each error type has one purpose)
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Configuration errors
	ErrorConfigurationMissing ErrorCode = "CONFIGURATION_MISSING"
	ErrorUnsupportedModel     ErrorCode = "UNSUPPORTED_MODEL"

	// Processing errors
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorBackendCallFailed ErrorCode = "BACKEND_CALL_FAILED"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// Storage errors
	ErrorPersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	ErrorRecordNotFound    ErrorCode = "RECORD_NOT_FOUND"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// IsServiceUnavailable reports whether the error means the service cannot
// accept work until it is reconfigured
func (e *ProcessingError) IsServiceUnavailable() bool {
	return e.Code == ErrorConfigurationMissing
}

// AsProcessingError finds the first ProcessingError in err's chain
func AsProcessingError(err error) (*ProcessingError, bool) {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// HasCode reports whether err carries a ProcessingError with the given code
func HasCode(err error, code ErrorCode) bool {
	pe, ok := AsProcessingError(err)
	return ok && pe.Code == code
}

// Factory functions for common errors

func NewConfigurationMissingError(backend string, missing ...string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorConfigurationMissing,
		Message:   fmt.Sprintf("%s is not configured, set %s", backend, strings.Join(missing, " and ")),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"backend":      backend,
			"missing_vars": missing,
		},
	}
}

func NewUnsupportedModelError(model string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedModel,
		Message:   fmt.Sprintf("Unknown extraction model: %s", model),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"model": model,
		},
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewBackendCallFailedError(jobID string, backend string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorBackendCallFailed,
		Message:   fmt.Sprintf("OCR backend call failed: %s", backend),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"backend": backend,
		},
		Cause: cause,
	}
}

func NewUnsupportedFormatError(jobID string, reason string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Unsupported input: %s", reason),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"reason": reason,
		},
	}
}

func NewPersistenceFailedError(jobID string, operation string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorPersistenceFailed,
		Message:   fmt.Sprintf("Failed to persist extraction results: %s", operation),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"operation": operation,
		},
		Cause: cause,
	}
}

func NewRecordNotFoundError(waybillID int64) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorRecordNotFound,
		Message:   fmt.Sprintf("Waybill %d not found", waybillID),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"waybill_id": waybillID,
		},
	}
}

// ToMap converts error to map for status events
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
