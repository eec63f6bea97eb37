// Package errors provides structured error handling for portsweep operations.
// It defines error codes, error types, and utilities for creating and
// inspecting errors with target and field context.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeCanceled      ErrorCode = "CANCELED"
	CodeNotFound      ErrorCode = "NOT_FOUND"

	// Scan request errors, detected before any connection attempt.
	CodeTargetInvalid     ErrorCode = "TARGET_INVALID"
	CodeHostUnresolvable  ErrorCode = "HOST_UNRESOLVABLE"
	CodePortSpecInvalid   ErrorCode = "PORT_SPEC_INVALID"
	CodeDuplicateResult   ErrorCode = "DUPLICATE_RESULT"
	CodeIncompleteResults ErrorCode = "INCOMPLETE_RESULTS"

	// Engine errors.
	CodeEngineFault ErrorCode = "ENGINE_FAULT"
)

// ScanError represents an error that occurred while preparing or running a scan.
type ScanError struct {
	Code    ErrorCode
	Message string
	Target  string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Target != "" {
		msg = fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *ScanError) WithContext(key string, value interface{}) *ScanError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewScanErrorWithTarget creates a scan error for a specific target.
func NewScanErrorWithTarget(code ErrorCode, message, target string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Context: make(map[string]interface{}),
	}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// WrapScanErrorWithTarget wraps an error with target information.
func WrapScanErrorWithTarget(code ErrorCode, message, target string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// GetCode extracts the error code from the first coded error in the chain.
func GetCode(err error) ErrorCode {
	var scanErr *ScanError
	if stderrors.As(err, &scanErr) {
		return scanErr.Code
	}
	var cfgErr *ConfigError
	if stderrors.As(err, &cfgErr) {
		return cfgErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// IsRequestError reports whether err was caused by a malformed scan request
// rather than by the engine or the environment.
func IsRequestError(err error) bool {
	switch GetCode(err) {
	case CodeTargetInvalid, CodeHostUnresolvable, CodePortSpecInvalid, CodeValidation:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrInvalidTarget creates an error for malformed scan targets.
func ErrInvalidTarget(target, reason string) *ScanError {
	return NewScanErrorWithTarget(CodeTargetInvalid, "invalid target: "+reason, target)
}

// ErrHostUnresolvable creates an error for host names that did not resolve.
func ErrHostUnresolvable(target string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeHostUnresolvable, "host could not be resolved", target, err)
}

// ErrInvalidPortSpec creates an error for a malformed port specification.
func ErrInvalidPortSpec(spec, reason string) *ScanError {
	return NewScanError(CodePortSpecInvalid, "invalid port specification: "+reason).
		WithContext("spec", spec)
}

// ErrScanCanceled creates an error for scans stopped by their caller.
func ErrScanCanceled(target string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeCanceled, "scan canceled", target, err)
}

// ErrEngineFault creates an error for conditions that stop the engine itself.
func ErrEngineFault(target string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeEngineFault, "scan engine cannot continue", target, err)
}

// ErrNotFound creates an error for missing resources.
func ErrNotFound(kind, id string) *ScanError {
	return NewScanError(CodeNotFound, fmt.Sprintf("%s not found", kind)).WithContext("id", id)
}
