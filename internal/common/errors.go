package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes for the scanner session taxonomy.
const (
	CodeNotInitialized    = "NOT_INITIALIZED"
	CodeNoCameraAvailable = "NO_CAMERA_AVAILABLE"
	CodeCameraOpenFailed  = "CAMERA_OPEN_FAILED"
	CodeCameraTimeout     = "CAMERA_TIMEOUT"
	CodeParserError       = "PARSER_ERROR"
	CodeConfigError       = "CONFIG_ERROR"
)

// Common application errors
var (
	ErrInvalidInput = errors.New("invalid input")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the AppError code wrapped anywhere in err, or "".
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
