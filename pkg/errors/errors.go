package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies application errors across the scan pipeline.
type ErrorCode string

const (
	ErrValidation   ErrorCode = "VALIDATION"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrForbidden    ErrorCode = "FORBIDDEN"
	ErrStorage      ErrorCode = "STORAGE"
	ErrPrediction   ErrorCode = "PREDICTION"
	ErrUnavailable  ErrorCode = "UNAVAILABLE"
	ErrInternal     ErrorCode = "INTERNAL"
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code to an HTTP status. Storage and prediction
// failures are recovered per-image during ingestion, so one escaping to the
// transport layer means the whole request failed.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Validation(field, message string) *AppError {
	return &AppError{Code: ErrValidation, Message: message, Field: field}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{Code: ErrUnauthorized, Message: message}
}

func Forbidden(message string) *AppError {
	return &AppError{Code: ErrForbidden, Message: message}
}

func Storage(message string, err error) *AppError {
	return &AppError{Code: ErrStorage, Message: message, Err: err}
}

func Prediction(message string, err error) *AppError {
	return &AppError{Code: ErrPrediction, Message: message, Err: err}
}

func Unavailable(message string, err error) *AppError {
	return &AppError{Code: ErrUnavailable, Message: message, Err: err}
}

func Internal(err error) *AppError {
	return &AppError{Code: ErrInternal, Message: "internal server error", Err: err}
}

// IsCode reports whether err is an AppError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
