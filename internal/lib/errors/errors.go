package errors

import (
	"errors"
	"fmt"
	"net/http"

	"docsample/internal/docdb"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Client errors (4xx)
	ErrCodeBadRequest         ErrorCode = "BadRequest"
	ErrCodeUnauthorized       ErrorCode = "Unauthorized"
	ErrCodeForbidden          ErrorCode = "Forbidden"
	ErrCodeNotFound           ErrorCode = "NotFound"
	ErrCodeMethodNotAllowed   ErrorCode = "MethodNotAllowed"
	ErrCodeConflict           ErrorCode = "Conflict"
	ErrCodePreconditionFailed ErrorCode = "PreconditionFailed"
	ErrCodeEntityTooLarge     ErrorCode = "RequestEntityTooLarge"
	ErrCodeTooManyRequests    ErrorCode = "TooManyRequests"

	// Server errors (5xx)
	ErrCodeInternalError  ErrorCode = "InternalServerError"
	ErrCodeServiceUnavail ErrorCode = "ServiceUnavailable"
	ErrCodeTimeout        ErrorCode = "RequestTimeout"
)

var codes = map[int]ErrorCode{
	http.StatusBadRequest:            ErrCodeBadRequest,
	http.StatusUnauthorized:          ErrCodeUnauthorized,
	http.StatusForbidden:             ErrCodeForbidden,
	http.StatusNotFound:              ErrCodeNotFound,
	http.StatusMethodNotAllowed:      ErrCodeMethodNotAllowed,
	http.StatusConflict:              ErrCodeConflict,
	http.StatusPreconditionFailed:    ErrCodePreconditionFailed,
	http.StatusRequestEntityTooLarge: ErrCodeEntityTooLarge,
	http.StatusTooManyRequests:       ErrCodeTooManyRequests,
	http.StatusInternalServerError:   ErrCodeInternalError,
	http.StatusServiceUnavailable:    ErrCodeServiceUnavail,
	http.StatusRequestTimeout:        ErrCodeTimeout,
}

// APIError is the error body returned by the emulator.
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, httpStatus int) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// FromStatus builds an error for an HTTP status, using the generic code of
// the status class when the status has no code of its own.
func FromStatus(status int, message string) *APIError {
	code, ok := codes[status]
	if !ok {
		code = ErrCodeInternalError
		if status >= 400 && status < 500 {
			code = ErrCodeBadRequest
		}
	}
	return NewAPIError(code, message, status)
}

// FromError converts a service error. Anything without a status becomes 500.
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var docErr *docdb.Error
	if errors.As(err, &docErr) && docErr.StatusCode >= 400 {
		msg := docErr.Message
		if msg == "" {
			msg = http.StatusText(docErr.StatusCode)
		}
		return FromStatus(docErr.StatusCode, msg)
	}
	return NewInternalError("")
}

func NewBadRequestError(message string) *APIError {
	return FromStatus(http.StatusBadRequest, message)
}

func NewUnauthorizedError(message string) *APIError {
	return FromStatus(http.StatusUnauthorized, message)
}

func NewNotFoundError(resource string) *APIError {
	return FromStatus(http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

func NewMethodNotAllowedError(method string) *APIError {
	return FromStatus(http.StatusMethodNotAllowed, fmt.Sprintf("method %s is not allowed", method))
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *APIError {
	if message == "" {
		message = "An internal error occurred"
	}
	return FromStatus(http.StatusInternalServerError, message)
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.HTTPStatus == status
}
