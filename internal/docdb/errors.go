package docdb

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failed service call. StatusCode follows HTTP semantics whatever
// the backend; Err keeps the native driver error when there is one.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("docdb: %s: status %d (%s)", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, status int, message string) *Error {
	return &Error{Op: op, StatusCode: status, Message: message}
}

func Wrap(op string, status int, err error) *Error {
	return &Error{Op: op, StatusCode: status, Err: err}
}

// StatusOf returns the status code carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

func IsConflict(err error) bool {
	return StatusOf(err) == http.StatusConflict
}

func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

func IsPreconditionFailed(err error) bool {
	return StatusOf(err) == http.StatusPreconditionFailed
}

func IsThrottled(err error) bool {
	return StatusOf(err) == http.StatusTooManyRequests
}

func IsNotModified(err error) bool {
	return StatusOf(err) == http.StatusNotModified
}
