package errors

import (
	"fmt"
	"net/http"
	"testing"

	"docsample/internal/docdb"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		code   ErrorCode
	}{
		{http.StatusConflict, ErrCodeConflict},
		{http.StatusPreconditionFailed, ErrCodePreconditionFailed},
		{http.StatusTooManyRequests, ErrCodeTooManyRequests},
		{http.StatusTeapot, ErrCodeBadRequest},
		{http.StatusBadGateway, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromStatus(tt.status, "msg")
			if err.Code != tt.code {
				t.Errorf("FromStatus(%d).Code = %s, want %s", tt.status, err.Code, tt.code)
			}
			if err.HTTPStatus != tt.status {
				t.Errorf("FromStatus(%d).HTTPStatus = %d", tt.status, err.HTTPStatus)
			}
		})
	}
}

func TestFromError(t *testing.T) {
	wrapped := fmt.Errorf("replace: %w", docdb.NewError("ReplaceDocument", http.StatusPreconditionFailed, "etag mismatch"))
	apiErr := FromError(wrapped)
	if apiErr.HTTPStatus != http.StatusPreconditionFailed || apiErr.Message != "etag mismatch" {
		t.Errorf("unexpected error %+v", apiErr)
	}

	apiErr = FromError(docdb.Wrap("ReadDocument", http.StatusNotFound, nil))
	if apiErr.Message != "Not Found" {
		t.Errorf("message = %q, want status text", apiErr.Message)
	}

	apiErr = FromError(fmt.Errorf("plain"))
	if apiErr.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", apiErr.HTTPStatus)
	}

	own := NewBadRequestError("bad")
	if FromError(fmt.Errorf("ctx: %w", own)) != own {
		t.Error("api error must pass through")
	}
	if !IsStatus(fmt.Errorf("ctx: %w", own), http.StatusBadRequest) {
		t.Error("IsStatus must unwrap")
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := NewNotFoundError("document SalesOrder1")
	if err.Error() != "NotFound: document SalesOrder1 not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}
