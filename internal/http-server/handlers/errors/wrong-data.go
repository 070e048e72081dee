package errors

import (
	"errors"
	"log/slog"
	"net/http"

	"docsample/internal/lib/api/request"
	"docsample/internal/lib/api/response"
	apierrors "docsample/internal/lib/errors"
	"docsample/internal/lib/sl"
)

// WrongData answers a request whose body or headers could not be decoded.
func WrongData(log *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierrors.NewBadRequestError(err.Error())
	switch {
	case errors.Is(err, request.ErrEmptyBody):
		apiErr = apierrors.NewBadRequestError("Empty request body")
	case errors.Is(err, request.ErrTooLarge):
		apiErr = apierrors.FromStatus(http.StatusRequestEntityTooLarge, "Request size is too large")
	}
	log.Warn("wrong request data", slog.String("error_code", string(apiErr.Code)), sl.Err(err))
	response.Error(w, r, apiErr)
}
