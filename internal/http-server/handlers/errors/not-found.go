package errors

import (
	"log/slog"
	"net/http"

	"docsample/internal/lib/api/response"
	apierrors "docsample/internal/lib/errors"
)

func NotFound(_ *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, apierrors.NewNotFoundError("resource "+r.URL.Path))
	}
}
