package collection

import (
	"log/slog"
	"net/http"

	"docsample/internal/http-server/handlers/errors"
	"docsample/internal/lib/api/request"
	"docsample/internal/lib/api/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

func Create(logger *slog.Logger, core Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.collection.Create"
		db := chi.URLParam(r, "db")
		log := logger.With(slog.String("op", op), slog.String("database", db))

		def, err := request.DecodeCollection(w, r)
		if err != nil {
			errors.WrongData(log, w, r, err)
			return
		}

		resp, err := core.CreateCollection(r.Context(), db, def)
		if err != nil {
			response.Fail(w, r, log.With(slog.String("collection", def.ID)), err)
			return
		}

		response.Meta(w, resp)
		render.Status(r, resp.StatusCode)
		render.JSON(w, r, def)
	}
}
