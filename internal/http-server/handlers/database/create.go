package database

import (
	"log/slog"
	"net/http"

	"docsample/internal/http-server/handlers/errors"
	"docsample/internal/lib/api/request"
	"docsample/internal/lib/api/response"

	"github.com/go-chi/render"
)

func Create(logger *slog.Logger, core Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.database.Create"
		log := logger.With(slog.String("op", op))

		id, err := request.DecodeDatabase(w, r)
		if err != nil {
			errors.WrongData(log, w, r, err)
			return
		}

		resp, err := core.CreateDatabase(r.Context(), id)
		if err != nil {
			response.Fail(w, r, log.With(slog.String("database", id)), err)
			return
		}

		response.Meta(w, resp)
		render.Status(r, resp.StatusCode)
		render.JSON(w, r, response.Database{ID: id})
	}
}
