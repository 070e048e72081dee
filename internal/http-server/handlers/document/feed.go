package document

import (
	"log/slog"
	"net/http"

	"docsample/internal/http-server/handlers/errors"
	"docsample/internal/lib/api/request"
	"docsample/internal/lib/api/response"
)

func ReadFeed(logger *slog.Logger, core Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.document.ReadFeed"
		log := requestLogger(logger, r, op)

		opts, err := request.FeedOptions(r)
		if err != nil {
			errors.WrongData(log, w, r, err)
			return
		}

		resp, err := core.ReadDocuments(r.Context(), collectionLink(r), opts)
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}
		response.Page(w, r, resp)
	}
}
