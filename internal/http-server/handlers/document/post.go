package document

import (
	"log/slog"
	"net/http"

	"docsample/internal/http-server/handlers/errors"
	"docsample/internal/lib/api/request"
	"docsample/internal/lib/api/response"
)

// Post serves creates, upserts and queries, which share the feed address.
func Post(logger *slog.Logger, core Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if request.IsQuery(r) {
			query(logger, core, w, r)
			return
		}

		const op = "handlers.document.Create"
		log := requestLogger(logger, r, op)

		opts, err := request.RequestOptions(r)
		if err != nil {
			errors.WrongData(log, w, r, err)
			return
		}
		doc, err := request.DecodeDocument(w, r)
		if err != nil {
			errors.WrongData(log, w, r, err)
			return
		}

		create := core.CreateDocument
		if request.IsUpsert(r) {
			create = core.UpsertDocument
		}
		resp, err := create(r.Context(), collectionLink(r), doc, opts)
		if err != nil {
			response.Fail(w, r, log.With(slog.String("id", doc.ID())), err)
			return
		}
		response.Item(w, r, resp)
	}
}

func query(logger *slog.Logger, core Core, w http.ResponseWriter, r *http.Request) {
	const op = "handlers.document.Query"
	log := requestLogger(logger, r, op)

	opts, err := request.FeedOptions(r)
	if err != nil {
		errors.WrongData(log, w, r, err)
		return
	}
	q, err := request.DecodeQuery(w, r)
	if err != nil {
		errors.WrongData(log, w, r, err)
		return
	}

	resp, err := core.QueryDocuments(r.Context(), collectionLink(r), q, opts)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	response.Page(w, r, resp)
}
