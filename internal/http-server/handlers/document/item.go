package document

import (
	"log/slog"
	"net/http"

	"docsample/internal/http-server/handlers/errors"
	"docsample/internal/lib/api/request"
	"docsample/internal/lib/api/response"
)

func Read(logger *slog.Logger, core Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.document.Read"
		link := documentLink(r)
		log := requestLogger(logger, r, op).With(slog.String("id", link.ID))

		opts, err := request.RequestOptions(r)
		if err != nil {
			errors.WrongData(log, w, r, err)
			return
		}

		resp, err := core.ReadDocument(r.Context(), link, opts)
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}
		response.Item(w, r, resp)
	}
}

func Replace(logger *slog.Logger, core Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.document.Replace"
		link := documentLink(r)
		log := requestLogger(logger, r, op).With(slog.String("id", link.ID))

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

		resp, err := core.ReplaceDocument(r.Context(), link, doc, opts)
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}
		response.Item(w, r, resp)
	}
}

func Delete(logger *slog.Logger, core Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.document.Delete"
		link := documentLink(r)
		log := requestLogger(logger, r, op).With(slog.String("id", link.ID))

		opts, err := request.RequestOptions(r)
		if err != nil {
			errors.WrongData(log, w, r, err)
			return
		}

		resp, err := core.DeleteDocument(r.Context(), link, opts)
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}
		response.Meta(w, resp)
		w.WriteHeader(resp.StatusCode)
	}
}
