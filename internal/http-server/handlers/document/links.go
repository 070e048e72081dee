package document

import (
	"log/slog"
	"net/http"
	"net/url"

	"docsample/internal/docdb"
	"docsample/internal/lib/api/cont"

	"github.com/go-chi/chi/v5"
)

func param(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

func collectionLink(r *http.Request) docdb.CollectionLink {
	return docdb.CollectionLink{
		Database:   param(r, "db"),
		Collection: param(r, "coll"),
	}
}

func documentLink(r *http.Request) docdb.DocumentLink {
	return collectionLink(r).Doc(param(r, "id"))
}

func requestLogger(logger *slog.Logger, r *http.Request, op string) *slog.Logger {
	return logger.With(
		slog.String("op", op),
		slog.String("link", collectionLink(r).String()),
		slog.String("activity_id", cont.GetActivityID(r.Context())),
	)
}
