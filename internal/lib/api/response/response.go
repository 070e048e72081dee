package response

import (
	"log/slog"
	"net/http"
	"strconv"

	"docsample/internal/docdb"
	apierrors "docsample/internal/lib/errors"
	"docsample/internal/lib/sl"

	"github.com/go-chi/render"
)

// Feed is one page of documents.
type Feed struct {
	Documents []docdb.Document `json:"Documents"`
	Count     int              `json:"_count"`
}

// Database is the body returned for a created database.
type Database struct {
	ID string `json:"id"`
}

// Meta copies response metadata into headers. It must run before the status
// is written.
func Meta(w http.ResponseWriter, resp *docdb.Response) {
	h := w.Header()
	h.Set(docdb.HeaderRequestCharge, strconv.FormatFloat(resp.RequestCharge, 'f', -1, 64))
	if resp.ETag != "" {
		h.Set("ETag", resp.ETag)
	}
	if resp.ActivityID != "" {
		h.Set(docdb.HeaderActivityID, resp.ActivityID)
	}
}

func Item(w http.ResponseWriter, r *http.Request, resp *docdb.ItemResponse) {
	Meta(w, &resp.Response)
	if resp.StatusCode == http.StatusNotModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	render.Status(r, resp.StatusCode)
	render.JSON(w, r, resp.Document)
}

func Page(w http.ResponseWriter, r *http.Request, resp *docdb.FeedResponse) {
	Meta(w, &resp.Response)
	docs := resp.Documents
	if docs == nil {
		docs = []docdb.Document{}
	}
	if resp.Continuation != "" {
		w.Header().Set(docdb.HeaderContinuation, resp.Continuation)
	}
	w.Header().Set(docdb.HeaderItemCount, strconv.Itoa(len(docs)))
	render.Status(r, http.StatusOK)
	render.JSON(w, r, Feed{Documents: docs, Count: len(docs)})
}

// Error writes an API error with its HTTP status.
func Error(w http.ResponseWriter, r *http.Request, err *apierrors.APIError) {
	render.Status(r, err.HTTPStatus)
	render.JSON(w, r, err)
}

// Fail converts err and writes it; server side failures are logged as errors.
func Fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	apiErr := apierrors.FromError(err)
	if apiErr.HTTPStatus >= http.StatusInternalServerError {
		log.Error("request failed", slog.String("error_code", string(apiErr.Code)), sl.Err(err))
	} else {
		log.Debug("request rejected", slog.String("error_code", string(apiErr.Code)), sl.Err(err))
	}
	Error(w, r, apiErr)
}
