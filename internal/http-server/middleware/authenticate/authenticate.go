package authenticate

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"docsample/internal/docdb"
	"docsample/internal/lib/api/cont"
	"docsample/internal/lib/api/response"
	apierrors "docsample/internal/lib/errors"
	"docsample/internal/lib/sl"
	"docsample/internal/lib/util"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type Authenticate interface {
	Authorize(r *http.Request) error
}

// MasterKey verifies master key signatures against the local clock.
type MasterKey string

func (k MasterKey) Authorize(r *http.Request) error {
	return docdb.VerifyRequest(r, string(k), time.Now())
}

// New logs every request and rejects the ones without a valid signature.
// Each response gets an activity id and a zero request charge that handlers
// overwrite.
func New(log *slog.Logger, auth Authenticate) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.authenticate")
	log.With(mod).Info("authenticate middleware initialized")

	return func(next http.Handler) http.Handler {

		fn := func(w http.ResponseWriter, r *http.Request) {
			id := middleware.GetReqID(r.Context())
			activityID := uuid.NewString()
			remote := util.ExtractIPAddress(r.RemoteAddr, r.Header.Get("X-Forwarded-For"))
			logger := log.With(
				mod,
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", remote),
				slog.String("request_id", id),
				slog.String("activity_id", activityID),
			)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Header().Set(docdb.HeaderActivityID, activityID)
			ww.Header().Set(docdb.HeaderRequestCharge, "0")

			t1 := time.Now()
			defer func() {
				logger.With(
					slog.Int("status", ww.Status()),
					slog.Int("size", ww.BytesWritten()),
					slog.String("request_charge", ww.Header().Get(docdb.HeaderRequestCharge)),
					slog.Float64("duration", time.Since(t1).Seconds()),
				).Info("incoming request")
			}()

			if r.Header.Get(docdb.HeaderAuthorization) == "" {
				logger = logger.With(sl.Err(fmt.Errorf("authorization header not found")))
				authFailed(ww, r, "Authorization header not found")
				return
			}
			if auth == nil {
				authFailed(ww, r, "Unauthorized: authentication not enabled")
				return
			}
			if err := auth.Authorize(r); err != nil {
				logger = logger.With(sl.Err(err))
				authFailed(ww, r, "The input authorization token can't serve the request")
				return
			}

			ctx := cont.PutActivityID(r.Context(), activityID)
			next.ServeHTTP(ww, r.WithContext(ctx))
		}

		return http.HandlerFunc(fn)
	}
}

func authFailed(w http.ResponseWriter, r *http.Request, message string) {
	response.Error(w, r, apierrors.NewUnauthorizedError(message))
}
