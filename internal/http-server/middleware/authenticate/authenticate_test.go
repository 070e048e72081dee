package authenticate

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"docsample/internal/docdb"
	"docsample/internal/lib/api/cont"
)

const testKey = "C2y6yDjf5/R+ob0N8A7Cgv30VRDJIWEHLM+4QDU5DE2nQ9nDuVTqobD4b8mGGyPMbIZnqyMsEcaGQy67XIw/Jw=="

type denyAll struct{}

func (denyAll) Authorize(*http.Request) error {
	return errors.New("denied")
}

func TestAuthenticate_Signature(t *testing.T) {
	tests := []struct {
		name           string
		sign           func(r *http.Request)
		expectedStatus int
	}{
		{
			name:           "no authorization header",
			sign:           func(r *http.Request) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "valid signature",
			sign: func(r *http.Request) {
				_ = docdb.SignRequest(r, testKey, time.Now())
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "wrong key",
			sign: func(r *http.Request) {
				_ = docdb.SignRequest(r, "d3Jvbmcta2V5", time.Now())
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "stale date",
			sign: func(r *http.Request) {
				_ = docdb.SignRequest(r, testKey, time.Now().Add(-time.Hour))
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "signed for another verb",
			sign: func(r *http.Request) {
				r.Method = http.MethodPost
				_ = docdb.SignRequest(r, testKey, time.Now())
				r.Method = http.MethodGet
			},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var activityID string
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				activityID = cont.GetActivityID(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			handler := New(logger, MasterKey(testKey))(testHandler)

			req := httptest.NewRequest(http.MethodGet, "/dbs/samples/colls/orders/docs/SalesOrder1", nil)
			tt.sign(req)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("Status = %d, want %d", rec.Code, tt.expectedStatus)
			}
			if rec.Header().Get(docdb.HeaderActivityID) == "" {
				t.Error("activity id header missing")
			}
			if rec.Header().Get(docdb.HeaderRequestCharge) == "" {
				t.Error("request charge header missing")
			}
			if tt.expectedStatus == http.StatusOK && activityID != rec.Header().Get(docdb.HeaderActivityID) {
				t.Errorf("activity id in context = %q, header = %q", activityID, rec.Header().Get(docdb.HeaderActivityID))
			}
		})
	}
}

func TestAuthenticate_Denied(t *testing.T) {
	handlerCalled := false
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := New(logger, denyAll{})(testHandler)

	req := httptest.NewRequest(http.MethodGet, "/dbs", nil)
	req.Header.Set(docdb.HeaderAuthorization, "anything")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", rec.Code)
	}
	if handlerCalled {
		t.Error("handler must not be called")
	}
}

func TestAuthenticate_NilAuth(t *testing.T) {
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := New(logger, nil)(testHandler)

	req := httptest.NewRequest(http.MethodGet, "/dbs", nil)
	req.Header.Set(docdb.HeaderAuthorization, "anything")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Should return unauthorized when auth is nil, got %d", rec.Code)
	}
}
