package request

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docsample/internal/docdb"
)

func post(body string) (*httptest.ResponseRecorder, *http.Request) {
	return httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/dbs", bytes.NewBufferString(body))
}

func TestDecodeDocument(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantID  string
		wantErr error
		anyErr  bool
	}{
		{name: "object", body: `{"id":"SalesOrder1","account_number":"Account1"}`, wantID: "SalesOrder1"},
		{name: "empty body", body: "", wantErr: ErrEmptyBody},
		{name: "null", body: "null", anyErr: true},
		{name: "array", body: `[1,2]`, anyErr: true},
		{name: "invalid json", body: `{"id":`, anyErr: true},
		{name: "too large", body: `{"x":"` + strings.Repeat("a", maxBodySize) + `"}`, wantErr: ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, r := post(tt.body)
			doc, err := DecodeDocument(w, r)

			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("DecodeDocument() error = %v, want %v", err, tt.wantErr)
				}
			case tt.anyErr:
				if err == nil {
					t.Error("DecodeDocument() error = nil")
				}
			default:
				if err != nil {
					t.Fatalf("DecodeDocument() unexpected error = %v", err)
				}
				if doc.ID() != tt.wantID {
					t.Errorf("DecodeDocument() id = %q, want %q", doc.ID(), tt.wantID)
				}
			}
		})
	}
}

func TestDecodeQuery(t *testing.T) {
	w, r := post(`{"query":"SELECT * FROM root r WHERE r.account_number='Account1'","conditions":[{"path":"/account_number","value":"Account1"}]}`)
	q, err := DecodeQuery(w, r)
	if err != nil {
		t.Fatalf("DecodeQuery() error = %v", err)
	}
	if len(q.Conditions) != 1 || q.Conditions[0].Value != "Account1" {
		t.Errorf("DecodeQuery() = %+v", q)
	}

	w, r = post(`{"conditions":[{"value":"x"}]}`)
	if _, err = DecodeQuery(w, r); err == nil {
		t.Error("condition without path must fail")
	}
}

func TestDecodeCollection(t *testing.T) {
	w, r := post(`{"id":"orders","partitionKey":{"paths":["/account_number"]}}`)
	def, err := DecodeCollection(w, r)
	if err != nil {
		t.Fatalf("DecodeCollection() error = %v", err)
	}
	if def.PartitionKeyPath() != "/account_number" {
		t.Errorf("partition key path = %q", def.PartitionKeyPath())
	}

	w, r = post(`{}`)
	if _, err = DecodeCollection(w, r); err == nil {
		t.Error("missing id must fail")
	}
	w, r = post(`{}`)
	if _, err = DecodeDatabase(w, r); err == nil {
		t.Error("missing database id must fail")
	}
}

func TestFeedOptions(t *testing.T) {
	tests := []struct {
		name    string
		max     string
		want    int
		wantErr bool
	}{
		{name: "absent", max: "", want: 0},
		{name: "ten", max: "10", want: 10},
		{name: "dynamic", max: "-1", want: 0},
		{name: "zero", max: "0", wantErr: true},
		{name: "garbage", max: "ten", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/dbs/a/colls/b/docs", nil)
			if tt.max != "" {
				r.Header.Set(docdb.HeaderMaxItemCount, tt.max)
			}
			r.Header.Set(docdb.HeaderContinuation, "token")
			opts, err := FeedOptions(r)
			if tt.wantErr {
				if err == nil {
					t.Error("FeedOptions() error = nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("FeedOptions() error = %v", err)
			}
			if opts.MaxItemCount != tt.want || opts.Continuation != "token" {
				t.Errorf("FeedOptions() = %+v", opts)
			}
		})
	}
}

func TestRequestOptions(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/dbs/a/colls/b/docs/c", nil)
	r.Header.Set(docdb.HeaderPartitionKey, `["Account1"]`)
	r.Header.Set("If-Match", `"etag"`)
	opts, err := RequestOptions(r)
	if err != nil {
		t.Fatalf("RequestOptions() error = %v", err)
	}
	if opts.PartitionKey != "Account1" || opts.IfMatch != `"etag"` || opts.IfNoneMatch != "" {
		t.Errorf("RequestOptions() = %+v", opts)
	}

	r.Header.Set(docdb.HeaderPartitionKey, `Account1`)
	if _, err = RequestOptions(r); err == nil {
		t.Error("bad partition key header must fail")
	}
}

func TestFlags(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/dbs/a/colls/b/docs", nil)
	if IsUpsert(r) || IsQuery(r) {
		t.Error("flags must default to false")
	}
	r.Header.Set(docdb.HeaderIsUpsert, "True")
	r.Header.Set("Content-Type", "application/query+json")
	if !IsUpsert(r) || !IsQuery(r) {
		t.Error("flags not detected")
	}
}
