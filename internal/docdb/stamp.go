package docdb

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// NewETag returns a fresh quoted entity tag.
func NewETag() string {
	return `"` + uuid.NewString() + `"`
}

// Stamp prepares a copy of doc for a write and returns it with its partition
// key value. A non-empty id pins the document id to the addressed resource;
// a document without id gets a generated one. The ETag and timestamp system
// properties are overwritten.
func Stamp(op string, doc Document, pkPath, id string, opts *RequestOptions, etag string, now time.Time) (Document, string, error) {
	stored := doc.Clone()
	if stored == nil {
		return nil, "", NewError(op, http.StatusBadRequest, "document body is required")
	}
	switch {
	case id != "" && stored.ID() != "" && stored.ID() != id:
		return nil, "", NewError(op, http.StatusBadRequest, "document id does not match the resource")
	case id != "":
		stored[PropertyID] = id
	case stored.ID() == "":
		stored[PropertyID] = uuid.NewString()
	}

	pk, ok := stored.PartitionKeyValue(pkPath)
	if !ok {
		return nil, "", NewError(op, http.StatusBadRequest, "document has no value for partition key "+pkPath)
	}
	if want := RequestPartitionKey(opts); want != "" && want != pk {
		return nil, "", NewError(op, http.StatusBadRequest, "partition key of the document does not match the request")
	}

	stored[PropertyETag] = etag
	stored[PropertyTimestamp] = float64(now.Unix())
	return stored, pk, nil
}

// PointPartitionKey returns the partition key a point operation is scoped to.
// Partitioned collections require one.
func PointPartitionKey(op, pkPath string, opts *RequestOptions) (string, error) {
	pk := RequestPartitionKey(opts)
	if pk == "" && pkPath != "" {
		return "", NewError(op, http.StatusBadRequest, "partition key is required for a partitioned collection")
	}
	return pk, nil
}
