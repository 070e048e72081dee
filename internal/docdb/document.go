package docdb

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Document is a JSON object as stored by the service.
type Document map[string]any

// ToDocument converts any JSON-serializable value into a Document.
func ToDocument(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var doc Document
	if err = json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("document must be a JSON object: %w", err)
	}
	return doc, nil
}

// Decode unmarshals the document into v.
func (d Document) Decode(v any) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err = json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Clone returns a deep copy normalized to JSON types.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	doc, err := ToDocument(d)
	if err != nil {
		return nil
	}
	return doc
}

func (d Document) ID() string {
	id, _ := d[PropertyID].(string)
	return id
}

func (d Document) ETag() string {
	etag, _ := d[PropertyETag].(string)
	return etag
}

// Size is the length of the JSON encoding in bytes.
func (d Document) Size() int {
	data, err := json.Marshal(d)
	if err != nil {
		return 0
	}
	return len(data)
}

// Lookup walks a path of the form /a/b and returns the value found there.
func (d Document) Lookup(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, seg := range splitPath(path) {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// PartitionKeyValue extracts the document's partition key as a string.
// An empty path means the collection is not partitioned.
func (d Document) PartitionKeyValue(path string) (string, bool) {
	if path == "" {
		return "", true
	}
	v, ok := d.Lookup(path)
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool, int, int64:
		return fmt.Sprint(val), true
	default:
		return "", false
	}
}

func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, true
	case Document:
		return obj, true
	default:
		return nil, false
	}
}

func splitPath(path string) []string {
	path = strings.TrimSuffix(strings.Trim(path, "/"), "/?")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// PathField returns the top level property name of a path like /account_number.
func PathField(path string) string {
	segs := splitPath(path)
	if len(segs) == 0 {
		return ""
	}
	return segs[0]
}

// PathSegments splits a path like /a/b/? into its property names.
func PathSegments(path string) []string {
	return splitPath(path)
}
