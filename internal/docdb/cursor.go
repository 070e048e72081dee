package docdb

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor is the position of a document in (partition key, id) order. Backends
// that page by key encode the last returned position as the continuation.
type Cursor struct {
	PK string `json:"pk"`
	ID string `json:"id"`
}

func (c Cursor) Less(o Cursor) bool {
	if c.PK != o.PK {
		return c.PK < o.PK
	}
	return c.ID < o.ID
}

func (c Cursor) Encode() string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

func DecodeCursor(token string) (Cursor, error) {
	var c Cursor
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return c, fmt.Errorf("invalid continuation: %w", err)
	}
	if err = json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("invalid continuation: %w", err)
	}
	return c, nil
}
