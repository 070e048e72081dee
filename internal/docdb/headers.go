package docdb

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FormatPartitionKey encodes a partition key value for the partition key
// header, which carries a JSON array with a single element.
func FormatPartitionKey(pk string) string {
	data, _ := json.Marshal([]string{pk})
	return string(data)
}

// ParsePartitionKey decodes the partition key header. String, number and
// boolean elements are accepted.
func ParsePartitionKey(header string) (string, error) {
	if header == "" {
		return "", nil
	}
	var values []any
	if err := json.Unmarshal([]byte(header), &values); err != nil {
		return "", fmt.Errorf("partition key header: %w", err)
	}
	if len(values) != 1 {
		return "", fmt.Errorf("partition key header: expected one value, got %d", len(values))
	}
	switch v := values[0].(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("partition key header: unsupported value %v", v)
	}
}
