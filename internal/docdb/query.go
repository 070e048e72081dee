package docdb

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Condition matches documents whose value at Path equals Value.
type Condition struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Query is a conjunction of equality conditions. Backends translate it into
// their native filter form.
type Query struct {
	Conditions []Condition `json:"conditions"`
}

func Equal(path string, value any) Query {
	return Query{Conditions: []Condition{{Path: path, Value: value}}}
}

func (q Query) And(path string, value any) Query {
	conds := make([]Condition, 0, len(q.Conditions)+1)
	conds = append(conds, q.Conditions...)
	conds = append(conds, Condition{Path: path, Value: value})
	return Query{Conditions: conds}
}

// Text renders the query in the service's SQL dialect for display.
func (q Query) Text() string {
	var b strings.Builder
	b.WriteString("SELECT * FROM root r")
	for i, c := range q.Conditions {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString("r.")
		b.WriteString(strings.Join(splitPath(c.Path), "."))
		b.WriteString("=")
		b.WriteString(literal(c.Value))
	}
	return b.String()
}

// Matches reports whether every condition holds for doc.
func (q Query) Matches(doc Document) bool {
	for _, c := range q.Conditions {
		v, ok := doc.Lookup(c.Path)
		if !ok || !sameJSON(v, c.Value) {
			return false
		}
	}
	return true
}

func literal(v any) string {
	if s, ok := v.(string); ok {
		return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
	}
	return fmt.Sprint(v)
}

func sameJSON(a, b any) bool {
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ja) == string(jb)
}
