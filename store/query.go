package store

import (
	"encoding/json"
	"fmt"
)

// Query is one expression of the backend query language. Expressions travel
// as opaque JSON strings; the builder functions below produce them and
// ParseQuery turns them back into a Query for local evaluation.
type Query struct {
	Method    string `json:"method"`
	Attribute string `json:"attribute,omitempty"`
	Values    []any  `json:"values,omitempty"`
}

func (q Query) String() string {
	buf, err := json.Marshal(q)
	if err != nil {
		// only unmarshalable values can end up here
		return fmt.Sprintf(`{"method":%q}`, q.Method)
	}
	return string(buf)
}

func ParseQuery(expr string) (Query, error) {
	var q Query
	if err := json.Unmarshal([]byte(expr), &q); err != nil {
		return q, fmt.Errorf("invalid query expression %q: %w", expr, err)
	}
	if q.Method == "" {
		return q, fmt.Errorf("invalid query expression %q: no method", expr)
	}
	return q, nil
}

func Equal(attribute string, values ...any) string {
	return Query{Method: "equal", Attribute: attribute, Values: values}.String()
}

func GreaterThan(attribute string, value any) string {
	return Query{Method: "greaterThan", Attribute: attribute, Values: []any{value}}.String()
}

func LessThan(attribute string, value any) string {
	return Query{Method: "lessThan", Attribute: attribute, Values: []any{value}}.String()
}

func Search(attribute string, value string) string {
	return Query{Method: "search", Attribute: attribute, Values: []any{value}}.String()
}

func StartsWith(attribute string, value string) string {
	return Query{Method: "startsWith", Attribute: attribute, Values: []any{value}}.String()
}

func EndsWith(attribute string, value string) string {
	return Query{Method: "endsWith", Attribute: attribute, Values: []any{value}}.String()
}

func OrderAsc(attribute string) string {
	return Query{Method: "orderAsc", Attribute: attribute}.String()
}

func OrderDesc(attribute string) string {
	return Query{Method: "orderDesc", Attribute: attribute}.String()
}

func Limit(n int) string {
	return Query{Method: "limit", Values: []any{n}}.String()
}

func Offset(n int) string {
	return Query{Method: "offset", Values: []any{n}}.String()
}

func Select(fields []string) string {
	values := make([]any, len(fields))
	for i, f := range fields {
		values[i] = f
	}
	return Query{Method: "select", Values: values}.String()
}
