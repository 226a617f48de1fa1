// Package schema holds the declared shape of a table: field definitions,
// permission roles and indexes, plus the validation rules applied to
// candidate documents before they reach the backend.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/raisfeld-ori/appwrite-orm/store"
)

type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeInteger  FieldType = "integer"
	FieldTypeFloat    FieldType = "float"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeDatetime FieldType = "datetime"
	FieldTypeEnum     FieldType = "enum"

	// Legacy alias kept for schemas written before integer/float split.
	// Treated as integer everywhere.
	FieldTypeNumber FieldType = "number"
)

// Field describes one schema column.
type Field struct {
	Type     FieldType `json:"type"`
	Required bool      `json:"required,omitempty"`
	// Default is forwarded to the backend's own default mechanism,
	// never enforced by the validator.
	Default any      `json:"default,omitempty"`
	Array   bool     `json:"array,omitempty"`
	Size    int      `json:"size,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Enum    []string `json:"enum,omitempty"`
}

// UnmarshalJSON accepts the literal-array form for enum fields:
// {"type": ["admin", "user"]} is read as an enum with those elements.
func (f *Field) UnmarshalJSON(data []byte) error {
	type field Field
	buf := struct {
		*field
		Type json.RawMessage `json:"type"`
	}{field: (*field)(f)}
	if err := json.Unmarshal(data, &buf); err != nil {
		return err
	}

	if len(buf.Type) == 0 {
		return fmt.Errorf("field has no type")
	}

	if buf.Type[0] == '[' {
		var elements []string
		if err := json.Unmarshal(buf.Type, &elements); err != nil {
			return fmt.Errorf("invalid literal-array field type: %w", err)
		}
		f.Type = FieldTypeEnum
		if len(f.Enum) == 0 {
			f.Enum = elements
		}
		return nil
	}

	var name string
	if err := json.Unmarshal(buf.Type, &name); err != nil {
		return fmt.Errorf("invalid field type: %w", err)
	}
	f.Type = FieldType(name)
	return nil
}

// Table is a named collection of field definitions. Declared once at
// initialization time and immutable for the lifetime of the ORM instance.
type Table struct {
	Name string `json:"name"`
	// ID overrides the backend collection identifier; defaults to Name.
	ID      string           `json:"id,omitempty"`
	Fields  map[string]Field `json:"fields"`
	Role    Role             `json:"role,omitempty"`
	Indexes []store.Index    `json:"indexes,omitempty"`
}

// CollectionID resolves the backend collection identifier for the table.
func (t Table) CollectionID() string {
	if t.ID != "" {
		return t.ID
	}
	return t.Name
}
