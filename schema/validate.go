package schema

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/raisfeld-ori/appwrite-orm/pkg"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// ValidationErrors is the aggregate error thrown after a full validation
// pass. It always carries every violation found, never just the first.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	messages := make([]string, len(e))
	for i, err := range e {
		messages[i] = err.Error()
	}
	return "validation failed: " + strings.Join(messages, "; ")
}

// ValidateField checks one candidate value against a field definition and
// returns every violation found. Checks run in a fixed order; a required
// or type failure stops further checks for the field, a size failure does
// not.
func ValidateField(name string, field Field, value any) []ValidationError {
	if value == nil {
		if field.Required {
			return []ValidationError{{Field: name, Message: "is required"}}
		}
		return nil
	}

	if field.Array {
		return validateArray(name, field, value)
	}

	if !matchesType(field.Type, value) {
		return []ValidationError{{
			Field:   name,
			Message: fmt.Sprintf("expected type %s, got %T", field.Type, value),
			Value:   value,
		}}
	}

	errors := []ValidationError{}

	if field.Type == FieldTypeString && field.Size > 0 {
		if s := value.(string); len(s) > field.Size {
			errors = append(errors, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("exceeds maximum length of %d", field.Size),
				Value:   value,
			})
		}
	}

	if isNumericType(field.Type) {
		v, _ := pkg.NumToFloat(value)
		if field.Min != nil && v < *field.Min {
			errors = append(errors, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("is below the minimum of %v", *field.Min),
				Value:   value,
			})
		}
		if field.Max != nil && v > *field.Max {
			errors = append(errors, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("exceeds the maximum of %v", *field.Max),
				Value:   value,
			})
		}
	}

	if field.Type == FieldTypeEnum && len(field.Enum) > 0 {
		if s, ok := value.(string); ok && !contains(field.Enum, s) {
			errors = append(errors, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(field.Enum, ", ")),
				Value:   value,
			})
		}
	}

	if len(errors) == 0 {
		return nil
	}
	return errors
}

// validateArray checks the array shape and each element against the scalar
// type predicate. At most one element-type error is emitted; range and size
// checks are not applied to array fields.
func validateArray(name string, field Field, value any) []ValidationError {
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return []ValidationError{{
			Field:   name,
			Message: fmt.Sprintf("expected array, got %T", value),
			Value:   value,
		}}
	}

	for i := 0; i < v.Len(); i++ {
		if !matchesType(field.Type, v.Index(i).Interface()) {
			return []ValidationError{{
				Field:   name,
				Message: fmt.Sprintf("array contains a value that is not type %s", field.Type),
				Value:   value,
			}}
		}
	}

	return nil
}

// matchesType is the scalar type predicate. Datetime accepts a time.Time or
// an ISO string without parsing it; enum accepts any string here, the
// allowed-set check happens later. Unknown types pass, matching the
// fail-open behavior of the type mapper.
func matchesType(t FieldType, value any) bool {
	switch t {
	case FieldTypeString:
		_, ok := value.(string)
		return ok
	case FieldTypeInteger, FieldTypeFloat, FieldTypeNumber:
		v, ok := pkg.NumToFloat(value)
		return ok && !math.IsNaN(v)
	case FieldTypeBoolean:
		_, ok := value.(bool)
		return ok
	case FieldTypeDatetime:
		switch value.(type) {
		case time.Time, string:
			return true
		}
		return false
	case FieldTypeEnum:
		_, ok := value.(string)
		return ok
	}
	return true
}

func isNumericType(t FieldType) bool {
	return t == FieldTypeInteger || t == FieldTypeFloat || t == FieldTypeNumber
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// ValidateCreate runs the full validation used on create: every declared
// field is checked, so a required field absent from the input is flagged.
// All violations across all fields are gathered into one aggregate error.
func (t Table) ValidateCreate(data map[string]any) error {
	names := make([]string, 0, len(t.Fields))
	for name := range t.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	errors := ValidationErrors{}
	for _, name := range names {
		errors = append(errors, ValidateField(name, t.Fields[name], data[name])...)
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

// ValidateUpdate runs the partial validation used on update: only keys
// present in the input are checked, absent fields are never flagged.
func (t Table) ValidateUpdate(data map[string]any) error {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	errors := ValidationErrors{}
	for _, name := range names {
		field, ok := t.Fields[name]
		if !ok {
			continue
		}
		errors = append(errors, ValidateField(name, field, data[name])...)
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}
