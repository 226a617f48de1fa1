package schema

import "github.com/raisfeld-ori/appwrite-orm/store"

// ToAttributeType maps a declared field type to the backend attribute type
// vocabulary. The second return is false when the type was not recognized
// and the mapping fell open to string; callers should surface that as a
// non-fatal warning rather than break on unknown future types.
func ToAttributeType(t FieldType) (store.AttributeType, bool) {
	switch t {
	case FieldTypeString:
		return store.AttributeTypeString, true
	case FieldTypeInteger, FieldTypeNumber:
		return store.AttributeTypeInteger, true
	case FieldTypeFloat:
		return store.AttributeTypeFloat, true
	case FieldTypeBoolean:
		return store.AttributeTypeBoolean, true
	case FieldTypeDatetime:
		return store.AttributeTypeDatetime, true
	case FieldTypeEnum:
		return store.AttributeTypeEnum, true
	}
	return store.AttributeTypeString, false
}

// FromAttributeType is the inverse mapping. An enum attribute comes back as
// FieldTypeEnum with no element set; the allowed values live on the backend
// attribute, not in the type name.
func FromAttributeType(t store.AttributeType) FieldType {
	switch t {
	case store.AttributeTypeInteger:
		return FieldTypeInteger
	case store.AttributeTypeFloat:
		return FieldTypeFloat
	case store.AttributeTypeBoolean:
		return FieldTypeBoolean
	case store.AttributeTypeDatetime:
		return FieldTypeDatetime
	case store.AttributeTypeEnum:
		return FieldTypeEnum
	}
	return FieldTypeString
}
