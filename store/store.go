// Package store defines the document-store and schema-store capabilities
// the ORM consumes. The appwrite subpackage implements them against a real
// backend, the devstore subpackage implements them in-process.
package store

import (
	"context"
	"errors"

	"github.com/raisfeld-ori/appwrite-orm/pkg"
)

// System fields carried by every stored document.
const (
	FieldID        = "$id"
	FieldCreatedAt = "$createdAt"
	FieldUpdatedAt = "$updatedAt"
)

// Maps document field name to its saved data
type Document = pkg.Map[string, any]

type DocumentList struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
}

type AttributeType string

const (
	AttributeTypeString   AttributeType = "string"
	AttributeTypeInteger  AttributeType = "integer"
	AttributeTypeFloat    AttributeType = "float"
	AttributeTypeBoolean  AttributeType = "boolean"
	AttributeTypeDatetime AttributeType = "datetime"
	AttributeTypeEnum     AttributeType = "enum"
)

type Attribute struct {
	Key      string        `json:"key"`
	Type     AttributeType `json:"type"`
	Required bool          `json:"required"`
	Array    bool          `json:"array"`
	Size     int           `json:"size,omitempty"`
	Min      *float64      `json:"min,omitempty"`
	Max      *float64      `json:"max,omitempty"`
	Elements []string      `json:"elements,omitempty"`
	Default  any           `json:"default,omitempty"`
}

type Collection struct {
	ID          string      `json:"$id"`
	Name        string      `json:"name"`
	Permissions []string    `json:"$permissions"`
	Attributes  []Attribute `json:"attributes"`
}

type Database struct {
	ID   string `json:"$id"`
	Name string `json:"name"`
}

type IndexType string

const (
	IndexTypeKey      IndexType = "key"
	IndexTypeUnique   IndexType = "unique"
	IndexTypeFulltext IndexType = "fulltext"
)

type Index struct {
	Key        string    `json:"key"`
	Type       IndexType `json:"type"`
	Attributes []string  `json:"attributes"`
	Orders     []string  `json:"orders,omitempty"`
}

// ErrNotFound marks genuine absence of a database, collection or document,
// as opposed to a transport failure. Both store implementations wrap it so
// callers can check with IsNotFound instead of catch-all error handling.
var ErrNotFound = errors.New("not found")

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

type DocumentStore interface {
	GetDocument(ctx context.Context, dbID, colID, docID string) (Document, error)
	ListDocuments(ctx context.Context, dbID, colID string, queries []string) (*DocumentList, error)
	CreateDocument(ctx context.Context, dbID, colID, docID string, data map[string]any) (Document, error)
	UpdateDocument(ctx context.Context, dbID, colID, docID string, data map[string]any) (Document, error)
	DeleteDocument(ctx context.Context, dbID, colID, docID string) error
}

type SchemaStore interface {
	GetDatabase(ctx context.Context, dbID string) (*Database, error)
	CreateDatabase(ctx context.Context, dbID, name string) (*Database, error)
	GetCollection(ctx context.Context, dbID, colID string) (*Collection, error)
	CreateCollection(ctx context.Context, dbID, colID, name string, permissions []string) (*Collection, error)
	DeleteCollection(ctx context.Context, dbID, colID string) error
	CreateAttribute(ctx context.Context, dbID, colID string, attr Attribute) error
	ListIndexes(ctx context.Context, dbID, colID string) ([]Index, error)
	CreateIndex(ctx context.Context, dbID, colID string, index Index) error
}
