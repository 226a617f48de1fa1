// Package migrate reconciles declared table schemas against the live
// backend state. Migration is purely additive: it creates the database,
// collections, attributes and indexes that are missing, and refuses to
// touch anything that already exists.
package migrate

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/raisfeld-ori/appwrite-orm/pkg"
	"github.com/raisfeld-ori/appwrite-orm/schema"
	"github.com/raisfeld-ori/appwrite-orm/store"
)

// String attributes need an explicit size on the backend; used when the
// schema does not declare one.
const defaultStringSize = 255

type Engine struct {
	store store.SchemaStore
	dbID  string
	log   *zap.SugaredLogger
}

func NewEngine(s store.SchemaStore, dbID string, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{store: s, dbID: dbID, log: log}
}

// Migrate brings the backend in line with the declared tables. Running it
// twice with an unchanged schema is a no-op: existing collections and
// attributes are never recreated, renamed or retyped.
func (e *Engine) Migrate(ctx context.Context, tables []schema.Table) error {
	if err := e.ensureDatabase(ctx); err != nil {
		return err
	}

	for _, table := range tables {
		if err := e.migrateTable(ctx, table); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) ensureDatabase(ctx context.Context) error {
	_, err := e.store.GetDatabase(ctx, e.dbID)
	if err == nil {
		return nil
	}
	if !store.IsNotFound(err) {
		return &Error{
			Database: e.dbID,
			Message:  fmt.Sprintf("migration failed: could not fetch database %q", e.dbID),
			Err:      err,
		}
	}

	e.log.Infow("creating database", "database", e.dbID)
	if _, err := e.store.CreateDatabase(ctx, e.dbID, e.dbID); err != nil {
		return &Error{
			Database: e.dbID,
			Message:  fmt.Sprintf("migration failed: could not create database %q", e.dbID),
			Err:      err,
		}
	}
	return nil
}

func (e *Engine) migrateTable(ctx context.Context, table schema.Table) error {
	col_id := table.CollectionID()

	col, err := e.store.GetCollection(ctx, e.dbID, col_id)
	if err != nil {
		if !store.IsNotFound(err) {
			return &Error{
				Collection: col_id,
				Message:    fmt.Sprintf("migration failed: could not fetch collection %q", col_id),
				Err:        err,
			}
		}

		e.log.Infow("creating collection", "collection", col_id)
		col, err = e.store.CreateCollection(ctx, e.dbID, col_id, table.Name, table.Role.Permissions())
		if err != nil {
			return &Error{
				Collection: col_id,
				Message:    fmt.Sprintf("migration failed: could not create collection %q", col_id),
				Err:        err,
			}
		}
	}

	// A missing or malformed attribute list is treated as "no existing
	// attributes" to tolerate partial backends.
	existing := pkg.Map[string, store.Attribute]{}
	if col != nil {
		for _, attr := range col.Attributes {
			existing.Set(attr.Key, attr)
		}
	}

	names := make([]string, 0, len(table.Fields))
	for name := range table.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := table.Fields[name]

		if existing.Has(name) {
			if change := immutableChange(field, existing.Get(name)); change != "" {
				return &Error{
					Collection: col_id,
					Attribute:  name,
					Message: fmt.Sprintf(
						"immutable properties (%s) of attribute %q on collection %q changed: applying them would destroy existing data",
						change, name, col_id),
				}
			}
			continue
		}

		attr := e.buildAttribute(name, field)
		e.log.Infow("creating attribute", "collection", col_id, "attribute", name, "type", attr.Type)
		if err := e.store.CreateAttribute(ctx, e.dbID, col_id, attr); err != nil {
			return &Error{
				Collection: col_id,
				Attribute:  name,
				Message:    fmt.Sprintf("migration failed: could not create attribute %q on collection %q", name, col_id),
				Err:        err,
			}
		}
	}

	return e.migrateIndexes(ctx, table, col_id)
}

func (e *Engine) migrateIndexes(ctx context.Context, table schema.Table, col_id string) error {
	if len(table.Indexes) == 0 {
		return nil
	}

	live, err := e.store.ListIndexes(ctx, e.dbID, col_id)
	if err != nil {
		return &Error{
			Collection: col_id,
			Message:    fmt.Sprintf("migration failed: could not list indexes on collection %q", col_id),
			Err:        err,
		}
	}

	have := pkg.Map[string, bool]{}
	for _, idx := range live {
		have.Set(idx.Key, true)
	}

	for _, idx := range table.Indexes {
		if have.Has(idx.Key) {
			continue
		}
		e.log.Infow("creating index", "collection", col_id, "index", idx.Key)
		if err := e.store.CreateIndex(ctx, e.dbID, col_id, idx); err != nil {
			return &Error{
				Collection: col_id,
				Message:    fmt.Sprintf("migration failed: could not create index %q on collection %q", idx.Key, col_id),
				Err:        err,
			}
		}
	}
	return nil
}

func (e *Engine) buildAttribute(name string, field schema.Field) store.Attribute {
	attr_type, known := schema.ToAttributeType(field.Type)
	if !known {
		e.log.Warnw("unknown field type, storing as string", "attribute", name, "type", field.Type)
	}

	attr := store.Attribute{
		Key:      name,
		Type:     attr_type,
		Required: field.Required,
		Array:    field.Array,
		Default:  field.Default,
	}

	switch attr_type {
	case store.AttributeTypeString:
		attr.Size = field.Size
		if attr.Size == 0 {
			attr.Size = defaultStringSize
		}
	case store.AttributeTypeInteger, store.AttributeTypeFloat:
		attr.Min = field.Min
		attr.Max = field.Max
	case store.AttributeTypeEnum:
		attr.Elements = field.Enum
	}
	return attr
}

// immutableChange reports which immutable property of a live attribute the
// declared field tries to change, or "" when the field is compatible.
// Changing any of these would require dropping and recreating the
// attribute, which silently truncates existing documents' data.
func immutableChange(field schema.Field, live store.Attribute) string {
	declared_type, _ := schema.ToAttributeType(field.Type)
	if declared_type != live.Type {
		return "type"
	}
	if field.Required != live.Required {
		return "required"
	}
	if field.Min != nil && (live.Min == nil || *live.Min != *field.Min) {
		return "min"
	}
	if field.Max != nil && (live.Max == nil || *live.Max != *field.Max) {
		return "max"
	}
	if field.Default != nil && !defaultsEqual(field.Default, live.Default) {
		return "default"
	}
	return ""
}

// defaultsEqual compares a declared default against the live one. Numeric
// defaults come back from the backend json-decoded as float64 while the
// declared schema carries Go ints, so numbers are coerced before comparing.
func defaultsEqual(declared, live any) bool {
	df, dok := pkg.NumToFloat(declared)
	lf, lok := pkg.NumToFloat(live)
	if dok && lok {
		return df == lf
	}
	return reflect.DeepEqual(declared, live)
}

// Validate is the read-only counterpart of Migrate: it fails naming the
// missing database, collection or attributes instead of creating them.
// Only attribute presence is checked, not type compatibility.
func (e *Engine) Validate(ctx context.Context, tables []schema.Table) error {
	if _, err := e.store.GetDatabase(ctx, e.dbID); err != nil {
		if store.IsNotFound(err) {
			return &Error{
				Database: e.dbID,
				Message:  fmt.Sprintf("database %q does not exist", e.dbID),
			}
		}
		return &Error{
			Database: e.dbID,
			Message:  fmt.Sprintf("could not fetch database %q", e.dbID),
			Err:      err,
		}
	}

	for _, table := range tables {
		col_id := table.CollectionID()

		col, err := e.store.GetCollection(ctx, e.dbID, col_id)
		if err != nil {
			if store.IsNotFound(err) {
				return &Error{
					Collection: col_id,
					Message:    fmt.Sprintf("collection %q does not exist", col_id),
				}
			}
			return &Error{
				Collection: col_id,
				Message:    fmt.Sprintf("could not fetch collection %q", col_id),
				Err:        err,
			}
		}

		have := pkg.Map[string, bool]{}
		for _, attr := range col.Attributes {
			have.Set(attr.Key, true)
		}

		missing := []string{}
		for name := range table.Fields {
			if !have.Has(name) {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return &Error{
				Collection: col_id,
				Message: fmt.Sprintf("collection %q is missing attributes: %s",
					col_id, strings.Join(missing, ", ")),
			}
		}
	}
	return nil
}
