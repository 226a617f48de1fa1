// Package table implements the generic CRUD/query engine shared by the
// production-backed and devstore-backed modes. A Table owns its cache, runs
// every write through the schema validator, and invalidates on local
// mutations and observed remote changes alike.
package table

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raisfeld-ori/appwrite-orm/schema"
	"github.com/raisfeld-ori/appwrite-orm/store"
)

// Filters is a flat field-to-value map translated into equality
// predicates. A slice value matches any of its elements.
type Filters map[string]any

// Expressions translates the filter map into backend query expressions,
// in deterministic field order.
func (f Filters) Expressions() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)

	exprs := make([]string, 0, len(f))
	for _, name := range names {
		exprs = append(exprs, store.Equal(name, wrapValues(f[name])...))
	}
	return exprs
}

// wrapValues turns a single value into a one-element set; slices pass
// through element-wise.
func wrapValues(value any) []any {
	v := reflect.ValueOf(value)
	if value == nil || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return []any{value}
	}
	values := make([]any, v.Len())
	for i := range values {
		values[i] = v.Index(i).Interface()
	}
	return values
}

// Options carries pagination, ordering and projection for read operations.
// An OrderBy entry prefixed with "-" sorts descending.
type Options struct {
	Limit   int
	Offset  int
	OrderBy []string
	Select  []string
}

func (o *Options) expressions() []string {
	if o == nil {
		return nil
	}

	exprs := []string{}
	for _, order := range o.OrderBy {
		if field, ok := strings.CutPrefix(order, "-"); ok {
			exprs = append(exprs, store.OrderDesc(field))
		} else {
			exprs = append(exprs, store.OrderAsc(order))
		}
	}
	if o.Limit > 0 {
		exprs = append(exprs, store.Limit(o.Limit))
	}
	if o.Offset > 0 {
		exprs = append(exprs, store.Offset(o.Offset))
	}
	if len(o.Select) > 0 {
		exprs = append(exprs, store.Select(o.Select))
	}
	return exprs
}

// Table is the runtime instance behind one declared table definition.
type Table struct {
	Name string

	def    schema.Table
	db_id  string
	col_id string
	docs   store.DocumentStore
	sub    store.Subscriber
	cache  *cache
	log    *zap.SugaredLogger

	listeners     map[int]func()
	next_listener int
	listeners_mu  sync.Mutex
}

// New wires a table to its document store and change-notification source.
// The subscription only flips the cache stale; its setup failure is logged
// and swallowed because realtime support may legitimately be unavailable.
func New(def schema.Table, db_id string, docs store.DocumentStore, sub store.Subscriber, log *zap.SugaredLogger) *Table {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	t := &Table{
		Name:      def.Name,
		def:       def,
		db_id:     db_id,
		col_id:    def.CollectionID(),
		docs:      docs,
		sub:       sub,
		cache:     newCache(),
		log:       log.With("table", def.Name),
		listeners: map[int]func(){},
	}

	if sub != nil {
		channels := []string{
			store.ChannelDocuments(db_id, t.col_id),
			store.ChannelCollection(db_id, t.col_id),
			store.ChannelDatabase(db_id),
		}
		if _, err := t.listen(channels, func(store.Event) { t.cache.invalidate() }); err != nil {
			t.log.Warnw("realtime invalidation unavailable", "error", err)
		}
	}

	return t
}

// Definition returns the declared schema the table was built from.
func (t *Table) Definition() schema.Table { return t.def }

// IsUpdated reports whether cached reads may currently be trusted.
func (t *Table) IsUpdated() bool { return t.cache.isFresh() }

// Get fetches one document by id. A not-found result is returned as a nil
// document, not an error, and is cached the same as a hit.
func (t *Table) Get(ctx context.Context, id string) (store.Document, error) {
	key := cacheKey("get", id)
	if cached, ok := t.cache.get(key); ok {
		doc, _ := cached.(store.Document)
		return doc, nil
	}

	doc, err := t.docs.GetDocument(ctx, t.db_id, t.col_id, id)
	if err != nil {
		if !store.IsNotFound(err) {
			return nil, err
		}
		doc = nil
	}

	t.cache.put(key, doc)
	return doc, nil
}

func (t *Table) GetOrFail(ctx context.Context, id string) (store.Document, error) {
	doc, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document %q not found in collection %q", id, t.col_id)
	}
	return doc, nil
}

// Query lists documents matching the filters, shaped by the options.
func (t *Table) Query(ctx context.Context, filters Filters, opts *Options) ([]store.Document, error) {
	exprs := append(filters.Expressions(), opts.expressions()...)
	list, err := t.list(ctx, "query", exprs)
	if err != nil {
		return nil, err
	}
	return list.Documents, nil
}

func (t *Table) All(ctx context.Context, opts *Options) ([]store.Document, error) {
	return t.Query(ctx, nil, opts)
}

func (t *Table) First(ctx context.Context, filters Filters) (store.Document, error) {
	docs, err := t.Query(ctx, filters, &Options{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (t *Table) FirstOrFail(ctx context.Context, filters Filters) (store.Document, error) {
	doc, err := t.First(ctx, filters)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("no document matched in collection %q", t.col_id)
	}
	return doc, nil
}

// Count reports the store's total for the matching set, which reflects the
// full match even when the store paginates the returned array.
func (t *Table) Count(ctx context.Context, filters Filters) (int, error) {
	list, err := t.list(ctx, "count", filters.Expressions())
	if err != nil {
		return 0, err
	}
	return list.Total, nil
}

// Find accepts pre-built query expressions as an escape hatch for queries
// the filter-map shape cannot express.
func (t *Table) Find(ctx context.Context, exprs []string) ([]store.Document, error) {
	list, err := t.list(ctx, "find", exprs)
	if err != nil {
		return nil, err
	}
	return list.Documents, nil
}

func (t *Table) FindOne(ctx context.Context, exprs []string) (store.Document, error) {
	docs, err := t.Find(ctx, append(append([]string{}, exprs...), store.Limit(1)))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (t *Table) list(ctx context.Context, method string, exprs []string) (*store.DocumentList, error) {
	key := cacheKey(method, exprs)
	if cached, ok := t.cache.get(key); ok {
		return cached.(*store.DocumentList), nil
	}

	list, err := t.docs.ListDocuments(ctx, t.db_id, t.col_id, exprs)
	if err != nil {
		return nil, err
	}

	t.cache.put(key, list)
	return list, nil
}

// Create validates the full document, stores it under a generated unique
// id, and invalidates the table cache.
func (t *Table) Create(ctx context.Context, data map[string]any) (store.Document, error) {
	if err := t.def.ValidateCreate(data); err != nil {
		return nil, err
	}

	doc, err := t.docs.CreateDocument(ctx, t.db_id, t.col_id, uuid.NewString(), data)
	if err != nil {
		return nil, err
	}

	t.cache.invalidate()
	return doc, nil
}

// Update validates only the keys present in data, then updates the
// document and invalidates the table cache.
func (t *Table) Update(ctx context.Context, id string, data map[string]any) (store.Document, error) {
	if err := t.def.ValidateUpdate(data); err != nil {
		return nil, err
	}

	doc, err := t.docs.UpdateDocument(ctx, t.db_id, t.col_id, id, data)
	if err != nil {
		return nil, err
	}

	t.cache.invalidate()
	return doc, nil
}

func (t *Table) Delete(ctx context.Context, id string) error {
	if err := t.docs.DeleteDocument(ctx, t.db_id, t.col_id, id); err != nil {
		return err
	}

	t.cache.invalidate()
	return nil
}
