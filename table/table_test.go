package table_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/raisfeld-ori/appwrite-orm/schema"
	"github.com/raisfeld-ori/appwrite-orm/store"
	. "github.com/raisfeld-ori/appwrite-orm/table"
	"gotest.tools/assert"
)

type fakeDocStore struct {
	docs map[string]store.Document

	getCalls    int
	listCalls   int
	listQueries [][]string
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: map[string]store.Document{}}
}

func (f *fakeDocStore) GetDocument(_ context.Context, _, _, docID string) (store.Document, error) {
	f.getCalls++
	doc, ok := f.docs[docID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", docID, store.ErrNotFound)
	}
	return doc, nil
}

func (f *fakeDocStore) ListDocuments(_ context.Context, _, _ string, queries []string) (*store.DocumentList, error) {
	f.listCalls++
	f.listQueries = append(f.listQueries, queries)

	docs := make([]store.Document, 0, len(f.docs))
	for _, doc := range f.docs {
		docs = append(docs, doc)
	}
	return &store.DocumentList{Documents: docs, Total: len(docs)}, nil
}

func (f *fakeDocStore) CreateDocument(_ context.Context, _, _, docID string, data map[string]any) (store.Document, error) {
	doc := store.Document{store.FieldID: docID}
	for k, v := range data {
		doc[k] = v
	}
	f.docs[docID] = doc
	return doc, nil
}

func (f *fakeDocStore) UpdateDocument(_ context.Context, _, _, docID string, data map[string]any) (store.Document, error) {
	doc, ok := f.docs[docID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", docID, store.ErrNotFound)
	}
	for k, v := range data {
		doc[k] = v
	}
	return doc, nil
}

func (f *fakeDocStore) DeleteDocument(_ context.Context, _, _, docID string) error {
	delete(f.docs, docID)
	return nil
}

type fakeSub struct {
	channels []string
	fn       func(store.Event)
	closed   bool
}

type fakeSubscriber struct {
	subs []*fakeSub
}

func (s *fakeSubscriber) Subscribe(channels []string, fn func(store.Event)) (func(), error) {
	sub := &fakeSub{channels: channels, fn: fn}
	s.subs = append(s.subs, sub)
	return func() { sub.closed = true }, nil
}

func (s *fakeSubscriber) emit(e store.Event) {
	for _, sub := range s.subs {
		if !sub.closed && e.Matches(sub.channels) {
			sub.fn(e)
		}
	}
}

func (s *fakeSubscriber) open() int {
	n := 0
	for _, sub := range s.subs {
		if !sub.closed {
			n++
		}
	}
	return n
}

func usersDef() schema.Table {
	return schema.Table{
		Name: "users",
		Fields: map[string]schema.Field{
			"name": {Type: schema.FieldTypeString, Required: true},
			"age":  {Type: schema.FieldTypeInteger},
		},
	}
}

func newTestTable(docs store.DocumentStore, sub store.Subscriber) *Table {
	return New(usersDef(), "main", docs, sub, nil)
}

func TestGetCachesNotFoundAsNil(t *testing.T) {
	fake := newFakeDocStore()
	users := newTestTable(fake, nil)
	ctx := context.Background()

	doc, err := users.Get(ctx, "missing")
	assert.NilError(t, err)
	assert.Assert(t, doc == nil)

	// the nil result is served from cache, not refetched
	_, err = users.Get(ctx, "missing")
	assert.NilError(t, err)
	assert.Equal(t, fake.getCalls, 1)
}

func TestGetOrFail(t *testing.T) {
	fake := newFakeDocStore()
	fake.docs["u1"] = store.Document{store.FieldID: "u1", "name": "ori"}
	users := newTestTable(fake, nil)
	ctx := context.Background()

	doc, err := users.GetOrFail(ctx, "u1")
	assert.NilError(t, err)
	assert.Equal(t, doc.Get("name"), "ori")

	_, err = users.GetOrFail(ctx, "missing")
	assert.ErrorContains(t, err, `document "missing" not found`)
}

func TestRepeatReadServedFromCache(t *testing.T) {
	fake := newFakeDocStore()
	users := newTestTable(fake, nil)
	ctx := context.Background()

	_, err := users.All(ctx, nil)
	assert.NilError(t, err)
	_, err = users.All(ctx, nil)
	assert.NilError(t, err)
	assert.Equal(t, fake.listCalls, 1)

	// a different-key read misses and refetches
	_, err = users.All(ctx, &Options{Limit: 10})
	assert.NilError(t, err)
	assert.Equal(t, fake.listCalls, 2)
}

func TestMutationInvalidatesCache(t *testing.T) {
	fake := newFakeDocStore()
	users := newTestTable(fake, nil)
	ctx := context.Background()

	_, err := users.All(ctx, nil)
	assert.NilError(t, err)
	assert.Assert(t, users.IsUpdated())

	_, err = users.Create(ctx, map[string]any{"name": "ori"})
	assert.NilError(t, err)
	assert.Assert(t, !users.IsUpdated())

	// the very next read hits the store again
	docs, err := users.All(ctx, nil)
	assert.NilError(t, err)
	assert.Equal(t, fake.listCalls, 2)
	assert.Equal(t, len(docs), 1)
	assert.Assert(t, users.IsUpdated())
}

func TestUpdateAndDeleteInvalidate(t *testing.T) {
	fake := newFakeDocStore()
	fake.docs["u1"] = store.Document{store.FieldID: "u1", "name": "ori"}
	users := newTestTable(fake, nil)
	ctx := context.Background()

	_, err := users.Get(ctx, "u1")
	assert.NilError(t, err)
	assert.Assert(t, users.IsUpdated())

	_, err = users.Update(ctx, "u1", map[string]any{"age": 30})
	assert.NilError(t, err)
	assert.Assert(t, !users.IsUpdated())

	_, err = users.Get(ctx, "u1")
	assert.NilError(t, err)
	assert.NilError(t, users.Delete(ctx, "u1"))
	assert.Assert(t, !users.IsUpdated())
}

func TestQueryExpressionTranslation(t *testing.T) {
	fake := newFakeDocStore()
	users := newTestTable(fake, nil)
	ctx := context.Background()

	_, err := users.Query(ctx, Filters{"name": "ori"}, &Options{
		Limit:   10,
		Offset:  5,
		OrderBy: []string{"-age", "name"},
		Select:  []string{"name"},
	})
	assert.NilError(t, err)

	queries := fake.listQueries[0]
	assert.Equal(t, len(queries), 6)

	methods := make([]string, len(queries))
	for i, expr := range queries {
		q, err := store.ParseQuery(expr)
		assert.NilError(t, err)
		methods[i] = q.Method
	}
	assert.Equal(t, strings.Join(methods, ","), "equal,orderDesc,orderAsc,limit,offset,select")
}

func TestFilterValueWrapping(t *testing.T) {
	fake := newFakeDocStore()
	users := newTestTable(fake, nil)

	_, err := users.Query(context.Background(), Filters{"name": []string{"a", "b"}}, nil)
	assert.NilError(t, err)

	q, err := store.ParseQuery(fake.listQueries[0][0])
	assert.NilError(t, err)
	assert.Equal(t, len(q.Values), 2)
}

func TestCountUsesReportedTotal(t *testing.T) {
	fake := newFakeDocStore()
	fake.docs["u1"] = store.Document{store.FieldID: "u1"}
	fake.docs["u2"] = store.Document{store.FieldID: "u2"}
	users := newTestTable(fake, nil)

	count, err := users.Count(context.Background(), nil)
	assert.NilError(t, err)
	assert.Equal(t, count, 2)
}

func TestFindOneAppendsLimit(t *testing.T) {
	fake := newFakeDocStore()
	users := newTestTable(fake, nil)

	_, err := users.FindOne(context.Background(), []string{store.Equal("name", "ori")})
	assert.NilError(t, err)

	queries := fake.listQueries[0]
	q, err := store.ParseQuery(queries[len(queries)-1])
	assert.NilError(t, err)
	assert.Equal(t, q.Method, "limit")
}

func TestCreateRunsFullValidation(t *testing.T) {
	fake := newFakeDocStore()
	users := newTestTable(fake, nil)

	_, err := users.Create(context.Background(), map[string]any{})
	assert.Assert(t, err != nil)

	errs, ok := err.(schema.ValidationErrors)
	assert.Assert(t, ok)
	assert.Equal(t, len(errs), 1)
	assert.Equal(t, errs[0].Field, "name")
	assert.Equal(t, len(fake.docs), 0)
}

func TestUpdateRunsPartialValidation(t *testing.T) {
	fake := newFakeDocStore()
	fake.docs["u1"] = store.Document{store.FieldID: "u1", "name": "ori"}
	users := newTestTable(fake, nil)

	// absent required keys are fine on update
	_, err := users.Update(context.Background(), "u1", map[string]any{"age": 30})
	assert.NilError(t, err)

	_, err = users.Update(context.Background(), "u1", map[string]any{"age": "old"})
	assert.ErrorContains(t, err, "expected type integer")
}

func TestRemoteEventInvalidates(t *testing.T) {
	fake := newFakeDocStore()
	sub := &fakeSubscriber{}
	users := New(usersDef(), "main", fake, sub, nil)
	ctx := context.Background()

	_, err := users.All(ctx, nil)
	assert.NilError(t, err)
	assert.Assert(t, users.IsUpdated())

	sub.emit(store.Event{Channels: []string{
		store.ChannelDocuments("main", "users"),
		store.ChannelDatabase("main"),
	}})
	assert.Assert(t, !users.IsUpdated())

	// events for other collections in other databases are ignored
	_, err = users.All(ctx, nil)
	assert.NilError(t, err)
	sub.emit(store.Event{Channels: []string{
		store.ChannelDocuments("other", "posts"),
	}})
	assert.Assert(t, users.IsUpdated())
}

func TestCloseListeners(t *testing.T) {
	fake := newFakeDocStore()
	sub := &fakeSubscriber{}
	users := New(usersDef(), "main", fake, sub, nil)

	_, err := users.ListenDocuments(func(store.Event) {})
	assert.NilError(t, err)
	unsubDoc, err := users.ListenDocument("u1", func(store.Event) {})
	assert.NilError(t, err)

	// individual unsubscribe works and is idempotent
	unsubDoc()
	unsubDoc()
	assert.Equal(t, sub.open(), 2)

	users.CloseListeners()
	assert.Equal(t, sub.open(), 0)

	// CloseListeners is idempotent too
	users.CloseListeners()
	assert.Equal(t, sub.open(), 0)
}
