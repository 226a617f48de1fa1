package devstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/raisfeld-ori/appwrite-orm/store"
	. "github.com/raisfeld-ori/appwrite-orm/store/devstore"
	"gotest.tools/assert"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := New(opts)
	assert.NilError(t, err)
	t.Cleanup(s.Close)
	return s
}

func seedCollection(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	_, err := s.CreateDatabase(ctx, "main", "main")
	assert.NilError(t, err)
	_, err = s.CreateCollection(ctx, "main", "users", "users", []string{`read("any")`})
	assert.NilError(t, err)
}

func TestSchemaStoreNotFound(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	_, err := s.GetDatabase(ctx, "main")
	assert.Assert(t, store.IsNotFound(err))

	seedCollection(t, s)

	_, err = s.GetDatabase(ctx, "main")
	assert.NilError(t, err)

	_, err = s.GetCollection(ctx, "main", "posts")
	assert.Assert(t, store.IsNotFound(err))
}

func TestDocumentLifecycle(t *testing.T) {
	s := newTestStore(t, Options{})
	seedCollection(t, s)
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, "main", "users", "u1", map[string]any{"name": "ori", "age": 30})
	assert.NilError(t, err)
	assert.Equal(t, doc.Get(store.FieldID), "u1")
	assert.Assert(t, doc.Get(store.FieldCreatedAt) != nil)

	_, err = s.CreateDocument(ctx, "main", "users", "u1", map[string]any{})
	assert.ErrorContains(t, err, "already exists")

	got, err := s.GetDocument(ctx, "main", "users", "u1")
	assert.NilError(t, err)
	assert.Equal(t, got.Get("name"), "ori")

	updated, err := s.UpdateDocument(ctx, "main", "users", "u1", map[string]any{"age": 31})
	assert.NilError(t, err)
	assert.Equal(t, updated.Get("age"), 31)
	assert.Equal(t, updated.Get("name"), "ori")

	assert.NilError(t, s.DeleteDocument(ctx, "main", "users", "u1"))
	_, err = s.GetDocument(ctx, "main", "users", "u1")
	assert.Assert(t, store.IsNotFound(err))
}

// declared defaults are applied to absent optional fields on create, the
// same way the production backend fills them server-side
func TestCreateDocumentAppliesAttributeDefaults(t *testing.T) {
	s := newTestStore(t, Options{})
	seedCollection(t, s)
	ctx := context.Background()

	assert.NilError(t, s.CreateAttribute(ctx, "main", "users",
		store.Attribute{Key: "role", Type: store.AttributeTypeString, Default: "user"}))
	assert.NilError(t, s.CreateAttribute(ctx, "main", "users",
		store.Attribute{Key: "name", Type: store.AttributeTypeString, Required: true}))

	doc, err := s.CreateDocument(ctx, "main", "users", "u1", map[string]any{"name": "ori"})
	assert.NilError(t, err)
	assert.Equal(t, doc.Get("role"), "user")

	// an explicit value wins over the default
	doc, err = s.CreateDocument(ctx, "main", "users", "u2",
		map[string]any{"name": "eve", "role": "admin"})
	assert.NilError(t, err)
	assert.Equal(t, doc.Get("role"), "admin")
}

func TestListDocumentsFiltersAndTotal(t *testing.T) {
	s := newTestStore(t, Options{})
	seedCollection(t, s)
	ctx := context.Background()

	for _, u := range []map[string]any{
		{"name": "alice", "age": 30},
		{"name": "bob", "age": 40},
		{"name": "carol", "age": 50},
	} {
		_, err := s.CreateDocument(ctx, "main", "users", u["name"].(string), u)
		assert.NilError(t, err)
	}

	list, err := s.ListDocuments(ctx, "main", "users", []string{store.Equal("name", "bob")})
	assert.NilError(t, err)
	assert.Equal(t, list.Total, 1)
	assert.Equal(t, list.Documents[0].Get("age"), 40)

	list, err = s.ListDocuments(ctx, "main", "users", []string{store.GreaterThan("age", 30)})
	assert.NilError(t, err)
	assert.Equal(t, list.Total, 2)

	// total reflects the full matching set even when limit paginates
	list, err = s.ListDocuments(ctx, "main", "users", []string{store.Limit(1)})
	assert.NilError(t, err)
	assert.Equal(t, list.Total, 3)
	assert.Equal(t, len(list.Documents), 1)
}

func TestListDocumentsOrderAndProjection(t *testing.T) {
	s := newTestStore(t, Options{})
	seedCollection(t, s)
	ctx := context.Background()

	for _, u := range []map[string]any{
		{"name": "alice", "age": 30},
		{"name": "bob", "age": 50},
		{"name": "carol", "age": 40},
	} {
		_, err := s.CreateDocument(ctx, "main", "users", u["name"].(string), u)
		assert.NilError(t, err)
	}

	list, err := s.ListDocuments(ctx, "main", "users", []string{store.OrderDesc("age")})
	assert.NilError(t, err)
	assert.Equal(t, list.Documents[0].Get("name"), "bob")
	assert.Equal(t, list.Documents[2].Get("name"), "alice")

	list, err = s.ListDocuments(ctx, "main", "users", []string{
		store.Select([]string{"name"}),
		store.StartsWith("name", "ca"),
	})
	assert.NilError(t, err)
	assert.Equal(t, list.Total, 1)
	doc := list.Documents[0]
	assert.Equal(t, doc.Get("name"), "carol")
	assert.Assert(t, !doc.Has("age"))
	assert.Assert(t, doc.Has(store.FieldID))
}

func TestListDocumentsCreationOrder(t *testing.T) {
	s := newTestStore(t, Options{})
	seedCollection(t, s)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		_, err := s.CreateDocument(ctx, "main", "users", id, map[string]any{"name": id})
		assert.NilError(t, err)
	}

	list, err := s.ListDocuments(ctx, "main", "users", nil)
	assert.NilError(t, err)
	assert.Equal(t, list.Documents[0].Get(store.FieldID), "c")
	assert.Equal(t, list.Documents[1].Get(store.FieldID), "a")
	assert.Equal(t, list.Documents[2].Get(store.FieldID), "b")
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := newTestStore(t, Options{Dir: dir})
	seedCollection(t, first)
	_, err := first.CreateDocument(ctx, "main", "users", "u1", map[string]any{"name": "ori"})
	assert.NilError(t, err)
	first.Close()

	second := newTestStore(t, Options{Dir: dir})
	doc, err := second.GetDocument(ctx, "main", "users", "u1")
	assert.NilError(t, err)
	assert.Equal(t, doc.Get("name"), "ori")

	list, err := second.ListDocuments(ctx, "main", "users", nil)
	assert.NilError(t, err)
	assert.Equal(t, list.Total, 1)
}

func waitForEvent(t *testing.T, events chan store.Event) store.Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change event")
		return store.Event{}
	}
}

func TestWatcherSynthesizesEvents(t *testing.T) {
	s := newTestStore(t, Options{Interval: 10 * time.Millisecond})
	seedCollection(t, s)
	ctx := context.Background()

	events := make(chan store.Event, 16)
	unsub, err := s.Subscribe([]string{store.ChannelDocuments("main", "users")}, func(e store.Event) {
		events <- e
	})
	assert.NilError(t, err)
	defer unsub()

	_, err = s.CreateDocument(ctx, "main", "users", "u1", map[string]any{"name": "ori"})
	assert.NilError(t, err)
	e := waitForEvent(t, events)
	assert.Equal(t, e.Events[0], "databases.main.collections.users.documents.u1.create")

	_, err = s.UpdateDocument(ctx, "main", "users", "u1", map[string]any{"name": "updated"})
	assert.NilError(t, err)
	e = waitForEvent(t, events)
	assert.Equal(t, e.Events[0], "databases.main.collections.users.documents.u1.update")
	assert.Equal(t, e.Payload.Get("name"), "updated")
}

// deletes are delivered synthetically without waiting for the next poll
func TestDeleteEventIsImmediate(t *testing.T) {
	// an hour-long interval guarantees the poller never runs during the test
	s := newTestStore(t, Options{Interval: time.Hour})
	seedCollection(t, s)
	ctx := context.Background()

	_, err := s.CreateDocument(ctx, "main", "users", "u1", map[string]any{"name": "ori"})
	assert.NilError(t, err)

	events := make(chan store.Event, 16)
	unsub, err := s.Subscribe([]string{store.ChannelDocuments("main", "users")}, func(e store.Event) {
		events <- e
	})
	assert.NilError(t, err)
	defer unsub()

	assert.NilError(t, s.DeleteDocument(ctx, "main", "users", "u1"))

	select {
	case e := <-events:
		assert.Equal(t, e.Events[0], "databases.main.collections.users.documents.u1.delete")
	case <-time.After(time.Second):
		t.Fatal("synthetic delete event not delivered")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s := newTestStore(t, Options{Interval: 10 * time.Millisecond})
	seedCollection(t, s)
	ctx := context.Background()

	events := make(chan store.Event, 16)
	unsub, err := s.Subscribe([]string{store.ChannelDatabase("main")}, func(e store.Event) {
		events <- e
	})
	assert.NilError(t, err)
	unsub()

	_, err = s.CreateDocument(ctx, "main", "users", "u1", map[string]any{"name": "ori"})
	assert.NilError(t, err)

	select {
	case <-events:
		t.Fatal("event delivered after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}
