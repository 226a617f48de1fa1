// Package devstore is the no-backend substitute used in development mode.
// It implements the same document-store, schema-store and subscriber
// capabilities as the production client, backed by in-process maps with an
// optional JSON-blob persistence layer. It is a prototyping aid, not a
// database.
package devstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	sorted "github.com/tobshub/go-sortedmap"
	"go.uber.org/zap"

	"github.com/raisfeld-ori/appwrite-orm/pkg"
	"github.com/raisfeld-ori/appwrite-orm/store"
)

type Options struct {
	// Dir is where database blobs are persisted; empty keeps everything
	// in memory.
	Dir string
	// Interval between change-detection polls; defaults to one second.
	Interval time.Duration
	Logger   *zap.SugaredLogger
}

type Store struct {
	mu        sync.RWMutex
	databases pkg.Map[string, *database]
	dir       string
	log       *zap.SugaredLogger

	watch *watcher
}

type database struct {
	id          string
	name        string
	collections pkg.Map[string, *collection]
}

type collection struct {
	id          string
	name        string
	permissions []string
	attributes  []store.Attribute
	indexes     []store.Index
	rows        *sorted.SortedMap[string, store.Document]
}

// Rows keep creation order; $createdAt carries nanosecond precision so
// ties are rare, $id breaks the rest.
func rowsComparisonFunc(a, b store.Document) bool {
	ca, _ := a.Get(store.FieldCreatedAt).(string)
	cb, _ := b.Get(store.FieldCreatedAt).(string)
	if ca != cb {
		return ca < cb
	}
	ia, _ := a.Get(store.FieldID).(string)
	ib, _ := b.Get(store.FieldID).(string)
	return ia < ib
}

func newCollection(id, name string, permissions []string) *collection {
	return &collection{
		id:          id,
		name:        name,
		permissions: permissions,
		rows:        sorted.New[string, store.Document](0, rowsComparisonFunc),
	}
}

func New(opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}

	s := &Store{
		databases: pkg.Map[string, *database]{},
		dir:       opts.Dir,
		log:       log,
	}

	if err := s.loadAll(); err != nil {
		return nil, err
	}

	s.watch = newWatcher(s, opts.Interval, log)
	go s.watch.run()
	return s, nil
}

// Close stops the change watcher. The store itself holds no other
// resources.
func (s *Store) Close() {
	s.watch.close()
}

// Subscribe registers fn as a listener for synthesized change events.
func (s *Store) Subscribe(channels []string, fn func(store.Event)) (func(), error) {
	return s.watch.subscribe(channels, fn), nil
}

func (s *Store) getDatabase(dbID string) (*database, error) {
	if !s.databases.Has(dbID) {
		return nil, fmt.Errorf("database %q: %w", dbID, store.ErrNotFound)
	}
	return s.databases.Get(dbID), nil
}

func (s *Store) getCollection(dbID, colID string) (*collection, error) {
	db, err := s.getDatabase(dbID)
	if err != nil {
		return nil, err
	}
	if !db.collections.Has(colID) {
		return nil, fmt.Errorf("collection %q: %w", colID, store.ErrNotFound)
	}
	return db.collections.Get(colID), nil
}

func (s *Store) GetDatabase(_ context.Context, dbID string) (*store.Database, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.getDatabase(dbID)
	if err != nil {
		return nil, err
	}
	return &store.Database{ID: db.id, Name: db.name}, nil
}

func (s *Store) CreateDatabase(_ context.Context, dbID, name string) (*store.Database, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.databases.Has(dbID) {
		return nil, fmt.Errorf("database %q already exists", dbID)
	}
	s.databases.Set(dbID, &database{
		id:          dbID,
		name:        name,
		collections: pkg.Map[string, *collection]{},
	})
	return &store.Database{ID: dbID, Name: name}, nil
}

func (s *Store) GetCollection(_ context.Context, dbID, colID string) (*store.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, err := s.getCollection(dbID, colID)
	if err != nil {
		return nil, err
	}
	return col.info(), nil
}

func (col *collection) info() *store.Collection {
	return &store.Collection{
		ID:          col.id,
		Name:        col.name,
		Permissions: append([]string(nil), col.permissions...),
		Attributes:  append([]store.Attribute(nil), col.attributes...),
	}
}

func (s *Store) CreateCollection(_ context.Context, dbID, colID, name string, permissions []string) (*store.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.getDatabase(dbID)
	if err != nil {
		return nil, err
	}
	if db.collections.Has(colID) {
		return nil, fmt.Errorf("collection %q already exists", colID)
	}

	col := newCollection(colID, name, permissions)
	db.collections.Set(colID, col)
	return col.info(), nil
}

func (s *Store) DeleteCollection(_ context.Context, dbID, colID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.getDatabase(dbID)
	if err != nil {
		return err
	}
	if !db.collections.Has(colID) {
		return fmt.Errorf("collection %q: %w", colID, store.ErrNotFound)
	}
	db.collections.Delete(colID)
	return s.persist(db)
}

func (s *Store) CreateAttribute(_ context.Context, dbID, colID string, attr store.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.getCollection(dbID, colID)
	if err != nil {
		return err
	}
	for _, existing := range col.attributes {
		if existing.Key == attr.Key {
			return fmt.Errorf("attribute %q already exists on collection %q", attr.Key, colID)
		}
	}
	col.attributes = append(col.attributes, attr)
	return nil
}

func (s *Store) ListIndexes(_ context.Context, dbID, colID string) ([]store.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, err := s.getCollection(dbID, colID)
	if err != nil {
		return nil, err
	}
	return append([]store.Index(nil), col.indexes...), nil
}

func (s *Store) CreateIndex(_ context.Context, dbID, colID string, index store.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.getCollection(dbID, colID)
	if err != nil {
		return err
	}
	for _, existing := range col.indexes {
		if existing.Key == index.Key {
			return fmt.Errorf("index %q already exists on collection %q", index.Key, colID)
		}
	}
	col.indexes = append(col.indexes, index)
	return nil
}

// documents returns the collection rows in creation order. Callers must
// hold the store lock.
func (col *collection) documents() []store.Document {
	docs := []store.Document{}
	iter, err := col.rows.IterCh()
	if err != nil {
		// empty map
		return docs
	}
	defer iter.Close()

	for rec := range iter.Records() {
		docs = append(docs, rec.Val)
	}
	return docs
}

func copyDocument(doc store.Document) store.Document {
	out := store.Document{}
	for k, v := range doc {
		out[k] = v
	}
	return out
}
