package devstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/raisfeld-ori/appwrite-orm/store"
)

const (
	actionCreate = "create"
	actionUpdate = "update"
	actionDelete = "delete"
)

// watcher approximates a realtime push channel for the in-process store:
// it snapshots every collection on a fixed interval, diffs against the
// previous snapshot by id-presence and deep equality, and synthesizes
// create/update/delete events for registered listeners. Notification
// latency is bounded by the poll interval, not sub-second.
type watcher struct {
	store    *Store
	interval time.Duration
	log      *zap.SugaredLogger

	mu        sync.Mutex
	subs      map[int]*subscription
	next_sub  int
	snapshots map[string]map[string]store.Document

	stop       chan struct{}
	done       chan struct{}
	close_once sync.Once
}

type subscription struct {
	channels []string
	fn       func(store.Event)
}

func newWatcher(s *Store, interval time.Duration, log *zap.SugaredLogger) *watcher {
	return &watcher{
		store:     s,
		interval:  interval,
		log:       log,
		subs:      map[int]*subscription{},
		snapshots: map[string]map[string]store.Document{},
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (w *watcher) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *watcher) close() {
	w.close_once.Do(func() {
		close(w.stop)
		<-w.done
	})
}

func (w *watcher) subscribe(channels []string, fn func(store.Event)) func() {
	w.mu.Lock()
	token := w.next_sub
	w.next_sub++
	w.subs[token] = &subscription{channels: channels, fn: fn}
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.subs, token)
		w.mu.Unlock()
	}
}

func snapshotKey(dbID, colID string) string {
	return dbID + "\x00" + colID
}

func (w *watcher) poll() {
	current := map[string]map[string]store.Document{}

	w.store.mu.RLock()
	for db_id, db := range w.store.databases {
		for col_id, col := range db.collections {
			docs := map[string]store.Document{}
			for _, doc := range col.documents() {
				if id, ok := doc.Get(store.FieldID).(string); ok {
					docs[id] = copyDocument(doc)
				}
			}
			current[snapshotKey(db_id, col_id)] = docs
		}
	}
	w.store.mu.RUnlock()

	w.mu.Lock()
	previous := w.snapshots
	w.snapshots = current
	subs := make([]*subscription, 0, len(w.subs))
	for _, sub := range w.subs {
		subs = append(subs, sub)
	}
	w.mu.Unlock()

	for key, docs := range current {
		db_id, col_id := splitSnapshotKey(key)
		before := previous[key]

		for id, doc := range docs {
			old, existed := before[id]
			if !existed {
				w.deliver(subs, changeEvent(db_id, col_id, doc, actionCreate))
			} else if !cmp.Equal(old, doc) {
				w.deliver(subs, changeEvent(db_id, col_id, doc, actionUpdate))
			}
		}
		for id, doc := range before {
			if _, still := docs[id]; !still {
				w.deliver(subs, changeEvent(db_id, col_id, doc, actionDelete))
			}
		}
	}
}

func splitSnapshotKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

// notify emits a synthetic event immediately and reconciles the snapshot
// so the next poll does not report the same change again.
func (w *watcher) notify(dbID, colID string, doc store.Document, action string) {
	id, _ := doc.Get(store.FieldID).(string)

	w.mu.Lock()
	key := snapshotKey(dbID, colID)
	if snap, ok := w.snapshots[key]; ok {
		switch action {
		case actionDelete:
			delete(snap, id)
		default:
			snap[id] = copyDocument(doc)
		}
	}
	subs := make([]*subscription, 0, len(w.subs))
	for _, sub := range w.subs {
		subs = append(subs, sub)
	}
	w.mu.Unlock()

	w.deliver(subs, changeEvent(dbID, colID, doc, action))
}

func (w *watcher) deliver(subs []*subscription, event store.Event) {
	for _, sub := range subs {
		if event.Matches(sub.channels) {
			sub.fn(event)
		}
	}
}

func changeEvent(dbID, colID string, doc store.Document, action string) store.Event {
	id, _ := doc.Get(store.FieldID).(string)
	return store.Event{
		Channels: []string{
			store.ChannelDocument(dbID, colID, id),
			store.ChannelDocuments(dbID, colID),
			store.ChannelCollection(dbID, colID),
			store.ChannelDatabase(dbID),
		},
		Events: []string{
			fmt.Sprintf("databases.%s.collections.%s.documents.%s.%s", dbID, colID, id, action),
		},
		Payload: doc,
	}
}
