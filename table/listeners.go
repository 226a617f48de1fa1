package table

import "github.com/raisfeld-ori/appwrite-orm/store"

// Listen subscribes fn to one change channel and returns an unsubscribe
// function. Every subscription is tracked so CloseListeners can tear it
// down later.
func (t *Table) Listen(channel string, fn func(store.Event)) (func(), error) {
	return t.listen([]string{channel}, fn)
}

// ListenDocuments subscribes to every document change in the collection.
func (t *Table) ListenDocuments(fn func(store.Event)) (func(), error) {
	return t.Listen(store.ChannelDocuments(t.db_id, t.col_id), fn)
}

// ListenDocument subscribes to changes of one specific document.
func (t *Table) ListenDocument(id string, fn func(store.Event)) (func(), error) {
	return t.Listen(store.ChannelDocument(t.db_id, t.col_id, id), fn)
}

// ListenCollection subscribes to collection-level changes.
func (t *Table) ListenCollection(fn func(store.Event)) (func(), error) {
	return t.Listen(store.ChannelCollection(t.db_id, t.col_id), fn)
}

// ListenDatabase subscribes to database-level changes.
func (t *Table) ListenDatabase(fn func(store.Event)) (func(), error) {
	return t.Listen(store.ChannelDatabase(t.db_id), fn)
}

func (t *Table) listen(channels []string, fn func(store.Event)) (func(), error) {
	if t.sub == nil {
		return func() {}, nil
	}

	unsub, err := t.sub.Subscribe(channels, fn)
	if err != nil {
		return nil, err
	}

	t.listeners_mu.Lock()
	token := t.next_listener
	t.next_listener++
	t.listeners[token] = unsub
	t.listeners_mu.Unlock()

	return func() {
		t.listeners_mu.Lock()
		tracked, ok := t.listeners[token]
		delete(t.listeners, token)
		t.listeners_mu.Unlock()
		if ok {
			tracked()
		}
	}, nil
}

// CloseListeners tears down every outstanding subscription, including the
// table's own invalidation subscription. Safe to call more than once.
func (t *Table) CloseListeners() {
	t.listeners_mu.Lock()
	unsubs := make([]func(), 0, len(t.listeners))
	for _, unsub := range t.listeners {
		unsubs = append(unsubs, unsub)
	}
	t.listeners = map[int]func(){}
	t.listeners_mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}
