package store

import "fmt"

// Event is one observed change on the backend. Channels carry every scope
// the change belongs to (document, collection documents, collection,
// database) so subscribers can match on whichever scope they care about.
type Event struct {
	Channels []string `json:"channels"`
	Events   []string `json:"events"`
	Payload  Document `json:"payload"`
}

func (e Event) Matches(channels []string) bool {
	for _, sub := range channels {
		for _, ch := range e.Channels {
			if ch == sub {
				return true
			}
		}
	}
	return false
}

// Subscriber is the change-notification source a table uses to invalidate
// its cache. The appwrite implementation is a push channel over websocket,
// the devstore implementation is a poll-diff watcher; the table logic is
// written once against this interface.
type Subscriber interface {
	// Subscribe registers fn for events on the given channels and returns
	// an unsubscribe function. The unsubscribe function is idempotent.
	Subscribe(channels []string, fn func(Event)) (func(), error)
}

func ChannelDatabase(dbID string) string {
	return fmt.Sprintf("databases.%s", dbID)
}

func ChannelCollection(dbID, colID string) string {
	return fmt.Sprintf("databases.%s.collections.%s", dbID, colID)
}

func ChannelDocuments(dbID, colID string) string {
	return fmt.Sprintf("databases.%s.collections.%s.documents", dbID, colID)
}

func ChannelDocument(dbID, colID, docID string) string {
	return fmt.Sprintf("databases.%s.collections.%s.documents.%s", dbID, colID, docID)
}
