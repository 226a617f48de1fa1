package devstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/raisfeld-ori/appwrite-orm/store"
)

const blobPrefix = "aporm_db_"

// The blob layout is shared with cookie-backed environments, which cap out
// around 4000 bytes; exceeding it is advisory there and advisory here.
const advisoryBlobSize = 4000

type collectionBlob struct {
	Documents []store.Document `json:"documents"`
}

func (s *Store) blobPath(dbID string) string {
	return path.Join(s.dir, blobPrefix+dbID+".json")
}

// persist writes one database as a single JSON blob keyed by collection id.
// Callers must hold the store lock.
func (s *Store) persist(db *database) error {
	if s.dir == "" || db == nil {
		return nil
	}

	blob := map[string]collectionBlob{}
	for col_id, col := range db.collections {
		blob[col_id] = collectionBlob{Documents: col.documents()}
	}

	buf, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("could not serialize database %q: %w", db.id, err)
	}

	if len(buf) > advisoryBlobSize {
		s.log.Warnw("database blob exceeds advisory size",
			"database", db.id, "size", len(buf), "advisory", advisoryBlobSize)
	}

	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(s.blobPath(db.id), buf, 0644); err != nil {
		return fmt.Errorf("could not write database %q: %w", db.id, err)
	}
	return nil
}

// loadAll restores every persisted database blob found in the state dir.
// Blobs only carry documents; attributes and permissions are rebuilt by
// migration on startup.
func (s *Store) loadAll() error {
	if s.dir == "" {
		return nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, blobPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		db_id := strings.TrimSuffix(strings.TrimPrefix(name, blobPrefix), ".json")
		if err := s.loadDatabase(db_id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadDatabase(dbID string) error {
	buf, err := os.ReadFile(s.blobPath(dbID))
	if err != nil {
		return err
	}

	blob := map[string]collectionBlob{}
	if err := json.Unmarshal(buf, &blob); err != nil {
		return fmt.Errorf("could not read database %q: %w", dbID, err)
	}

	db := &database{
		id:          dbID,
		name:        dbID,
		collections: map[string]*collection{},
	}
	for col_id, col_blob := range blob {
		col := newCollection(col_id, col_id, []string{`read("any")`})
		for _, doc := range col_blob.Documents {
			id, ok := doc.Get(store.FieldID).(string)
			if !ok {
				continue
			}
			col.rows.Insert(id, doc)
		}
		db.collections.Set(col_id, col)
	}

	s.databases.Set(dbID, db)
	s.log.Infow("loaded database from disk", "database", dbID)
	return nil
}
