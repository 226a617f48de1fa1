package devstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/raisfeld-ori/appwrite-orm/pkg"
	"github.com/raisfeld-ori/appwrite-orm/store"
)

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (s *Store) GetDocument(_ context.Context, dbID, colID, docID string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, err := s.getCollection(dbID, colID)
	if err != nil {
		return nil, err
	}
	doc, ok := col.rows.Get(docID)
	if !ok {
		return nil, fmt.Errorf("document %q: %w", docID, store.ErrNotFound)
	}
	return copyDocument(doc), nil
}

func (s *Store) CreateDocument(_ context.Context, dbID, colID, docID string, data map[string]any) (store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.getCollection(dbID, colID)
	if err != nil {
		return nil, err
	}
	if _, ok := col.rows.Get(docID); ok {
		return nil, fmt.Errorf("document %q already exists in collection %q", docID, colID)
	}

	doc := store.Document{}
	for k, v := range data {
		doc[k] = v
	}
	// the production backend fills declared defaults server-side
	for _, attr := range col.attributes {
		if attr.Default == nil || attr.Required || doc.Has(attr.Key) {
			continue
		}
		doc.Set(attr.Key, attr.Default)
	}
	now := timestamp()
	doc.Set(store.FieldID, docID)
	doc.Set(store.FieldCreatedAt, now)
	doc.Set(store.FieldUpdatedAt, now)

	col.rows.Insert(docID, doc)
	if err := s.persist(s.databases.Get(dbID)); err != nil {
		return nil, err
	}
	return copyDocument(doc), nil
}

func (s *Store) UpdateDocument(_ context.Context, dbID, colID, docID string, data map[string]any) (store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.getCollection(dbID, colID)
	if err != nil {
		return nil, err
	}
	existing, ok := col.rows.Get(docID)
	if !ok {
		return nil, fmt.Errorf("document %q: %w", docID, store.ErrNotFound)
	}

	doc := copyDocument(existing)
	for k, v := range data {
		doc[k] = v
	}
	doc.Set(store.FieldUpdatedAt, timestamp())

	col.rows.Replace(docID, doc)
	if err := s.persist(s.databases.Get(dbID)); err != nil {
		return nil, err
	}
	return copyDocument(doc), nil
}

func (s *Store) DeleteDocument(_ context.Context, dbID, colID, docID string) error {
	s.mu.Lock()
	col, err := s.getCollection(dbID, colID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	doc, ok := col.rows.Get(docID)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("document %q: %w", docID, store.ErrNotFound)
	}

	col.rows.Delete(docID)
	err = s.persist(s.databases.Get(dbID))
	s.mu.Unlock()
	if err != nil {
		return err
	}

	// deletes are announced right away instead of waiting for the next
	// poll to notice the missing id
	s.watch.notify(dbID, colID, copyDocument(doc), actionDelete)
	return nil
}

func (s *Store) ListDocuments(_ context.Context, dbID, colID string, queries []string) (*store.DocumentList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, err := s.getCollection(dbID, colID)
	if err != nil {
		return nil, err
	}

	plan, err := parsePlan(queries)
	if err != nil {
		return nil, err
	}

	matched := pkg.Filter(col.documents(), plan.matches)
	total := len(matched)

	plan.order(matched)

	if plan.offset > 0 {
		if plan.offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[plan.offset:]
		}
	}
	if plan.limit > 0 && plan.limit < len(matched) {
		matched = matched[:plan.limit]
	}

	docs := make([]store.Document, len(matched))
	for i, doc := range matched {
		docs[i] = plan.project(doc)
	}
	return &store.DocumentList{Documents: docs, Total: total}, nil
}

// listPlan is the locally evaluated form of a query expression list.
type listPlan struct {
	filters []store.Query
	orders  []store.Query
	limit   int
	offset  int
	selects []string
}

func parsePlan(queries []string) (*listPlan, error) {
	plan := &listPlan{}
	for _, expr := range queries {
		q, err := store.ParseQuery(expr)
		if err != nil {
			return nil, err
		}

		switch q.Method {
		case "equal", "greaterThan", "lessThan", "search", "startsWith", "endsWith":
			plan.filters = append(plan.filters, q)
		case "orderAsc", "orderDesc":
			plan.orders = append(plan.orders, q)
		case "limit":
			if len(q.Values) == 1 {
				if n, ok := pkg.NumToFloat(q.Values[0]); ok {
					plan.limit = int(n)
				}
			}
		case "offset":
			if len(q.Values) == 1 {
				if n, ok := pkg.NumToFloat(q.Values[0]); ok {
					plan.offset = int(n)
				}
			}
		case "select":
			for _, v := range q.Values {
				if field, ok := v.(string); ok {
					plan.selects = append(plan.selects, field)
				}
			}
		default:
			return nil, fmt.Errorf("unsupported query method %q", q.Method)
		}
	}
	return plan, nil
}

func (p *listPlan) matches(doc store.Document) bool {
	for _, q := range p.filters {
		if !matchFilter(doc, q) {
			return false
		}
	}
	return true
}

func matchFilter(doc store.Document, q store.Query) bool {
	value := doc.Get(q.Attribute)

	switch q.Method {
	case "equal":
		for _, want := range q.Values {
			if valuesEqual(value, want) {
				return true
			}
		}
		return false
	case "greaterThan":
		return len(q.Values) == 1 && compareValues(value, q.Values[0]) > 0
	case "lessThan":
		return len(q.Values) == 1 && compareValues(value, q.Values[0]) < 0
	case "search":
		s, ok := value.(string)
		term, okT := firstString(q.Values)
		return ok && okT && strings.Contains(strings.ToLower(s), strings.ToLower(term))
	case "startsWith":
		s, ok := value.(string)
		prefix, okT := firstString(q.Values)
		return ok && okT && strings.HasPrefix(s, prefix)
	case "endsWith":
		s, ok := value.(string)
		suffix, okT := firstString(q.Values)
		return ok && okT && strings.HasSuffix(s, suffix)
	}
	return false
}

func firstString(values []any) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	s, ok := values[0].(string)
	return s, ok
}

// valuesEqual compares with numeric coercion: stored ints and json
// float64s must compare equal.
func valuesEqual(a, b any) bool {
	fa, okA := pkg.NumToFloat(a)
	fb, okB := pkg.NumToFloat(b)
	if okA && okB {
		return fa == fb
	}
	return a == b
}

// compareValues returns -1, 0 or 1; incomparable values compare equal so
// they never match a strict inequality.
func compareValues(a, b any) int {
	fa, okA := pkg.NumToFloat(a)
	fb, okB := pkg.NumToFloat(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}

	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb)
	}
	return 0
}

func (p *listPlan) order(docs []store.Document) {
	if len(p.orders) == 0 {
		return
	}

	sort.SliceStable(docs, func(i, j int) bool {
		for _, q := range p.orders {
			cmp := compareValues(docs[i].Get(q.Attribute), docs[j].Get(q.Attribute))
			if cmp == 0 {
				continue
			}
			if q.Method == "orderDesc" {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// project applies the select list; system fields always survive.
func (p *listPlan) project(doc store.Document) store.Document {
	if len(p.selects) == 0 {
		return copyDocument(doc)
	}

	out := store.Document{
		store.FieldID:        doc.Get(store.FieldID),
		store.FieldCreatedAt: doc.Get(store.FieldCreatedAt),
		store.FieldUpdatedAt: doc.Get(store.FieldUpdatedAt),
	}
	for _, field := range p.selects {
		if doc.Has(field) {
			out[field] = doc.Get(field)
		}
	}
	return out
}
