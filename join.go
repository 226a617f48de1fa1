package orm

import (
	"context"
	"reflect"

	"github.com/raisfeld-ori/appwrite-orm/pkg"
	"github.com/raisfeld-ori/appwrite-orm/store"
	"github.com/raisfeld-ori/appwrite-orm/table"
)

// JoinOptions describes a client-side equi-join: rows of A are annotated
// with the rows of B whose ReferenceKey equals the A row's ForeignKey.
type JoinOptions struct {
	// ForeignKey is the field read from each A row.
	ForeignKey string
	// ReferenceKey is the field matched on B rows; defaults to "$id".
	ReferenceKey string
	// As is the field the matched B rows are stored under on the merged
	// row; defaults to B's table name.
	As string
}

// comparableKey reports whether a foreign-key value can be used as a map
// key. Array fields yield slices, which cannot be matched on and would
// panic a map index.
func comparableKey(key any) bool {
	return key != nil && reflect.TypeOf(key).Comparable()
}

func (opts JoinOptions) withDefaults(b *table.Table) JoinOptions {
	if opts.ReferenceKey == "" {
		opts.ReferenceKey = store.FieldID
	}
	if opts.As == "" {
		opts.As = b.Name
	}
	return opts
}

// Join left-joins B onto A. Every A row appears in the result, annotated
// under the alias with a single B row (exactly one match), a slice of B
// rows (several matches), or nil (no match). Rows are copies; the tables'
// caches are never mutated.
func Join(ctx context.Context, a, b *table.Table, opts JoinOptions, filtersA, filtersB table.Filters) ([]store.Document, error) {
	opts = opts.withDefaults(b)

	rows_a, err := a.Query(ctx, filtersA, nil)
	if err != nil {
		return nil, err
	}

	keys := []any{}
	seen := map[any]bool{}
	for _, row := range rows_a {
		key := row.Get(opts.ForeignKey)
		if !comparableKey(key) || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}

	grouped := map[any][]store.Document{}
	if len(keys) > 0 {
		exprs := append(filtersB.Expressions(), store.Equal(opts.ReferenceKey, keys...))
		rows_b, err := b.Find(ctx, exprs)
		if err != nil {
			return nil, err
		}
		for _, row := range rows_b {
			key := row.Get(opts.ReferenceKey)
			if !comparableKey(key) {
				continue
			}
			grouped[key] = append(grouped[key], row)
		}
	}

	merged := make([]store.Document, len(rows_a))
	for i, row := range rows_a {
		out := store.Document{}
		for k, v := range row {
			out.Set(k, v)
		}

		var matches []store.Document
		if key := row.Get(opts.ForeignKey); comparableKey(key) {
			matches = grouped[key]
		}
		switch len(matches) {
		case 0:
			out.Set(opts.As, nil)
		case 1:
			out.Set(opts.As, matches[0])
		default:
			out.Set(opts.As, matches)
		}
		merged[i] = out
	}
	return merged, nil
}

// LeftJoin is Join under its conventional name.
func LeftJoin(ctx context.Context, a, b *table.Table, opts JoinOptions, filtersA, filtersB table.Filters) ([]store.Document, error) {
	return Join(ctx, a, b, opts, filtersA, filtersB)
}

// InnerJoin is Join with unmatched A rows dropped.
func InnerJoin(ctx context.Context, a, b *table.Table, opts JoinOptions, filtersA, filtersB table.Filters) ([]store.Document, error) {
	opts = opts.withDefaults(b)
	rows, err := Join(ctx, a, b, opts, filtersA, filtersB)
	if err != nil {
		return nil, err
	}
	return pkg.Filter(rows, func(row store.Document) bool {
		return row.Get(opts.As) != nil
	}), nil
}
