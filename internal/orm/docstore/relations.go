package docstore

import (
	"context"
	"fmt"
)

// Relations adapts a Store to the lookups needed by the relation validator, the delete
// guard and the population engine
type Relations struct {
	store Finder
}

// NewRelations wraps a store
func NewRelations(store Finder) *Relations {
	return &Relations{store: store}
}

// Exists reports whether collection holds a document whose key equals value
func (r *Relations) Exists(ctx context.Context, collection, key string, value interface{}) (bool, error) {
	docs, err := r.store.Find(ctx, collection, Where(Eq(key, value)), Limit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check %s.%s: %w", collection, key, err)
	}
	return len(docs) > 0, nil
}

// FindMatching returns the subset of values that some document in collection holds at key
func (r *Relations) FindMatching(ctx context.Context, collection, key string, values []interface{}) ([]interface{}, error) {
	values = Unique(values)
	if len(values) == 0 {
		return []interface{}{}, nil
	}

	docs, err := r.store.Find(ctx, collection, Where(In(key, values)))
	if err != nil {
		return nil, fmt.Errorf("failed to match %s.%s: %w", collection, key, err)
	}

	found := make(map[string]bool, len(docs))
	for _, doc := range docs {
		if k, ok := KeyOf(doc[key]); ok {
			found[k] = true
		}
	}

	matched := make([]interface{}, 0, len(found))
	for _, v := range values {
		if k, _ := KeyOf(v); found[k] {
			matched = append(matched, v)
		}
	}
	return matched, nil
}

// FindReferencing returns one document of collection that references value through key,
// by equality or, when many is set, by list containment. It returns nil when none exists.
func (r *Relations) FindReferencing(ctx context.Context, collection, key string, value interface{}, many bool) (Document, error) {
	cond := Eq(key, value)
	if many {
		cond = Contains(key, value)
	}

	docs, err := r.store.Find(ctx, collection, Where(cond), Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find references in %s.%s: %w", collection, key, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// Aggregate executes a join pipeline, natively when the store supports it
func (r *Relations) Aggregate(ctx context.Context, collection string, p Pipeline) ([]Document, error) {
	if agg, ok := r.store.(Aggregator); ok {
		return agg.Aggregate(ctx, collection, p)
	}
	return RunPipeline(ctx, r.store, collection, p)
}
