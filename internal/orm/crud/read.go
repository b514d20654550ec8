package crud

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/conduit-lang/docref/internal/orm/docstore"
)

// FindByID retrieves a document by its identifier
func (o *Operations) FindByID(ctx context.Context, id interface{}) (docstore.Document, error) {
	doc, err := o.store.FindByID(ctx, o.entity.Collection, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s %v: %w", o.entity.Collection, id, ConvertStoreError(err))
	}
	return doc, nil
}

// Find retrieves the documents matching filter
func (o *Operations) Find(ctx context.Context, filter docstore.Filter, opts ...docstore.FindOption) ([]docstore.Document, error) {
	docs, err := o.store.Find(ctx, o.entity.Collection, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", o.entity.Collection, ConvertStoreError(err))
	}
	return docs, nil
}

// FindPopulated retrieves a document with its relations resolved.
// includes restricts population to the named populated keys.
func (o *Operations) FindPopulated(ctx context.Context, id interface{}, includes ...string) (docstore.Document, error) {
	if o.populator == nil {
		return o.FindByID(ctx, id)
	}
	doc, err := o.populator.Populate(ctx, o.entity.Collection, id, includes...)
	if err != nil {
		return nil, ConvertStoreError(err)
	}
	return doc, nil
}

// FindManyPopulated retrieves a batch of documents with their relations resolved, in the
// order of ids. Unknown ids are skipped.
func (o *Operations) FindManyPopulated(ctx context.Context, ids []interface{}, includes ...string) ([]docstore.Document, error) {
	if o.populator == nil {
		return o.Find(ctx, docstore.Where(docstore.In(o.entity.IDField, ids)))
	}
	docs, err := o.populator.PopulateMany(ctx, o.entity.Collection, ids, includes...)
	if err != nil {
		return nil, ConvertStoreError(err)
	}
	return docs, nil
}

// ResolveID maps an id given as text, such as a URL segment or a command argument, to the
// id it is stored under. When nothing is stored under the text itself but a document is
// stored under its numeric form, the number is returned. Unknown ids come back unchanged.
func (o *Operations) ResolveID(ctx context.Context, raw string) (interface{}, error) {
	ids, err := o.ResolveIDs(ctx, []string{raw})
	if err != nil {
		return nil, err
	}
	return ids[0], nil
}

// ResolveIDs is ResolveID for a batch, answered with a single query
func (o *Operations) ResolveIDs(ctx context.Context, raw []string) ([]interface{}, error) {
	ids := make([]interface{}, len(raw))
	numbers := make(map[int]interface{})
	candidates := make([]interface{}, 0, len(raw)*2)
	for i, text := range raw {
		ids[i] = text
		candidates = append(candidates, text)
		if n, ok := parseNumericID(text); ok {
			numbers[i] = n
			candidates = append(candidates, n)
		}
	}
	if len(numbers) == 0 {
		return ids, nil
	}

	docs, err := o.Find(ctx, docstore.Where(docstore.In(o.entity.IDField, candidates)))
	if err != nil {
		return nil, err
	}
	stored := make(map[string]bool, len(docs))
	for _, doc := range docs {
		if key, ok := docstore.KeyOf(doc[o.entity.IDField]); ok {
			stored[key] = true
		}
	}

	for i, n := range numbers {
		if textKey, _ := docstore.KeyOf(raw[i]); stored[textKey] {
			continue
		}
		if numKey, _ := docstore.KeyOf(n); stored[numKey] {
			ids[i] = n
		}
	}
	return ids, nil
}

func parseNumericID(text string) (interface{}, bool) {
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i, true
	}
	if u, err := strconv.ParseUint(text, 10, 64); err == nil {
		return u, true
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f, true
	}
	return nil, false
}
