package integrity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/docstore/memory"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// setupFixture registers children, parents (checked one + many, unchecked one) and
// notes (checked reference to parents), and stores children c1 and c2
func setupFixture(t *testing.T) (*schema.Registry, *memory.Store, *docstore.Relations) {
	t.Helper()

	registry := schema.NewRegistry()
	require.NoError(t, schema.Define("children").Unique("slug").Into(registry))
	require.NoError(t, schema.Define("parents").
		One("childId", "children").
		Many("childIds", "children").
		One("mentorId", "children", schema.Unchecked()).
		Into(registry))
	require.NoError(t, schema.Define("notes").
		One("parentId", "parents").
		Many("slugs", "children", schema.TargetKey("slug")).
		Into(registry))
	require.NoError(t, registry.Freeze())

	store := memory.New()
	insert(t, store, "children", docstore.Document{"_id": "c1", "slug": "ann"})
	insert(t, store, "children", docstore.Document{"_id": "c2", "slug": "bob"})

	return registry, store, docstore.NewRelations(store)
}

func insert(t *testing.T, store *memory.Store, collection string, doc docstore.Document) {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), collection, doc["_id"], doc))
}

// countingReader records the lookups issued by the validator
type countingReader struct {
	RelationReader
	exists   int
	matching int
}

func (c *countingReader) Exists(ctx context.Context, collection, key string, value interface{}) (bool, error) {
	c.exists++
	return c.RelationReader.Exists(ctx, collection, key, value)
}

func (c *countingReader) FindMatching(ctx context.Context, collection, key string, values []interface{}) ([]interface{}, error) {
	c.matching++
	return c.RelationReader.FindMatching(ctx, collection, key, values)
}
