package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docref/internal/orm/docstore"
)

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.Insert(ctx, "children", "c1", docstore.Document{"_id": "c1", "name": "Ann"}))

	err := store.Insert(ctx, "children", "c1", docstore.Document{"_id": "c1"})
	assert.ErrorIs(t, err, docstore.ErrDuplicateID)

	doc, err := store.FindByID(ctx, "children", "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", doc["name"])

	doc["name"] = "mutated"
	again, err := store.FindByID(ctx, "children", "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", again["name"])

	require.NoError(t, store.Replace(ctx, "children", "c1", docstore.Document{"_id": "c1", "name": "Anna"}))
	again, err = store.FindByID(ctx, "children", "c1")
	require.NoError(t, err)
	assert.Equal(t, "Anna", again["name"])

	assert.ErrorIs(t, store.Replace(ctx, "children", "c9", docstore.Document{}), docstore.ErrNotFound)

	require.NoError(t, store.Delete(ctx, "children", "c1"))
	_, err = store.FindByID(ctx, "children", "c1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "children", "c1"), docstore.ErrNotFound)
	assert.Equal(t, 0, store.Count("children"))
}

func TestStoreFindKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := New()

	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, store.Insert(ctx, "letters", id, docstore.Document{"_id": id, "kind": "letter"}))
	}

	docs, err := store.Find(ctx, "letters", docstore.Where(docstore.Eq("kind", "letter")))
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "b", docs[0]["_id"])
	assert.Equal(t, "a", docs[1]["_id"])
	assert.Equal(t, "c", docs[2]["_id"])

	docs, err = store.Find(ctx, "letters", nil, docstore.Limit(2))
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = store.Find(ctx, "unknown", nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestStoreNumericIDs(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.Insert(ctx, "items", 7, docstore.Document{"_id": 7}))

	doc, err := store.FindByID(ctx, "items", float64(7))
	require.NoError(t, err)
	assert.Equal(t, 7, doc["_id"])
}

func TestStoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Find(ctx, "items", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad(t *testing.T) {
	store := New()

	seed := `{
		"children": [{"_id": "c1"}, {"_id": "c2"}],
		"parents": [{"code": "p1", "childId": "c1"}]
	}`
	require.NoError(t, store.Load(strings.NewReader(seed), map[string]string{"parents": "code"}))

	assert.Equal(t, 2, store.Count("children"))
	doc, err := store.FindByID(context.Background(), "parents", "p1")
	require.NoError(t, err)
	assert.Equal(t, "c1", doc["childId"])

	err = New().Load(strings.NewReader(`{"children": [{"name": "x"}]}`), nil)
	assert.ErrorIs(t, err, docstore.ErrInvalidID)
}
