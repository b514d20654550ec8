package relationships

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/docstore/memory"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// setupLoader registers parents with four relations to children (two scalar, two list)
// and stores a small family
func setupLoader(t *testing.T) (*Loader, *memory.Store) {
	t.Helper()

	registry := schema.NewRegistry()
	require.NoError(t, schema.Define("children").Unique("slug").Into(registry))
	require.NoError(t, schema.Define("parents").
		One("childId", "children").
		Many("childIds", "children").
		One("favoriteSlug", "children", schema.TargetKey("slug"), schema.As("favorite"), schema.Unchecked()).
		Many("friendSlugs", "children", schema.TargetKey("slug"), schema.As("friends")).
		Into(registry))
	require.NoError(t, registry.Freeze())

	ctx := context.Background()
	store := memory.New()
	for _, doc := range []docstore.Document{
		{"_id": "c1", "name": "Ann", "slug": "ann"},
		{"_id": "c2", "name": "Bob", "slug": "bob"},
		{"_id": "c3", "name": "Cid", "slug": "cid"},
		{"_id": "c4", "name": "Dee", "slug": "dee"},
	} {
		require.NoError(t, store.Insert(ctx, "children", doc["_id"], doc))
	}
	for _, doc := range []docstore.Document{
		{"_id": "p1", "childId": "c1", "childIds": []interface{}{"c3", "c2"}, "favoriteSlug": "bob", "friendSlugs": []interface{}{"dee", "ann"}},
		{"_id": "p2", "childId": "c4", "childIds": []interface{}{}},
		{"_id": "p3"},
	} {
		require.NoError(t, store.Insert(ctx, "parents", doc["_id"], doc))
	}

	return NewLoader(registry, docstore.NewRelations(store)), store
}

func TestPopulate(t *testing.T) {
	loader, _ := setupLoader(t)

	doc, err := loader.Populate(context.Background(), "parents", "p1")
	require.NoError(t, err)

	child, ok := doc["child"].(docstore.Document)
	require.True(t, ok)
	assert.Equal(t, "Ann", child["name"])

	children, ok := doc["children"].([]docstore.Document)
	require.True(t, ok)
	require.Len(t, children, 2)
	assert.Equal(t, "c3", children[0]["_id"])
	assert.Equal(t, "c2", children[1]["_id"])

	favorite, ok := doc["favorite"].(docstore.Document)
	require.True(t, ok)
	assert.Equal(t, "c2", favorite["_id"])

	friends, ok := doc["friends"].([]docstore.Document)
	require.True(t, ok)
	require.Len(t, friends, 2)
	assert.Equal(t, "Dee", friends[0]["name"])
	assert.Equal(t, "Ann", friends[1]["name"])

	// source fields are untouched
	assert.Equal(t, "c1", doc["childId"])
	assert.Equal(t, []interface{}{"c3", "c2"}, doc["childIds"])
}

func TestPopulateTwoListsAndOneScalar(t *testing.T) {
	loader, store := setupLoader(t)
	ctx := context.Background()

	stored, err := store.FindByID(ctx, "parents", "p1")
	require.NoError(t, err)

	doc, err := loader.Populate(ctx, "parents", "p1", "child", "children", "friends")
	require.NoError(t, err)
	assert.Len(t, doc, len(stored)+3)

	assert.IsType(t, docstore.Document{}, doc["child"])
	assert.Len(t, doc["children"], 2)
	assert.Len(t, doc["friends"], 2)
	assert.IsType(t, []docstore.Document{}, doc["children"])
	assert.IsType(t, []docstore.Document{}, doc["friends"])
}

func TestPopulateEmptySources(t *testing.T) {
	loader, _ := setupLoader(t)
	ctx := context.Background()

	t.Run("empty list leaves no populated field", func(t *testing.T) {
		doc, err := loader.Populate(ctx, "parents", "p2")
		require.NoError(t, err)

		assert.Equal(t, "Dee", doc["child"].(docstore.Document)["name"])
		_, present := doc["children"]
		assert.False(t, present)
		_, present = doc["favorite"]
		assert.False(t, present)
	})

	t.Run("missing sources leave no populated fields", func(t *testing.T) {
		doc, err := loader.Populate(ctx, "parents", "p3")
		require.NoError(t, err)
		assert.Equal(t, docstore.Document{"_id": "p3"}, doc)
	})
}

func TestPopulateDanglingReferences(t *testing.T) {
	loader, store := setupLoader(t)
	ctx := context.Background()

	// children can disappear behind an unchecked relation or a direct store write
	require.NoError(t, store.Delete(ctx, "children", "c2"))
	require.NoError(t, store.Delete(ctx, "children", "c1"))

	doc, err := loader.Populate(ctx, "parents", "p1")
	require.NoError(t, err)

	child, present := doc["child"]
	assert.True(t, present)
	assert.Nil(t, child)

	favorite, present := doc["favorite"]
	assert.True(t, present)
	assert.Nil(t, favorite)

	children := doc["children"].([]docstore.Document)
	require.Len(t, children, 1)
	assert.Equal(t, "c3", children[0]["_id"])

	friends := doc["friends"].([]docstore.Document)
	require.Len(t, friends, 1)
	assert.Equal(t, "dee", friends[0]["slug"])
}

func TestPopulateNotFound(t *testing.T) {
	loader, _ := setupLoader(t)

	_, err := loader.Populate(context.Background(), "parents", "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = loader.Populate(context.Background(), "ghosts", "p1")
	assert.ErrorIs(t, err, schema.ErrUnknownEntity)
}

func TestPopulateIsIdempotent(t *testing.T) {
	loader, _ := setupLoader(t)
	ctx := context.Background()

	first, err := loader.Populate(ctx, "parents", "p1")
	require.NoError(t, err)
	second, err := loader.Populate(ctx, "parents", "p1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPopulateIncludes(t *testing.T) {
	loader, _ := setupLoader(t)
	ctx := context.Background()

	doc, err := loader.Populate(ctx, "parents", "p1", "favorite")
	require.NoError(t, err)

	assert.Contains(t, doc, "favorite")
	assert.NotContains(t, doc, "child")
	assert.NotContains(t, doc, "children")
	assert.NotContains(t, doc, "friends")

	_, err = loader.Populate(ctx, "parents", "p1", "childId")
	assert.ErrorIs(t, err, ErrUnknownRelation)
}

func TestPopulateMany(t *testing.T) {
	loader, store := setupLoader(t)
	ctx := context.Background()

	before := store.Queries()
	docs, err := loader.PopulateMany(ctx, "parents", []interface{}{"p3", "missing", "p1", "p2", "p1"})
	require.NoError(t, err)

	// one match plus one lookup per relation, regardless of the batch size
	assert.Equal(t, 5, store.Queries()-before)

	require.Len(t, docs, 3)
	assert.Equal(t, "p3", docs[0]["_id"])
	assert.Equal(t, "p1", docs[1]["_id"])
	assert.Equal(t, "p2", docs[2]["_id"])
	assert.Equal(t, "Ann", docs[1]["child"].(docstore.Document)["name"])
	assert.Equal(t, "Dee", docs[2]["child"].(docstore.Document)["name"])

	t.Run("empty batch", func(t *testing.T) {
		docs, err := loader.PopulateMany(ctx, "parents", nil)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestPopulateDocuments(t *testing.T) {
	loader, store := setupLoader(t)
	ctx := context.Background()

	stored, err := store.Find(ctx, "parents", docstore.Where(docstore.Eq("childId", "c1")))
	require.NoError(t, err)

	docs, err := loader.PopulateDocuments(ctx, "parents", stored)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Ann", docs[0]["child"].(docstore.Document)["name"])
}

func TestBuildPipeline(t *testing.T) {
	loader, _ := setupLoader(t)

	p, err := loader.BuildPipeline("parents", []interface{}{"p1", "p1", "p2"})
	require.NoError(t, err)

	assert.Equal(t, docstore.MatchStage{Field: "_id", Values: []interface{}{"p1", "p2"}}, p.Match)
	assert.Equal(t, []docstore.Lookup{
		{From: "children", LocalField: "childId", ForeignField: "_id", As: "child", Single: true},
		{From: "children", LocalField: "childIds", ForeignField: "_id", As: "children"},
		{From: "children", LocalField: "favoriteSlug", ForeignField: "slug", As: "favorite", Single: true},
		{From: "children", LocalField: "friendSlugs", ForeignField: "slug", As: "friends"},
	}, p.Lookups)

	p, err = loader.BuildPipeline("children", []interface{}{"c1"})
	require.NoError(t, err)
	assert.Empty(t, p.Lookups)
}

func TestFinishRelationOrdersBySource(t *testing.T) {
	rel := &schema.Relation{
		SourceKey:    "childIds",
		TargetKey:    "_id",
		Cardinality:  schema.CardinalityMany,
		PopulatedKey: "children",
	}
	doc := docstore.Document{
		"childIds": []interface{}{float64(2), float64(1)},
		"children": []interface{}{
			map[string]interface{}{"_id": 1, "name": "one"},
			map[string]interface{}{"_id": 2, "name": "two"},
		},
	}

	finishRelation(doc, rel)

	children := doc["children"].([]docstore.Document)
	require.Len(t, children, 2)
	assert.Equal(t, "two", children[0]["name"])
	assert.Equal(t, "one", children[1]["name"])
}
