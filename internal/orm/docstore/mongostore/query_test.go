package mongostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/conduit-lang/docref/internal/orm/docstore"
)

func TestBuildFilter(t *testing.T) {
	t.Run("empty filter matches everything", func(t *testing.T) {
		query, err := BuildFilter(nil)
		require.NoError(t, err)
		assert.Equal(t, bson.M{}, query)
	})

	t.Run("single condition", func(t *testing.T) {
		query, err := BuildFilter(docstore.Where(docstore.Eq("slug", "ann")))
		require.NoError(t, err)
		assert.Equal(t, bson.M{"slug": "ann"}, query)
	})

	t.Run("conditions are combined with and", func(t *testing.T) {
		query, err := BuildFilter(docstore.Where(
			docstore.In("_id", []interface{}{"c1", "c2"}),
			docstore.Contains("childIds", "c1"),
		))
		require.NoError(t, err)
		assert.Equal(t, bson.M{"$and": bson.A{
			bson.M{"_id": bson.M{"$in": bson.A{"c1", "c2"}}},
			bson.M{"childIds": bson.M{"$type": "array", "$elemMatch": bson.M{"$eq": "c1"}}},
		}}, query)
	})

	t.Run("in requires a list", func(t *testing.T) {
		_, err := BuildFilter(docstore.Filter{{Field: "_id", Op: docstore.OpIn, Value: "c1"}})
		assert.ErrorIs(t, err, docstore.ErrUnsupportedOp)
	})
}

func TestBuildPipeline(t *testing.T) {
	stages := BuildPipeline(docstore.Pipeline{
		Match: docstore.MatchStage{Field: "_id", Values: []interface{}{"p1"}},
		Lookups: []docstore.Lookup{
			{From: "children", LocalField: "childId", ForeignField: "_id", As: "child", Single: true},
			{From: "children", LocalField: "childIds", ForeignField: "_id", As: "children"},
		},
	})

	assert.Equal(t, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": bson.M{"$in": bson.A{"p1"}}}}},
		{{Key: "$lookup", Value: bson.M{"from": "children", "localField": "childId", "foreignField": "_id", "as": "child"}}},
		{{Key: "$addFields", Value: bson.M{"child": bson.M{"$ifNull": bson.A{bson.M{"$arrayElemAt": bson.A{"$child", 0}}, nil}}}}},
		{{Key: "$lookup", Value: bson.M{"from": "children", "localField": "childIds", "foreignField": "_id", "as": "children"}}},
	}, stages)
}

func TestNormalize(t *testing.T) {
	oid := primitive.NewObjectID()
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	doc := Normalize(bson.M{
		"_id":   oid,
		"count": int32(3),
		"at":    primitive.NewDateTimeFromTime(when),
		"child": bson.D{{Key: "_id", Value: "c1"}, {Key: "tags", Value: bson.A{"a"}}},
		"children": bson.A{
			bson.M{"_id": "c2"},
		},
	})

	assert.Equal(t, oid.Hex(), doc["_id"])
	assert.Equal(t, int32(3), doc["count"])
	assert.Equal(t, when, doc["at"])
	assert.Equal(t, docstore.Document{"_id": "c1", "tags": []interface{}{"a"}}, doc["child"])
	assert.Equal(t, []interface{}{docstore.Document{"_id": "c2"}}, doc["children"])

	// normalized lists are readable by the population engine
	assert.Len(t, docstore.AsDocuments(doc["children"]), 1)
}
