package mongostore

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/conduit-lang/docref/internal/orm/docstore"
)

// BuildFilter translates a docstore filter into a MongoDB query.
// Equality on a scalar field and containment in an array field are the same query in
// MongoDB; containment additionally requires the field to be an array.
func BuildFilter(filter docstore.Filter) (bson.M, error) {
	query := bson.M{}
	var and bson.A

	for _, cond := range filter {
		var clause bson.M
		switch cond.Op {
		case docstore.OpEq:
			clause = bson.M{cond.Field: cond.Value}
		case docstore.OpIn:
			values, ok := docstore.AsList(cond.Value)
			if !ok {
				return nil, fmt.Errorf("%w: in requires a list, got %T", docstore.ErrUnsupportedOp, cond.Value)
			}
			clause = bson.M{cond.Field: bson.M{"$in": bson.A(values)}}
		case docstore.OpContains:
			clause = bson.M{cond.Field: bson.M{"$type": "array", "$elemMatch": bson.M{"$eq": cond.Value}}}
		default:
			return nil, fmt.Errorf("%w: %s", docstore.ErrUnsupportedOp, cond.Op)
		}
		and = append(and, clause)
	}

	switch len(and) {
	case 0:
	case 1:
		query = and[0].(bson.M)
	default:
		query["$and"] = and
	}
	return query, nil
}

// BuildPipeline translates a population pipeline into aggregation stages
func BuildPipeline(p docstore.Pipeline) mongo.Pipeline {
	stages := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{p.Match.Field: bson.M{"$in": bson.A(p.Match.Values)}}}},
	}

	for _, lookup := range p.Lookups {
		stages = append(stages, bson.D{{Key: "$lookup", Value: bson.M{
			"from":         lookup.From,
			"localField":   lookup.LocalField,
			"foreignField": lookup.ForeignField,
			"as":           lookup.As,
		}}})
		if lookup.Single {
			stages = append(stages, bson.D{{Key: "$addFields", Value: bson.M{
				lookup.As: bson.M{"$ifNull": bson.A{bson.M{"$arrayElemAt": bson.A{"$" + lookup.As, 0}}, nil}},
			}}})
		}
	}
	return stages
}

// Normalize converts decoded BSON into plain documents, lists and strings
func Normalize(raw bson.M) docstore.Document {
	return normalizeValue(raw).(docstore.Document)
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.M:
		doc := make(docstore.Document, len(val))
		for k, item := range val {
			doc[k] = normalizeValue(item)
		}
		return doc
	case map[string]interface{}:
		return normalizeValue(bson.M(val))
	case bson.D:
		doc := make(docstore.Document, len(val))
		for _, elem := range val {
			doc[elem.Key] = normalizeValue(elem.Value)
		}
		return doc
	case bson.A:
		list := make([]interface{}, len(val))
		for i, item := range val {
			list[i] = normalizeValue(item)
		}
		return list
	case []interface{}:
		return normalizeValue(bson.A(val))
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC()
	default:
		return v
	}
}
