package relationships

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// Populate loads the entity with the given id and attaches every declared relation.
// includes restricts population to the relations with those populated keys.
func (l *Loader) Populate(
	ctx context.Context,
	collection string,
	id interface{},
	includes ...string,
) (docstore.Document, error) {
	docs, err := l.PopulateMany(ctx, collection, []interface{}{id}, includes...)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, collection, id)
	}
	return docs[0], nil
}

// PopulateMany loads and populates a batch of entities in a single pipeline round trip.
// Results follow the order of ids; ids that do not exist are skipped.
func (l *Loader) PopulateMany(
	ctx context.Context,
	collection string,
	ids []interface{},
	includes ...string,
) ([]docstore.Document, error) {
	entity, err := l.registry.MustEntity(collection)
	if err != nil {
		return nil, err
	}

	decls, err := l.selectDeclarations(collection, includes)
	if err != nil {
		return nil, err
	}

	pipeline := buildPipeline(entity, decls, docstore.Unique(ids))
	if len(pipeline.Match.Values) == 0 {
		return []docstore.Document{}, nil
	}

	docs, err := l.joiner.Aggregate(ctx, collection, pipeline)
	if err != nil {
		l.logger.Error("population pipeline failed",
			zap.String("collection", collection),
			zap.Int("ids", len(pipeline.Match.Values)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to populate %s: %w", collection, err)
	}

	for _, doc := range docs {
		for _, rel := range decls {
			finishRelation(doc, rel)
		}
	}

	return orderByIDs(docs, entity.IDField, pipeline.Match.Values), nil
}

// PopulateDocuments populates documents that were already fetched, re-reading them by id
// in one batch
func (l *Loader) PopulateDocuments(
	ctx context.Context,
	collection string,
	docs []docstore.Document,
	includes ...string,
) ([]docstore.Document, error) {
	entity, err := l.registry.MustEntity(collection)
	if err != nil {
		return nil, err
	}

	ids := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		if id, ok := doc[entity.IDField]; ok && id != nil {
			ids = append(ids, id)
		}
	}
	return l.PopulateMany(ctx, collection, ids, includes...)
}

// BuildPipeline returns the join pipeline used to populate ids of collection
func (l *Loader) BuildPipeline(collection string, ids []interface{}, includes ...string) (docstore.Pipeline, error) {
	entity, err := l.registry.MustEntity(collection)
	if err != nil {
		return docstore.Pipeline{}, err
	}
	decls, err := l.selectDeclarations(collection, includes)
	if err != nil {
		return docstore.Pipeline{}, err
	}
	return buildPipeline(entity, decls, docstore.Unique(ids)), nil
}

func (l *Loader) selectDeclarations(collection string, includes []string) ([]*schema.Relation, error) {
	decls := l.registry.DeclarationsFor(collection)
	if len(includes) == 0 {
		return decls, nil
	}

	byKey := make(map[string]*schema.Relation, len(decls))
	for _, rel := range decls {
		byKey[rel.PopulatedKey] = rel
	}

	wanted := make(map[string]bool, len(includes))
	for _, include := range includes {
		if _, ok := byKey[include]; !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownRelation, collection, include)
		}
		wanted[include] = true
	}

	// keep registration order regardless of the order of includes
	selected := make([]*schema.Relation, 0, len(wanted))
	for _, rel := range decls {
		if wanted[rel.PopulatedKey] {
			selected = append(selected, rel)
		}
	}
	return selected, nil
}

func buildPipeline(entity *schema.EntityType, decls []*schema.Relation, ids []interface{}) docstore.Pipeline {
	p := docstore.Pipeline{
		Match: docstore.MatchStage{Field: entity.IDField, Values: ids},
	}
	for _, rel := range decls {
		p.Lookups = append(p.Lookups, docstore.Lookup{
			From:         rel.TargetCollection,
			LocalField:   rel.SourceKey,
			ForeignField: rel.TargetKey,
			As:           rel.PopulatedKey,
			Single:       rel.Cardinality == schema.CardinalityOne,
		})
	}
	return p
}

// finishRelation normalizes one populated field: instances without a source value carry
// no populated field, single relations hold a document or nil, list relations hold
// documents in the order of the source list
func finishRelation(doc docstore.Document, rel *schema.Relation) {
	source := doc[rel.SourceKey]
	if docstore.IsEmpty(source) {
		delete(doc, rel.PopulatedKey)
		return
	}

	if rel.Cardinality == schema.CardinalityOne {
		if populated, ok := docstore.AsDocument(doc[rel.PopulatedKey]); ok {
			doc[rel.PopulatedKey] = populated
		} else if list := docstore.AsDocuments(doc[rel.PopulatedKey]); len(list) > 0 {
			doc[rel.PopulatedKey] = list[0]
		} else {
			doc[rel.PopulatedKey] = nil
		}
		return
	}

	doc[rel.PopulatedKey] = orderBySource(docstore.AsDocuments(doc[rel.PopulatedKey]), rel.TargetKey, source)
}

func orderBySource(related []docstore.Document, targetKey string, source interface{}) []docstore.Document {
	byKey := make(map[string][]docstore.Document, len(related))
	for _, doc := range related {
		if key, ok := docstore.KeyOf(doc[targetKey]); ok {
			byKey[key] = append(byKey[key], doc)
		}
	}

	ordered := make([]docstore.Document, 0, len(related))
	for _, ref := range docstore.Unique(docstore.References(source)) {
		key, _ := docstore.KeyOf(ref)
		ordered = append(ordered, byKey[key]...)
	}
	return ordered
}

func orderByIDs(docs []docstore.Document, idField string, ids []interface{}) []docstore.Document {
	byID := make(map[string]docstore.Document, len(docs))
	for _, doc := range docs {
		if key, ok := docstore.KeyOf(doc[idField]); ok {
			byID[key] = doc
		}
	}

	ordered := make([]docstore.Document, 0, len(docs))
	for _, id := range ids {
		key, _ := docstore.KeyOf(id)
		if doc, ok := byID[key]; ok {
			ordered = append(ordered, doc)
		}
	}
	return ordered
}
