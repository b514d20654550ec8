package integrity

import (
	"context"

	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// ReferenceFinder locates documents that reference a value
type ReferenceFinder interface {
	FindReferencing(ctx context.Context, collection, key string, value interface{}, many bool) (docstore.Document, error)
}

// Guard blocks deletes that would leave a checked reference dangling.
//
// The document being deleted does not know who references it, so the guard searches
// outward through every declaration, across every entity type, that targets its collection.
type Guard struct {
	registry *schema.Registry
	finder   ReferenceFinder
	logger   *zap.Logger
}

// NewGuard creates a delete guard
func NewGuard(registry *schema.Registry, finder ReferenceFinder, opts ...Option) *Guard {
	o := buildOptions(opts)
	return &Guard{
		registry: registry,
		finder:   finder,
		logger:   o.logger,
	}
}

// Check returns a *DeleteBlockedError for the first live parent that still references doc
// through a checked relation, evaluating declarations in registration order
func (g *Guard) Check(ctx context.Context, collection string, doc docstore.Document) error {
	blockers, err := g.scan(ctx, collection, doc, true)
	if err != nil {
		return err
	}
	if len(blockers) > 0 {
		g.logger.Debug("delete blocked",
			zap.String("collection", collection),
			zap.Any("id", blockers[0].ChildID),
			zap.String("parent", blockers[0].ParentCollection),
			zap.Any("parent_id", blockers[0].ParentID),
		)
		return blockers[0]
	}
	return nil
}

// Blockers returns the first blocking parent of every checked declaration targeting
// collection. An empty result means doc may be deleted.
func (g *Guard) Blockers(ctx context.Context, collection string, doc docstore.Document) ([]*DeleteBlockedError, error) {
	return g.scan(ctx, collection, doc, false)
}

func (g *Guard) scan(ctx context.Context, collection string, doc docstore.Document, failFast bool) ([]*DeleteBlockedError, error) {
	child, err := g.registry.MustEntity(collection)
	if err != nil {
		return nil, err
	}

	var blockers []*DeleteBlockedError
	for _, rel := range g.registry.DeclarationsTargeting(collection) {
		if !rel.CheckRelation {
			continue
		}

		value := doc[rel.TargetKey]
		if docstore.IsEmpty(value) {
			continue
		}

		parent, err := g.finder.FindReferencing(ctx, rel.SourceCollection, rel.SourceKey, value, rel.IsMany())
		if err != nil {
			return nil, err
		}
		if parent == nil {
			continue
		}

		blocked := &DeleteBlockedError{
			Cardinality:      rel.Cardinality,
			ChildCollection:  collection,
			ChildID:          doc[child.IDField],
			ChildKey:         rel.TargetKey,
			ChildValue:       value,
			ParentCollection: rel.SourceCollection,
			ParentKey:        rel.SourceKey,
			ParentValue:      parent[rel.SourceKey],
		}
		if owner, ok := g.registry.Entity(rel.SourceCollection); ok {
			blocked.ParentID = parent[owner.IDField]
		}

		blockers = append(blockers, blocked)
		if failFast {
			break
		}
	}

	return blockers, nil
}
