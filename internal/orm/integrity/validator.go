// Package integrity emulates referential integrity over a document store: the Validator
// rejects writes whose checked relations point at missing documents and the Guard rejects
// deletes that would orphan a checked reference.
package integrity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// RelationReader answers existence questions about target collections
type RelationReader interface {
	Exists(ctx context.Context, collection, key string, value interface{}) (bool, error)
	FindMatching(ctx context.Context, collection, key string, values []interface{}) ([]interface{}, error)
}

// Option configures a Validator or a Guard
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for rejected operations
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Validator checks the relation targets of a document before it is written
type Validator struct {
	registry *schema.Registry
	reader   RelationReader
	logger   *zap.Logger
}

// NewValidator creates a validator
func NewValidator(registry *schema.Registry, reader RelationReader, opts ...Option) *Validator {
	o := buildOptions(opts)
	return &Validator{
		registry: registry,
		reader:   reader,
		logger:   o.logger,
	}
}

// Validate checks every checked relation declared by collection against the store.
// Declarations are evaluated in registration order and the first failure is returned.
func (v *Validator) Validate(ctx context.Context, collection string, doc docstore.Document, action Action) error {
	entity, err := v.registry.MustEntity(collection)
	if err != nil {
		return err
	}

	for _, rel := range v.registry.DeclarationsFor(collection) {
		if !rel.CheckRelation {
			continue
		}

		value := doc[rel.SourceKey]
		if docstore.IsEmpty(value) {
			continue
		}

		var err error
		switch rel.Cardinality {
		case schema.CardinalityOne:
			err = v.checkOne(ctx, entity, rel, doc, value, action)
		case schema.CardinalityMany:
			err = v.checkMany(ctx, entity, rel, doc, value, action)
		default:
			err = fmt.Errorf("%w: %s has cardinality %s", schema.ErrInvalidRelation, rel, rel.Cardinality)
		}
		if err != nil {
			v.logger.Debug("relation check rejected write",
				zap.String("collection", collection),
				zap.String("relation", rel.String()),
				zap.Stringer("action", action),
				zap.Error(err),
			)
			return err
		}
	}

	return nil
}

func (v *Validator) checkOne(
	ctx context.Context,
	entity *schema.EntityType,
	rel *schema.Relation,
	doc docstore.Document,
	value interface{},
	action Action,
) error {
	if _, isList := docstore.AsList(value); isList {
		return fmt.Errorf("%w: %s expects a single value, got %T", ErrInvalidReference, rel, value)
	}

	exists, err := v.reader.Exists(ctx, rel.TargetCollection, rel.TargetKey, value)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	relErr := &OneToOneRelationError{
		Action:           action,
		SourceCollection: rel.SourceCollection,
		SourceKey:        rel.SourceKey,
		Value:            value,
		TargetCollection: rel.TargetCollection,
		TargetKey:        rel.TargetKey,
	}
	if action == ActionUpdate {
		relErr.SourceID = doc[entity.IDField]
	}
	return relErr
}

func (v *Validator) checkMany(
	ctx context.Context,
	entity *schema.EntityType,
	rel *schema.Relation,
	doc docstore.Document,
	value interface{},
	action Action,
) error {
	declared := docstore.References(value)
	if len(declared) == 0 {
		return nil
	}

	matched, err := v.reader.FindMatching(ctx, rel.TargetCollection, rel.TargetKey, declared)
	if err != nil {
		return err
	}

	diff := Diff(declared, matched)
	if len(diff) == 0 {
		return nil
	}

	values, _ := docstore.AsList(value)
	if values == nil {
		values = declared
	}
	relErr := &OneToManyRelationError{
		Action:           action,
		SourceCollection: rel.SourceCollection,
		SourceKey:        rel.SourceKey,
		Values:           values,
		Diff:             diff,
		TargetCollection: rel.TargetCollection,
		TargetKey:        rel.TargetKey,
	}
	if action == ActionUpdate {
		relErr.SourceID = doc[entity.IDField]
	}
	return relErr
}

// Diff returns the declared values with no counterpart in found, without duplicates and in
// declaration order
func Diff(declared, found []interface{}) []interface{} {
	present := make(map[string]bool, len(found))
	for _, f := range found {
		if key, ok := docstore.KeyOf(f); ok {
			present[key] = true
		}
	}

	var diff []interface{}
	for _, d := range docstore.Unique(declared) {
		if key, _ := docstore.KeyOf(d); !present[key] {
			diff = append(diff, d)
		}
	}
	return diff
}
