package schema

import (
	"errors"
	"fmt"
)

// RelationOption customizes a relation declared through the Builder
type RelationOption func(*Relation)

// As sets the populated key
func As(populatedKey string) RelationOption {
	return func(r *Relation) {
		r.PopulatedKey = populatedKey
	}
}

// TargetKey matches the reference against a field other than the target's id
func TargetKey(key string) RelationOption {
	return func(r *Relation) {
		r.TargetKey = key
	}
}

// Unchecked marks the relation as informational: it is not validated on write and does
// not block deletes, but it is still populated
func Unchecked() RelationOption {
	return func(r *Relation) {
		r.CheckRelation = false
	}
}

// Builder declares an entity type and its relations fluently.
//
//	schema.Define("parents").
//		One("childId", "children").
//		Many("childIds", "children", schema.As("kids")).
//		MustInto(registry)
type Builder struct {
	entity    *EntityType
	relations []Relation
	errors    []error
}

// Define starts the declaration of an entity type
func Define(collection string) *Builder {
	return &Builder{entity: NewEntityType(collection)}
}

// ID sets the identifier field
func (b *Builder) ID(field string) *Builder {
	b.entity.IDField = field
	return b
}

// Unique declares a unique index
func (b *Builder) Unique(fields ...string) *Builder {
	for _, field := range fields {
		b.entity.Indexes = append(b.entity.Indexes, Index{Field: field, Unique: true})
	}
	return b
}

// Index declares a non-unique index
func (b *Builder) Index(fields ...string) *Builder {
	for _, field := range fields {
		b.entity.Indexes = append(b.entity.Indexes, Index{Field: field})
	}
	return b
}

// One declares a checked scalar reference from sourceKey to target
func (b *Builder) One(sourceKey, target string, opts ...RelationOption) *Builder {
	return b.relation(sourceKey, target, CardinalityOne, opts)
}

// Many declares a checked list reference from sourceKey to target
func (b *Builder) Many(sourceKey, target string, opts ...RelationOption) *Builder {
	return b.relation(sourceKey, target, CardinalityMany, opts)
}

func (b *Builder) relation(sourceKey, target string, cardinality Cardinality, opts []RelationOption) *Builder {
	if sourceKey == "" || target == "" {
		b.errors = append(b.errors, fmt.Errorf("%w: %s: source key and target are required",
			ErrInvalidRelation, b.entity.Collection))
		return b
	}

	rel := Relation{
		SourceCollection: b.entity.Collection,
		SourceKey:        sourceKey,
		TargetCollection: target,
		Cardinality:      cardinality,
		CheckRelation:    true,
	}
	for _, opt := range opts {
		opt(&rel)
	}
	b.relations = append(b.relations, rel)
	return b
}

// Entity returns the entity type being built
func (b *Builder) Entity() *EntityType {
	return b.entity
}

// Into registers the entity type and its relations
func (b *Builder) Into(registry *Registry) error {
	if len(b.errors) > 0 {
		return errors.Join(b.errors...)
	}

	if err := registry.RegisterEntity(b.entity); err != nil {
		return err
	}
	for _, rel := range b.relations {
		if err := registry.Register(b.entity.Collection, rel); err != nil {
			return err
		}
	}
	return nil
}

// MustInto registers into registry and panics on error. Intended for init-time declarations.
func (b *Builder) MustInto(registry *Registry) {
	if err := b.Into(registry); err != nil {
		panic(err)
	}
}

// Register registers the entity type into the process-wide registry
func (b *Builder) Register() error {
	return b.Into(defaultRegistry)
}
