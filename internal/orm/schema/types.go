// Package schema holds the relation metadata for docref entity types.
// Entity types and their relation declarations are registered once, at definition time,
// and then read by the validator, the delete guard and the population engine.
package schema

import (
	"fmt"
)

// DefaultIDField is the identifier field used when an entity type does not name one
const DefaultIDField = "_id"

// Cardinality represents how many targets a relation field references
type Cardinality int

const (
	// CardinalityOne is a scalar reference
	CardinalityOne Cardinality = iota
	// CardinalityMany is a list of references
	CardinalityMany
)

// String returns the string representation of the cardinality
func (c Cardinality) String() string {
	switch c {
	case CardinalityOne:
		return "one"
	case CardinalityMany:
		return "many"
	default:
		return "unknown"
	}
}

// ParseCardinality converts a string to a Cardinality
func ParseCardinality(s string) (Cardinality, error) {
	switch s {
	case "one", "one_to_one", "":
		return CardinalityOne, nil
	case "many", "one_to_many":
		return CardinalityMany, nil
	default:
		return 0, fmt.Errorf("unknown cardinality: %s", s)
	}
}

// Index declares an indexed field on an entity type
type Index struct {
	Field  string
	Unique bool
}

// EntityType is a named document shape stored in one collection
type EntityType struct {
	Collection string
	IDField    string
	Indexes    []Index
}

// NewEntityType creates an entity type using the default identifier field
func NewEntityType(collection string) *EntityType {
	return &EntityType{
		Collection: collection,
		IDField:    DefaultIDField,
	}
}

// IsUnique returns true if field is the identifier or carries a unique index
func (e *EntityType) IsUnique(field string) bool {
	if field == e.IDField {
		return true
	}
	for _, idx := range e.Indexes {
		if idx.Field == field && idx.Unique {
			return true
		}
	}
	return false
}

// HookType represents the type of lifecycle hook
type HookType int

const (
	BeforeCreate HookType = iota
	BeforeUpdate
	BeforeDelete
	AfterCreate
	AfterUpdate
	AfterDelete
)

// String returns the string representation of the hook type
func (h HookType) String() string {
	switch h {
	case BeforeCreate:
		return "before_create"
	case BeforeUpdate:
		return "before_update"
	case BeforeDelete:
		return "before_delete"
	case AfterCreate:
		return "after_create"
	case AfterUpdate:
		return "after_update"
	case AfterDelete:
		return "after_delete"
	default:
		return "unknown"
	}
}

// Relation declares a reference from a field of one entity type to a field of another.
//
// SourceKey holds the reference value (a scalar for CardinalityOne, a list for
// CardinalityMany). TargetKey is the field on the target that the value must match.
// When CheckRelation is false the relation is never validated on write and never blocks
// deletes, but it is still resolved during population.
type Relation struct {
	SourceCollection string
	SourceKey        string
	TargetCollection string
	TargetKey        string
	Cardinality      Cardinality
	CheckRelation    bool
	PopulatedKey     string

	// set while TargetKey is the provisional default waiting for the target to register
	defaultTargetKey bool
}

// IsMany returns true for list references
func (r *Relation) IsMany() bool {
	return r.Cardinality == CardinalityMany
}

// String returns a compact description such as "parents.childId -> children._id (one)"
func (r *Relation) String() string {
	s := fmt.Sprintf("%s.%s -> %s.%s (%s)",
		r.SourceCollection, r.SourceKey, r.TargetCollection, r.TargetKey, r.Cardinality)
	if !r.CheckRelation {
		s += " unchecked"
	}
	return s
}
