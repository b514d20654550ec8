package integrity

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/docref/internal/orm/schema"
)

var (
	// ErrRelationViolation matches every write rejected because a relation target is missing
	ErrRelationViolation = errors.New("relation target missing")

	// ErrDeleteBlocked matches every delete rejected because a parent still references the document
	ErrDeleteBlocked = errors.New("delete blocked by referencing document")

	// ErrInvalidReference is returned when a reference value has the wrong shape for its cardinality
	ErrInvalidReference = errors.New("invalid reference value")
)

// Action is the write being validated
type Action int

const (
	// ActionCreate validates an insert
	ActionCreate Action = iota
	// ActionUpdate validates an update of an existing document
	ActionUpdate
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// OneToOneRelationError is returned when a scalar reference points at no document
type OneToOneRelationError struct {
	Action           Action
	SourceCollection string
	SourceID         interface{}
	SourceKey        string
	Value            interface{}
	TargetCollection string
	TargetKey        string
}

// Error implements the error interface
func (e *OneToOneRelationError) Error() string {
	if e.Action == ActionUpdate {
		return fmt.Sprintf("cannot update %s %v: %s references %s with %s %v, which does not exist",
			e.SourceCollection, e.SourceID, e.SourceKey, e.TargetCollection, e.TargetKey, e.Value)
	}
	return fmt.Sprintf("cannot create %s: %s references %s with %s %v, which does not exist",
		e.SourceCollection, e.SourceKey, e.TargetCollection, e.TargetKey, e.Value)
}

// Is matches ErrRelationViolation
func (e *OneToOneRelationError) Is(target error) bool {
	return target == ErrRelationViolation
}

// OneToManyRelationError is returned when some values of a list reference point at no document
type OneToManyRelationError struct {
	Action           Action
	SourceCollection string
	SourceID         interface{}
	SourceKey        string
	Values           []interface{}
	Diff             []interface{}
	TargetCollection string
	TargetKey        string
}

// Error implements the error interface
func (e *OneToManyRelationError) Error() string {
	if e.Action == ActionUpdate {
		return fmt.Sprintf("cannot update %s %v: %s references %s by %s %v, missing %v",
			e.SourceCollection, e.SourceID, e.SourceKey, e.TargetCollection, e.TargetKey, e.Values, e.Diff)
	}
	return fmt.Sprintf("cannot create %s: %s references %s by %s %v, missing %v",
		e.SourceCollection, e.SourceKey, e.TargetCollection, e.TargetKey, e.Values, e.Diff)
}

// Is matches ErrRelationViolation
func (e *OneToManyRelationError) Is(target error) bool {
	return target == ErrRelationViolation
}

// DeleteBlockedError is returned when a document is still referenced by a checked relation.
// The child is the document being deleted, the parent the document referencing it.
type DeleteBlockedError struct {
	Cardinality      schema.Cardinality
	ChildCollection  string
	ChildID          interface{}
	ChildKey         string
	ChildValue       interface{}
	ParentCollection string
	ParentID         interface{}
	ParentKey        string
	ParentValue      interface{}
}

// Error implements the error interface
func (e *DeleteBlockedError) Error() string {
	return fmt.Sprintf("cannot delete %s %v: %s %v references it through %s (%v matches %s %v)",
		e.ChildCollection, e.ChildID, e.ParentCollection, e.ParentID, e.ParentKey,
		e.ParentValue, e.ChildKey, e.ChildValue)
}

// Is matches ErrDeleteBlocked
func (e *DeleteBlockedError) Is(target error) bool {
	return target == ErrDeleteBlocked
}

// IsRelationViolation returns true if err rejects a write for a missing relation target
func IsRelationViolation(err error) bool {
	return errors.Is(err, ErrRelationViolation)
}

// IsDeleteBlocked returns true if err rejects a delete for a live reference
func IsDeleteBlocked(err error) bool {
	return errors.Is(err, ErrDeleteBlocked)
}
