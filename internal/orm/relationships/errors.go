package relationships

import "errors"

var (
	// ErrUnknownRelation is returned when an include names no declared relation
	ErrUnknownRelation = errors.New("unknown relation")

	// ErrNotFound is returned when the entity to populate does not exist
	ErrNotFound = errors.New("entity not found")
)
