package docstore

import "errors"

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("document not found")

	// ErrDuplicateID is returned when inserting an id that already exists
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrInvalidID is returned when an id is empty or not comparable
	ErrInvalidID = errors.New("invalid document id")

	// ErrUnsupportedOp is returned when a store cannot evaluate a filter operator
	ErrUnsupportedOp = errors.New("unsupported filter operator")
)

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
