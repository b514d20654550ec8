package crud

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/relationships"
)

// Common CRUD error types
var (
	// ErrNotFound is returned when a document is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a document with the same id already exists
	ErrDuplicate = errors.New("duplicate record")

	// ErrImmutableID is returned when an update tries to change the identifier
	ErrImmutableID = errors.New("identifier cannot be changed")

	// ErrHookFailed is returned when a before hook rejects the write
	ErrHookFailed = errors.New("hook failed")
)

// ConvertStoreError converts store-level errors to CRUD errors
func ConvertStoreError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, relationships.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, docstore.ErrDuplicateID):
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	}
	return err
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate returns true if the error is ErrDuplicate
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
