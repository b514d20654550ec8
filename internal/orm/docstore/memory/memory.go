// Package memory provides an in-process document store
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/conduit-lang/docref/internal/orm/docstore"
)

type collection struct {
	order []string
	docs  map[string]docstore.Document
}

// Store keeps documents in memory, in insertion order per collection
type Store struct {
	collections map[string]*collection
	queries     int
	mu          sync.RWMutex
}

// New creates an empty store
func New() *Store {
	return &Store{
		collections: make(map[string]*collection),
	}
}

func (s *Store) collection(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]docstore.Document)}
		s.collections[name] = c
	}
	return c
}

// Find returns copies of the documents matching filter
func (s *Store) Find(
	ctx context.Context,
	name string,
	filter docstore.Filter,
	opts ...docstore.FindOption,
) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.queries++
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return []docstore.Document{}, nil
	}

	all := make([]docstore.Document, 0, len(c.order))
	for _, id := range c.order {
		all = append(all, c.docs[id])
	}

	matched, err := docstore.FilterDocuments(all, filter, docstore.ApplyFindOptions(opts))
	if err != nil {
		return nil, err
	}

	result := make([]docstore.Document, len(matched))
	for i, doc := range matched {
		result[i] = doc.Clone()
	}
	return result, nil
}

// FindByID returns a copy of the document stored under id
func (s *Store) FindByID(ctx context.Context, name string, id interface{}) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := docstore.IDString(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.queries++
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	doc, ok := c.docs[key]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return doc.Clone(), nil
}

// Insert stores a new document under id
func (s *Store) Insert(ctx context.Context, name string, id interface{}, doc docstore.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := docstore.IDString(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(name)
	if _, exists := c.docs[key]; exists {
		return fmt.Errorf("%w: %s/%s", docstore.ErrDuplicateID, name, key)
	}
	c.docs[key] = doc.Clone()
	c.order = append(c.order, key)
	return nil
}

// Replace overwrites the document stored under id
func (s *Store) Replace(ctx context.Context, name string, id interface{}, doc docstore.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := docstore.IDString(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return docstore.ErrNotFound
	}
	if _, exists := c.docs[key]; !exists {
		return docstore.ErrNotFound
	}
	c.docs[key] = doc.Clone()
	return nil
}

// Delete removes the document stored under id
func (s *Store) Delete(ctx context.Context, name string, id interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := docstore.IDString(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return docstore.ErrNotFound
	}
	if _, exists := c.docs[key]; !exists {
		return docstore.ErrNotFound
	}
	delete(c.docs, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

// Count returns the number of documents in a collection
func (s *Store) Count(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return 0
	}
	return len(c.order)
}

// Queries returns the number of read round trips served so far
func (s *Store) Queries() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries
}

// Load seeds the store from a JSON object mapping collection names to document arrays.
// idFields names the identifier field per collection; "_id" is used otherwise.
func (s *Store) Load(r io.Reader, idFields map[string]string) error {
	var seed map[string][]docstore.Document
	if err := docstore.NewNumberDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("failed to decode seed data: %w", err)
	}

	ctx := context.Background()
	for name, docs := range seed {
		idField := idFields[name]
		if idField == "" {
			idField = "_id"
		}
		for i, doc := range docs {
			doc = docstore.NormalizeNumbers(doc)
			id, ok := doc[idField]
			if !ok {
				return fmt.Errorf("%w: %s[%d] has no %s", docstore.ErrInvalidID, name, i, idField)
			}
			if err := s.Insert(ctx, name, id, doc); err != nil {
				return err
			}
		}
	}
	return nil
}
