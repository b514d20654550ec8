package schema

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnknownEntity is returned when a collection has not been registered
	ErrUnknownEntity = errors.New("unknown entity type")

	// ErrDuplicateEntity is returned when a collection is registered twice
	ErrDuplicateEntity = errors.New("entity type already registered")

	// ErrRegistryFrozen is returned when registering after Freeze
	ErrRegistryFrozen = errors.New("registry is frozen")

	// ErrInvalidRelation is returned when a relation declaration is malformed
	ErrInvalidRelation = errors.New("invalid relation")
)

// Registry is the process-wide table of entity types and relation declarations.
//
// Declarations are append-only. Registration is expected to complete during program
// initialization; lookups after that are read-only.
type Registry struct {
	entities  map[string]*EntityType
	order     []string
	bySource  map[string][]*Relation
	relations []*Relation
	frozen    bool
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]*EntityType),
		bySource: make(map[string][]*Relation),
	}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry
func Default() *Registry {
	return defaultRegistry
}

// RegisterEntity registers an entity type under its collection name
func (r *Registry) RegisterEntity(entity *EntityType) error {
	if entity == nil || entity.Collection == "" {
		return fmt.Errorf("%w: entity type needs a collection name", ErrInvalidRelation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}
	if _, exists := r.entities[entity.Collection]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, entity.Collection)
	}
	if entity.IDField == "" {
		entity.IDField = DefaultIDField
	}

	r.entities[entity.Collection] = entity
	r.order = append(r.order, entity.Collection)

	// Relations declared before their target existed picked up the provisional id field
	for _, rel := range r.relations {
		if rel.TargetCollection == entity.Collection && rel.defaultTargetKey {
			rel.TargetKey = entity.IDField
			rel.defaultTargetKey = false
		}
	}

	return nil
}

// Register appends a relation declaration owned by collection
func (r *Registry) Register(collection string, rel Relation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}
	if _, ok := r.entities[collection]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, collection)
	}
	if rel.SourceCollection != "" && rel.SourceCollection != collection {
		return fmt.Errorf("%w: relation on %s declared with source %s",
			ErrInvalidRelation, collection, rel.SourceCollection)
	}
	if rel.SourceKey == "" {
		return fmt.Errorf("%w: %s: source key is required", ErrInvalidRelation, collection)
	}
	if rel.TargetCollection == "" {
		return fmt.Errorf("%w: %s.%s: target collection is required", ErrInvalidRelation, collection, rel.SourceKey)
	}

	decl := rel
	decl.SourceCollection = collection
	if decl.TargetKey == "" {
		if target, ok := r.entities[decl.TargetCollection]; ok {
			decl.TargetKey = target.IDField
		} else {
			decl.TargetKey = DefaultIDField
			decl.defaultTargetKey = true
		}
	}
	if decl.PopulatedKey == "" {
		decl.PopulatedKey = DefaultPopulatedKey(decl.SourceKey, decl.Cardinality)
	}

	r.relations = append(r.relations, &decl)
	r.bySource[collection] = append(r.bySource[collection], &decl)
	return nil
}

// DeclarationsFor returns copies of the relations owned by collection in registration order
func (r *Registry) DeclarationsFor(collection string) []*Relation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return cloneRelations(r.bySource[collection])
}

// DeclarationsTargeting returns every relation, across every entity type, whose target is
// collection. The result is computed by scanning all declarations so relations registered
// after an earlier call are always included. Like DeclarationsFor it returns copies.
func (r *Registry) DeclarationsTargeting(collection string) []*Relation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Relation
	for _, rel := range r.relations {
		if rel.TargetCollection == collection {
			c := *rel
			result = append(result, &c)
		}
	}
	return result
}

// Entity retrieves an entity type by collection name
func (r *Registry) Entity(collection string) (*EntityType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entity, ok := r.entities[collection]
	return entity, ok
}

// MustEntity retrieves an entity type or returns ErrUnknownEntity
func (r *Registry) MustEntity(collection string) (*EntityType, error) {
	entity, ok := r.Entity(collection)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, collection)
	}
	return entity, nil
}

// Entities returns all entity types in registration order
func (r *Registry) Entities() []*EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*EntityType, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.entities[name])
	}
	return result
}

// Collections returns all collection names in registration order
func (r *Registry) Collections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.order))
	copy(result, r.order)
	return result
}

// Relations returns every declaration in registration order
func (r *Registry) Relations() []*Relation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return cloneRelations(r.relations)
}

// cloneRelations copies declarations so callers cannot change the registered ones
func cloneRelations(rels []*Relation) []*Relation {
	result := make([]*Relation, len(rels))
	for i, rel := range rels {
		c := *rel
		result[i] = &c
	}
	return result
}

// Count returns the number of registered entity types
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entities)
}

// Frozen reports whether Freeze has been called
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.frozen
}

// Validate checks every declaration against the registered entity types
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, rel := range r.relations {
		target, ok := r.entities[rel.TargetCollection]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s: target %s is not registered",
				ErrUnknownEntity, rel, rel.TargetCollection))
			continue
		}
		if !target.IsUnique(rel.TargetKey) {
			errs = append(errs, fmt.Errorf("%w: %s: target key %s is neither the id nor a unique index",
				ErrInvalidRelation, rel, rel.TargetKey))
		}
		if rel.PopulatedKey == rel.SourceKey {
			errs = append(errs, fmt.Errorf("%w: %s: populated key overwrites the source key",
				ErrInvalidRelation, rel))
		}
	}

	return errors.Join(errs...)
}

// Freeze validates the registry and rejects any later registration
func (r *Registry) Freeze() error {
	if err := r.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
	return nil
}

// RegistryStats summarizes the registry
type RegistryStats struct {
	TotalEntities      int
	TotalRelations     int
	CheckedRelations   int
	UncheckedRelations int
	ManyRelations      int
}

// GetStats returns statistics about the registry
func (r *Registry) GetStats() *RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &RegistryStats{
		TotalEntities:  len(r.entities),
		TotalRelations: len(r.relations),
	}
	for _, rel := range r.relations {
		if rel.CheckRelation {
			stats.CheckedRelations++
		} else {
			stats.UncheckedRelations++
		}
		if rel.IsMany() {
			stats.ManyRelations++
		}
	}
	return stats
}
