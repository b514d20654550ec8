package crud

import (
	"context"

	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/integrity"
	"github.com/conduit-lang/docref/internal/orm/relationships"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// Manager wires the relation engine to a store and hands out Operations per collection
type Manager struct {
	registry  *schema.Registry
	store     docstore.Store
	validator *integrity.Validator
	guard     *integrity.Guard
	loader    *relationships.Loader
	auditor   *integrity.Auditor
	hooks     HookExecutor
	logger    *zap.Logger
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithHooks sets the hook executor used for every collection
func WithHooks(hooks HookExecutor) ManagerOption {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// WithLogger sets the logger shared by the manager and the relation engine
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a manager over a frozen registry
func NewManager(registry *schema.Registry, store docstore.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry: registry,
		store:    store,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	relations := docstore.NewRelations(store)
	m.validator = integrity.NewValidator(registry, relations, integrity.WithLogger(m.logger))
	m.guard = integrity.NewGuard(registry, relations, integrity.WithLogger(m.logger))
	m.auditor = integrity.NewAuditor(registry, store, relations, integrity.WithLogger(m.logger))
	m.loader = relationships.NewLoader(registry, relations, relationships.WithLogger(m.logger))
	return m
}

// Registry returns the metadata registry
func (m *Manager) Registry() *schema.Registry {
	return m.registry
}

// Store returns the document store
func (m *Manager) Store() docstore.Store {
	return m.store
}

// Loader returns the population engine
func (m *Manager) Loader() *relationships.Loader {
	return m.loader
}

// Guard returns the delete guard
func (m *Manager) Guard() *integrity.Guard {
	return m.guard
}

// For returns the operations of a registered collection
func (m *Manager) For(collection string) (*Operations, error) {
	entity, err := m.registry.MustEntity(collection)
	if err != nil {
		return nil, err
	}
	return NewOperations(
		entity,
		m.store,
		m.validator,
		m.guard,
		m.loader,
		m.hooks,
		m.logger.With(zap.String("collection", collection)),
	), nil
}

// Create stores a new document in collection
func (m *Manager) Create(ctx context.Context, collection string, doc docstore.Document) (docstore.Document, error) {
	ops, err := m.For(collection)
	if err != nil {
		return nil, err
	}
	return ops.Create(ctx, doc)
}

// Update merges changes into a stored document
func (m *Manager) Update(ctx context.Context, collection string, id interface{}, changes docstore.Document) (docstore.Document, error) {
	ops, err := m.For(collection)
	if err != nil {
		return nil, err
	}
	return ops.Update(ctx, id, changes)
}

// Delete removes a stored document
func (m *Manager) Delete(ctx context.Context, collection string, id interface{}) error {
	ops, err := m.For(collection)
	if err != nil {
		return err
	}
	return ops.Delete(ctx, id)
}

// FindByID retrieves a stored document
func (m *Manager) FindByID(ctx context.Context, collection string, id interface{}) (docstore.Document, error) {
	ops, err := m.For(collection)
	if err != nil {
		return nil, err
	}
	return ops.FindByID(ctx, id)
}

// FindPopulated retrieves a document with its relations resolved
func (m *Manager) FindPopulated(ctx context.Context, collection string, id interface{}, includes ...string) (docstore.Document, error) {
	ops, err := m.For(collection)
	if err != nil {
		return nil, err
	}
	return ops.FindPopulated(ctx, id, includes...)
}

// FindManyPopulated retrieves a batch of documents with their relations resolved
func (m *Manager) FindManyPopulated(ctx context.Context, collection string, ids []interface{}, includes ...string) ([]docstore.Document, error) {
	ops, err := m.For(collection)
	if err != nil {
		return nil, err
	}
	return ops.FindManyPopulated(ctx, ids, includes...)
}

// ResolveID maps a textual id to the id a document of collection is stored under
func (m *Manager) ResolveID(ctx context.Context, collection, raw string) (interface{}, error) {
	ops, err := m.For(collection)
	if err != nil {
		return nil, err
	}
	return ops.ResolveID(ctx, raw)
}

// ResolveIDs maps textual ids to stored ids with one query
func (m *Manager) ResolveIDs(ctx context.Context, collection string, raw []string) ([]interface{}, error) {
	ops, err := m.For(collection)
	if err != nil {
		return nil, err
	}
	return ops.ResolveIDs(ctx, raw)
}

// Audit scans the store for dangling references
func (m *Manager) Audit(ctx context.Context, includeUnchecked bool) (*integrity.AuditReport, error) {
	return m.auditor.Audit(ctx, includeUnchecked)
}
