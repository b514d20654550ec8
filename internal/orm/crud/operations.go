package crud

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/integrity"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// Validator checks the relations of a document before it is written
type Validator interface {
	Validate(ctx context.Context, collection string, doc docstore.Document, action integrity.Action) error
}

// DeleteGuard checks that no checked reference points at a document before it is deleted
type DeleteGuard interface {
	Check(ctx context.Context, collection string, doc docstore.Document) error
}

// Populator resolves declared relations into populated documents
type Populator interface {
	Populate(ctx context.Context, collection string, id interface{}, includes ...string) (docstore.Document, error)
	PopulateMany(ctx context.Context, collection string, ids []interface{}, includes ...string) ([]docstore.Document, error)
}

// HookExecutor is an interface for executing lifecycle hooks
type HookExecutor interface {
	ExecuteHooks(ctx context.Context, entity *schema.EntityType, hookType schema.HookType, doc docstore.Document) error
}

// Operations provides CRUD operations for one entity type
type Operations struct {
	entity    *schema.EntityType
	store     docstore.Store
	validator Validator
	guard     DeleteGuard
	populator Populator
	hooks     HookExecutor
	logger    *zap.Logger
}

// NewOperations creates a new Operations instance.
// validator, guard, populator and hooks are optional.
func NewOperations(
	entity *schema.EntityType,
	store docstore.Store,
	validator Validator,
	guard DeleteGuard,
	populator Populator,
	hooks HookExecutor,
	logger *zap.Logger,
) *Operations {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Operations{
		entity:    entity,
		store:     store,
		validator: validator,
		guard:     guard,
		populator: populator,
		hooks:     hooks,
		logger:    logger,
	}
}

// Entity returns the entity type
func (o *Operations) Entity() *schema.EntityType {
	return o.entity
}

// Store returns the underlying document store
func (o *Operations) Store() docstore.Store {
	return o.store
}

func (o *Operations) runHooks(ctx context.Context, hookType schema.HookType, doc docstore.Document) error {
	if o.hooks == nil {
		return nil
	}
	if err := o.hooks.ExecuteHooks(ctx, o.entity, hookType, doc); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrHookFailed, hookType, err)
	}
	return nil
}

// runAfterHooks runs hooks once the write is stored; a failure is reported but the
// write stays
func (o *Operations) runAfterHooks(ctx context.Context, hookType schema.HookType, doc docstore.Document) error {
	if err := o.runHooks(ctx, hookType, doc); err != nil {
		o.logger.Error("after hook failed",
			zap.String("collection", o.entity.Collection),
			zap.Stringer("hook", hookType),
			zap.Error(err),
		)
		return err
	}
	return nil
}
