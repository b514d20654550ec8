package hooks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// Executor executes lifecycle hooks for entity types
type Executor struct {
	registry   *Registry
	asyncQueue *AsyncQueue
	logger     *zap.Logger
}

// NewExecutor creates a new hook executor
func NewExecutor(asyncQueue *AsyncQueue, logger *zap.Logger) *Executor {
	return NewExecutorWithRegistry(NewRegistry(), asyncQueue, logger)
}

// NewExecutorWithRegistry creates a new hook executor with an existing registry
func NewExecutorWithRegistry(registry *Registry, asyncQueue *AsyncQueue, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		registry:   registry,
		asyncQueue: asyncQueue,
		logger:     logger,
	}
}

// Register registers a hook
func (e *Executor) Register(collection string, hookType schema.HookType, hook *Hook) {
	e.registry.Register(collection, hookType, hook)
}

// ExecuteHooks executes all hooks for a given type.
// This method implements the HookExecutor interface expected by CRUD operations.
func (e *Executor) ExecuteHooks(
	ctx context.Context,
	entity *schema.EntityType,
	hookType schema.HookType,
	doc docstore.Document,
) error {
	hooks := e.registry.GetHooks(entity.Collection, hookType)
	if len(hooks) == 0 {
		return nil
	}

	hookCtx := NewContext(ctx, entity, hookType)

	for _, hook := range hooks {
		if hook.Async {
			// Async hooks never fail the write
			if err := e.enqueueAsyncHook(hookCtx, hook, doc); err != nil {
				e.logger.Warn("failed to enqueue async hook",
					zap.String("collection", entity.Collection),
					zap.Stringer("hook", hookType),
					zap.String("name", hook.Name),
					zap.Error(err),
				)
			}
			continue
		}

		if err := hook.Fn(hookCtx, doc); err != nil {
			return fmt.Errorf("hook %s failed: %w", hookType.String(), err)
		}
	}

	return nil
}

// enqueueAsyncHook queues an async hook for later execution
func (e *Executor) enqueueAsyncHook(hookCtx *Context, hook *Hook, doc docstore.Document) error {
	if e.asyncQueue == nil {
		return errors.New("async queue not configured")
	}
	return e.asyncQueue.Enqueue(hookCtx.Entity(), hookCtx.HookType(), hook, doc)
}

// HasHooks returns true if any hook applies to the collection and type
func (e *Executor) HasHooks(collection string, hookType schema.HookType) bool {
	return e.registry.HasHooks(collection, hookType)
}

// GetRegistry returns the hook registry
func (e *Executor) GetRegistry() *Registry {
	return e.registry
}
