package hooks

import (
	"sync"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// AnyCollection registers a hook for every collection
const AnyCollection = "*"

// HookFunc represents a hook function that can be executed
// It receives the hook context and the document being written
type HookFunc func(ctx *Context, doc docstore.Document) error

// Hook represents a registered lifecycle hook
type Hook struct {
	Name       string
	Collection string
	Type       schema.HookType
	Fn         HookFunc
	Async      bool // Execute on the async queue after the write
}

type hookKey struct {
	collection string
	hookType   schema.HookType
}

// Registry manages the hooks registered per collection and hook type
type Registry struct {
	hooks map[hookKey][]*Hook
	mu    sync.RWMutex
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{
		hooks: make(map[hookKey][]*Hook),
	}
}

// Register adds a hook for a collection, or for every collection with AnyCollection
func (r *Registry) Register(collection string, hookType schema.HookType, hook *Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()

	hook.Collection = collection
	hook.Type = hookType
	key := hookKey{collection: collection, hookType: hookType}
	r.hooks[key] = append(r.hooks[key], hook)
}

// GetHooks returns the hooks that apply to a collection: wildcard hooks first, then
// the collection's own, each in registration order
func (r *Registry) GetHooks(collection string, hookType schema.HookType) []*Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Hook
	result = append(result, r.hooks[hookKey{collection: AnyCollection, hookType: hookType}]...)
	if collection != AnyCollection {
		result = append(result, r.hooks[hookKey{collection: collection, hookType: hookType}]...)
	}
	return result
}

// HasHooks returns true if any hook applies to the collection and type
func (r *Registry) HasHooks(collection string, hookType schema.HookType) bool {
	return len(r.GetHooks(collection, hookType)) > 0
}
