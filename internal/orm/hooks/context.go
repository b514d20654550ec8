package hooks

import (
	"context"

	"github.com/conduit-lang/docref/internal/orm/schema"
)

// Context wraps the standard context with the entity being written
type Context struct {
	context.Context
	entity   *schema.EntityType
	hookType schema.HookType
}

// NewContext creates a new hook context
func NewContext(ctx context.Context, entity *schema.EntityType, hookType schema.HookType) *Context {
	return &Context{
		Context:  ctx,
		entity:   entity,
		hookType: hookType,
	}
}

// Entity returns the entity type of the document
func (c *Context) Entity() *schema.EntityType {
	return c.entity
}

// Collection returns the collection being written
func (c *Context) Collection() string {
	if c.entity == nil {
		return ""
	}
	return c.entity.Collection
}

// HookType returns the lifecycle point being executed
func (c *Context) HookType() schema.HookType {
	return c.hookType
}
