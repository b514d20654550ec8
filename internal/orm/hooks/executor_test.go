package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

func TestExecutor_SyncHooksRunInOrder(t *testing.T) {
	executor := NewExecutor(nil, nil)
	parents := schema.NewEntityType("parents")

	var order []string
	executor.Register("parents", schema.BeforeCreate, &Hook{
		Name: "slug",
		Fn: func(ctx *Context, doc docstore.Document) error {
			order = append(order, "parents")
			assert.Equal(t, "parents", ctx.Collection())
			assert.Equal(t, schema.BeforeCreate, ctx.HookType())
			doc["slug"] = "generated"
			return nil
		},
	})
	executor.Register(AnyCollection, schema.BeforeCreate, &Hook{
		Name: "audit",
		Fn: func(ctx *Context, doc docstore.Document) error {
			order = append(order, "any")
			return nil
		},
	})
	executor.Register("children", schema.BeforeCreate, &Hook{
		Name: "other",
		Fn: func(ctx *Context, doc docstore.Document) error {
			order = append(order, "children")
			return nil
		},
	})

	doc := docstore.Document{"_id": "p1"}
	require.NoError(t, executor.ExecuteHooks(context.Background(), parents, schema.BeforeCreate, doc))

	assert.Equal(t, []string{"any", "parents"}, order)
	assert.Equal(t, "generated", doc["slug"])
	assert.True(t, executor.HasHooks("children", schema.BeforeCreate))
	assert.False(t, executor.HasHooks("children", schema.AfterDelete))
}

func TestExecutor_SyncHookErrorStopsExecution(t *testing.T) {
	executor := NewExecutor(nil, nil)
	parents := schema.NewEntityType("parents")
	boom := errors.New("rejected")

	ran := false
	executor.Register("parents", schema.BeforeDelete, &Hook{
		Fn: func(ctx *Context, doc docstore.Document) error { return boom },
	})
	executor.Register("parents", schema.BeforeDelete, &Hook{
		Fn: func(ctx *Context, doc docstore.Document) error {
			ran = true
			return nil
		},
	})

	err := executor.ExecuteHooks(context.Background(), parents, schema.BeforeDelete, docstore.Document{})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "before_delete")
	assert.False(t, ran)
}

func TestExecutor_AsyncHooksGetACopy(t *testing.T) {
	queue := NewAsyncQueue(1, nil)
	queue.Start()

	executor := NewExecutor(queue, nil)
	parents := schema.NewEntityType("parents")

	received := make(chan docstore.Document, 1)
	executor.Register("parents", schema.AfterCreate, &Hook{
		Name:  "notify",
		Async: true,
		Fn: func(ctx *Context, doc docstore.Document) error {
			received <- doc
			return nil
		},
	})

	doc := docstore.Document{"_id": "p1", "childIds": []interface{}{"c1"}}
	require.NoError(t, executor.ExecuteHooks(context.Background(), parents, schema.AfterCreate, doc))
	doc["childIds"].([]interface{})[0] = "changed"

	queue.Shutdown()
	got := <-received
	assert.Equal(t, []interface{}{"c1"}, got["childIds"])
}

func TestExecutor_AsyncHookWithoutQueueDoesNotFail(t *testing.T) {
	executor := NewExecutor(nil, nil)
	executor.Register(AnyCollection, schema.AfterDelete, &Hook{
		Async: true,
		Fn:    func(ctx *Context, doc docstore.Document) error { return nil },
	})

	err := executor.ExecuteHooks(context.Background(), schema.NewEntityType("children"), schema.AfterDelete, docstore.Document{})
	assert.NoError(t, err)
}
