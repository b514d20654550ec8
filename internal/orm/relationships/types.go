// Package relationships resolves declared relations into populated documents
package relationships

import (
	"context"

	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// Joiner executes join pipelines against the store
type Joiner interface {
	Aggregate(ctx context.Context, collection string, p docstore.Pipeline) ([]docstore.Document, error)
}

// Loader is the population engine: it resolves every relation declared by an entity type
// into the referenced documents, attached under each relation's populated key
type Loader struct {
	registry *schema.Registry
	joiner   Joiner
	logger   *zap.Logger
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithLogger sets the loader's logger
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a population engine
func NewLoader(registry *schema.Registry, joiner Joiner, opts ...LoaderOption) *Loader {
	l := &Loader{
		registry: registry,
		joiner:   joiner,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}
