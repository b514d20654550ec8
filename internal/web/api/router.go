// Package api exposes the entity layer over HTTP. Writes go through the relation
// validator and the delete guard; reads can populate relations in one batch.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/orm/crud"
	"github.com/conduit-lang/docref/internal/web/middleware"
)

// NewRouter mounts the entity routes under prefix
func NewRouter(manager *crud.Manager, logger *zap.Logger, prefix string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{manager: manager, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.NewChain(
		middleware.RequestID(),
		middleware.Logging(logger),
		middleware.Recovery(logger),
	).Handlers()...)

	routes := func(r chi.Router) {
		r.Get("/entities", h.ListEntities)
		r.Route("/{collection}", func(r chi.Router) {
			r.Get("/", h.List)
			r.Post("/", h.Create)
			r.Get("/{id}", h.Get)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	}

	if prefix == "" {
		routes(r)
	} else {
		r.Route(prefix, routes)
	}
	return r
}
