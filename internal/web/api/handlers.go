package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/orm/crud"
	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/web/middleware"
	"github.com/conduit-lang/docref/internal/web/response"
)

// maxBodyBytes caps request documents
const maxBodyBytes = 1 << 20

// Handler serves the entity routes
type Handler struct {
	manager *crud.Manager
	logger  *zap.Logger
}

// EntitySummary describes one registered entity type
type EntitySummary struct {
	Collection string            `json:"collection"`
	IDField    string            `json:"id_field"`
	Unique     []string          `json:"unique,omitempty"`
	Relations  []RelationSummary `json:"relations,omitempty"`
}

// RelationSummary describes one relation declaration
type RelationSummary struct {
	SourceKey    string `json:"source_key"`
	Target       string `json:"target"`
	TargetKey    string `json:"target_key"`
	Cardinality  string `json:"cardinality"`
	Check        bool   `json:"check"`
	PopulatedKey string `json:"populated_key"`
}

// ListEntities returns the registered entity types and their relations
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	registry := h.manager.Registry()

	summaries := make([]EntitySummary, 0)
	for _, entity := range registry.Entities() {
		summary := EntitySummary{Collection: entity.Collection, IDField: entity.IDField}
		for _, index := range entity.Indexes {
			if index.Unique {
				summary.Unique = append(summary.Unique, index.Field)
			}
		}
		for _, rel := range registry.DeclarationsFor(entity.Collection) {
			summary.Relations = append(summary.Relations, RelationSummary{
				SourceKey:    rel.SourceKey,
				Target:       rel.TargetCollection,
				TargetKey:    rel.TargetKey,
				Cardinality:  rel.Cardinality.String(),
				Check:        rel.CheckRelation,
				PopulatedKey: rel.PopulatedKey,
			})
		}
		summaries = append(summaries, summary)
	}

	response.JSON(w, http.StatusOK, summaries)
}

// Get returns one document, populated when ?populate=true or ?include= is given
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	populate, includes, err := populateParams(r)
	if err != nil {
		response.RenderErrorWithStatus(w, http.StatusBadRequest, err)
		return
	}

	id, err := h.manager.ResolveID(r.Context(), collection, chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	var doc docstore.Document
	if populate {
		doc, err = h.manager.FindPopulated(r.Context(), collection, id, includes...)
	} else {
		doc, err = h.manager.FindByID(r.Context(), collection, id)
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, doc)
}

// List returns the documents named by repeated ?id= parameters in request order, or
// every document of the collection up to ?limit= when no id is given
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	query := r.URL.Query()

	populate, includes, err := populateParams(r)
	if err != nil {
		response.RenderErrorWithStatus(w, http.StatusBadRequest, err)
		return
	}

	var opts []docstore.FindOption
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			response.RenderErrorWithStatus(w, http.StatusBadRequest, fmt.Errorf("invalid limit: %q", raw))
			return
		}
		opts = append(opts, docstore.Limit(limit))
	}

	var docs []docstore.Document
	if ids := query["id"]; len(ids) > 0 {
		docs, err = h.findByIDs(r, collection, ids, populate, includes)
	} else {
		docs, err = h.findAll(r, collection, populate, includes, opts)
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, docs)
}

func (h *Handler) findByIDs(r *http.Request, collection string, raw []string, populate bool, includes []string) ([]docstore.Document, error) {
	ids, err := h.manager.ResolveIDs(r.Context(), collection, raw)
	if err != nil {
		return nil, err
	}

	if populate {
		return h.manager.FindManyPopulated(r.Context(), collection, ids, includes...)
	}

	ops, err := h.manager.For(collection)
	if err != nil {
		return nil, err
	}
	found, err := ops.Find(r.Context(), docstore.Where(docstore.In(ops.Entity().IDField, ids)))
	if err != nil {
		return nil, err
	}

	byID := make(map[string]docstore.Document, len(found))
	for _, doc := range found {
		if key, ok := docstore.KeyOf(doc[ops.Entity().IDField]); ok {
			byID[key] = doc
		}
	}
	docs := make([]docstore.Document, 0, len(found))
	for _, id := range docstore.Unique(ids) {
		key, _ := docstore.KeyOf(id)
		if doc, ok := byID[key]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (h *Handler) findAll(r *http.Request, collection string, populate bool, includes []string, opts []docstore.FindOption) ([]docstore.Document, error) {
	ops, err := h.manager.For(collection)
	if err != nil {
		return nil, err
	}
	docs, err := ops.Find(r.Context(), nil, opts...)
	if err != nil {
		return nil, err
	}
	if !populate || len(docs) == 0 {
		return docs, nil
	}
	return h.manager.Loader().PopulateDocuments(r.Context(), collection, docs, includes...)
}

// Create stores the request document and returns it with its id
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeDocument(w, r)
	if err != nil {
		response.RenderErrorWithStatus(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.manager.Create(r.Context(), chi.URLParam(r, "collection"), doc)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, created)
}

// Update merges the request document into the stored one. A null field removes it.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	changes, err := decodeDocument(w, r)
	if err != nil {
		response.RenderErrorWithStatus(w, http.StatusBadRequest, err)
		return
	}

	collection := chi.URLParam(r, "collection")
	id, err := h.manager.ResolveID(r.Context(), collection, chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	updated, err := h.manager.Update(r.Context(), collection, id, changes)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, updated)
}

// Delete removes a document unless a checked relation still references it
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id, err := h.manager.ResolveID(r.Context(), collection, chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	if err := h.manager.Delete(r.Context(), collection, id); err != nil {
		h.renderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := response.Classify(err); status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	response.RenderError(w, err)
}

func populateParams(r *http.Request) (bool, []string, error) {
	query := r.URL.Query()

	var includes []string
	for _, value := range query["include"] {
		for _, key := range strings.Split(value, ",") {
			if key = strings.TrimSpace(key); key != "" {
				includes = append(includes, key)
			}
		}
	}

	populate := len(includes) > 0
	if raw := query.Get("populate"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return false, nil, fmt.Errorf("invalid populate value: %q", raw)
		}
		populate = populate || parsed
	}
	return populate, includes, nil
}

func decodeDocument(w http.ResponseWriter, r *http.Request) (docstore.Document, error) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return nil, fmt.Errorf("unsupported content type: %s", ct)
	}

	doc, err := docstore.DecodeDocument(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if doc == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	return doc, nil
}
