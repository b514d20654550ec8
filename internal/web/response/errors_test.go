package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docref/internal/orm/crud"
	"github.com/conduit-lang/docref/internal/orm/integrity"
	"github.com/conduit-lang/docref/internal/orm/relationships"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"one relation", &integrity.OneToOneRelationError{}, http.StatusUnprocessableEntity, "relation_violation"},
		{"many relation", fmt.Errorf("wrapped: %w", &integrity.OneToManyRelationError{}), http.StatusUnprocessableEntity, "relation_violation"},
		{"invalid reference", integrity.ErrInvalidReference, http.StatusUnprocessableEntity, "invalid_reference"},
		{"delete blocked", &integrity.DeleteBlockedError{}, http.StatusConflict, "delete_blocked"},
		{"duplicate", crud.ErrDuplicate, http.StatusConflict, "duplicate"},
		{"immutable id", crud.ErrImmutableID, http.StatusUnprocessableEntity, "immutable_id"},
		{"hook", crud.ErrHookFailed, http.StatusUnprocessableEntity, "hook_failed"},
		{"not found", crud.ErrNotFound, http.StatusNotFound, "not_found"},
		{"unknown entity", schema.ErrUnknownEntity, http.StatusNotFound, "not_found"},
		{"unknown relation", relationships.ErrUnknownRelation, http.StatusBadRequest, "unknown_relation"},
		{"other", errors.New("connection refused"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := Classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestRenderError(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderError(rec, &integrity.OneToManyRelationError{
		Action:           integrity.ActionCreate,
		SourceCollection: "parents",
		SourceKey:        "childIds",
		Values:           []interface{}{"c1", "c9"},
		Diff:             []interface{}{"c9"},
		TargetCollection: "children",
		TargetKey:        "_id",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "relation_violation", body.Code)
	assert.Equal(t, []interface{}{"c9"}, body.Details["diff"])
	assert.Equal(t, "create", body.Details["action"])
}

func TestRenderErrorWithStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderErrorWithStatus(rec, http.StatusBadRequest, errors.New("invalid JSON body"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bad_request", body.Code)
	assert.Nil(t, body.Details)
}
