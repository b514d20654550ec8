package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/conduit-lang/docref/internal/orm/crud"
	"github.com/conduit-lang/docref/internal/orm/integrity"
	"github.com/conduit-lang/docref/internal/orm/relationships"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// JSON writes v with the given status
func JSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// RenderError writes err with the status and code derived from it
func RenderError(w http.ResponseWriter, err error) {
	statusCode, code := Classify(err)
	JSON(w, statusCode, &ErrorResponse{
		Error:   "error",
		Message: err.Error(),
		Code:    code,
		Details: details(err),
	})
}

// RenderErrorWithStatus writes err with an explicit status, used for malformed requests
func RenderErrorWithStatus(w http.ResponseWriter, statusCode int, err error) {
	JSON(w, statusCode, &ErrorResponse{
		Error:   "error",
		Message: err.Error(),
		Code:    errorCodeFromStatus(statusCode),
	})
}

// Classify maps an error returned by the entity layer to an HTTP status and error code
func Classify(err error) (int, string) {
	switch {
	case integrity.IsRelationViolation(err):
		return http.StatusUnprocessableEntity, "relation_violation"
	case errors.Is(err, integrity.ErrInvalidReference):
		return http.StatusUnprocessableEntity, "invalid_reference"
	case integrity.IsDeleteBlocked(err):
		return http.StatusConflict, "delete_blocked"
	case crud.IsDuplicate(err):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, crud.ErrImmutableID):
		return http.StatusUnprocessableEntity, "immutable_id"
	case errors.Is(err, crud.ErrHookFailed):
		return http.StatusUnprocessableEntity, "hook_failed"
	case crud.IsNotFound(err), errors.Is(err, schema.ErrUnknownEntity):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, relationships.ErrUnknownRelation):
		return http.StatusBadRequest, "unknown_relation"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// details exposes the structured fields of relation and delete errors
func details(err error) map[string]interface{} {
	var one *integrity.OneToOneRelationError
	if errors.As(err, &one) {
		return map[string]interface{}{
			"action":            one.Action.String(),
			"source_collection": one.SourceCollection,
			"source_id":         one.SourceID,
			"source_key":        one.SourceKey,
			"value":             one.Value,
			"target_collection": one.TargetCollection,
			"target_key":        one.TargetKey,
		}
	}

	var many *integrity.OneToManyRelationError
	if errors.As(err, &many) {
		return map[string]interface{}{
			"action":            many.Action.String(),
			"source_collection": many.SourceCollection,
			"source_id":         many.SourceID,
			"source_key":        many.SourceKey,
			"values":            many.Values,
			"diff":              many.Diff,
			"target_collection": many.TargetCollection,
			"target_key":        many.TargetKey,
		}
	}

	var blocked *integrity.DeleteBlockedError
	if errors.As(err, &blocked) {
		return map[string]interface{}{
			"cardinality":       blocked.Cardinality.String(),
			"child_collection":  blocked.ChildCollection,
			"child_id":          blocked.ChildID,
			"child_key":         blocked.ChildKey,
			"child_value":       blocked.ChildValue,
			"parent_collection": blocked.ParentCollection,
			"parent_id":         blocked.ParentID,
			"parent_key":        blocked.ParentKey,
			"parent_value":      blocked.ParentValue,
		}
	}

	return nil
}

// errorCodeFromStatus generates an error code from HTTP status
func errorCodeFromStatus(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	default:
		return "internal_error"
	}
}
