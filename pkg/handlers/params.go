package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

// ParseRunID extracts and validates the run ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: rid
func ParseRunID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "rid", "invalid_run_id", "Invalid run ID format", logger)
}

// ParseRunFilter reads env_schema, kind and limit from the query string.
// A malformed limit writes a 400 and returns false.
func ParseRunFilter(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.RunFilter, bool) {
	q := r.URL.Query()
	filter := models.RunFilter{
		Environment: q.Get("env_schema"),
		Kind:        models.RunKind(q.Get("kind")),
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			if err := ValidationErrorResponse(w, apperrors.NewValidationError("limit", "must be an integer")); err != nil {
				logger.Error("Failed to write error response", zap.Error(err))
			}
			return models.RunFilter{}, false
		}
		filter.Limit = limit
	}
	return filter, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
