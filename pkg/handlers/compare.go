package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
	"github.com/ekaya-inc/ekaya-datatools/pkg/services"
)

// CompareHandler handles key suggestion and comparison run requests.
type CompareHandler struct {
	keys   services.KeySuggester
	runs   services.RunService
	logger *zap.Logger
}

// NewCompareHandler creates a new compare handler.
func NewCompareHandler(keys services.KeySuggester, runs services.RunService, logger *zap.Logger) *CompareHandler {
	return &CompareHandler{
		keys:   keys,
		runs:   runs,
		logger: logger,
	}
}

// RegisterRoutes registers the compare handler's routes on the given mux.
// submitLimit wraps the endpoint that starts runs.
func (h *CompareHandler) RegisterRoutes(mux *http.ServeMux, submitLimit Middleware) {
	if submitLimit == nil {
		submitLimit = passthrough
	}
	base := "/api/compare"

	mux.HandleFunc("POST "+base+"/suggest-keys", h.SuggestKeys)
	mux.HandleFunc("POST "+base+"/run", submitLimit(h.SubmitRun))
	mux.HandleFunc("GET "+base+"/runs", h.ListRuns)
	mux.HandleFunc("GET "+base+"/runs/{rid}", h.GetRun)
}

// SuggestKeys handles POST /api/compare/suggest-keys
func (h *CompareHandler) SuggestKeys(w http.ResponseWriter, r *http.Request) {
	var req models.SuggestKeysRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	result, err := h.keys.SuggestKeys(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err, "suggest_keys_failed", "Failed to suggest keys")
		return
	}

	writeData(w, h.logger, http.StatusOK, result)
}

// SubmitRun handles POST /api/compare/run
// Responds 202 with the run id; the comparison runs in the background.
func (h *CompareHandler) SubmitRun(w http.ResponseWriter, r *http.Request) {
	var req models.CompareRunRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	submitted, err := h.runs.SubmitComparison(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err, "submit_comparison_failed", "Failed to submit comparison")
		return
	}

	writeData(w, h.logger, http.StatusAccepted, submitted)
}

// ListRuns handles GET /api/compare/runs?env_schema&limit
func (h *CompareHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter, ok := ParseRunFilter(w, r, h.logger)
	if !ok {
		return
	}
	filter.Kind = models.RunKindComparison
	listRuns(w, r, h.runs, filter, h.logger)
}

// GetRun handles GET /api/compare/runs/{rid}
func (h *CompareHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	getRun(w, r, h.runs, models.RunKindComparison, h.logger)
}

// decodeBody decodes a JSON request body into dst, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}
