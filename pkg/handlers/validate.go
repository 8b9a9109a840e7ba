package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
	"github.com/ekaya-inc/ekaya-datatools/pkg/services"
)

// ValidateHandler handles single-table validation runs.
type ValidateHandler struct {
	runs   services.RunService
	logger *zap.Logger
}

// NewValidateHandler creates a new validate handler.
func NewValidateHandler(runs services.RunService, logger *zap.Logger) *ValidateHandler {
	return &ValidateHandler{
		runs:   runs,
		logger: logger,
	}
}

// RegisterRoutes registers the validate handler's routes on the given mux.
func (h *ValidateHandler) RegisterRoutes(mux *http.ServeMux, submitLimit Middleware) {
	if submitLimit == nil {
		submitLimit = passthrough
	}
	base := "/api/validate"

	mux.HandleFunc("POST "+base+"/run", submitLimit(h.SubmitRun))
	mux.HandleFunc("GET "+base+"/runs", h.ListRuns)
	mux.HandleFunc("GET "+base+"/runs/{rid}", h.GetRun)
}

// SubmitRun handles POST /api/validate/run
func (h *ValidateHandler) SubmitRun(w http.ResponseWriter, r *http.Request) {
	var req models.ValidateRunRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	submitted, err := h.runs.SubmitValidation(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err, "submit_validation_failed", "Failed to submit validation")
		return
	}

	writeData(w, h.logger, http.StatusAccepted, submitted)
}

// ListRuns handles GET /api/validate/runs?env_schema&limit
func (h *ValidateHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter, ok := ParseRunFilter(w, r, h.logger)
	if !ok {
		return
	}
	filter.Kind = models.RunKindValidation
	listRuns(w, r, h.runs, filter, h.logger)
}

// GetRun handles GET /api/validate/runs/{rid}
func (h *ValidateHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	getRun(w, r, h.runs, models.RunKindValidation, h.logger)
}
