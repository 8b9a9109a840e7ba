package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
	"github.com/ekaya-inc/ekaya-datatools/pkg/services"
)

// Middleware wraps a handler, e.g. with rate limiting.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// passthrough is the Middleware used when none is configured.
func passthrough(next http.HandlerFunc) http.HandlerFunc {
	return next
}

// RunListResponse for GET .../runs
type RunListResponse struct {
	Runs  []*models.Run `json:"runs"`
	Total int           `json:"total"`
}

// RunsHandler serves runs of every kind.
type RunsHandler struct {
	runs   services.RunService
	logger *zap.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(runs services.RunService, logger *zap.Logger) *RunsHandler {
	return &RunsHandler{
		runs:   runs,
		logger: logger,
	}
}

// RegisterRoutes registers the runs handler's routes on the given mux.
func (h *RunsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/runs", h.List)
	mux.HandleFunc("GET /api/runs/{rid}", h.Get)
}

// List handles GET /api/runs?env_schema&kind&limit
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := ParseRunFilter(w, r, h.logger)
	if !ok {
		return
	}
	listRuns(w, r, h.runs, filter, h.logger)
}

// Get handles GET /api/runs/{rid}
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	getRun(w, r, h.runs, "", h.logger)
}

// listRuns writes the runs matching filter.
func listRuns(w http.ResponseWriter, r *http.Request, runs services.RunService, filter models.RunFilter, logger *zap.Logger) {
	list, err := runs.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, logger, err, "list_runs_failed", "Failed to list runs")
		return
	}
	if list == nil {
		list = []*models.Run{}
	}
	writeData(w, logger, http.StatusOK, RunListResponse{Runs: list, Total: len(list)})
}

// getRun writes one run. A run of another kind than kind is reported as not
// found; an empty kind matches every run.
func getRun(w http.ResponseWriter, r *http.Request, runs services.RunService, kind models.RunKind, logger *zap.Logger) {
	runID, ok := ParseRunID(w, r, logger)
	if !ok {
		return
	}

	run, err := runs.Get(r.Context(), runID)
	if err != nil {
		writeServiceError(w, logger, err, "get_run_failed", "Failed to get run")
		return
	}
	if kind != "" && run.Kind != kind {
		if err := ErrorResponse(w, http.StatusNotFound, "not_found", "run not found"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	writeData(w, logger, http.StatusOK, run)
}
