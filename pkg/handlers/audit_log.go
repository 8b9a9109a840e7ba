package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
	"github.com/ekaya-inc/ekaya-datatools/pkg/services"
)

// AuditLogResponse for GET /api/audit
type AuditLogResponse struct {
	Entries []*models.AuditLogEntry `json:"entries"`
	Total   int                     `json:"total"`
}

// AuditLogHandler serves the newest audit log entries.
type AuditLogHandler struct {
	audit  services.AuditService
	logger *zap.Logger
}

// NewAuditLogHandler creates a new audit log handler.
func NewAuditLogHandler(auditService services.AuditService, logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{
		audit:  auditService,
		logger: logger,
	}
}

// RegisterRoutes registers the audit log handler's routes on the given mux.
func (h *AuditLogHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/audit", h.List)
}

// List handles GET /api/audit?action&limit
func (h *AuditLogHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			if err := ValidationErrorResponse(w, apperrors.NewValidationError("limit", "must be an integer")); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		limit = parsed
	}

	entries, err := h.audit.Recent(r.Context(), q.Get("action"), limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "list_audit_failed", "Failed to list audit entries")
		return
	}
	if entries == nil {
		entries = []*models.AuditLogEntry{}
	}

	writeData(w, h.logger, http.StatusOK, AuditLogResponse{Entries: entries, Total: len(entries)})
}
