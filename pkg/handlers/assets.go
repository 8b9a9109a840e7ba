package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datatools/pkg/audit"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
	"github.com/ekaya-inc/ekaya-datatools/pkg/services"
)

// TableListResponse for GET /api/assets/tables
type TableListResponse struct {
	Tables []models.TableInfo `json:"tables"`
	Total  int                `json:"total"`
}

// TableColumnsResponse for GET /api/assets/table-columns
type TableColumnsResponse struct {
	Table   string              `json:"table"`
	Columns []models.ColumnMeta `json:"columns"`
}

// AssetsHandler lists tables and columns of the allowed environments.
type AssetsHandler struct {
	assets   services.AssetService
	audit    services.AuditService
	security *audit.SecurityAuditor
	logger   *zap.Logger
}

// NewAssetsHandler creates a new assets handler.
func NewAssetsHandler(
	assets services.AssetService,
	auditService services.AuditService,
	security *audit.SecurityAuditor,
	logger *zap.Logger,
) *AssetsHandler {
	return &AssetsHandler{
		assets:   assets,
		audit:    auditService,
		security: security,
		logger:   logger,
	}
}

// RegisterRoutes registers the assets handler's routes on the given mux.
func (h *AssetsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/assets/tables", h.ListTables)
	mux.HandleFunc("GET /api/assets/table-columns", h.TableColumns)
}

// ListTables handles GET /api/assets/tables?env_schema&filter
func (h *AssetsHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	env := r.URL.Query().Get("env_schema")
	filter := r.URL.Query().Get("filter")

	if !h.security.ScreenInput(r.URL.Path, "filter", filter, r.RemoteAddr) {
		h.audit.Record(r.Context(), models.AuditActionTableFilterRejected, env, map[string]any{
			"filter":    filter,
			"client_ip": r.RemoteAddr,
		})
		if err := ValidationErrorResponse(w, apperrors.NewValidationError("filter", "contains a disallowed pattern")); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	tables, err := h.assets.ListTables(r.Context(), env, filter)
	if err != nil {
		h.auditDeniedEnvironment(r, err, env)
		writeServiceError(w, h.logger, err, "list_tables_failed", "Failed to list tables")
		return
	}
	if tables == nil {
		tables = []models.TableInfo{}
	}

	writeData(w, h.logger, http.StatusOK, TableListResponse{Tables: tables, Total: len(tables)})
}

// TableColumns handles GET /api/assets/table-columns?env_schema&table&pt
func (h *AssetsHandler) TableColumns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	env := q.Get("env_schema")
	table := q.Get("table")

	cols, err := h.assets.TableColumns(r.Context(), env, table, q.Get("pt"))
	if err != nil {
		h.auditDeniedEnvironment(r, err, env)
		writeServiceError(w, h.logger, err, "table_columns_failed", "Failed to read table columns")
		return
	}

	writeData(w, h.logger, http.StatusOK, TableColumnsResponse{Table: table, Columns: cols})
}

// auditDeniedEnvironment logs a security event when err rejects env_schema.
func (h *AssetsHandler) auditDeniedEnvironment(r *http.Request, err error, env string) {
	verr, ok := apperrors.AsValidationError(err)
	if !ok {
		return
	}
	for _, f := range verr.Fields {
		if f.Field == "env_schema" {
			h.security.LogEnvironmentDenied(r.URL.Path, env, r.RemoteAddr)
			return
		}
	}
}
