package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded in datatools.audit_log.
const (
	AuditActionSuggestKeys         = "compare_suggest_keys"
	AuditActionCompareSubmitted    = "compare_run_submitted"
	AuditActionCompareCompleted    = "compare_run_completed"
	AuditActionCompareFailed       = "compare_run_failed"
	AuditActionValidateSubmitted   = "validate_run_submitted"
	AuditActionValidateCompleted   = "validate_run_completed"
	AuditActionValidateFailed      = "validate_run_failed"
	AuditActionStaleRunsExpired    = "stale_runs_expired"
	AuditActionTableFilterRejected = "table_filter_rejected"
)

// AuditLogEntry is one row of datatools.audit_log.
type AuditLogEntry struct {
	ID          uuid.UUID      `json:"id"`
	Action      string         `json:"action"`
	Environment string         `json:"environment"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
