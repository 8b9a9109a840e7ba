package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RunKind distinguishes comparison runs from validation runs.
type RunKind string

const (
	RunKindComparison RunKind = "comparison"
	RunKindValidation RunKind = "validation"
)

// IsValid reports whether k is a known kind.
func (k RunKind) IsValid() bool {
	return k == RunKindComparison || k == RunKindValidation
}

// RunStatus is the lifecycle state of a run.
// pending -> completed | error; both terminal.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusCompleted RunStatus = "completed"
	RunStatusError     RunStatus = "error"
)

// IsTerminal reports whether no further transition is allowed.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusError
}

// Run is a persisted, asynchronously executed comparison or validation.
// Params and Result are stored as JSONB and returned verbatim.
type Run struct {
	ID               uuid.UUID       `json:"id"`
	Kind             RunKind         `json:"kind"`
	Status           RunStatus       `json:"status"`
	LeftEnvironment  string          `json:"left_env_schema"`
	RightEnvironment string          `json:"right_env_schema"`
	Params           json.RawMessage `json:"params"`
	Result           json.RawMessage `json:"result,omitempty"`
	ErrorMessage     *string         `json:"error_message,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// SubmittedRun is the immediate response to a run submission.
type SubmittedRun struct {
	RunID  uuid.UUID `json:"run_id"`
	Status RunStatus `json:"status"`
}

const (
	// DefaultRunListLimit is used when a list request omits limit.
	DefaultRunListLimit = 50
	// MaxRunListLimit caps list requests.
	MaxRunListLimit = 200
)

// RunFilter narrows a run listing. Empty fields do not filter.
type RunFilter struct {
	Environment string
	Kind        RunKind
	Limit       int
}

// EffectiveLimit clamps Limit to [1, MaxRunListLimit], defaulting when unset.
func (f RunFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultRunListLimit
	case f.Limit > MaxRunListLimit:
		return MaxRunListLimit
	default:
		return f.Limit
	}
}
