package models

// ColumnNullCount is the number of NULLs found in one column.
type ColumnNullCount struct {
	Column    string `json:"column"`
	NullCount int64  `json:"null_count"`
}

// ValidationResult is the payload of a completed validation run.
type ValidationResult struct {
	TotalRows     int64             `json:"total_rows"`
	NullCounts    []ColumnNullCount `json:"null_counts"`
	DuplicateRows int64             `json:"duplicate_rows"`
}

// ValidationParams is the canonical input stored on a validation run.
type ValidationParams struct {
	Target TableRef `json:"target"`
}
