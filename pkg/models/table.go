package models

import (
	"regexp"
)

var (
	identifierPattern     = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	partitionTokenPattern = regexp.MustCompile(`^[0-9]{8}([0-9]{2})?$`)
)

// IsValidIdentifier reports whether s is a plain, unquoted SQL identifier.
func IsValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// IsValidPartitionToken reports whether s is a YYYYMMDD or YYYYMMDDHH token.
func IsValidPartitionToken(s string) bool {
	return partitionTokenPattern.MatchString(s)
}

// TableRef identifies a concrete, possibly partitioned table snapshot.
// Environment is the Postgres schema hosting the table.
type TableRef struct {
	Environment string `json:"environment"`
	Table       string `json:"table"`
	Partition   string `json:"partition,omitempty"`
}

// HasPartition reports whether the reference is scoped to one partition.
func (t TableRef) HasPartition() bool {
	return t.Partition != ""
}

// SameTable reports whether both references resolve to the identical concrete table.
func (t TableRef) SameTable(other TableRef) bool {
	return t.Environment == other.Environment && t.Table == other.Table && t.Partition == other.Partition
}

// String renders environment.table[@partition] for logs.
func (t TableRef) String() string {
	s := t.Environment + "." + t.Table
	if t.Partition != "" {
		s += "@" + t.Partition
	}
	return s
}

// ColumnMeta is a column as declared in the live catalog.
type ColumnMeta struct {
	Name            string `json:"name"`
	DataType        string `json:"data_type"`
	IsNullable      bool   `json:"is_nullable"`
	OrdinalPosition int    `json:"ordinal_position"`
}

// TableInfo is a table listed from an environment.
type TableInfo struct {
	Environment string `json:"environment"`
	Name        string `json:"name"`
}
