package models

// SuggestKeysRequest asks for join-key candidates between two tables.
type SuggestKeysRequest struct {
	LeftTable      string `json:"left_table"`
	RightTable     string `json:"right_table"`
	EnvSchema      string `json:"env_schema,omitempty"`
	LeftEnvSchema  string `json:"left_env_schema,omitempty"`
	RightEnvSchema string `json:"right_env_schema,omitempty"`
	LeftPartition  string `json:"left_pt,omitempty"`
	RightPartition string `json:"right_pt,omitempty"`
	MaxCandidates  *int   `json:"max_candidates,omitempty"`
	Profile        bool   `json:"profile,omitempty"`
}

// CompareRunRequest submits a comparison.
//
// Join keys come either as explicit pairs (JoinKeyPairs) or, in the legacy
// shape, as bare names paired with themselves (JoinKeys). Pairs win when both
// are present. Compare columns follow the same rule.
type CompareRunRequest struct {
	LeftTable          string       `json:"left_table"`
	RightTable         string       `json:"right_table"`
	EnvSchema          string       `json:"env_schema,omitempty"`
	LeftEnvSchema      string       `json:"left_env_schema,omitempty"`
	RightEnvSchema     string       `json:"right_env_schema,omitempty"`
	LeftPartition      string       `json:"left_pt,omitempty"`
	RightPartition     string       `json:"right_pt,omitempty"`
	JoinKeyPairs       []ColumnPair `json:"join_key_pairs,omitempty"`
	JoinKeys           []string     `json:"join_keys,omitempty"`
	CompareColumnPairs []ColumnPair `json:"compare_column_pairs,omitempty"`
	CompareColumns     []string     `json:"compare_columns,omitempty"`
	SampleLimit        *int         `json:"sample_limit,omitempty"`
}

// ValidateRunRequest submits a data-quality validation of one table.
type ValidateRunRequest struct {
	TargetTable string `json:"target_table"`
	EnvSchema   string `json:"env_schema,omitempty"`
	Partition   string `json:"pt,omitempty"`
}
