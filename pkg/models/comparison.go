package models

const (
	// DefaultSampleLimit is used when a comparison request omits sample_limit.
	DefaultSampleLimit = 50
	// MaxSampleLimit bounds every sample a comparison returns.
	MaxSampleLimit = 1000
	// DefaultMaxCandidates is used when suggest-keys omits max_candidates.
	DefaultMaxCandidates = 50
	// MaxCandidatesLimit bounds max_candidates.
	MaxCandidatesLimit = 200
)

// ColumnPair matches a left column with a right column.
// It is comparable so pairs can be deduplicated with ==.
type ColumnPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// SelfPair pairs a column with the same-named column on the other side.
func SelfPair(name string) ColumnPair {
	return ColumnPair{Left: name, Right: name}
}

// KeyCandidate is a suggested join-key column.
// Uniqueness and NullRatio are only set when the suggestion was profiled.
type KeyCandidate struct {
	Column        string   `json:"column"`
	DataType      string   `json:"data_type"`
	RightDataType string   `json:"right_data_type"`
	Score         float64  `json:"score"`
	Uniqueness    *float64 `json:"uniqueness,omitempty"`
	NullRatio     *float64 `json:"null_ratio,omitempty"`
}

// SuggestKeysResult is returned by the suggest-keys operation.
type SuggestKeysResult struct {
	Candidates        []KeyCandidate `json:"candidates"`
	CompareCandidates []string       `json:"compare_candidates"`
	SkippedReason     string         `json:"skipped_reason,omitempty"`
}

// ComparisonPlan is the canonical, validated form of a comparison request.
type ComparisonPlan struct {
	Left            TableRef     `json:"left"`
	Right           TableRef     `json:"right"`
	JoinKeys        []ColumnPair `json:"join_keys"`
	CompareColumns  []ColumnPair `json:"compare_columns"`
	SampleLimit     int          `json:"sample_limit"`
	DiffSampleLimit int          `json:"diff_sample_limit"`
}

// MissingSide tells which table a sampled missing row came from.
type MissingSide string

const (
	MissingSideLeftOnly  MissingSide = "left_only"
	MissingSideRightOnly MissingSide = "right_only"
)

// MissingRow is a sampled row whose key tuple has no match on the other side.
// Key holds the join-key values of the side the row exists on, rendered as text.
type MissingRow struct {
	Side MissingSide        `json:"side"`
	Key  map[string]*string `json:"key"`
}

// DiffSample is one matched row whose compared values differ.
// Key holds the left join-key values.
type DiffSample struct {
	LeftValue  *string            `json:"left_value"`
	RightValue *string            `json:"right_value"`
	Key        map[string]*string `json:"key"`
}

// ColumnDiff summarizes one compare column pair over matched rows.
type ColumnDiff struct {
	LeftColumn    string       `json:"left_col"`
	RightColumn   string       `json:"right_col"`
	TotalCompared int64        `json:"total_compared"`
	DiffCount     int64        `json:"diff_count"`
	Sample        []DiffSample `json:"sample"`
}

// ComparisonResult is the payload of a completed comparison run.
type ComparisonResult struct {
	LeftCount      int64        `json:"left_count"`
	RightCount     int64        `json:"right_count"`
	MissingInRight int64        `json:"missing_in_right"`
	MissingInLeft  int64        `json:"missing_in_left"`
	Sample         []MissingRow `json:"sample"`
	ColumnDiffs    []ColumnDiff `json:"column_diffs"`
}
