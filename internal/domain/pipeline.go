package domain

import "time"

// Merge run status constants.
const (
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"

	TriggerTypeManual    = "MANUAL"
	TriggerTypeScheduled = "SCHEDULED"
)

// ValueCount is one entry of a categorical distribution.
type ValueCount struct {
	Value   string
	Count   int
	Percent float64 // share of all merged rows, 0-100
}

// Summary holds the statistics printed after a merge.
type Summary struct {
	TotalRows          int
	Source1Rows        int
	Source2Rows        int
	TotalColumns       int
	Columns            []string
	LabelDistribution  []ValueCount
	SourceDistribution []ValueCount
}

// MergeResult is the outcome of one pipeline invocation. It is returned
// alongside a WriteError so callers still see the computed table.
type MergeResult struct {
	RunID   string
	Paths   Paths
	Merged  *Table[MergedRow]
	Summary Summary
	Written bool
}

// MergeRun is the ledger entry for one pipeline invocation.
type MergeRun struct {
	ID           string
	TriggerType  string
	Status       string
	Dataset1Path string
	Dataset2Path string
	OutputPath   string
	Source1Rows  int
	Source2Rows  int
	TotalRows    int
	OutputSHA256 *string
	ErrorKind    *string
	ErrorMessage *string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Duration returns how long the run took.
func (r *MergeRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
