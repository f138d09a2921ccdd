package schema

import "time"

// CacheStatus represents the status of the diff cache store.
type CacheStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
	TableSizeBytes  int64     `json:"table_size_bytes"`
}

// HistoryStatus represents the status of the run history store.
type HistoryStatus struct {
	Backend           string           `json:"backend"`
	Connected         bool             `json:"connected"`
	TotalRuns         int              `json:"total_runs"`
	LastRunID         string           `json:"last_run_id"`
	LastRunTime       time.Time        `json:"last_run_time"`
	OldestRunTime     time.Time        `json:"oldest_run_time"`
	TotalCommitScores int              `json:"total_commit_scores"`
	TableSizes        map[string]int64 `json:"table_sizes"`
}

// RunRecord represents a row from the kernscore_runs table.
type RunRecord struct {
	RunID         string
	Mode          string
	VersionRange  string
	CompanyFilter string
	StartTime     time.Time
	EndTime       *time.Time
	RunDurationMs *int64
	TotalCommits  int32
	FailedCommits int32
	ConfigParams  *string
}

// CommitScoreRecord represents a row from the kernscore_commit_scores table.
type CommitScoreRecord struct {
	RunID           string
	CommitHash      string
	ShortHash       string
	CommitDate      time.Time
	AuthorCompany   string
	PrimaryCategory string
	SubsystemTier   int32
	ScoreTotal      int32
	ScoreTechnical  int32
	ScoreImpact     int32
	ScoreQuality    int32
	ScoreCommunity  int32
	ErrorKind       *string
}
