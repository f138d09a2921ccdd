// Package parquet provides data structures and functions for exporting kernscore
// results and run history to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/huangsam/kernscore/schema"
	"github.com/parquet-go/parquet-go"
)

// Run represents a single kernscore run with metadata.
// This struct maps to the kernscore_runs database table.
type Run struct {
	// RunID is the UUID of the run
	RunID string `parquet:"run_id,snappy"`

	// Mode is analyze, repair or chinese_companies
	Mode string `parquet:"mode,snappy"`

	VersionRange  string `parquet:"version_range,snappy"`
	CompanyFilter string `parquet:"company_filter,snappy"`

	// StartTime is when the run began (stored as TIMESTAMP with nanosecond precision)
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the run completed (nullable)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// RunDurationMs is the duration of the run in milliseconds (nullable)
	RunDurationMs *int64 `parquet:"run_duration_ms,optional,snappy"`

	TotalCommits  int32 `parquet:"total_commits,snappy"`
	FailedCommits int32 `parquet:"failed_commits,snappy"`

	// ConfigParams contains the JSON-encoded run parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// CommitScore is the score columns of one commit in one run.
// This struct maps to the kernscore_commit_scores database table.
type CommitScore struct {
	RunID           string    `parquet:"run_id,snappy"`
	CommitHash      string    `parquet:"commit_hash,snappy"`
	ShortHash       string    `parquet:"short_hash,snappy"`
	CommitDate      time.Time `parquet:"commit_date,snappy"`
	AuthorCompany   string    `parquet:"author_company,snappy"`
	PrimaryCategory string    `parquet:"primary_category,snappy"`
	SubsystemTier   int32     `parquet:"subsystem_tier,snappy"`
	ScoreTotal      int32     `parquet:"score_total,snappy"`
	ScoreTechnical  int32     `parquet:"score_technical,snappy"`
	ScoreImpact     int32     `parquet:"score_impact,snappy"`
	ScoreQuality    int32     `parquet:"score_quality,snappy"`
	ScoreCommunity  int32     `parquet:"score_community,snappy"`

	// ErrorKind is set only for commits that fell back (nullable)
	ErrorKind *string `parquet:"error_kind,optional,snappy"`
}

// ScoredCommit is the flattened form of a scored commit for analytics tools.
// List columns are joined with "|".
type ScoredCommit struct {
	CommitHash         string    `parquet:"commit_hash,snappy"`
	ShortHash          string    `parquet:"short_hash,snappy"`
	AuthorName         string    `parquet:"author_name,snappy"`
	AuthorEmail        string    `parquet:"author_email,snappy"`
	AuthorCompany      string    `parquet:"author_company,snappy"`
	CommitDate         time.Time `parquet:"commit_date,snappy"`
	Subject            string    `parquet:"subject,snappy"`
	PrimaryCategory    string    `parquet:"primary_category,snappy"`
	CVEIDs             string    `parquet:"cve_ids,snappy"`
	FixesTag           string    `parquet:"fixes_tag,snappy"`
	CCStable           bool      `parquet:"cc_stable,snappy"`
	SubsystemPrefix    string    `parquet:"subsystem_prefix,snappy"`
	SubsystemTier      int32     `parquet:"subsystem_tier,snappy"`
	FilesChanged       int32     `parquet:"files_changed,snappy"`
	Insertions         int32     `parquet:"insertions,snappy"`
	Deletions          int32     `parquet:"deletions,snappy"`
	Hunks              int32     `parquet:"hunks,snappy"`
	ScoreTotal         int32     `parquet:"score_total,snappy"`
	ScoreTechnical     int32     `parquet:"score_technical,snappy"`
	ScoreImpact        int32     `parquet:"score_impact,snappy"`
	ScoreQuality       int32     `parquet:"score_quality,snappy"`
	ScoreCommunity     int32     `parquet:"score_community,snappy"`
	Flags              string    `parquet:"flags,snappy"`
	Link               string    `parquet:"link,snappy"`
	ErrorKind          *string   `parquet:"error_kind,optional,snappy"`
	ScoreJustification string    `parquet:"score_justification,snappy"`
}

// writeParquet writes rows to outputPath with a schema inferred from T's struct tags.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// WriteRunsParquet writes a slice of Run structs to a Parquet file.
func WriteRunsParquet(data []Run, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteCommitScoresParquet writes a slice of CommitScore structs to a Parquet file.
func WriteCommitScoresParquet(data []CommitScore, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteScoredCommitsParquet writes a slice of ScoredCommit structs to a Parquet file.
func WriteScoredCommitsParquet(data []ScoredCommit, outputPath string) error {
	return writeParquet(data, outputPath)
}

// ConvertRunRecords converts history run rows to Parquet format.
func ConvertRunRecords(records []schema.RunRecord) []Run {
	result := make([]Run, len(records))
	for i, r := range records {
		result[i] = Run{
			RunID:         r.RunID,
			Mode:          r.Mode,
			VersionRange:  r.VersionRange,
			CompanyFilter: r.CompanyFilter,
			StartTime:     r.StartTime,
			EndTime:       r.EndTime,
			RunDurationMs: r.RunDurationMs,
			TotalCommits:  r.TotalCommits,
			FailedCommits: r.FailedCommits,
			ConfigParams:  r.ConfigParams,
		}
	}
	return result
}

// ConvertCommitScoreRecords converts history score rows to Parquet format.
func ConvertCommitScoreRecords(records []schema.CommitScoreRecord) []CommitScore {
	result := make([]CommitScore, len(records))
	for i, r := range records {
		result[i] = CommitScore{
			RunID:           r.RunID,
			CommitHash:      r.CommitHash,
			ShortHash:       r.ShortHash,
			CommitDate:      r.CommitDate,
			AuthorCompany:   r.AuthorCompany,
			PrimaryCategory: r.PrimaryCategory,
			SubsystemTier:   r.SubsystemTier,
			ScoreTotal:      r.ScoreTotal,
			ScoreTechnical:  r.ScoreTechnical,
			ScoreImpact:     r.ScoreImpact,
			ScoreQuality:    r.ScoreQuality,
			ScoreCommunity:  r.ScoreCommunity,
			ErrorKind:       r.ErrorKind,
		}
	}
	return result
}

// ConvertScoredCommits flattens scored commits to Parquet format.
func ConvertScoredCommits(commits []schema.ScoredCommit) []ScoredCommit {
	result := make([]ScoredCommit, len(commits))
	for i, c := range commits {
		var kind *string
		if c.ErrorKind.Failed() {
			k := string(c.ErrorKind)
			kind = &k
		}
		result[i] = ScoredCommit{
			CommitHash:         c.CommitHash,
			ShortHash:          c.ShortHash,
			AuthorName:         c.AuthorName,
			AuthorEmail:        c.AuthorEmail,
			AuthorCompany:      c.AuthorCompany,
			CommitDate:         c.CommitDate,
			Subject:            c.Subject,
			PrimaryCategory:    c.PrimaryCategory,
			CVEIDs:             strings.Join(c.CVEIDs, "|"),
			FixesTag:           c.FixesTag,
			CCStable:           c.CCStable,
			SubsystemPrefix:    c.SubsystemPrefix,
			SubsystemTier:      int32(c.SubsystemTier),
			FilesChanged:       int32(c.FilesChanged),
			Insertions:         int32(c.Insertions),
			Deletions:          int32(c.Deletions),
			Hunks:              int32(c.Hunks),
			ScoreTotal:         int32(c.ScoreTotal),
			ScoreTechnical:     int32(c.ScoreTechnical),
			ScoreImpact:        int32(c.ScoreImpact),
			ScoreQuality:       int32(c.ScoreQuality),
			ScoreCommunity:     int32(c.ScoreCommunity),
			Flags:              strings.Join(c.Flags, "|"),
			Link:               c.Link,
			ErrorKind:          kind,
			ScoreJustification: c.ScoreJustification,
		}
	}
	return result
}
