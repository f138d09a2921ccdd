// Package schema holds the shared data types of kernscore.
package schema

import (
	"encoding/json"
	"time"
)

// ShortHashLen is the abbreviated commit hash length used in output and links.
const ShortHashLen = 12

// RawCommit is one git commit under analysis.
// It is built once from git output and is read-only afterwards.
type RawCommit struct {
	Hash           string
	AuthorName     string
	AuthorEmail    string
	AuthorDate     time.Time
	CommitterName  string
	CommitterEmail string
	CommitDate     time.Time
	Subject        string
	Body           string
	Files          []string
	FilesChanged   int
	Insertions     int
	Deletions      int
	Hunks          int
	Diff           string
}

// ShortHash returns the abbreviated form of the commit hash.
func (c *RawCommit) ShortHash() string {
	return ShortHash(c.Hash)
}

// ShortHash truncates a commit hash to ShortHashLen characters.
func ShortHash(hash string) string {
	if len(hash) > ShortHashLen {
		return hash[:ShortHashLen]
	}
	return hash
}

// DiffStats is the diff-derived portion of a RawCommit.
// It is what the diff cache stores per commit hash.
type DiffStats struct {
	Files      []string `json:"files"`
	Insertions int      `json:"insertions"`
	Deletions  int      `json:"deletions"`
	Hunks      int      `json:"hunks"`
	Diff       string   `json:"diff"`
}

// Analysis is the loosely-typed document returned by the scoring oracle,
// or synthesized as a fallback when the oracle fails.
type Analysis map[string]any

// TechnicalScore is the technical dimension of the rubric.
type TechnicalScore struct {
	CodeVolume           int    `json:"code_volume"`
	SubsystemCriticality int    `json:"subsystem_criticality"`
	CrossSubsystem       int    `json:"cross_subsystem"`
	Subtotal             int    `json:"subtotal"`
	Details              string `json:"details"`
}

// ImpactScore is the impact dimension of the rubric.
type ImpactScore struct {
	CategoryBase int    `json:"category_base"`
	StableLTS    int    `json:"stable_lts"`
	UserImpact   int    `json:"user_impact"`
	Novelty      int    `json:"novelty"`
	Subtotal     int    `json:"subtotal"`
	Details      string `json:"details"`
}

// QualityScore is the quality dimension of the rubric.
type QualityScore struct {
	ReviewChain    int    `json:"review_chain"`
	MessageQuality int    `json:"message_quality"`
	Testing        int    `json:"testing"`
	Atomicity      int    `json:"atomicity"`
	Subtotal       int    `json:"subtotal"`
	Details        string `json:"details"`
}

// CommunityScore is the community dimension of the rubric.
type CommunityScore struct {
	CrossOrg   int    `json:"cross_org"`
	Maintainer int    `json:"maintainer"`
	Response   int    `json:"response"`
	Subtotal   int    `json:"subtotal"`
	Details    string `json:"details"`
}

// ScoreBreakdown is the clamped, recomputed breakdown persisted with each commit.
type ScoreBreakdown struct {
	Technical TechnicalScore `json:"technical"`
	Impact    ImpactScore    `json:"impact"`
	Quality   QualityScore   `json:"quality"`
	Community CommunityScore `json:"community"`
}

// Total returns the sum of the four dimension subtotals.
func (b ScoreBreakdown) Total() int {
	return b.Technical.Subtotal + b.Impact.Subtotal + b.Quality.Subtotal + b.Community.Subtotal
}

// ReviewChain lists the trailer tags found in a commit message.
type ReviewChain struct {
	SignedOffBy []string `json:"signed_off_by"`
	ReviewedBy  []string `json:"reviewed_by"`
	TestedBy    []string `json:"tested_by"`
	AckedBy     []string `json:"acked_by"`
	ReportedBy  []string `json:"reported_by"`
}

// NewReviewChain returns a ReviewChain with empty, non-nil lists.
func NewReviewChain() ReviewChain {
	return ReviewChain{
		SignedOffBy: []string{},
		ReviewedBy:  []string{},
		TestedBy:    []string{},
		AckedBy:     []string{},
		ReportedBy:  []string{},
	}
}

// ScoredCommit is the final persisted record for one commit.
type ScoredCommit struct {
	CommitHash          string         `json:"commit_hash"`
	ShortHash           string         `json:"short_hash"`
	AuthorName          string         `json:"author_name"`
	AuthorEmail         string         `json:"author_email"`
	AuthorCompany       string         `json:"author_company"`
	AuthorDate          time.Time      `json:"author_date"`
	CommitterName       string         `json:"committer_name"`
	CommitterEmail      string         `json:"committer_email"`
	CommitterCompany    string         `json:"committer_company"`
	CommitDate          time.Time      `json:"commit_date"`
	Subject             string         `json:"subject"`
	PrimaryCategory     string         `json:"primary_category"`
	SecondaryCategories []string       `json:"secondary_categories"`
	CVEIDs              []string       `json:"cve_ids"`
	FixesTag            string         `json:"fixes_tag"`
	CCStable            bool           `json:"cc_stable"`
	SubsystemPrefix     string         `json:"subsystem_prefix"`
	SubsystemsTouched   []string       `json:"subsystems_touched"`
	SubsystemTier       int            `json:"subsystem_tier"`
	FilesChanged        int            `json:"files_changed"`
	Insertions          int            `json:"insertions"`
	Deletions           int            `json:"deletions"`
	Hunks               int            `json:"hunks"`
	ReviewChain         ReviewChain    `json:"review_chain"`
	ScoreTotal          int            `json:"score_total"`
	ScoreTechnical      int            `json:"score_technical"`
	ScoreImpact         int            `json:"score_impact"`
	ScoreQuality        int            `json:"score_quality"`
	ScoreCommunity      int            `json:"score_community"`
	ScoreBreakdown      ScoreBreakdown `json:"score_breakdown"`
	ScoreJustification  string         `json:"score_justification"`
	CodeSnippet         string         `json:"code_snippet"`
	Flags               []string       `json:"flags"`
	Link                string         `json:"link"`
	ErrorKind           ErrorKind      `json:"error_kind,omitempty"`
}

// FailedCommitRecord is one entry of the failure ledger.
type FailedCommitRecord struct {
	CommitHash   string    `json:"commit_hash"`
	ErrorKind    ErrorKind `json:"error_kind"`
	ErrorMessage string    `json:"error_message"`
	Subject      string    `json:"subject"`
	Timestamp    time.Time `json:"timestamp"`
}

// UnmarshalJSON accepts both the current keys and the older
// error_type/error_msg keys written by earlier ledgers.
func (r *FailedCommitRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		CommitHash   string    `json:"commit_hash"`
		ErrorKind    ErrorKind `json:"error_kind"`
		ErrorType    ErrorKind `json:"error_type"`
		ErrorMessage string    `json:"error_message"`
		ErrorMsg     string    `json:"error_msg"`
		Subject      string    `json:"subject"`
		Timestamp    string    `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.CommitHash = raw.CommitHash
	r.ErrorKind = raw.ErrorKind
	if r.ErrorKind == NoError {
		r.ErrorKind = raw.ErrorType
	}
	r.ErrorMessage = raw.ErrorMessage
	if r.ErrorMessage == "" {
		r.ErrorMessage = raw.ErrorMsg
	}
	r.Subject = raw.Subject
	r.Timestamp = parseLedgerTime(raw.Timestamp)
	return nil
}

// parseLedgerTime tolerates timestamps with and without a zone offset.
func parseLedgerTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// CountScore aggregates commit counts and scores for one bucket.
type CountScore struct {
	Count      int     `json:"count"`
	TotalScore int     `json:"total_score"`
	AvgScore   float64 `json:"avg_score"`
}

// Summary is the aggregate report for one version range.
type Summary struct {
	VersionRange      string                `json:"version_range"`
	CompanyFilter     string                `json:"company_filter"`
	TotalCommits      int                   `json:"total_commits_analyzed"`
	FailedCommits     int                   `json:"failed_commits"`
	TotalScore        int                   `json:"total_score"`
	AverageScore      float64               `json:"average_score"`
	ScoreDistribution map[string]int        `json:"score_distribution"`
	DimensionAverages map[string]float64    `json:"dimension_averages"`
	ByCategory        map[string]CountScore `json:"by_category"`
	BySubsystem       map[string]CountScore `json:"by_subsystem"`
	ByTier            map[string]CountScore `json:"by_tier"`
	TopCommits        []string              `json:"top_10_commits"`
	BottomCommits     []string              `json:"bottom_10_commits"`
	FlagsSummary      map[string]int        `json:"flags_summary"`
	FailuresByKind    map[ErrorKind]int     `json:"failures_by_kind"`
}

// CompanyStats aggregates the commits of one organization.
type CompanyStats struct {
	CommitCount int            `json:"commit_count"`
	TotalScore  int            `json:"total_score"`
	AvgScore    float64        `json:"avg_score"`
	Categories  map[string]int `json:"categories"`
}

// CompanyRank is a (company, value) pair used in rankings.
type CompanyRank struct {
	Company string `json:"company"`
	Value   int    `json:"value"`
}

// CompanySummary is the per-organization report of the companies mode.
type CompanySummary struct {
	VersionRange          string                  `json:"version_range"`
	TotalCommits          int                     `json:"total_commits"`
	Companies             map[string]CompanyStats `json:"companies"`
	TopCompaniesByCommits []CompanyRank           `json:"top_companies_by_commits"`
	TopCompaniesByScore   []CompanyRank           `json:"top_companies_by_score"`
}

// RunReport describes what a run did, for console rendering.
type RunReport struct {
	Mode           RunMode           `json:"mode"`
	VersionRange   string            `json:"version_range"`
	CompanyFilter  string            `json:"company_filter"`
	Found          int               `json:"commits_found"`
	Scored         int               `json:"commits_scored"`
	Unattempted    int               `json:"commits_unattempted"`
	Interrupted    bool              `json:"interrupted"`
	FailuresByKind map[ErrorKind]int `json:"failures_by_kind"`
	LedgerPath     string            `json:"ledger_path,omitempty"`
	LedgerCleared  bool              `json:"ledger_cleared"`
	OutputFiles    []string          `json:"output_files"`
	Summary        *Summary          `json:"summary,omitempty"`
	CompanySummary *CompanySummary   `json:"company_summary,omitempty"`
	RunID          string            `json:"run_id,omitempty"`
}
