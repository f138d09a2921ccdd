package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *contract.Config {
	return &contract.Config{
		VersionRange: "v6.17..v6.18",
		ResultLimit:  10,
		Width:        120,
		Workers:      4,
		Oracle:       schema.AgentOracle,
		CacheBackend: schema.SQLiteBackend,
	}
}

func sampleCommits() []schema.ScoredCommit {
	return []schema.ScoredCommit{
		{
			CommitHash:      "1111111111111111",
			ShortHash:       "111111111111",
			CommitDate:      time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
			AuthorCompany:   "Google",
			PrimaryCategory: "BUG-SECURITY",
			SubsystemPrefix: "mm",
			SubsystemTier:   1,
			ScoreTotal:      72,
			Subject:         "mm: fix use-after-free in page reclaim",
			Flags:           []string{"SECURITY"},
		},
		{
			CommitHash:      "2222222222222222",
			ShortHash:       "222222222222",
			AuthorCompany:   "Unknown",
			PrimaryCategory: "FAILED",
			SubsystemPrefix: "drivers",
			SubsystemTier:   5,
			Subject:         "drm: rename helper",
			Flags:           []string{"AGENT_ERROR", "AGENT_ERROR_TIMEOUT"},
			ErrorKind:       schema.TimeoutError,
		},
	}
}

func sampleSummary() schema.Summary {
	return schema.Summary{
		VersionRange:  "v6.17..v6.18",
		CompanyFilter: "all",
		TotalCommits:  2,
		FailedCommits: 1,
		TotalScore:    72,
		AverageScore:  36,
		ScoreDistribution: map[string]int{
			"90_100_exceptional": 0, "70_89_high": 1, "50_69_medium": 0,
			"30_49_low": 0, "10_29_minimal": 0, "0_9_trivial": 1,
		},
		DimensionAverages: map[string]float64{"technical": 12.5, "impact": 10, "quality": 9, "community": 4.5},
		ByCategory: map[string]schema.CountScore{
			"BUG-SECURITY": {Count: 1, TotalScore: 72, AvgScore: 72},
			"FAILED":       {Count: 1},
		},
		FailuresByKind: map[schema.ErrorKind]int{schema.TimeoutError: 1},
	}
}

func TestDistributionBands(t *testing.T) {
	bands := distributionBands(sampleSummary().ScoreDistribution)
	assert.Equal(t, []string{"90_100_exceptional", "70_89_high", "50_69_medium", "30_49_low", "10_29_minimal", "0_9_trivial"}, bands)
}

func TestOrderedKinds(t *testing.T) {
	counts := map[schema.ErrorKind]int{
		schema.IncompleteError: 2,
		schema.TimeoutError:    1,
		"LEGACY":               4,
		schema.RateLimitError:  0,
	}
	assert.Equal(t, []schema.ErrorKind{schema.TimeoutError, schema.IncompleteError, "LEGACY"}, orderedKinds(counts))
}

func TestWriteRunReport(t *testing.T) {
	summary := sampleSummary()
	tests := []struct {
		name     string
		report   schema.RunReport
		contains []string
		absent   []string
	}{
		{
			name: "analyze with failures",
			report: schema.RunReport{
				Mode: schema.AnalyzeMode, VersionRange: "v6.17..v6.18", Found: 2, Scored: 2,
				FailuresByKind: map[schema.ErrorKind]int{schema.TimeoutError: 1},
				LedgerPath:     "data/failed_commits_v6_17_v6_18.json",
				OutputFiles:    []string{"data/all_commits_v6_17_v6_18.json"},
				Summary:        &summary,
			},
			contains: []string{"Analysis complete for v6.17..v6.18", "TIMEOUT", "kernscore repair v6.17..v6.18", "all_commits_v6_17_v6_18.json", "70_89_high"},
			absent:   []string{"ledger cleared"},
		},
		{
			name: "interrupted",
			report: schema.RunReport{
				Mode: schema.AnalyzeMode, VersionRange: "v6.17..v6.18", Found: 10, Scored: 3, Unattempted: 7, Interrupted: true,
				FailuresByKind: map[schema.ErrorKind]int{},
			},
			contains: []string{"Analysis interrupted", "Not attempted"},
			absent:   []string{"Failure ledger"},
		},
		{
			name: "repair cleared",
			report: schema.RunReport{
				Mode: schema.RepairMode, VersionRange: "v6.17..v6.18", Found: 1, Scored: 1,
				FailuresByKind: map[schema.ErrorKind]int{}, LedgerCleared: true,
			},
			contains: []string{"Repair complete", "ledger cleared"},
		},
		{
			name: "companies",
			report: schema.RunReport{
				Mode: schema.CompaniesMode, VersionRange: "v6.17..v6.18", Found: 1, Scored: 1,
				FailuresByKind: map[schema.ErrorKind]int{},
				CompanySummary: &schema.CompanySummary{
					VersionRange: "v6.17..v6.18", TotalCommits: 1,
					Companies:           map[string]schema.CompanyStats{"Huawei": {CommitCount: 1, TotalScore: 30, AvgScore: 30}},
					TopCompaniesByScore: []schema.CompanyRank{{Company: "Huawei", Value: 30}},
				},
			},
			contains: []string{"Companies for v6.17..v6.18", "Huawei"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeRunReport(&buf, &tt.report, testConfig(), time.Second))
			out := buf.String()
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestPrintRunReportJSON(t *testing.T) {
	cfg := testConfig()
	cfg.Output = schema.JSONOut
	cfg.OutputFile = filepath.Join(t.TempDir(), "report.json")

	report := &schema.RunReport{Mode: schema.RepairMode, VersionRange: "v1..v2", Found: 3, Scored: 2, FailuresByKind: map[schema.ErrorKind]int{schema.OracleError: 1}}
	require.NoError(t, PrintRunReport(report, cfg, time.Second))

	raw, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "repair", got["mode"])
	assert.Equal(t, float64(3), got["commits_found"])
	assert.Equal(t, map[string]any{"OTHER": float64(1)}, got["failures_by_kind"])
}

func TestWriteCommitsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCommitsCSV(&buf, sampleCommits()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "rank", records[0][0])
	assert.Equal(t, []string{"1", "1111111111111111", "2025-09-01", "Google", "BUG-SECURITY", "mm", "1", "72"}, records[1][:8])
	assert.Equal(t, "High", records[1][12])
	assert.Equal(t, "AGENT_ERROR|AGENT_ERROR_TIMEOUT", records[2][13])
	assert.Equal(t, "TIMEOUT", records[2][14])
	assert.Equal(t, "", records[2][2], "zero commit date stays empty")
}

func TestPrintSummaryFormats(t *testing.T) {
	tests := []struct {
		name   string
		output schema.OutputMode
		file   string
		check  func(t *testing.T, raw []byte)
	}{
		{
			name: "json", output: schema.JSONOut, file: "summary.json",
			check: func(t *testing.T, raw []byte) {
				var got schema.Summary
				require.NoError(t, json.Unmarshal(raw, &got))
				assert.Equal(t, 2, got.TotalCommits)
			},
		},
		{
			name: "csv", output: schema.CSVOut, file: "summary.csv",
			check: func(t *testing.T, raw []byte) {
				assert.Len(t, strings.Split(strings.TrimSpace(string(raw)), "\n"), 3)
			},
		},
		{
			name: "text", output: schema.TextOut, file: "summary.txt",
			check: func(t *testing.T, raw []byte) {
				out := string(raw)
				assert.Contains(t, out, "Summary for v6.17..v6.18")
				assert.Contains(t, out, "111111111111")
				assert.Contains(t, out, "Showing top 2 of 2 commits")
			},
		},
		{
			name: "parquet", output: schema.ParquetOut, file: "summary.parquet",
			check: func(t *testing.T, raw []byte) {
				assert.Equal(t, "PAR1", string(raw[:4]))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Output = tt.output
			cfg.OutputFile = filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, PrintSummary(sampleSummary(), sampleCommits(), cfg, time.Second))

			raw, err := os.ReadFile(cfg.OutputFile)
			require.NoError(t, err)
			tt.check(t, raw)
		})
	}
}

func TestPrintFailures(t *testing.T) {
	records := []schema.FailedCommitRecord{
		{CommitHash: "abcdef0123456789", ErrorKind: schema.RateLimitError, ErrorMessage: "Agent analysis failed with 429_RATE_LIMIT", Subject: "net: fix", Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
	}

	t.Run("text", func(t *testing.T) {
		cfg := testConfig()
		cfg.OutputFile = filepath.Join(t.TempDir(), "failures.txt")
		require.NoError(t, PrintFailures(records, cfg, time.Second))
		raw, err := os.ReadFile(cfg.OutputFile)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "abcdef012345")
		assert.Contains(t, string(raw), "429_RATE_LIMIT")
	})

	t.Run("empty text", func(t *testing.T) {
		cfg := testConfig()
		cfg.OutputFile = filepath.Join(t.TempDir(), "failures.txt")
		require.NoError(t, PrintFailures(nil, cfg, time.Second))
		raw, err := os.ReadFile(cfg.OutputFile)
		require.NoError(t, err)
		assert.Equal(t, "No failed commits recorded for v6.17..v6.18\n", string(raw))
	})

	t.Run("json empty is array", func(t *testing.T) {
		cfg := testConfig()
		cfg.Output = schema.JSONOut
		cfg.OutputFile = filepath.Join(t.TempDir(), "failures.json")
		require.NoError(t, PrintFailures(nil, cfg, time.Second))
		raw, err := os.ReadFile(cfg.OutputFile)
		require.NoError(t, err)
		assert.Equal(t, "[]\n", string(raw))
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeFailuresCSV(&buf, records))
		assert.Equal(t, "commit_hash,error_kind,error_message,subject,timestamp\n"+
			"abcdef0123456789,429_RATE_LIMIT,Agent analysis failed with 429_RATE_LIMIT,net: fix,2025-01-02T03:04:05Z\n", buf.String())
	})

	t.Run("parquet unsupported", func(t *testing.T) {
		cfg := testConfig()
		cfg.Output = schema.ParquetOut
		cfg.OutputFile = filepath.Join(t.TempDir(), "failures.parquet")
		require.Error(t, PrintFailures(records, cfg, time.Second))
	})
}

func TestGetMaxSubjectWidth(t *testing.T) {
	tests := []struct {
		width    int
		expected int
	}{
		{width: 80, expected: 15},
		{width: 120, expected: 25},
		{width: 300, expected: 70},
	}
	for _, tt := range tests {
		cfg := &contract.Config{Width: tt.width}
		assert.Equal(t, tt.expected, getMaxSubjectWidth(cfg), "width %d", tt.width)
	}
}
