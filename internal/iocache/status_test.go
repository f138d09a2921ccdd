package iocache

import (
	"bytes"
	"testing"
	"time"

	"github.com/huangsam/kernscore/schema"
	"github.com/stretchr/testify/assert"
)

func TestPrintCacheStatus(t *testing.T) {
	var buf bytes.Buffer
	PrintCacheStatus(&buf, schema.CacheStatus{Backend: "none"})
	assert.Equal(t, "Cache Backend: none\nConnected: false\n", buf.String())

	buf.Reset()
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)
	PrintCacheStatus(&buf, schema.CacheStatus{
		Backend: "sqlite", Connected: true, TotalEntries: 3,
		LastEntryTime: ts, OldestEntryTime: ts, TableSizeBytes: 4096,
	})
	assert.Contains(t, buf.String(), "Total Entries: 3\n")
	assert.Contains(t, buf.String(), "Last Entry: 2025-01-02 03:04:05\n")
	assert.Contains(t, buf.String(), "Table Size: 4096 bytes\n")
}

func TestPrintHistoryStatus(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)
	PrintHistoryStatus(&buf, schema.HistoryStatus{
		Backend: "sqlite", Connected: true, TotalRuns: 2, LastRunID: "run-2",
		LastRunTime: ts, OldestRunTime: ts, TotalCommitScores: 9,
		TableSizes: map[string]int64{commitScoresTable: 9, runsTable: 2},
	})
	out := buf.String()
	assert.Contains(t, out, "Last Run ID: run-2\n")
	assert.Contains(t, out, "Total Commit Scores: 9\n")
	assert.Contains(t, out, "Table Sizes:\n  kernscore_commit_scores: 9 rows\n  kernscore_runs: 2 rows\n", "tables are listed by name")
}
