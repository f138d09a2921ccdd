//go:build basic

package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readJSON decodes a JSON file written by the CLI.
func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

// TestAnalyzeVerification scores a fixture repository and verifies the results
// against git rev-list.
func TestAnalyzeVerification(t *testing.T) {
	repo := newFixtureRepo(t)
	outDir := t.TempDir()
	env := []string{"KERNSCORE_CACHE_BACKEND=none", "KERNSCORE_HISTORY_BACKEND="}

	_, err := runKernscore(t, repo, env, "analyze", "v1..v2",
		"--repo", repo, "--output-dir", outDir, "--workers", "2",
		"--agent-binary", writeFakeAgent(t, ""))
	require.NoError(t, err)

	want, err := strconv.Atoi(runGit(t, repo, "rev-list", "--count", "v1..v2"))
	require.NoError(t, err)

	var commits []map[string]any
	readJSON(t, filepath.Join(outDir, "commit_scores_v1_v2_all.json"), &commits)
	require.Len(t, commits, want)

	seen := map[string]bool{}
	for _, c := range commits {
		seen[c["commit_hash"].(string)] = true
		assert.Equal(t, float64(14), c["score_total"], c["subject"])
		assert.NotContains(t, c, "error_kind")
	}
	assert.Len(t, seen, want, "one result per commit")

	var summary map[string]any
	readJSON(t, filepath.Join(outDir, "commit_scores_v1_v2_summary.json"), &summary)
	assert.Equal(t, float64(want), summary["total_commits_analyzed"])

	_, err = os.Stat(filepath.Join(outDir, "failed_commits_v1_v2.json"))
	assert.True(t, os.IsNotExist(err), "no ledger without failures")

	_, err = runKernscore(t, repo, env, "summary", "v1..v2", "--output-dir", outDir, "--output", "csv")
	require.NoError(t, err)
}

// TestAnalyzeThenRepair drives a failing commit through the ledger and repairs it.
func TestAnalyzeThenRepair(t *testing.T) {
	repo := newFixtureRepo(t)
	outDir := t.TempDir()
	env := []string{"KERNSCORE_CACHE_BACKEND=none", "KERNSCORE_HISTORY_BACKEND="}
	ledger := filepath.Join(outDir, "failed_commits_v1_v2.json")

	_, err := runKernscore(t, repo, env, "analyze", "v1..v2",
		"--repo", repo, "--output-dir", outDir,
		"--agent-binary", writeFakeAgent(t, "flaky fix"))
	require.NoError(t, err)

	var records []map[string]any
	readJSON(t, ledger, &records)
	require.Len(t, records, 1)
	assert.Equal(t, "JSON_ERROR", records[0]["error_kind"])
	assert.Equal(t, "net: flaky fix for tcp", records[0]["subject"])

	out, err := runKernscore(t, repo, env, "failures", "v1..v2", "--output-dir", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "JSON_ERROR")

	_, err = runKernscore(t, repo, env, "repair", "v1..v2",
		"--repo", repo, "--output-dir", outDir,
		"--agent-binary", writeFakeAgent(t, ""))
	require.NoError(t, err)

	_, err = os.Stat(ledger)
	assert.True(t, os.IsNotExist(err), "ledger is removed after a clean repair")

	var commits []map[string]any
	readJSON(t, filepath.Join(outDir, "commit_scores_v1_v2_all.json"), &commits)
	require.Len(t, commits, len(fixtureCommits))
	for _, c := range commits {
		assert.Equal(t, float64(14), c["score_total"], c["subject"])
	}
}

// TestChineseCompaniesVerification checks the companies mode writes only
// commits of Chinese companies.
func TestChineseCompaniesVerification(t *testing.T) {
	repo := newFixtureRepo(t)
	outDir := t.TempDir()
	env := []string{"KERNSCORE_CACHE_BACKEND=none", "KERNSCORE_HISTORY_BACKEND="}

	_, err := runKernscore(t, repo, env, "analyze", "v1..v2",
		"--repo", repo, "--output-dir", outDir, "--chinese-companies",
		"--agent-binary", writeFakeAgent(t, ""))
	require.NoError(t, err)

	var summary map[string]any
	readJSON(t, filepath.Join(outDir, "chinese_companies_v1_v2_summary.json"), &summary)
	companies, ok := summary["companies"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, companies, "Huawei")
	assert.NotContains(t, companies, "Intel")
}
