//go:build database

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/kernscore/internal/iocache"
	"github.com/huangsam/kernscore/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startMySQL starts a MySQL container and returns its connection string.
func startMySQL(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mysql:8",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret123",
			"MYSQL_DATABASE":      "kernscore",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(60 * time.Second),
	}
	mysqlC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mysqlC.Terminate(ctx) })

	host, err := mysqlC.Host(ctx)
	require.NoError(t, err)
	port, err := mysqlC.MappedPort(ctx, "3306")
	require.NoError(t, err)

	return fmt.Sprintf("root:secret123@tcp(%s:%s)/kernscore?parseTime=true", host, port.Port())
}

// startPostgres starts a PostgreSQL container and returns its connection string.
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_HOST_AUTH_METHOD": "trust",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("host=%s port=%s user=postgres dbname=postgres sslmode=disable", host, port.Port())
}

// TestDatabaseBackends runs the CLI and the stores against real database servers.
func TestDatabaseBackends(t *testing.T) {
	backends := []struct {
		name    string
		backend schema.DatabaseBackend
		start   func(t *testing.T) string
	}{
		{"mysql", schema.MySQLBackend, startMySQL},
		{"postgresql", schema.PostgreSQLBackend, startPostgres},
	}
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			connStr := b.start(t)
			t.Run("history store", func(t *testing.T) {
				testHistoryStore(t, b.backend, connStr)
			})
			t.Run("cache store", func(t *testing.T) {
				testCacheStore(t, b.backend, connStr)
			})
			t.Run("migrations", func(t *testing.T) {
				testMigrations(t, b.backend, connStr)
			})
			t.Run("cli", func(t *testing.T) {
				testCLI(t, b.backend, connStr)
			})
		})
	}
}

func testHistoryStore(t *testing.T, backend schema.DatabaseBackend, connStr string) {
	require.NoError(t, iocache.ClearHistory(backend, "", connStr))
	store, err := iocache.NewHistoryStore(backend, connStr)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	start := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	runID, err := store.BeginRun(start, schema.AnalyzeMode, "v6.17..v6.18", "@huawei.com", map[string]any{"workers": 4})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	commit := schema.ScoredCommit{
		CommitHash:      "0123456789abcdef0123456789abcdef01234567",
		ShortHash:       "0123456789ab",
		CommitDate:      start.Add(-time.Hour),
		AuthorCompany:   "Huawei",
		PrimaryCategory: "BUG-MEMORY",
		SubsystemTier:   1,
		ScoreTotal:      42,
		ScoreTechnical:  20,
		ScoreImpact:     12,
		ScoreQuality:    7,
		ScoreCommunity:  3,
	}
	require.NoError(t, store.RecordCommit(runID, commit))
	commit.ScoreTotal = 50
	require.NoError(t, store.RecordCommit(runID, commit), "recording twice upserts")

	failed := commit
	failed.CommitHash = "fedcba9876543210fedcba9876543210fedcba98"
	failed.ErrorKind = schema.TimeoutError
	failed.ScoreTotal = 0
	require.NoError(t, store.RecordCommit(runID, failed))
	require.NoError(t, store.EndRun(runID, start.Add(1500*time.Millisecond), 2, 1))

	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].RunID)
	assert.Equal(t, string(schema.AnalyzeMode), runs[0].Mode)
	assert.Equal(t, "@huawei.com", runs[0].CompanyFilter)
	require.NotNil(t, runs[0].RunDurationMs)
	assert.Equal(t, int64(1500), *runs[0].RunDurationMs)
	assert.Equal(t, int32(2), runs[0].TotalCommits)
	assert.Equal(t, int32(1), runs[0].FailedCommits)

	scores, err := store.GetAllCommitScores()
	require.NoError(t, err)
	require.Len(t, scores, 2)
	byHash := map[string]schema.CommitScoreRecord{}
	for _, s := range scores {
		byHash[s.CommitHash] = s
	}
	assert.Equal(t, int32(50), byHash[commit.CommitHash].ScoreTotal)
	assert.Nil(t, byHash[commit.CommitHash].ErrorKind)
	require.NotNil(t, byHash[failed.CommitHash].ErrorKind)
	assert.Equal(t, "TIMEOUT", *byHash[failed.CommitHash].ErrorKind)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.TotalRuns)
}

func testCacheStore(t *testing.T, backend schema.DatabaseBackend, connStr string) {
	require.NoError(t, iocache.ClearCache(backend, "", connStr))
	store, err := iocache.NewCacheStore("kernscore_diff_cache", backend, connStr)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Set("abc", []byte(`{"files":["mm/slub.c"]}`), 1, 1000))
	require.NoError(t, store.Set("abc", []byte(`{"files":["mm/slab.c"]}`), 2, 2000))

	value, version, ts, err := store.Get("abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"files":["mm/slab.c"]}`, string(value))
	assert.Equal(t, 2, version)
	assert.Equal(t, int64(2000), ts)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, status.TotalEntries)
}

func testMigrations(t *testing.T, backend schema.DatabaseBackend, connStr string) {
	require.NoError(t, iocache.ClearHistory(backend, "", connStr))

	require.NoError(t, iocache.MigrateHistory(backend, connStr, -1, os.Stdout))
	version, dirty, err := iocache.HistoryVersion(backend, connStr)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	require.NoError(t, iocache.MigrateHistory(backend, connStr, 0, os.Stdout))
	version, _, err = iocache.HistoryVersion(backend, connStr)
	require.NoError(t, err)
	assert.Zero(t, version)

	require.NoError(t, iocache.MigrateHistory(backend, connStr, -1, os.Stdout))
}

func testCLI(t *testing.T, backend schema.DatabaseBackend, connStr string) {
	repo := newFixtureRepo(t)
	outDir := t.TempDir()
	env := []string{
		"KERNSCORE_CACHE_BACKEND=" + string(backend),
		"KERNSCORE_CACHE_DB_CONNECT=" + connStr,
		"KERNSCORE_HISTORY_BACKEND=" + string(backend),
		"KERNSCORE_HISTORY_DB_CONNECT=" + connStr,
	}

	for _, args := range [][]string{
		{"cache", "clear"},
		{"history", "clear"},
		{"history", "migrate"},
		{"analyze", "v1..v2", "--repo", repo, "--output-dir", outDir, "--agent-binary", writeFakeAgent(t, "")},
		{"cache", "status"},
	} {
		_, err := runKernscore(t, repo, env, args...)
		require.NoError(t, err, "kernscore %v", args)
	}

	out, err := runKernscore(t, repo, env, "history", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Total Runs: 1")

	exportBase := filepath.Join(t.TempDir(), "kernscore")
	_, err = runKernscore(t, repo, env, "history", "export", "--output-file", exportBase)
	require.NoError(t, err)
	for _, suffix := range []string{".runs.parquet", ".commit_scores.parquet"} {
		_, err := os.Stat(exportBase + suffix)
		assert.NoError(t, err, suffix)
	}
}
