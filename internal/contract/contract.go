// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"errors"
	"time"

	"github.com/huangsam/kernscore/schema"
)

// Sentinel errors shared across packages.
var (
	// ErrRateLimited is returned by an Oracle when the backend refused the request with a rate limit.
	ErrRateLimited = errors.New("oracle rate limited")

	// ErrCommitNotFound is returned when a commit hash cannot be resolved in the repository.
	ErrCommitNotFound = errors.New("commit not found")
)

// GitClient defines the read-only git queries needed to extract commits.
// This allows the core logic to be tested without needing a real git executable.
type GitClient interface {
	// Run executes a git command and returns its stdout.
	Run(ctx context.Context, repoPath string, args ...string) ([]byte, error)

	// GetRepoRoot returns the absolute path to the root of the Git repository
	// containing the given context path.
	GetRepoRoot(ctx context.Context, contextPath string) (string, error)

	// GetCommitLog returns the formatted, non-merge commit log for a version range.
	// An empty authorFilter means no author restriction; maxCommits <= 0 means no limit.
	GetCommitLog(ctx context.Context, repoPath, versionRange, authorFilter string, maxCommits int) ([]byte, error)

	// GetCommit returns the formatted log block of a single commit.
	GetCommit(ctx context.Context, repoPath, hash string) ([]byte, error)

	// GetDiffNumstat returns `git diff --numstat` output for a commit against its parent.
	GetDiffNumstat(ctx context.Context, repoPath, hash string) ([]byte, error)

	// GetDiff returns the unified diff of a commit against its parent.
	GetDiff(ctx context.Context, repoPath, hash string) ([]byte, error)
}

// OracleResponse is the raw output of one oracle invocation.
type OracleResponse struct {
	Stdout string
	Stderr string
}

// Oracle is the external scoring service. Implementations must honor ctx
// cancellation and deadlines and return ctx.Err() (wrapped) when they fire.
type Oracle interface {
	Invoke(ctx context.Context, prompt string) (OracleResponse, error)
}

// CacheManager defines the interface for managing cache stores.
// This allows the cache layer to be mocked for testing.
type CacheManager interface {
	GetDiffStore() CacheStore
	GetHistoryStore() HistoryStore
}

// CacheStore defines the interface for cache data storage.
// This allows mocking the store for testing.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// HistoryStore records every run and the scores it produced.
type HistoryStore interface {
	// BeginRun creates a new run and returns its unique ID.
	BeginRun(startTime time.Time, mode schema.RunMode, versionRange, companyFilter string, configParams map[string]any) (string, error)

	// EndRun updates the run with completion data.
	EndRun(runID string, endTime time.Time, totalCommits, failedCommits int) error

	// RecordCommit stores the score columns of one commit.
	RecordCommit(runID string, commit schema.ScoredCommit) error

	// GetStatus returns status information about the history store.
	GetStatus() (schema.HistoryStatus, error)

	// GetAllRuns retrieves all runs ordered by start time.
	GetAllRuns() ([]schema.RunRecord, error)

	// GetAllCommitScores retrieves all recorded commit scores.
	GetAllCommitScores() ([]schema.CommitScoreRecord, error)

	// Close closes the underlying connection.
	Close() error
}
