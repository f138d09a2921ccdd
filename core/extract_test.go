package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestParseCommitLog(t *testing.T) {
	date := time.Date(2025, 9, 28, 14, 3, 5, 0, time.FixedZone("", 2*3600))
	out := logBlock(testCommit{
		hash:    "a1b2c3d4e5f60718293a4b5c6d7e8f9012345678",
		author:  "Jane Q. Dev",
		email:   "jane@kernel.org",
		date:    date,
		subject: "mm/hugetlb: fix: off-by-one in reservation",
		body:    "First line.\n\nReviewed-by: Bob <bob@suse.com>\nSigned-off-by: Jane Q. Dev <jane@kernel.org>",
	}) + contract.CommitStartMarker + "\nSubject: no hash here\nBody:\n\n" + contract.CommitEndMarker + "\n"

	commits := ParseCommitLog([]byte(out))
	require.Len(t, commits, 1, "blocks without a hash are skipped")

	c := commits[0]
	assert.Equal(t, "a1b2c3d4e5f60718293a4b5c6d7e8f9012345678", c.Hash)
	assert.Equal(t, "Jane Q. Dev", c.AuthorName)
	assert.Equal(t, "jane@kernel.org", c.AuthorEmail)
	assert.Equal(t, "jane@kernel.org", c.CommitterEmail)
	assert.True(t, date.Equal(c.AuthorDate))
	assert.True(t, date.Equal(c.CommitDate))
	assert.Equal(t, "mm/hugetlb: fix: off-by-one in reservation", c.Subject)
	assert.Equal(t, "First line.\n\nReviewed-by: Bob <bob@suse.com>\nSigned-off-by: Jane Q. Dev <jane@kernel.org>", c.Body)
	assert.Equal(t, "a1b2c3d4e5f6", c.ShortHash())
}

func TestParseCommitLogEmpty(t *testing.T) {
	assert.Empty(t, ParseCommitLog(nil))
	assert.Empty(t, ParseCommitLog([]byte("garbage\nlines\n")))
}

func TestSplitIdentity(t *testing.T) {
	tests := []struct {
		in, name, email string
	}{
		{"Jane Dev <jane@kernel.org>", "Jane Dev", "jane@kernel.org"},
		{"Odd <Name> <real@example.com>", "Odd", "real@example.com"},
		{"No Email", "No Email", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, email := splitIdentity(tt.in)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.email, email)
		})
	}
}

func TestParseNumstat(t *testing.T) {
	out := "10\t2\tmm/page_alloc.c\n-\t-\tfirmware/blob.bin\nnot a numstat line\n3\t0\tinclude/linux/mm.h\n"
	files, ins, del := parseNumstat([]byte(out))
	assert.Equal(t, []string{"mm/page_alloc.c", "firmware/blob.bin", "include/linux/mm.h"}, files)
	assert.Equal(t, 13, ins)
	assert.Equal(t, 2, del)

	files, ins, del = parseNumstat(nil)
	assert.Equal(t, []string{}, files)
	assert.Zero(t, ins)
	assert.Zero(t, del)
}

func TestCountHunks(t *testing.T) {
	diff := "diff --git a/x b/x\n@@ -1 +1 @@\n-a\n+b\n@@ -10,2 +10,3 @@ func\n ctx\n+c\n"
	assert.Equal(t, 2, countHunks(diff))
	assert.Equal(t, 0, countHunks(""))
}

func hunk(header string, n int) []string {
	lines := []string{header}
	for i := range n {
		lines = append(lines, fmt.Sprintf("+line %d", i))
	}
	return lines
}

func TestBestHunk(t *testing.T) {
	join := func(parts ...[]string) string {
		var all []string
		for _, p := range parts {
			all = append(all, p...)
		}
		return strings.Join(all, "\n")
	}
	small := hunk("@@ -1,2 +1,2 @@", 2)
	big := hunk("@@ -50,5 +50,5 @@", 5)
	huge := hunk("@@ -90,40 +90,40 @@", 40)

	tests := []struct {
		name string
		diff string
		want string
	}{
		{"empty diff", "", ""},
		{"no hunks", "diff --git a/x b/x\nindex 123..456", ""},
		{"single hunk", join([]string{"diff --git a/x b/x"}, small), strings.Join(small, "\n")},
		{"larger later hunk wins", join(small, big), strings.Join(big, "\n")},
		{"tie keeps earliest", join(big, hunk("@@ -70,5 +70,5 @@", 5)), strings.Join(big, "\n")},
		{"capped at twenty lines", join(huge), strings.Join(huge[:20], "\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BestHunk(tt.diff))
		})
	}
}

func TestBestHunkScansFirst500Lines(t *testing.T) {
	var lines []string
	for range 499 {
		lines = append(lines, " context")
	}
	lines = append(lines, "@@ -1 +1 @@", "+beyond the scan window")
	assert.Equal(t, "@@ -1 +1 @@", BestHunk(strings.Join(lines, "\n")))
}

// memCache is an in-memory CacheStore.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ver  map[string]int
	sets int
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ver: map[string]int{}}
}

func (m *memCache) Get(key string) ([]byte, int, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, 0, 0, errors.New("not found")
	}
	return v, m.ver[key], 0, nil
}

func (m *memCache) Set(key string, value []byte, version int, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.data[key] = value
	m.ver[key] = version
	return nil
}

func (m *memCache) GetStatus() (schema.CacheStatus, error) { return schema.CacheStatus{}, nil }
func (m *memCache) Close() error                           { return nil }

func TestFillDiff(t *testing.T) {
	ctx := context.Background()
	commits := sampleCommits(1)
	git := &fakeGit{commits: commits}
	cache := newMemCache()

	c := schema.RawCommit{Hash: commits[0].hash}
	FillDiff(ctx, git, cache, "/repo", &c)
	assert.Equal(t, []string{"mm/page_alloc.c"}, c.Files)
	assert.Equal(t, 1, c.FilesChanged)
	assert.Equal(t, 3, c.Insertions)
	assert.Equal(t, 1, c.Deletions)
	assert.Equal(t, 1, c.Hunks)
	assert.Contains(t, c.Diff, "+a")
	assert.Equal(t, 1, cache.sets)

	t.Run("served from cache", func(t *testing.T) {
		mockGit := &contract.MockGitClient{}
		again := schema.RawCommit{Hash: commits[0].hash}
		FillDiff(ctx, mockGit, cache, "/repo", &again)
		assert.Equal(t, c.Files, again.Files)
		assert.Equal(t, c.Diff, again.Diff)
		mockGit.AssertNotCalled(t, "GetDiffNumstat", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stale cache version is recomputed", func(t *testing.T) {
		stale, _ := json.Marshal(schema.DiffStats{Files: []string{"old.c"}})
		cache.data["stale"] = stale
		cache.ver["stale"] = DiffCacheVersion + 1
		git.commits = append(git.commits, testCommit{hash: "stale", numstat: "1\t1\tfs/namei.c\n"})
		got := schema.RawCommit{Hash: "stale"}
		FillDiff(ctx, git, cache, "/repo", &got)
		assert.Equal(t, []string{"fs/namei.c"}, got.Files)
	})
}

func TestFillDiffGitFailure(t *testing.T) {
	mockGit := &contract.MockGitClient{}
	mockGit.On("GetDiffNumstat", mock.Anything, "/repo", "deadbeef").Return(nil, errors.New("git timed out"))
	cache := newMemCache()

	c := schema.RawCommit{Hash: "deadbeef"}
	FillDiff(context.Background(), mockGit, cache, "/repo", &c)

	assert.Equal(t, []string{}, c.Files)
	assert.Zero(t, c.FilesChanged)
	assert.Zero(t, c.Insertions)
	assert.Zero(t, c.Deletions)
	assert.Zero(t, c.Hunks)
	assert.Empty(t, c.Diff)
	assert.Zero(t, cache.sets, "failures are not cached")
	mockGit.AssertExpectations(t)
}

func TestListAndFetchCommits(t *testing.T) {
	ctx := context.Background()
	git := &fakeGit{commits: sampleCommits(3), missing: map[string]bool{hashN(2): true}}

	commits, err := ListCommits(ctx, git, "/repo", "v1..v2", "", 2)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, hashN(0), commits[0].Hash)

	c, err := FetchCommit(ctx, git, "/repo", hashN(1))
	require.NoError(t, err)
	assert.Equal(t, "mm: fix issue 1", c.Subject)

	_, err = FetchCommit(ctx, git, "/repo", hashN(2))
	require.ErrorIs(t, err, contract.ErrCommitNotFound)
}

func TestListCommitsError(t *testing.T) {
	mockGit := &contract.MockGitClient{}
	mockGit.On("GetCommitLog", mock.Anything, "/repo", "bad..range", "", 0).Return(nil, errors.New("unknown revision"))

	_, err := ListCommits(context.Background(), mockGit, "/repo", "bad..range", "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing commits for bad..range")
}
