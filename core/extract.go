package core

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/schema"
)

// Diff extraction limits.
const (
	diffTimeout      = 30 * time.Second
	snippetScanLines = 500
	snippetMaxLines  = 20
)

// DiffCacheVersion is bumped whenever the cached DiffStats layout changes.
const DiffCacheVersion = 1

// ParseCommitLog parses git log output written with contract.CommitLogFormat.
// Blocks without a hash are skipped.
func ParseCommitLog(out []byte) []schema.RawCommit {
	var commits []schema.RawCommit
	fields := map[string]string{}
	var body []string
	inBody := false

	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == contract.CommitStartMarker:
			fields = map[string]string{}
			body = nil
			inBody = false
			continue
		case line == contract.CommitEndMarker:
			if fields["hash"] != "" {
				commits = append(commits, newRawCommit(fields, body))
			}
			fields = map[string]string{}
			body = nil
			inBody = false
			continue
		}

		if inBody {
			body = append(body, line)
			continue
		}
		if line == "Body:" {
			inBody = true
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "_")
		fields[key] = strings.TrimSpace(value)
	}
	return commits
}

// newRawCommit builds the metadata part of a RawCommit from parsed log fields.
func newRawCommit(fields map[string]string, body []string) schema.RawCommit {
	authorName, authorEmail := splitIdentity(fields["author"])
	committerName, committerEmail := splitIdentity(fields["committer"])
	return schema.RawCommit{
		Hash:           fields["hash"],
		AuthorName:     authorName,
		AuthorEmail:    authorEmail,
		AuthorDate:     parseGitTime(fields["authordate"]),
		CommitterName:  committerName,
		CommitterEmail: committerEmail,
		CommitDate:     parseGitTime(fields["commitdate"]),
		Subject:        fields["subject"],
		Body:           strings.Trim(strings.Join(body, "\n"), "\n"),
	}
}

// splitIdentity splits "Name <email>" into its parts.
func splitIdentity(s string) (name, email string) {
	name, rest, found := strings.Cut(s, "<")
	name = strings.TrimSpace(name)
	if !found {
		return name, ""
	}
	if i := strings.LastIndex(s, "<"); i >= 0 {
		rest = s[i+1:]
	}
	email, _, _ = strings.Cut(rest, ">")
	return name, strings.TrimSpace(email)
}

// parseGitTime parses the strict ISO 8601 dates printed by %aI and %cI.
func parseGitTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ListCommits returns the non-merge commits of versionRange, metadata only.
func ListCommits(ctx context.Context, client contract.GitClient, repoPath, versionRange, authorFilter string, maxCommits int) ([]schema.RawCommit, error) {
	out, err := client.GetCommitLog(ctx, repoPath, versionRange, authorFilter, maxCommits)
	if err != nil {
		return nil, fmt.Errorf("listing commits for %s: %w", versionRange, err)
	}
	return ParseCommitLog(out), nil
}

// FetchCommit returns the metadata of a single commit.
func FetchCommit(ctx context.Context, client contract.GitClient, repoPath, hash string) (schema.RawCommit, error) {
	out, err := client.GetCommit(ctx, repoPath, hash)
	if err != nil {
		return schema.RawCommit{}, err
	}
	commits := ParseCommitLog(out)
	if len(commits) == 0 {
		return schema.RawCommit{}, fmt.Errorf("commit %s: %w", schema.ShortHash(hash), contract.ErrCommitNotFound)
	}
	return commits[0], nil
}

// FillDiff populates the diff-derived fields of commit.
// A failing or slow git query leaves the fields empty instead of returning an error.
// When store is non-nil, successful results are cached by commit hash.
func FillDiff(ctx context.Context, client contract.GitClient, store contract.CacheStore, repoPath string, commit *schema.RawCommit) {
	stats, ok := checkDiffCache(store, commit.Hash)
	if !ok {
		var err error
		stats, err = computeDiffStats(ctx, client, repoPath, commit.Hash)
		if err != nil {
			stats = schema.DiffStats{}
		} else {
			storeDiffStats(store, commit.Hash, stats)
		}
	}
	commit.Files = stats.Files
	if commit.Files == nil {
		commit.Files = []string{}
	}
	commit.FilesChanged = len(commit.Files)
	commit.Insertions = stats.Insertions
	commit.Deletions = stats.Deletions
	commit.Hunks = stats.Hunks
	commit.Diff = stats.Diff
}

// checkDiffCache returns cached stats for hash when present and current.
func checkDiffCache(store contract.CacheStore, hash string) (schema.DiffStats, bool) {
	if store == nil {
		return schema.DiffStats{}, false
	}
	data, version, _, err := store.Get(hash)
	if err != nil || version != DiffCacheVersion {
		return schema.DiffStats{}, false
	}
	var stats schema.DiffStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return schema.DiffStats{}, false
	}
	return stats, true
}

// storeDiffStats writes stats to the cache; write failures are ignored.
func storeDiffStats(store contract.CacheStore, hash string, stats schema.DiffStats) {
	if store == nil {
		return
	}
	if data, err := json.Marshal(stats); err == nil {
		_ = store.Set(hash, data, DiffCacheVersion, time.Now().Unix())
	}
}

// computeDiffStats runs the numstat and full diff queries, each with its own timeout.
func computeDiffStats(ctx context.Context, client contract.GitClient, repoPath, hash string) (schema.DiffStats, error) {
	numCtx, cancel := context.WithTimeout(ctx, diffTimeout)
	numstat, err := client.GetDiffNumstat(numCtx, repoPath, hash)
	cancel()
	if err != nil {
		return schema.DiffStats{}, err
	}

	diffCtx, cancel := context.WithTimeout(ctx, diffTimeout)
	diff, err := client.GetDiff(diffCtx, repoPath, hash)
	cancel()
	if err != nil {
		return schema.DiffStats{}, err
	}

	files, ins, del := parseNumstat(numstat)
	text := string(diff)
	return schema.DiffStats{
		Files:      files,
		Insertions: ins,
		Deletions:  del,
		Hunks:      countHunks(text),
		Diff:       text,
	}, nil
}

// parseNumstat sums "added<TAB>deleted<TAB>path" lines. Binary entries ("-") count as 0.
func parseNumstat(out []byte) (files []string, insertions, deletions int) {
	files = []string{}
	for line := range strings.SplitSeq(strings.TrimSpace(string(out)), "\n") {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 3 {
			continue
		}
		ins, okIns := parseChurnValue(parts[0])
		del, okDel := parseChurnValue(parts[1])
		if !okIns || !okDel {
			continue
		}
		insertions += ins
		deletions += del
		files = append(files, parts[2])
	}
	return files, insertions, deletions
}

// parseChurnValue parses a numstat count, treating "-" as 0.
func parseChurnValue(s string) (int, bool) {
	if s == "-" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// countHunks counts hunk header lines in a unified diff.
func countHunks(diff string) int {
	n := 0
	for line := range strings.SplitSeq(diff, "\n") {
		if strings.HasPrefix(line, "@@") {
			n++
		}
	}
	return n
}

// BestHunk picks a representative hunk from the start of a diff.
// Only the first 500 lines are scanned and scanning stops once the hunk
// being read reaches 20 lines. A hunk replaces the best so far only when
// strictly larger, so ties keep the earliest hunk.
func BestHunk(diff string) string {
	lines := strings.Split(diff, "\n")
	if len(lines) > snippetScanLines {
		lines = lines[:snippetScanLines]
	}

	var best, current []string
	inHunk := false
	for _, line := range lines {
		if strings.HasPrefix(line, "@@") {
			if len(current) > len(best) {
				best = current
			}
			current = []string{line}
			inHunk = true
			continue
		}
		if !inHunk {
			continue
		}
		current = append(current, line)
		if len(current) >= snippetMaxLines {
			break
		}
	}
	if len(current) > len(best) {
		best = current
	}
	if len(best) > snippetMaxLines {
		best = best[:snippetMaxLines]
	}
	return strings.Join(best, "\n")
}
