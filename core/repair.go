package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/schema"
)

// RepairResult is the outcome of re-scoring a failure ledger.
type RepairResult struct {
	Attempted   int
	Repaired    []schema.ScoredCommit
	StillFailed []schema.FailedCommitRecord
	Interrupted bool
}

// RepairedCount returns how many commits now carry a successful score.
func (r RepairResult) RepairedCount() int {
	n := 0
	for _, c := range r.Repaired {
		if !c.ErrorKind.Failed() {
			n++
		}
	}
	return n
}

// repairRecords re-fetches every ledger entry and runs it through the pipeline again.
// Entries whose commit cannot be fetched, and entries never attempted because
// of an interrupt, are carried into StillFailed.
func repairRecords(ctx context.Context, p *Pipeline, records []schema.FailedCommitRecord, workers int) RepairResult {
	result := RepairResult{Attempted: len(records), Repaired: []schema.ScoredCommit{}}
	byHash := make(map[string]schema.FailedCommitRecord, len(records))
	var commits []schema.RawCommit

	for i, rec := range records {
		if ctx.Err() != nil {
			result.StillFailed = append(result.StillFailed, records[i:]...)
			result.Interrupted = true
			break
		}
		commit, err := FetchCommit(ctx, p.Client, p.RepoPath, rec.CommitHash)
		if err != nil {
			p.logger().Warn("could not fetch commit for repair", "commit", schema.ShortHash(rec.CommitHash), "error", err)
			_, _ = fmt.Fprintf(p.out(), "  [WARNING] Could not find commit %s in repo\n", schema.ShortHash(rec.CommitHash))
			result.StillFailed = append(result.StillFailed, notFoundRecord(rec, err))
			continue
		}
		byHash[commit.Hash] = rec
		commits = append(commits, commit)
	}

	p.Retry = true
	run := p.Run(ctx, commits, workers)
	result.Repaired = run.Commits
	result.StillFailed = append(result.StillFailed, run.Failures...)
	for _, c := range run.Unattempted {
		result.StillFailed = append(result.StillFailed, byHash[c.Hash])
	}
	result.Interrupted = result.Interrupted || run.Interrupted
	return result
}

// notFoundRecord keeps an unresolvable ledger entry, reclassified as OTHER.
func notFoundRecord(rec schema.FailedCommitRecord, err error) schema.FailedCommitRecord {
	msg := err.Error()
	if errors.Is(err, contract.ErrCommitNotFound) {
		msg = fmt.Sprintf("Commit %s not found in repository", schema.ShortHash(rec.CommitHash))
	}
	rec.ErrorKind = schema.OracleError
	rec.ErrorMessage = msg
	return rec
}

// MergeScoredCommits overlays updates onto existing by commit hash and
// re-sorts the result by commit date. Updates always win.
func MergeScoredCommits(existing, updates []schema.ScoredCommit) []schema.ScoredCommit {
	merged := slices.Clone(existing)
	index := make(map[string]int, len(merged))
	for i, c := range merged {
		index[c.CommitHash] = i
	}
	for _, u := range updates {
		if i, ok := index[u.CommitHash]; ok {
			merged[i] = u
			continue
		}
		index[u.CommitHash] = len(merged)
		merged = append(merged, u)
	}
	SortByCommitDate(merged)
	return merged
}
