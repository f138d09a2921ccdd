package core

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/schema"
)

// Pipeline scores commits with a fixed-size worker pool.
type Pipeline struct {
	Client   contract.GitClient
	Oracle   contract.Oracle
	RepoPath string
	Opts     ScoreOptions

	// Cache stores diff stats by commit hash. Optional.
	Cache contract.CacheStore

	// History receives every scored commit under RunID. Optional.
	History contract.HistoryStore
	RunID   string

	// Retry marks a repair pass; it only changes ledger messages.
	Retry bool

	Logger *slog.Logger
	Out    io.Writer
}

// RunResult is everything a pipeline run produced.
type RunResult struct {
	Commits     []schema.ScoredCommit
	Failures    []schema.FailedCommitRecord
	Unattempted []schema.RawCommit
	Interrupted bool
}

// FailuresByKind counts failures per error kind.
func (r RunResult) FailuresByKind() map[schema.ErrorKind]int {
	return CountFailures(r.Failures)
}

// CountFailures counts ledger records per error kind.
func CountFailures(records []schema.FailedCommitRecord) map[schema.ErrorKind]int {
	counts := map[schema.ErrorKind]int{}
	for _, f := range records {
		counts[f.ErrorKind]++
	}
	return counts
}

// SortedKinds returns the kinds of counts ordered by count descending, then name.
func SortedKinds(counts map[schema.ErrorKind]int) []schema.ErrorKind {
	kinds := slices.Collect(maps.Keys(counts))
	slices.SortFunc(kinds, func(a, b schema.ErrorKind) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return kinds
}

type job struct {
	idx    int
	commit schema.RawCommit
}

type outcome struct {
	idx     int
	skipped bool
	scored  schema.ScoredCommit
	failure *schema.FailedCommitRecord
}

// Run scores commits using the given number of workers.
// Every attempted commit yields exactly one ScoredCommit. Once ctx is
// cancelled no new commit is started; commits already being scored finish
// with a context detached from the cancellation. Results are sorted by
// commit date.
func (p *Pipeline) Run(ctx context.Context, commits []schema.RawCommit, workers int) RunResult {
	workers = max(1, workers)
	progress := NewProgressCounter(len(commits))
	detached := context.WithoutCancel(ctx)

	jobCh := make(chan job, len(commits))
	outcomeCh := make(chan outcome, len(commits))
	var wg sync.WaitGroup

	for range workers {
		wg.Go(func() {
			for j := range jobCh {
				if ctx.Err() != nil {
					outcomeCh <- outcome{idx: j.idx, skipped: true}
					continue
				}
				outcomeCh <- p.process(detached, j, progress)
			}
		})
	}

	go func() {
		for i, c := range commits {
			if ctx.Err() != nil {
				break
			}
			jobCh <- job{idx: i, commit: c}
		}
		close(jobCh)
		wg.Wait()
		close(outcomeCh)
	}()

	attempted := make([]bool, len(commits))
	result := RunResult{Commits: []schema.ScoredCommit{}, Failures: []schema.FailedCommitRecord{}}
	for o := range outcomeCh {
		if o.skipped {
			continue
		}
		attempted[o.idx] = true
		result.Commits = append(result.Commits, o.scored)
		if o.failure != nil {
			result.Failures = append(result.Failures, *o.failure)
		}
		p.record(o.scored)
	}

	for i, ok := range attempted {
		if !ok {
			result.Unattempted = append(result.Unattempted, commits[i])
		}
	}
	result.Interrupted = len(result.Unattempted) > 0

	SortByCommitDate(result.Commits)
	slices.SortFunc(result.Failures, func(a, b schema.FailedCommitRecord) int {
		return cmp.Compare(a.CommitHash, b.CommitHash)
	})
	return result
}

// process runs diff extraction, scoring and normalization for one commit.
func (p *Pipeline) process(ctx context.Context, j job, progress *ProgressCounter) (o outcome) {
	commit := j.commit
	short := commit.ShortHash()
	out := p.out()
	log := p.logger()

	n := progress.Increment()
	_, _ = fmt.Fprintf(out, "[%d/%d] Analyzing %s: %s...\n", n, progress.Total(), short, contract.Truncate(commit.Subject, 60))
	log.Info("analyzing commit", "progress", fmt.Sprintf("%d/%d", n, progress.Total()), "commit", short, "subject", contract.Truncate(commit.Subject, 60))

	defer func() {
		if r := recover(); r != nil {
			log.Error("commit processing panicked", "commit", short, "panic", r)
			kind := schema.OracleError
			scored := BuildScoredCommit(&commit, FallbackAnalysis(&commit, kind), kind, "")
			o = outcome{idx: j.idx, scored: scored, failure: p.failureRecord(&commit, kind, fmt.Sprint(r))}
		}
	}()

	FillDiff(ctx, p.Client, p.Cache, p.RepoPath, &commit)
	snippet := BestHunk(commit.Diff)

	opts := p.Opts
	opts.Logger = log
	opts.Out = out
	analysis, kind := ScoreCommit(ctx, p.Oracle, &commit, snippet, opts)

	if !kind.Failed() && !IsValidAnalysis(analysis) {
		log.Warn("incomplete analysis, using fallback", "commit", short)
		_, _ = fmt.Fprintln(out, "  -> Agent returned incomplete analysis, using fallback")
		kind = schema.IncompleteError
		analysis = FallbackAnalysis(&commit, kind)
	}
	if kind.Failed() {
		_, _ = fmt.Fprintf(out, "  -> Using fallback analysis due to: %s\n", kind)
	}

	scored := BuildScoredCommit(&commit, analysis, kind, snippet)
	status := "OK"
	if kind.Failed() {
		status = "FAILED"
	}
	log.Info("commit scored", "commit", short, "status", status, "score_total", scored.ScoreTotal,
		"category", scored.PrimaryCategory, "error", string(kind))

	o = outcome{idx: j.idx, scored: scored}
	if kind.Failed() {
		o.failure = p.failureRecord(&commit, kind, p.failureMessage(kind))
	}
	return o
}

func (p *Pipeline) failureMessage(kind schema.ErrorKind) string {
	if p.Retry {
		return fmt.Sprintf("Retry failed with %s", kind)
	}
	return fmt.Sprintf("Agent analysis failed with %s", kind)
}

func (p *Pipeline) failureRecord(commit *schema.RawCommit, kind schema.ErrorKind, msg string) *schema.FailedCommitRecord {
	return &schema.FailedCommitRecord{
		CommitHash:   commit.Hash,
		ErrorKind:    kind,
		ErrorMessage: msg,
		Subject:      contract.Truncate(commit.Subject, 100),
		Timestamp:    time.Now(),
	}
}

// record forwards a scored commit to the history store, if any.
func (p *Pipeline) record(commit schema.ScoredCommit) {
	if p.History == nil || p.RunID == "" {
		return
	}
	if err := p.History.RecordCommit(p.RunID, commit); err != nil {
		p.logger().Warn("recording commit in history", "commit", commit.ShortHash, "error", err)
	}
}

func (p *Pipeline) out() io.Writer {
	if p.Out == nil {
		return io.Discard
	}
	return p.Out
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return contract.DiscardLogger()
	}
	return p.Logger
}

// SortByCommitDate orders commits by commit date, breaking ties by hash.
func SortByCommitDate(commits []schema.ScoredCommit) {
	slices.SortStableFunc(commits, func(a, b schema.ScoredCommit) int {
		if c := a.CommitDate.Compare(b.CommitDate); c != 0 {
			return c
		}
		return cmp.Compare(a.CommitHash, b.CommitHash)
	})
}
