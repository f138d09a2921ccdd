package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/schema"
)

// testCommit describes one commit served by fakeGit.
type testCommit struct {
	hash    string
	author  string
	email   string
	date    time.Time
	subject string
	body    string
	numstat string
	diff    string
}

// logBlock renders c the way git prints contract.CommitLogFormat.
func logBlock(c testCommit) string {
	date := c.date.Format(time.RFC3339)
	return strings.Join([]string{
		contract.CommitStartMarker,
		"Hash: " + c.hash,
		fmt.Sprintf("Author: %s <%s>", c.author, c.email),
		"AuthorDate: " + date,
		fmt.Sprintf("Committer: %s <%s>", c.author, c.email),
		"CommitDate: " + date,
		"Subject: " + c.subject,
		"Body:",
		c.body,
		"",
		contract.CommitEndMarker,
	}, "\n") + "\n"
}

// fakeGit is an in-memory GitClient serving a fixed set of commits.
type fakeGit struct {
	commits []testCommit
	missing map[string]bool // hashes GetCommit cannot resolve
}

var _ contract.GitClient = &fakeGit{}

func (f *fakeGit) find(hash string) (testCommit, bool) {
	for _, c := range f.commits {
		if c.hash == hash {
			return c, true
		}
	}
	return testCommit{}, false
}

func (f *fakeGit) Run(context.Context, string, ...string) ([]byte, error) { return nil, nil }

func (f *fakeGit) GetRepoRoot(_ context.Context, p string) (string, error) { return p, nil }

func (f *fakeGit) GetCommitLog(_ context.Context, _, _, _ string, maxCommits int) ([]byte, error) {
	var sb strings.Builder
	for i, c := range f.commits {
		if maxCommits > 0 && i >= maxCommits {
			break
		}
		sb.WriteString(logBlock(c))
	}
	return []byte(sb.String()), nil
}

func (f *fakeGit) GetCommit(_ context.Context, _, hash string) ([]byte, error) {
	c, ok := f.find(hash)
	if !ok || f.missing[hash] {
		return []byte{}, nil
	}
	return []byte(logBlock(c)), nil
}

func (f *fakeGit) GetDiffNumstat(_ context.Context, _, hash string) ([]byte, error) {
	c, _ := f.find(hash)
	return []byte(c.numstat), nil
}

func (f *fakeGit) GetDiff(_ context.Context, _, hash string) ([]byte, error) {
	c, _ := f.find(hash)
	return []byte(c.diff), nil
}

// hashN returns a deterministic 40-hex commit hash.
func hashN(n int) string {
	return fmt.Sprintf("%040x", n+1)
}

func sampleCommits(n int) []testCommit {
	base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	commits := make([]testCommit, n)
	for i := range n {
		commits[i] = testCommit{
			hash:    hashN(i),
			author:  "Dev " + fmt.Sprint(i),
			email:   fmt.Sprintf("dev%d@huawei.com", i),
			date:    base.Add(time.Duration(n-i) * time.Hour),
			subject: fmt.Sprintf("mm: fix issue %d", i),
			body:    "Fix a leak.\n\nSigned-off-by: Dev <dev@huawei.com>",
			numstat: "3\t1\tmm/page_alloc.c\n",
			diff:    "diff --git a/mm/page_alloc.c b/mm/page_alloc.c\n@@ -1,3 +1,5 @@\n ctx\n+a\n+b\n-c\n ctx",
		}
	}
	return commits
}

// fullAnalysis returns an oracle analysis with every leaf set to v.
func fullAnalysis(category string, v int) schema.Analysis {
	breakdown := map[string]any{}
	for _, dim := range Dimensions {
		breakdown[dim] = map[string]any{"subtotal": 999, "details": dim + " details"}
	}
	for _, l := range AllLeaves() {
		breakdown[l.Dimension()].(map[string]any)[l.Name()] = float64(v)
	}
	return schema.Analysis{
		"primary_category":     category,
		"secondary_categories": []any{},
		"subsystem_tier":       float64(1),
		"score_breakdown":      breakdown,
		"reasoning":            "Solid fix.",
		"flags":                []any{},
	}
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// scriptedOracle answers every prompt with respond and counts calls.
type scriptedOracle struct {
	mu      sync.Mutex
	calls   int
	respond func(call int, prompt string) (contract.OracleResponse, error)
}

func (o *scriptedOracle) Invoke(ctx context.Context, prompt string) (contract.OracleResponse, error) {
	o.mu.Lock()
	o.calls++
	call := o.calls
	o.mu.Unlock()
	return o.respond(call, prompt)
}

func (o *scriptedOracle) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

// okOracle returns a valid analysis for every prompt.
func okOracle(category string, v int) *scriptedOracle {
	body := mustJSON(fullAnalysis(category, v))
	return &scriptedOracle{respond: func(int, string) (contract.OracleResponse, error) {
		return contract.OracleResponse{Stdout: body}, nil
	}}
}

// noSleep makes rate-limit backoff instant.
func noSleep(context.Context, time.Duration) error { return nil }

// memHistory is an in-memory HistoryStore.
type memHistory struct {
	mu      sync.Mutex
	runs    []string
	ended   map[string][2]int
	commits map[string][]schema.ScoredCommit
}

var _ contract.HistoryStore = &memHistory{}

func newMemHistory() *memHistory {
	return &memHistory{ended: map[string][2]int{}, commits: map[string][]schema.ScoredCommit{}}
}

func (h *memHistory) BeginRun(time.Time, schema.RunMode, string, string, map[string]any) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := fmt.Sprintf("run-%d", len(h.runs)+1)
	h.runs = append(h.runs, id)
	return id, nil
}

func (h *memHistory) EndRun(runID string, _ time.Time, total, failed int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ended[runID] = [2]int{total, failed}
	return nil
}

func (h *memHistory) RecordCommit(runID string, commit schema.ScoredCommit) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commits[runID] = append(h.commits[runID], commit)
	return nil
}

func (h *memHistory) GetStatus() (schema.HistoryStatus, error) { return schema.HistoryStatus{}, nil }
func (h *memHistory) GetAllRuns() ([]schema.RunRecord, error) { return nil, nil }
func (h *memHistory) GetAllCommitScores() ([]schema.CommitScoreRecord, error) {
	return nil, nil
}
func (h *memHistory) Close() error { return nil }

// memManager hands out in-memory stores.
type memManager struct {
	diff    *memCache
	history *memHistory
}

func newMemManager() *memManager {
	return &memManager{diff: newMemCache(), history: newMemHistory()}
}

func (m *memManager) GetDiffStore() contract.CacheStore     { return m.diff }
func (m *memManager) GetHistoryStore() contract.HistoryStore { return m.history }
