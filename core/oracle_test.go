package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func promptCommit() *schema.RawCommit {
	return &schema.RawCommit{
		Hash:         "0123456789abcdef0123456789abcdef01234567",
		AuthorName:   "Dev",
		AuthorEmail:  "dev@huawei.com",
		AuthorDate:   time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC),
		Subject:      "mm: fix <leak> & friends",
		Body:         "Cc: stable@vger.kernel.org",
		Files:        []string{"mm/slub.c"},
		FilesChanged: 1,
		Insertions:   4,
		Deletions:    2,
		Hunks:        1,
		Diff:         strings.Repeat("é", promptDiffLimit+500),
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(promptCommit(), "@@ -1 +1 @@")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(prompt, promptInstruction))

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(prompt, promptInstruction)), &doc))
	assert.Equal(t, "0123456789ab", doc["short_hash"])
	assert.Equal(t, "mm: fix <leak> & friends", doc["subject"])
	assert.Equal(t, "2025-09-01T08:00:00Z", doc["author_date"])
	assert.Equal(t, "", doc["commit_date"], "zero dates are empty")
	assert.Equal(t, "@@ -1 +1 @@", doc["code_snippet"])
	assert.Equal(t, promptDiffLimit, len([]rune(doc["diff_output"].(string))), "diff is truncated by characters")
	assert.Contains(t, prompt, "<leak>", "HTML is not escaped")

	keys := []string{`"commit_hash"`, `"subject"`, `"files"`, `"diff_output"`, `"code_snippet"`}
	last := -1
	for _, k := range keys {
		i := strings.Index(prompt, k)
		require.Greater(t, i, last, "field %s keeps its position", k)
		last = i
	}
}

func TestBuildPromptNilFiles(t *testing.T) {
	prompt, err := BuildPrompt(&schema.RawCommit{Hash: "abc"}, "")
	require.NoError(t, err)
	assert.Contains(t, prompt, `"files": []`)
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "Here:\n```json\n{\"a\":1}\n```\nthanks", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"unterminated json fence", "```json\n{\"a\":1}", `{"a":1}`},
		{"unterminated bare fence", "```\n{\"a\":1}", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.in))
		})
	}
}

func TestDefaultBackoff(t *testing.T) {
	assert.Equal(t, 30*time.Second, DefaultBackoff(0))
	assert.Equal(t, 60*time.Second, DefaultBackoff(1))
	assert.Equal(t, 120*time.Second, DefaultBackoff(2))
	assert.Equal(t, 16*time.Minute, DefaultBackoff(5))

	for _, attempt := range []int{-1, 6, 29, 30, 40, 63, 64, 1000} {
		d := DefaultBackoff(attempt)
		assert.Positive(t, d, "attempt %d", attempt)
		assert.LessOrEqual(t, d, maxBackoff, "attempt %d", attempt)
	}
	assert.Equal(t, 30*time.Second, DefaultBackoff(-1))
}

func TestScoreCommitSuccess(t *testing.T) {
	fenced := "```json\n" + mustJSON(fullAnalysis("BUG-MEMORY", 2)) + "\n```"
	oracle := &contract.MockOracle{}
	oracle.On("Invoke", mock.Anything, mock.AnythingOfType("string")).Return(contract.OracleResponse{Stdout: fenced}, nil).Once()

	a, kind := ScoreCommit(context.Background(), oracle, promptCommit(), "", ScoreOptions{Timeout: time.Second})
	assert.Equal(t, schema.NoError, kind)
	assert.Equal(t, "BUG-MEMORY", a["primary_category"])
	oracle.AssertExpectations(t)
}

func TestScoreCommitFailures(t *testing.T) {
	tests := []struct {
		name    string
		resp    contract.OracleResponse
		err     error
		want    schema.ErrorKind
		attempt int
	}{
		{"malformed json", contract.OracleResponse{Stdout: "I think this commit is great"}, nil, schema.MalformedOutputError, 1},
		{"json array", contract.OracleResponse{Stdout: "[1,2]"}, nil, schema.MalformedOutputError, 1},
		{"process error", contract.OracleResponse{}, errors.New("exit status 1"), schema.OracleError, 1},
		{"deadline", contract.OracleResponse{}, fmt.Errorf("agent: %w", context.DeadlineExceeded), schema.TimeoutError, 1},
		{"rate limit error", contract.OracleResponse{}, contract.ErrRateLimited, schema.RateLimitError, 3},
		{"rate limit in stderr", contract.OracleResponse{Stderr: "Error: Rate limit reached"}, nil, schema.RateLimitError, 3},
		{"429 in unparseable stdout", contract.OracleResponse{Stdout: "HTTP 429 Too Many Requests"}, nil, schema.RateLimitError, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := &contract.MockOracle{}
			oracle.On("Invoke", mock.Anything, mock.Anything).Return(tt.resp, tt.err)

			var out bytes.Buffer
			commit := promptCommit()
			a, kind := ScoreCommit(context.Background(), oracle, commit, "", ScoreOptions{
				Timeout: time.Second, MaxRetries: 3, Sleep: noSleep, Out: &out,
			})
			assert.Equal(t, tt.want, kind)
			assert.Equal(t, FallbackAnalysis(commit, tt.want), a)
			oracle.AssertNumberOfCalls(t, "Invoke", tt.attempt)
		})
	}
}

func TestScoreCommitValidJSONContaining429IsNotRateLimited(t *testing.T) {
	a := fullAnalysis("FEAT-NEW", 1)
	a["reasoning"] = "Touches 429 call sites."
	body := mustJSON(a)
	oracle := &scriptedOracle{respond: func(int, string) (contract.OracleResponse, error) {
		return contract.OracleResponse{Stdout: body}, nil
	}}
	_, kind := ScoreCommit(context.Background(), oracle, promptCommit(), "", ScoreOptions{Timeout: time.Second})
	assert.Equal(t, schema.NoError, kind)
}

func TestScoreCommitRateLimitRecovers(t *testing.T) {
	body := mustJSON(fullAnalysis("BUG-CRASH", 1))
	oracle := &scriptedOracle{respond: func(call int, _ string) (contract.OracleResponse, error) {
		if call < 3 {
			return contract.OracleResponse{Stderr: "429"}, nil
		}
		return contract.OracleResponse{Stdout: body}, nil
	}}

	var waits []time.Duration
	var out bytes.Buffer
	_, kind := ScoreCommit(context.Background(), oracle, promptCommit(), "", ScoreOptions{
		Timeout:    time.Second,
		MaxRetries: 3,
		Sleep: func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
		Out: &out,
	})
	assert.Equal(t, schema.NoError, kind)
	assert.Equal(t, 3, oracle.Calls())
	assert.Equal(t, []time.Duration{30 * time.Second, 60 * time.Second}, waits)
	assert.Contains(t, out.String(), "[429 RATE LIMIT] 0123456789ab - Waiting 30s before retry (attempt 1/3)")
}

func TestScoreCommitInterruptedBackoff(t *testing.T) {
	oracle := &scriptedOracle{respond: func(int, string) (contract.OracleResponse, error) {
		return contract.OracleResponse{}, contract.ErrRateLimited
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, kind := ScoreCommit(ctx, oracle, promptCommit(), "", ScoreOptions{Timeout: time.Second, MaxRetries: 5})
	assert.Equal(t, schema.RateLimitError, kind)
	assert.Equal(t, 1, oracle.Calls())
}

func TestScoreCommitTimeout(t *testing.T) {
	blocking := contract.Oracle(oracleFunc(func(ctx context.Context, _ string) (contract.OracleResponse, error) {
		<-ctx.Done()
		return contract.OracleResponse{}, fmt.Errorf("agent killed: %w", ctx.Err())
	}))

	start := time.Now()
	_, kind := ScoreCommit(context.Background(), blocking, promptCommit(), "", ScoreOptions{Timeout: 20 * time.Millisecond})
	assert.Equal(t, schema.TimeoutError, kind)
	assert.Less(t, time.Since(start), 5*time.Second)
}

// oracleFunc adapts a function to the Oracle interface.
type oracleFunc func(ctx context.Context, prompt string) (contract.OracleResponse, error)

func (f oracleFunc) Invoke(ctx context.Context, prompt string) (contract.OracleResponse, error) {
	return f(ctx, prompt)
}
