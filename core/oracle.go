package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/schema"
)

// baseBackoff is the first rate-limit wait; each later attempt doubles it
// until maxBackoff is reached.
const (
	baseBackoff = 30 * time.Second
	maxBackoff  = 16 * time.Minute
)

// ScoreOptions controls one oracle call.
type ScoreOptions struct {
	Timeout    time.Duration // per attempt
	MaxRetries int           // total attempts for rate-limited calls
	Backoff    func(attempt int) time.Duration
	Sleep      func(ctx context.Context, d time.Duration) error
	Logger     *slog.Logger
	Out        io.Writer
}

// DefaultBackoff waits 30s, 60s, 120s, ... before successive retries, never
// more than maxBackoff.
func DefaultBackoff(attempt int) time.Duration {
	shift := min(max(attempt, 0), 5)
	return min(baseBackoff<<shift, maxBackoff)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (o ScoreOptions) withDefaults() ScoreOptions {
	if o.Timeout <= 0 {
		o.Timeout = time.Duration(contract.DefaultTimeoutSecs) * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = contract.DefaultMaxRetries
	}
	if o.Backoff == nil {
		o.Backoff = DefaultBackoff
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	if o.Logger == nil {
		o.Logger = contract.DiscardLogger()
	}
	if o.Out == nil {
		o.Out = io.Discard
	}
	return o
}

// ScoreCommit asks the oracle to score one commit.
// On any failure the deterministic fallback analysis is returned with the
// kind of failure. Only rate limits are retried.
func ScoreCommit(ctx context.Context, oracle contract.Oracle, commit *schema.RawCommit, snippet string, opts ScoreOptions) (schema.Analysis, schema.ErrorKind) {
	opts = opts.withDefaults()
	short := commit.ShortHash()
	log := opts.Logger.With("commit", short)

	prompt, err := BuildPrompt(commit, snippet)
	if err != nil {
		log.Error("building prompt", "error", err)
		return FallbackAnalysis(commit, schema.OracleError), schema.OracleError
	}

	for attempt := range opts.MaxRetries {
		log.Debug("invoking oracle", "attempt", attempt+1, "max_attempts", opts.MaxRetries)
		analysis, kind, err := invokeOnce(ctx, oracle, prompt, opts.Timeout)

		if kind == schema.RateLimitError {
			if attempt == opts.MaxRetries-1 {
				log.Warn("rate limited, attempts exhausted", "attempts", opts.MaxRetries)
				_, _ = fmt.Fprintf(opts.Out, "  [429 RATE LIMIT] Max retries exceeded for %s\n", short)
				return FallbackAnalysis(commit, kind), kind
			}
			wait := opts.Backoff(attempt)
			log.Warn("rate limited, backing off", "wait", wait, "attempt", attempt+1)
			_, _ = fmt.Fprintf(opts.Out, "  [429 RATE LIMIT] %s - Waiting %s before retry (attempt %d/%d)...\n", short, wait, attempt+1, opts.MaxRetries)
			if err := opts.Sleep(ctx, wait); err != nil {
				log.Warn("backoff interrupted", "error", err)
				return FallbackAnalysis(commit, kind), kind
			}
			continue
		}

		if kind.Failed() {
			log.Error("oracle call failed", "kind", kind, "error", err)
			_, _ = fmt.Fprintf(opts.Out, "  [%s] Agent analysis failed for %s: %v\n", kind, short, err)
			return FallbackAnalysis(commit, kind), kind
		}

		log.Debug("oracle response parsed", "category", stringField(analysis, "primary_category", schema.UnknownCategory))
		return analysis, schema.NoError
	}
	return FallbackAnalysis(commit, schema.OracleError), schema.OracleError
}

// invokeOnce performs a single bounded oracle call and classifies the outcome.
func invokeOnce(ctx context.Context, oracle contract.Oracle, prompt string, timeout time.Duration) (schema.Analysis, schema.ErrorKind, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := oracle.Invoke(attemptCtx, prompt)
	switch {
	case errors.Is(err, contract.ErrRateLimited):
		return nil, schema.RateLimitError, err
	case errors.Is(err, context.DeadlineExceeded):
		return nil, schema.TimeoutError, fmt.Errorf("timed out after %s: %w", timeout, err)
	case err != nil:
		return nil, schema.OracleError, err
	}

	stdout := strings.TrimSpace(resp.Stdout)
	analysis, parseErr := parseAnalysis(stdout)
	if isRateLimited(resp.Stderr, stdout, parseErr == nil) {
		return nil, schema.RateLimitError, contract.ErrRateLimited
	}
	if parseErr != nil {
		return nil, schema.MalformedOutputError, parseErr
	}
	return analysis, schema.NoError, nil
}

// isRateLimited looks for rate-limit signals in the oracle output.
// Stdout is only inspected when it did not hold a JSON object, since a
// valid analysis may legitimately contain "429".
func isRateLimited(stderr, stdout string, parsed bool) bool {
	if strings.Contains(stderr, "429") || strings.Contains(strings.ToLower(stderr), "rate limit") {
		return true
	}
	return !parsed && strings.Contains(stdout, "429")
}

// parseAnalysis strips code fences and decodes a JSON object.
func parseAnalysis(out string) (schema.Analysis, error) {
	var v any
	if err := json.Unmarshal([]byte(StripCodeFences(out)), &v); err != nil {
		return nil, fmt.Errorf("parsing oracle output: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parsing oracle output: expected a JSON object, got %T", v)
	}
	return schema.Analysis(obj), nil
}

// StripCodeFences extracts the payload of a markdown-fenced response.
// A ```json block wins; otherwise the text between the first and last
// fence is used. Unfenced text is returned unchanged.
func StripCodeFences(s string) string {
	if i := strings.Index(s, "```json"); i >= 0 {
		rest := s[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	if i := strings.Index(s, "```"); i >= 0 {
		j := strings.LastIndex(s, "```")
		if j <= i {
			return strings.TrimSpace(s[i+3:])
		}
		return strings.TrimSpace(s[i+3 : j])
	}
	return s
}
