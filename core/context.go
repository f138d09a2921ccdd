package core

import (
	"context"
	"io"
	"os"
)

// Context keys for run options
type contextKey string

const (
	quietKey     contextKey = "quiet"
	scoreOptsKey contextKey = "scoreOptions"
)

// WithQuiet suppresses progress output and the spinner for runs using ctx.
func WithQuiet(ctx context.Context) context.Context {
	return context.WithValue(ctx, quietKey, true)
}

// isQuiet returns whether console output should be suppressed
func isQuiet(ctx context.Context) bool {
	val := ctx.Value(quietKey)
	if val == nil {
		return false // default: print progress
	}
	quiet, ok := val.(bool)
	return ok && quiet
}

// consoleOut returns the writer for progress lines.
func consoleOut(ctx context.Context) io.Writer {
	if isQuiet(ctx) {
		return io.Discard
	}
	return os.Stdout
}

// withScoreOptions overrides the oracle call options, such as the backoff
// schedule, for runs using ctx.
func withScoreOptions(ctx context.Context, opts ScoreOptions) context.Context {
	return context.WithValue(ctx, scoreOptsKey, opts)
}

// scoreOptionsFrom returns the options set by withScoreOptions, if any.
func scoreOptionsFrom(ctx context.Context) (ScoreOptions, bool) {
	opts, ok := ctx.Value(scoreOptsKey).(ScoreOptions)
	return opts, ok
}
