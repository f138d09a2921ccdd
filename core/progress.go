package core

import "sync/atomic"

// ProgressCounter counts commits started during one run.
// It only feeds progress output.
type ProgressCounter struct {
	total   int
	current atomic.Int64
}

// NewProgressCounter returns a counter for a run of total commits.
func NewProgressCounter(total int) *ProgressCounter {
	return &ProgressCounter{total: total}
}

// Increment advances the counter and returns the new value.
func (p *ProgressCounter) Increment() int {
	return int(p.current.Add(1))
}

// Value returns the current count.
func (p *ProgressCounter) Value() int {
	return int(p.current.Load())
}

// Total returns the number of commits in the run.
func (p *ProgressCounter) Total() int {
	return p.total
}
