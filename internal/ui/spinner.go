// Package ui has terminal helpers for long-running steps.
package ui

import (
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
)

// Spinner shows an activity indicator on stderr while a step runs.
// It is inert when stderr is not a terminal.
type Spinner struct {
	s *spinner.Spinner
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewSpinner creates a spinner with the given message. A disabled spinner never draws.
func NewSpinner(message string, enabled bool) *Spinner {
	if !enabled || !isTerminal(os.Stderr) {
		return &Spinner{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + message
	return &Spinner{s: s}
}

// Active reports whether the spinner draws anything.
func (sp *Spinner) Active() bool {
	return sp.s != nil
}

// Start begins the animation.
func (sp *Spinner) Start() {
	if sp.s != nil {
		sp.s.Start()
	}
}

// Stop ends the animation and clears the line.
func (sp *Spinner) Stop() {
	if sp.s != nil {
		sp.s.Stop()
	}
}

// UpdateMessage changes the text shown next to the indicator.
func (sp *Spinner) UpdateMessage(message string) {
	if sp.s != nil {
		sp.s.Lock()
		sp.s.Suffix = " " + message
		sp.s.Unlock()
	}
}

// Run shows the spinner for the duration of fn.
func (sp *Spinner) Run(fn func() error) error {
	sp.Start()
	defer sp.Stop()
	return fn()
}
