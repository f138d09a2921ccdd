package ui

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSpinner_Disabled(t *testing.T) {
	sp := NewSpinner("working", false)
	assert.False(t, sp.Active())

	// All methods are no-ops on an inert spinner.
	sp.Start()
	sp.UpdateMessage("still working")
	sp.Stop()
}

func TestSpinner_RunReturnsError(t *testing.T) {
	sp := NewSpinner("working", false)
	called := false
	err := sp.Run(func() error {
		called = true
		return errors.New("git failed")
	})
	assert.True(t, called)
	assert.EqualError(t, err, "git failed")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}
