package contract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Default agent invocation settings.
const (
	DefaultAgentBinary = "claude"
	DefaultAgentName   = "kernel-commit-analyzer"
)

// agentWaitDelay bounds how long output pipes are drained after the agent is killed.
const agentWaitDelay = 5 * time.Second

// AgentOracle runs an AI agent CLI as a subprocess, one process per prompt.
type AgentOracle struct {
	Binary string
	Agent  string
}

var _ Oracle = &AgentOracle{} // Compile-time check

// NewAgentOracle creates an AgentOracle, falling back to defaults for empty values.
func NewAgentOracle(binary, agent string) *AgentOracle {
	if binary == "" {
		binary = DefaultAgentBinary
	}
	if agent == "" {
		agent = DefaultAgentName
	}
	return &AgentOracle{Binary: binary, Agent: agent}
}

// Invoke implements the Oracle interface.
// A non-zero exit status is not an error: its stdout and stderr are still
// returned so that the caller can detect rate limits in them.
func (o *AgentOracle) Invoke(ctx context.Context, prompt string) (OracleResponse, error) {
	cmd := exec.CommandContext(ctx, o.Binary, "-p", prompt, "--agent", o.Agent)
	cmd.Env = append(os.Environ(), "NO_COLOR=1")
	cmd.WaitDelay = agentWaitDelay
	killProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	resp := OracleResponse{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return resp, fmt.Errorf("agent %s: %w", o.Agent, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return resp, nil
	} else if err != nil {
		return resp, fmt.Errorf("agent command failed: %w. Ensure %q is installed and available on your PATH", err, o.Binary)
	}
	return resp, nil
}
