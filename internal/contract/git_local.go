package contract

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Markers framing every commit block in CommitLogFormat output.
const (
	CommitStartMarker = "COMMIT_START"
	CommitEndMarker   = "COMMIT_END"
)

// CommitLogFormat is the git pretty format parsed by the commit extractor.
// The body is last so that it may span any number of lines.
const CommitLogFormat = "--format=" + CommitStartMarker +
	"%nHash: %H" +
	"%nAuthor: %an <%ae>" +
	"%nAuthorDate: %aI" +
	"%nCommitter: %cn <%ce>" +
	"%nCommitDate: %cI" +
	"%nSubject: %s" +
	"%nBody:%n%b%n" + CommitEndMarker

// LocalGitClient implements the GitClient interface by executing the
// local 'git' binary installed on the machine.
type LocalGitClient struct{}

var _ GitClient = &LocalGitClient{} // Compile-time check

// NewLocalGitClient creates a new instance of the local Git client.
func NewLocalGitClient() *LocalGitClient {
	return &LocalGitClient{}
}

// Run executes a git command and returns its stdout output.
func (c *LocalGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	fullArgs := append([]string{"-C", repoPath}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	out, err := cmd.Output()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("git command interrupted in %q: %w", repoPath, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stderr := strings.TrimSpace(string(exitErr.Stderr))
		return nil, fmt.Errorf("git command failed in %q: %s. If this is not a Git repository, verify the path or run 'git init'", repoPath, stderr)
	} else if err != nil {
		return nil, fmt.Errorf("git command failed: %w. Ensure Git is installed and available on your PATH", err)
	}
	return out, nil
}

// GetRepoRoot implements the GitClient interface.
func (c *LocalGitClient) GetRepoRoot(ctx context.Context, contextPath string) (string, error) {
	out, err := c.Run(ctx, contextPath, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// GetCommitLog implements the GitClient interface.
func (c *LocalGitClient) GetCommitLog(ctx context.Context, repoPath, versionRange, authorFilter string, maxCommits int) ([]byte, error) {
	return c.Run(ctx, repoPath, CommitLogArgs(versionRange, authorFilter, maxCommits)...)
}

// GetCommit implements the GitClient interface.
func (c *LocalGitClient) GetCommit(ctx context.Context, repoPath, hash string) ([]byte, error) {
	out, err := c.Run(ctx, repoPath, "log", "-1", CommitLogFormat, hash)
	if err != nil {
		if strings.Contains(err.Error(), "unknown revision") || strings.Contains(err.Error(), "bad object") {
			return nil, fmt.Errorf("%s: %w", hash, ErrCommitNotFound)
		}
		return nil, err
	}
	return out, nil
}

// GetDiffNumstat implements the GitClient interface.
func (c *LocalGitClient) GetDiffNumstat(ctx context.Context, repoPath, hash string) ([]byte, error) {
	return c.Run(ctx, repoPath, "diff", "--numstat", parentRange(hash))
}

// GetDiff implements the GitClient interface.
func (c *LocalGitClient) GetDiff(ctx context.Context, repoPath, hash string) ([]byte, error) {
	return c.Run(ctx, repoPath, "diff", parentRange(hash))
}

// CommitLogArgs builds the `git log` arguments for a version range.
// The author filter is passed through untouched so git's `\|` alternation works.
func CommitLogArgs(versionRange, authorFilter string, maxCommits int) []string {
	args := []string{"log", "--no-merges", CommitLogFormat, versionRange}
	if authorFilter != "" {
		args = append(args, "--author="+authorFilter)
	}
	if maxCommits > 0 {
		args = append(args, fmt.Sprintf("-n%d", maxCommits))
	}
	return args
}

func parentRange(hash string) string {
	return hash + "^.." + hash
}
