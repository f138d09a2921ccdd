package contract

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockGitClient is a mock implementation of GitClient for testing.
type MockGitClient struct {
	mock.Mock
}

var _ GitClient = &MockGitClient{} // Compile-time check

// Run implements the GitClient interface.
func (m *MockGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	var mockArgs []any
	mockArgs = append(mockArgs, ctx, repoPath)
	for _, arg := range args {
		mockArgs = append(mockArgs, arg)
	}
	ret := m.Called(mockArgs...)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}

// GetRepoRoot implements the GitClient interface.
func (m *MockGitClient) GetRepoRoot(ctx context.Context, contextPath string) (string, error) {
	ret := m.Called(ctx, contextPath)
	return ret.String(0), ret.Error(1)
}

// GetCommitLog implements the GitClient interface.
func (m *MockGitClient) GetCommitLog(ctx context.Context, repoPath, versionRange, authorFilter string, maxCommits int) ([]byte, error) {
	ret := m.Called(ctx, repoPath, versionRange, authorFilter, maxCommits)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}

// GetCommit implements the GitClient interface.
func (m *MockGitClient) GetCommit(ctx context.Context, repoPath, hash string) ([]byte, error) {
	ret := m.Called(ctx, repoPath, hash)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}

// GetDiffNumstat implements the GitClient interface.
func (m *MockGitClient) GetDiffNumstat(ctx context.Context, repoPath, hash string) ([]byte, error) {
	ret := m.Called(ctx, repoPath, hash)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}

// GetDiff implements the GitClient interface.
func (m *MockGitClient) GetDiff(ctx context.Context, repoPath, hash string) ([]byte, error) {
	ret := m.Called(ctx, repoPath, hash)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}
