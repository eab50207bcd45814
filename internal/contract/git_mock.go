package contract

import (
	"context"

	"github.com/huangsam/benchtrail/schema"
	"github.com/stretchr/testify/mock"
)

// MockGitClient is a mock implementation of GitClient for testing.
type MockGitClient struct {
	mock.Mock
}

var _ GitClient = &MockGitClient{} // Compile-time check

// Run implements the GitClient interface.
func (m *MockGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	mockArgs := []any{ctx, repoPath}
	for _, arg := range args {
		mockArgs = append(mockArgs, arg)
	}
	ret := m.Called(mockArgs...)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}

// GetRepoHash implements the GitClient interface.
func (m *MockGitClient) GetRepoHash(ctx context.Context, repoPath string) (string, error) {
	ret := m.Called(ctx, repoPath)
	return ret.String(0), ret.Error(1)
}

// GetCommitIdentity implements the GitClient interface.
func (m *MockGitClient) GetCommitIdentity(ctx context.Context, repoPath string, ref string) (schema.CommitIdentity, error) {
	ret := m.Called(ctx, repoPath, ref)
	id, _ := ret.Get(0).(schema.CommitIdentity)
	return id, ret.Error(1)
}
