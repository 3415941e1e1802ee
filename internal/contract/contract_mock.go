package contract

import (
	"context"

	"github.com/huangsam/repoharvest/schema"
	"github.com/stretchr/testify/mock"
)

// MockDiscoverer is a mock implementation of Discoverer for testing.
type MockDiscoverer struct {
	mock.Mock
}

var _ Discoverer = &MockDiscoverer{} // Compile-time check

// Discover implements the Discoverer interface.
func (m *MockDiscoverer) Discover(ctx context.Context, limit int) ([]schema.RepositoryDescriptor, error) {
	args := m.Called(ctx, limit)
	repos, _ := args.Get(0).([]schema.RepositoryDescriptor)
	return repos, args.Error(1)
}

// MockAcquirer is a mock implementation of Acquirer for testing.
type MockAcquirer struct {
	mock.Mock
}

var _ Acquirer = &MockAcquirer{} // Compile-time check

// Acquire implements the Acquirer interface.
func (m *MockAcquirer) Acquire(ctx context.Context, repo schema.RepositoryDescriptor, localID string) (schema.SourceTree, error) {
	args := m.Called(ctx, repo, localID)
	return args.Get(0).(schema.SourceTree), args.Error(1)
}

// MockAnalysisRunner is a mock implementation of AnalysisRunner for testing.
type MockAnalysisRunner struct {
	mock.Mock
}

var _ AnalysisRunner = &MockAnalysisRunner{} // Compile-time check

// RunAnalysis implements the AnalysisRunner interface.
func (m *MockAnalysisRunner) RunAnalysis(ctx context.Context, sourceDir string) (string, error) {
	args := m.Called(ctx, sourceDir)
	return args.String(0), args.Error(1)
}
