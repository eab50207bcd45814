package iostore

import (
	"context"

	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/schema"
	"github.com/stretchr/testify/mock"
)

// MockStoreManager is a mock implementation of StoreManager for testing.
type MockStoreManager struct {
	mock.Mock
}

var _ contract.StoreManager = &MockStoreManager{} // Compile-time check

// GetHistoryStore implements the StoreManager interface.
func (m *MockStoreManager) GetHistoryStore() contract.HistoryStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.HistoryStore)
	return store
}

// MockHistoryStore is a mock implementation of HistoryStore for testing.
type MockHistoryStore struct {
	mock.Mock
}

var _ contract.HistoryStore = &MockHistoryStore{} // Compile-time check

// Load implements the HistoryStore interface.
func (m *MockHistoryStore) Load(ctx context.Context, suite string) ([]schema.Record, error) {
	args := m.Called(ctx, suite)
	records, _ := args.Get(0).([]schema.Record)
	return records, args.Error(1)
}

// Append implements the HistoryStore interface.
func (m *MockHistoryStore) Append(ctx context.Context, suite string, rec schema.Record) error {
	args := m.Called(ctx, suite, rec)
	return args.Error(0)
}

// Replace implements the HistoryStore interface.
func (m *MockHistoryStore) Replace(ctx context.Context, suite string, rec schema.Record) error {
	args := m.Called(ctx, suite, rec)
	return args.Error(0)
}

// Prune implements the HistoryStore interface.
func (m *MockHistoryStore) Prune(ctx context.Context, suite string, policy schema.RetentionPolicy) (int, error) {
	args := m.Called(ctx, suite, policy)
	return args.Int(0), args.Error(1)
}

// Suites implements the HistoryStore interface.
func (m *MockHistoryStore) Suites(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

// GetStatus implements the HistoryStore interface.
func (m *MockHistoryStore) GetStatus(ctx context.Context) (schema.HistoryStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(schema.HistoryStatus), args.Error(1)
}

// Close implements the HistoryStore interface.
func (m *MockHistoryStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
