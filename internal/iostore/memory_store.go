package iostore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/schema"
)

// MemoryHistoryStore keeps history in process memory only. It backs the
// "none" backend, dry runs and tests.
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	entries map[string][]schema.Record
	now     func() time.Time
}

var _ contract.HistoryStore = &MemoryHistoryStore{} // Compile-time check

// NewMemoryHistoryStore returns an empty in-memory store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{entries: map[string][]schema.Record{}, now: time.Now}
}

// Load implements the HistoryStore interface.
func (s *MemoryHistoryStore) Load(_ context.Context, suite string) ([]schema.Record, error) {
	if err := contract.ValidateSuiteName(suite); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]schema.Record{}, s.entries[suite]...), nil
}

// Append implements the HistoryStore interface.
func (s *MemoryHistoryStore) Append(_ context.Context, suite string, rec schema.Record) error {
	if err := contract.ValidateSuiteName(suite); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.entries[suite], rec.Hash()) >= 0 {
		return fmt.Errorf("%w: %s", schema.ErrDuplicateCommit, rec.Hash())
	}
	s.entries[suite] = append(s.entries[suite], rec)
	return nil
}

// Replace implements the HistoryStore interface.
func (s *MemoryHistoryStore) Replace(_ context.Context, suite string, rec schema.Record) error {
	if err := contract.ValidateSuiteName(suite); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.entries[suite], rec.Hash())
	if i < 0 {
		return fmt.Errorf("%w: %s", schema.ErrCommitNotFound, rec.Hash())
	}
	s.entries[suite][i] = rec
	return nil
}

// Prune implements the HistoryStore interface.
func (s *MemoryHistoryStore) Prune(_ context.Context, suite string, policy schema.RetentionPolicy) (int, error) {
	if err := contract.ValidateSuiteName(suite); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.entries[suite]
	if !ok {
		return 0, nil
	}
	kept := policy.Apply(records, s.now())
	s.entries[suite] = kept
	return len(kept), nil
}

// Suites implements the HistoryStore interface.
func (s *MemoryHistoryStore) Suites(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// GetStatus implements the HistoryStore interface.
func (s *MemoryHistoryStore) GetStatus(ctx context.Context) (schema.HistoryStatus, error) {
	status := schema.HistoryStatus{Backend: string(schema.NoneBackend), Location: "memory", Connected: true}
	names, _ := s.Suites(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, name := range names {
		status.Suites = append(status.Suites, summarizeSuite(name, s.entries[name]))
	}
	return status, nil
}

// Close implements the HistoryStore interface.
func (s *MemoryHistoryStore) Close() error {
	return nil
}
