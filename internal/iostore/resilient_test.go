package iostore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/huangsam/benchtrail/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestResilientStore_RetriesWriteConflicts(t *testing.T) {
	inner := &MockHistoryStore{}
	conflict := fmt.Errorf("%w: lock held", schema.ErrConcurrentWrite)
	inner.On("Append", mock.Anything, "api", mock.Anything).Return(conflict).Twice()
	inner.On("Append", mock.Anything, "api", mock.Anything).Return(nil).Once()

	store := withResilience(inner, time.Second, 5, nil)
	require.NoError(t, store.Append(context.Background(), "api", testRecord("c1", 0, 10)))
	inner.AssertNumberOfCalls(t, "Append", 3)
}

func TestResilientStore_GivesUpAfterAttempts(t *testing.T) {
	inner := &MockHistoryStore{}
	inner.On("Append", mock.Anything, "api", mock.Anything).Return(schema.ErrConcurrentWrite)

	store := withResilience(inner, time.Second, 2, nil)
	err := store.Append(context.Background(), "api", testRecord("c1", 0, 10))
	require.ErrorIs(t, err, schema.ErrConcurrentWrite)
	assert.True(t, schema.IsStoreIOError(err))
	inner.AssertNumberOfCalls(t, "Append", 3)
}

func TestResilientStore_DoesNotRetryOtherErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStore  bool
		wantTarget error
	}{
		{"duplicate", fmt.Errorf("%w: c1", schema.ErrDuplicateCommit), false, schema.ErrDuplicateCommit},
		{"validation", &schema.ValidationError{Field: "tool", Err: schema.ErrUnknownTool}, false, schema.ErrUnknownTool},
		{"driver failure", errors.New("disk full"), true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &MockHistoryStore{}
			inner.On("Append", mock.Anything, "api", mock.Anything).Return(tt.err)

			store := withResilience(inner, time.Second, 5, nil)
			err := store.Append(context.Background(), "api", testRecord("c1", 0, 10))
			require.Error(t, err)
			assert.Equal(t, tt.wantStore, schema.IsStoreIOError(err))
			if tt.wantTarget != nil {
				assert.ErrorIs(t, err, tt.wantTarget)
			}
			inner.AssertNumberOfCalls(t, "Append", 1)
		})
	}
}

func TestResilientStore_Timeout(t *testing.T) {
	inner := &MockHistoryStore{}
	inner.On("Load", mock.Anything, "api").Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(nil, context.DeadlineExceeded)

	store := withResilience(inner, 20*time.Millisecond, 0, nil)
	start := time.Now()
	_, err := store.Load(context.Background(), "api")
	require.ErrorIs(t, err, schema.ErrStoreTimeout)
	assert.True(t, schema.IsStoreIOError(err))
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestResilientStore_PassesResultsThrough(t *testing.T) {
	inner := &MockHistoryStore{}
	want := []schema.Record{testRecord("c1", 0, 10)}
	inner.On("Load", mock.Anything, "api").Return(want, nil)
	inner.On("Suites", mock.Anything).Return([]string{"api"}, nil)
	inner.On("Prune", mock.Anything, "api", schema.RetentionPolicy{MaxRuns: 1}).Return(1, nil)
	inner.On("Close").Return(nil)

	store := withResilience(inner, time.Second, 3, nil)
	ctx := context.Background()

	got, err := store.Load(ctx, "api")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	suites, err := store.Suites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, suites)

	n, err := store.Prune(ctx, "api", schema.RetentionPolicy{MaxRuns: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Close())
	inner.AssertExpectations(t)
}
