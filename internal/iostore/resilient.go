package iostore

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/schema"
	"github.com/sirupsen/logrus"
)

// Retry tuning for conflicting writers.
const (
	retryInitialInterval = 50 * time.Millisecond
	retryMaxInterval     = 2 * time.Second
)

// resilientStore bounds every call of the inner store by a timeout and retries
// write conflicts with exponential backoff.
type resilientStore struct {
	inner    contract.HistoryStore
	timeout  time.Duration
	attempts int
	log      logrus.FieldLogger
}

var _ contract.HistoryStore = &resilientStore{} // Compile-time check

// withResilience wraps inner. A zero timeout disables the deadline.
func withResilience(inner contract.HistoryStore, timeout time.Duration, attempts int, log logrus.FieldLogger) contract.HistoryStore {
	if log == nil {
		log = contract.DiscardLogger()
	}
	return &resilientStore{
		inner:    inner,
		timeout:  timeout,
		attempts: attempts,
		log:      log.WithField("component", "store"),
	}
}

// Load implements the HistoryStore interface.
func (s *resilientStore) Load(ctx context.Context, suite string) ([]schema.Record, error) {
	var records []schema.Record
	err := s.guard(ctx, "load", suite, false, func(ctx context.Context) error {
		var err error
		records, err = s.inner.Load(ctx, suite)
		return err
	})
	return records, err
}

// Append implements the HistoryStore interface.
func (s *resilientStore) Append(ctx context.Context, suite string, rec schema.Record) error {
	return s.guard(ctx, "append", suite, true, func(ctx context.Context) error {
		return s.inner.Append(ctx, suite, rec)
	})
}

// Replace implements the HistoryStore interface.
func (s *resilientStore) Replace(ctx context.Context, suite string, rec schema.Record) error {
	return s.guard(ctx, "replace", suite, true, func(ctx context.Context) error {
		return s.inner.Replace(ctx, suite, rec)
	})
}

// Prune implements the HistoryStore interface.
func (s *resilientStore) Prune(ctx context.Context, suite string, policy schema.RetentionPolicy) (int, error) {
	var n int
	err := s.guard(ctx, "prune", suite, true, func(ctx context.Context) error {
		var err error
		n, err = s.inner.Prune(ctx, suite, policy)
		return err
	})
	return n, err
}

// Suites implements the HistoryStore interface.
func (s *resilientStore) Suites(ctx context.Context) ([]string, error) {
	var suites []string
	err := s.guard(ctx, "list suites", "", false, func(ctx context.Context) error {
		var err error
		suites, err = s.inner.Suites(ctx)
		return err
	})
	return suites, err
}

// GetStatus implements the HistoryStore interface.
func (s *resilientStore) GetStatus(ctx context.Context) (schema.HistoryStatus, error) {
	var status schema.HistoryStatus
	err := s.guard(ctx, "status", "", false, func(ctx context.Context) error {
		var err error
		status, err = s.inner.GetStatus(ctx)
		return err
	})
	return status, err
}

// Close implements the HistoryStore interface.
func (s *resilientStore) Close() error {
	return s.inner.Close()
}

// guard runs op under the I/O deadline, retrying write conflicts when retry is set.
func (s *resilientStore) guard(ctx context.Context, op, suite string, retry bool, fn func(context.Context) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := runWithContext(ctx, fn)
		if err == nil {
			return nil
		}
		if retry && errors.Is(err, schema.ErrConcurrentWrite) && ctx.Err() == nil {
			s.log.WithFields(logrus.Fields{"op": op, "suite": suite, "attempt": attempt}).Debug("write conflict, retrying")
			return err
		}
		return backoff.Permanent(err)
	}

	var err error
	if retry && s.attempts > 0 {
		expo := backoff.NewExponentialBackOff()
		expo.InitialInterval = retryInitialInterval
		expo.MaxInterval = retryMaxInterval
		expo.MaxElapsedTime = 0
		err = backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(expo, uint64(s.attempts)), ctx))
	} else {
		err = operation()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
	}
	return classify(ctx, op, suite, err)
}

// runWithContext runs fn under ctx and waits for it. Stores give up on an
// expired ctx at their next checkpoint, so any lock they hold is released
// before the caller sees the timeout.
func runWithContext(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// classify maps raw failures onto the error taxonomy callers switch on.
func classify(ctx context.Context, op, suite string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)):
		return &schema.StoreIOError{Op: op, Suite: suite, Err: schema.ErrStoreTimeout}
	case errors.Is(err, context.Canceled):
		return &schema.StoreIOError{Op: op, Suite: suite, Err: err}
	case schema.IsValidationError(err), schema.IsStoreIOError(err):
		return err
	case errors.Is(err, schema.ErrDuplicateCommit), errors.Is(err, schema.ErrCommitNotFound), errors.Is(err, schema.ErrEmptySuite):
		return err
	default:
		return &schema.StoreIOError{Op: op, Suite: suite, Err: err}
	}
}
