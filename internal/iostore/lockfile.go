package iostore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/huangsam/benchtrail/schema"
)

// DefaultStaleLockAfter is how old a lock file must be before it is reclaimed.
const DefaultStaleLockAfter = 2 * time.Minute

// reclaimSeq keeps aside names unique between goroutines of one process.
var reclaimSeq atomic.Uint64

// fileLock is an exclusive, cross-process lock held by the existence of a file.
type fileLock struct {
	path string
	info fs.FileInfo
}

// acquireLock creates path exclusively. A lock older than staleAfter is
// reclaimed once; any other holder yields ErrConcurrentWrite.
func acquireLock(path string, staleAfter time.Duration, now time.Time) (*fileLock, error) {
	for range 2 {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()) + " " + now.UTC().Format(time.RFC3339) + "\n")
			info, statErr := f.Stat()
			cerr := f.Close()
			if statErr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, errors.Join(statErr, cerr)
			}
			return &fileLock{path: path, info: info}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("failed to create lock file %s: %w", path, err)
		}

		info, statErr := os.Stat(path)
		switch {
		case errors.Is(statErr, fs.ErrNotExist):
			continue // released between open and stat
		case statErr != nil:
			return nil, statErr
		case staleAfter > 0 && now.Sub(info.ModTime()) > staleAfter:
			if err := reclaimStale(path, staleAfter, now); err != nil {
				return nil, err
			}
			continue
		}
		return nil, fmt.Errorf("%w: %s is held by another writer", schema.ErrConcurrentWrite, path)
	}
	return nil, fmt.Errorf("%w: %s was reclaimed by another writer", schema.ErrConcurrentWrite, path)
}

// reclaimStale moves the lock at path aside and deletes it if it is still
// stale. Only one writer wins the rename. A lock that turns out to be fresh
// was already reclaimed by someone else and is linked back into place.
func reclaimStale(path string, staleAfter time.Duration, now time.Time) error {
	aside := fmt.Sprintf("%s.stale-%d-%d", path, os.Getpid(), reclaimSeq.Add(1))
	if err := os.Rename(path, aside); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to reclaim stale lock %s: %w", path, err)
	}
	defer func() { _ = os.Remove(aside) }()

	info, err := os.Stat(aside)
	if err != nil {
		return fmt.Errorf("failed to reclaim stale lock %s: %w", path, err)
	}
	if now.Sub(info.ModTime()) > staleAfter {
		return nil
	}
	if err := os.Link(aside, path); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("failed to restore lock %s: %w", path, err)
	}
	return fmt.Errorf("%w: %s was reclaimed by another writer", schema.ErrConcurrentWrite, path)
}

// release removes the lock file unless another writer has taken it over.
func (l *fileLock) release() error {
	cur, err := os.Stat(l.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return err
	case l.info != nil && !os.SameFile(l.info, cur):
		return fmt.Errorf("lock %s is no longer ours, leaving it in place", l.path)
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
