package iostore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/schema"
	"github.com/sirupsen/logrus"
)

// jsPrefix makes the history document loadable as a script by static chart pages.
const jsPrefix = "window.BENCHMARK_DATA = "

// historyDocument is the persisted shape of the file backend.
type historyDocument struct {
	LastUpdate int64                      `json:"lastUpdate"`
	RepoURL    string                     `json:"repoUrl"`
	Entries    map[string][]schema.Record `json:"entries"`
}

// FileHistoryStore keeps every suite in one JSON document on disk.
type FileHistoryStore struct {
	path       string
	repoURL    string
	staleAfter time.Duration
	log        logrus.FieldLogger
	now        func() time.Time
}

var _ contract.HistoryStore = &FileHistoryStore{} // Compile-time check

// NewFileHistoryStore returns a store backed by the document at path.
// The file is created on first append.
func NewFileHistoryStore(path, repoURL string, staleAfter time.Duration, log logrus.FieldLogger) (*FileHistoryStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history file path cannot be empty")
	}
	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("history directory %q does not exist. Create it or pass a different --history-file", dir)
	}
	if log == nil {
		log = contract.DiscardLogger()
	}
	return &FileHistoryStore{
		path:       path,
		repoURL:    repoURL,
		staleAfter: staleAfter,
		log:        log.WithFields(logrus.Fields{"component": "store", "backend": schema.FileBackend}),
		now:        time.Now,
	}, nil
}

// Path returns the location of the history document.
func (s *FileHistoryStore) Path() string {
	return s.path
}

// Load implements the HistoryStore interface.
func (s *FileHistoryStore) Load(_ context.Context, suite string) ([]schema.Record, error) {
	if err := contract.ValidateSuiteName(suite); err != nil {
		return nil, err
	}
	doc, err := s.read()
	if err != nil {
		return nil, &schema.StoreIOError{Op: "load", Suite: suite, Err: err}
	}
	records := doc.Entries[suite]
	if records == nil {
		return []schema.Record{}, nil
	}
	return records, nil
}

// Append implements the HistoryStore interface.
func (s *FileHistoryStore) Append(ctx context.Context, suite string, rec schema.Record) error {
	if err := contract.ValidateSuiteName(suite); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	return s.update(ctx, "append", suite, func(records []schema.Record) ([]schema.Record, error) {
		if indexOf(records, rec.Hash()) >= 0 {
			return nil, fmt.Errorf("%w: %s", schema.ErrDuplicateCommit, rec.Hash())
		}
		return append(records, rec), nil
	})
}

// Replace implements the HistoryStore interface.
func (s *FileHistoryStore) Replace(ctx context.Context, suite string, rec schema.Record) error {
	if err := contract.ValidateSuiteName(suite); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	return s.update(ctx, "replace", suite, func(records []schema.Record) ([]schema.Record, error) {
		i := indexOf(records, rec.Hash())
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", schema.ErrCommitNotFound, rec.Hash())
		}
		records[i] = rec
		return records, nil
	})
}

// Prune implements the HistoryStore interface.
func (s *FileHistoryStore) Prune(ctx context.Context, suite string, policy schema.RetentionPolicy) (int, error) {
	if err := contract.ValidateSuiteName(suite); err != nil {
		return 0, err
	}
	kept := 0
	err := s.update(ctx, "prune", suite, func(records []schema.Record) ([]schema.Record, error) {
		out := policy.Apply(records, s.now())
		kept = len(out)
		if len(out) == len(records) {
			return nil, errUnchanged
		}
		return out, nil
	})
	if errors.Is(err, errUnchanged) {
		return kept, nil
	}
	return kept, err
}

// Suites implements the HistoryStore interface.
func (s *FileHistoryStore) Suites(_ context.Context) ([]string, error) {
	doc, err := s.read()
	if err != nil {
		return nil, &schema.StoreIOError{Op: "list suites", Err: err}
	}
	names := make([]string, 0, len(doc.Entries))
	for name := range doc.Entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// GetStatus implements the HistoryStore interface.
func (s *FileHistoryStore) GetStatus(_ context.Context) (schema.HistoryStatus, error) {
	status := schema.HistoryStatus{
		Backend:  string(schema.FileBackend),
		Location: s.path,
	}
	doc, err := s.read()
	if err != nil {
		return status, &schema.StoreIOError{Op: "status", Err: err}
	}
	status.Connected = true
	names := make([]string, 0, len(doc.Entries))
	for name := range doc.Entries {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		status.Suites = append(status.Suites, summarizeSuite(name, doc.Entries[name]))
	}
	return status, nil
}

// Close implements the HistoryStore interface.
func (s *FileHistoryStore) Close() error {
	return nil
}

// errUnchanged short-circuits a write when the mutation was a no-op.
var errUnchanged = errors.New("unchanged")

// update runs mutate under the lock file and writes the result atomically.
func (s *FileHistoryStore) update(ctx context.Context, op, suite string, mutate func([]schema.Record) ([]schema.Record, error)) (err error) {
	lock, err := acquireLock(s.path+".lock", s.staleAfter, s.now())
	if err != nil {
		return err
	}
	defer func() {
		if rerr := lock.release(); rerr != nil {
			s.log.WithError(rerr).Warn("failed to release history lock")
		}
	}()

	doc, err := s.read()
	if err != nil {
		return &schema.StoreIOError{Op: op, Suite: suite, Err: err}
	}
	records, err := mutate(doc.Entries[suite])
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	doc.Entries[suite] = records
	doc.LastUpdate = s.now().UnixMilli()
	if doc.RepoURL == "" {
		doc.RepoURL = s.repoURL
	}
	if err := s.write(ctx, doc); err != nil {
		return &schema.StoreIOError{Op: op, Suite: suite, Err: err}
	}
	s.log.WithFields(logrus.Fields{"op": op, "suite": suite, "records": len(records)}).Debug("history written")
	return nil
}

// read loads the document. A missing or empty file is an empty history;
// an unparseable one is ErrCorruptStore.
func (s *FileHistoryStore) read() (*historyDocument, error) {
	doc := &historyDocument{Entries: map[string][]schema.Record{}}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, err
	}

	data = bytes.TrimSpace(data)
	data = bytes.TrimPrefix(data, []byte(strings.TrimSpace(jsPrefix)))
	data = bytes.TrimSuffix(bytes.TrimSpace(data), []byte(";"))
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", schema.ErrCorruptStore, s.path, err)
	}
	if doc.Entries == nil {
		doc.Entries = map[string][]schema.Record{}
	}
	return doc, nil
}

// write replaces the document through a temp file and rename.
func (s *FileHistoryStore) write(ctx context.Context, doc *historyDocument) error {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if strings.HasSuffix(s.path, ".js") {
		buf.WriteString(jsPrefix)
	}
	buf.Write(body)
	buf.WriteByte('\n')
	return writeFileAtomic(ctx, s.path, buf.Bytes())
}

// writeFileAtomic writes data to a temp file in the same directory, syncs it
// and renames it over path, so readers see either the old or the new document.
// An expired ctx aborts before the rename and leaves path untouched.
func writeFileAtomic(ctx context.Context, path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	mode := fs.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}
	if err = tmp.Chmod(mode); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	if d, derr := os.Open(dir); derr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// indexOf returns the position of the record with hash, or -1.
func indexOf(records []schema.Record, hash string) int {
	for i, r := range records {
		if r.DecodeError() == nil && r.Hash() == hash {
			return i
		}
	}
	return -1
}
