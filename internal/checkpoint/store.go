package checkpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"koosseis/internal"
)

const lockName = ".koosseis.lock"

// ErrLocked is returned by Open when another run holds the checkpoint.
var ErrLocked = errors.New("checkpoint: locked by another run")

// Store owns the results and failures files of one run. Every Persist
// replaces both files in full, so the files always describe a prefix of the
// run.
type Store struct {
	resultsPath string
	failedPath  string
	lockPath    string
	lock        *flock.Flock
}

func Open(resultsPath, failedPath string) (*Store, error) {
	for _, dir := range []string{filepath.Dir(resultsPath), filepath.Dir(failedPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create checkpoint dir: %w", err)
		}
	}
	lockPath := filepath.Join(filepath.Dir(resultsPath), lockName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire checkpoint lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lockPath)
	}
	return &Store{resultsPath: resultsPath, failedPath: failedPath, lockPath: lockPath, lock: lock}, nil
}

func (s *Store) Close() error {
	if s == nil || s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}

func (s *Store) ResultsPath() string { return s.resultsPath }
func (s *Store) FailedPath() string  { return s.failedPath }

// Persist replaces both files, failures first. After a crash between the two
// renames the failures file may be one record ahead of the results file.
func (s *Store) Persist(results []internal.Success, failed []internal.Failure) error {
	if results == nil {
		results = []internal.Success{}
	}
	if failed == nil {
		failed = []internal.Failure{}
	}
	if err := writeJSON(s.failedPath, failed); err != nil {
		return fmt.Errorf("write failures: %w", err)
	}
	if err := writeJSON(s.resultsPath, results); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

func (s *Store) Load() ([]internal.Success, []internal.Failure, error) {
	return Read(s.resultsPath, s.failedPath)
}

// Read loads checkpoint files without taking the lock. Missing files read as
// empty partitions.
func Read(resultsPath, failedPath string) ([]internal.Success, []internal.Failure, error) {
	var results []internal.Success
	if err := readJSON(resultsPath, &results); err != nil {
		return nil, nil, fmt.Errorf("read results: %w", err)
	}
	var failed []internal.Failure
	if err := readJSON(failedPath, &failed); err != nil {
		return nil, nil, fmt.Errorf("read failures: %w", err)
	}
	return results, failed, nil
}

func readJSON(path string, dest any) error {
	blob, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(blob)) == 0 {
		return nil
	}
	return json.Unmarshal(blob, dest)
}

func writeJSON(path string, value any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return err
	}
	return writeAtomic(path, buf.Bytes())
}

func writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return syncDir(dir)
}

// syncDir flushes the rename to disk. Filesystems that reject fsync on a
// directory are tolerated.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	_ = d.Sync()
	return nil
}
