// Package storage implements the on-disk object store holding uploaded
// file bytes. Objects are write-once blobs keyed by the link id; metadata
// lives in the database, never here.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/hideshare/hideshare/internal/errors"
)

// ObjectStore abstracts blob storage for the access controller and reaper.
type ObjectStore interface {
	// Save streams the object bytes to storage and returns the written size.
	Save(id string, r io.Reader) (int64, error)
	// Open returns a reader over the stored object. The caller must close it.
	Open(id string) (io.ReadCloser, error)
	// Exists reports whether the object is present.
	Exists(id string) (bool, error)
	// Delete removes the object. Deleting an absent object is not an error.
	Delete(id string) error
	// List enumerates stored objects for the reaper's orphan sweep.
	List() ([]ObjectInfo, error)
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	ID      string    // the object key (same as the link id)
	ModTime time.Time // last modification time, used for the orphan grace period
}

// DiskStore stores each object as a single file named by its id inside a
// flat data directory.
type DiskStore struct {
	dataDir string
}

// NewDiskStore creates a DiskStore rooted at dataDir, creating the
// directory if it does not exist.
func NewDiskStore(dataDir string) (*DiskStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, &apperrors.StorageError{Op: "create data directory", Err: err}
	}
	return &DiskStore{dataDir: dataDir}, nil
}

// DataDir returns the root directory of the store.
func (s *DiskStore) DataDir() string {
	return s.dataDir
}

// Save writes the object through a temp file and renames it into place, so
// a partially written upload never becomes visible under its final name.
func (s *DiskStore) Save(id string, r io.Reader) (int64, error) {
	fullPath := s.path(id)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, &apperrors.StorageError{Op: "create temp object", Err: err}
	}

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, &apperrors.StorageError{Op: "write object", Err: err}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, &apperrors.StorageError{Op: "sync object", Err: err}
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, &apperrors.StorageError{Op: "close object", Err: err}
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, &apperrors.StorageError{Op: "rename object", Err: err}
	}

	return size, nil
}

// Open returns a reader over the stored object bytes.
func (s *DiskStore) Open(id string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ErrFileNotFound
		}
		return nil, &apperrors.StorageError{Op: "open object", Err: err}
	}
	return f, nil
}

// Exists reports whether the object is present on disk.
func (s *DiskStore) Exists(id string) (bool, error) {
	_, err := os.Stat(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &apperrors.StorageError{Op: "stat object", Err: err}
	}
	return true, nil
}

// Delete removes the object from disk. Idempotent: a missing object is
// treated as already deleted.
func (s *DiskStore) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return &apperrors.StorageError{Op: "delete object", Err: err}
	}
	return nil
}

// List enumerates the objects currently on disk. In-flight temp files are
// skipped; they either get renamed into place or removed by their writer.
func (s *DiskStore) List() ([]ObjectInfo, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, &apperrors.StorageError{Op: "list objects", Err: err}
	}

	var objects []ObjectInfo
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Entry removed between ReadDir and Info, nothing to report.
			continue
		}
		objects = append(objects, ObjectInfo{ID: entry.Name(), ModTime: info.ModTime()})
	}
	return objects, nil
}

func (s *DiskStore) path(id string) string {
	// The id is an opaque token generated by us, but never trust it as a
	// path: strip any directory components before joining.
	return filepath.Join(s.dataDir, filepath.Base(id))
}

var _ ObjectStore = (*DiskStore)(nil)

// String implements fmt.Stringer for log messages.
func (s *DiskStore) String() string {
	return fmt.Sprintf("DiskStore(%s)", s.dataDir)
}
