package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when no blob exists under the given key.
var ErrNotFound = errors.New("blob not found")

// BlobStore holds attachment bytes; metadata lives in the database.
type BlobStore interface {
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// DiskStore stores blobs as files under a base directory.
type DiskStore struct {
	baseDir string
}

// NewDiskStore creates the base directory if needed.
func NewDiskStore(baseDir string) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{baseDir: baseDir}, nil
}

// Save writes the blob and returns the byte count. Keys are generated by
// the caller and never contain path separators.
func (s *DiskStore) Save(_ context.Context, key string, r io.Reader) (int64, error) {
	f, err := os.Create(filepath.Join(s.baseDir, filepath.Base(key)))
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Open returns a reader over the blob.
func (s *DiskStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.baseDir, filepath.Base(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}
