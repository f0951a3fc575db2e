// Package storage keeps uploaded artifacts on the local filesystem under a
// single root directory.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrTooLarge is returned by Save when the upload exceeds the size limit.
var ErrTooLarge = errors.New("artifact too large")

// ErrBadKey is returned for keys that could address a file outside the root.
var ErrBadKey = errors.New("invalid artifact key")

// LocalStore writes each artifact to <root>/<uuid><ext>.  The original
// file name is kept in the database, never on disk.
type LocalStore struct {
	root     string
	maxBytes int64
}

// NewLocalStore creates root if needed.  maxBytes <= 0 disables the limit.
func NewLocalStore(root string, maxBytes int64) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("storage root is empty")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{root: root, maxBytes: maxBytes}, nil
}

// Save copies r into a new file and returns its key.
func (s *LocalStore) Save(name string, r io.Reader) (string, error) {
	key := uuid.NewString() + extension(name)
	path := filepath.Join(s.root, key)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", err
	}
	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return key, nil
}

// Open returns the artifact stored under key.
func (s *LocalStore) Open(key string) (io.ReadCloser, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Remove deletes the artifact stored under key.  A missing file is not an
// error.
func (s *LocalStore) Remove(key string) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Path resolves key to its file.
func (s *LocalStore) Path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", ErrBadKey
	}
	return filepath.Join(s.root, key), nil
}

// extension keeps a short, plain extension so downloads open with the
// right application.
func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
