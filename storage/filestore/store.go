// Package filestore implements storage.Store on a local directory.
package filestore

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/storage"
)

// Store writes each key as a file under Root.
type Store struct {
	root    string
	dirPerm os.FileMode

	mu      sync.Mutex
	created bool
}

var _ storage.Store = (*Store)(nil)

// New returns a store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{root: dir, dirPerm: 0o755}
}

// Root returns the directory the store writes to.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) path(key string) (string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func (s *Store) ensureRoot() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created {
		return nil
	}
	if err := os.MkdirAll(s.root, s.dirPerm); err != nil {
		return classify(err, "ensureRoot", "create output directory")
	}
	s.created = true
	return nil
}

// Put writes data to a temporary file and renames it over the key, so
// readers never see a partial file.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := s.ensureRoot(); err != nil {
		return err
	}

	dir := filepath.Dir(p)
	if dir != filepath.Clean(s.root) {
		if err := os.MkdirAll(dir, s.dirPerm); err != nil {
			return classify(err, "Put", "create key directory")
		}
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(p)+"-*")
	if err != nil {
		return classify(err, "Put", "create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return classify(err, "Put", "write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return classify(err, "Put", "close temp file")
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return classify(err, "Put", "rename into place")
	}
	return nil
}

// Get reads the file for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, classify(err, "Get", "read "+key)
	}
	return data, nil
}

// List walks Root and returns matching keys. A missing Root lists nothing.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) && p == s.root {
				return filepath.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, classify(err, "List", "walk "+s.root)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes the file for key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return classify(err, "Delete", "remove "+key)
	}
	return nil
}

func classify(err error, method, action string) error {
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		return errors.WrapInvalid(errors.Join(errors.ErrKeyNotFound, err), "FileStore", method, action)
	case stderrors.Is(err, syscall.ENOSPC):
		return errors.WrapFatal(errors.Join(errors.ErrStorageFull, err), "FileStore", method, action)
	case stderrors.Is(err, fs.ErrPermission):
		return errors.WrapFatal(err, "FileStore", method, action)
	default:
		return errors.WrapTransient(err, "FileStore", method, action)
	}
}
