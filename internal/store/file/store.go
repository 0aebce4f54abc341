// Package file persists indicator results as one file per entry under
// root/<unique name>/<symbol>.msgpack.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"screening-systemv1/internal/model"
	"screening-systemv1/internal/store"
)

// Ext is the entry file extension.
const Ext = "msgpack"

// Store is a filesystem ResultStore. Writes go to a temp file in the
// destination directory and are renamed into place, so readers only ever
// see complete entries.
type Store struct {
	root string
}

// New creates the root directory if needed and returns a store over it.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the storage root.
func (s *Store) Root() string { return s.root }

// Path returns the entry path for (name, symbol).
func (s *Store) Path(name, symbol string) string {
	return filepath.Join(s.root, name, symbol+"."+Ext)
}

// Load returns nil, nil when the entry does not exist.
func (s *Store) Load(_ context.Context, name, symbol string) (*model.Result, error) {
	if err := store.ValidateKey(name, symbol); err != nil {
		return nil, err
	}
	path := s.Path(name, symbol)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	res, err := store.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// Save atomically replaces the entry for (name, symbol).
func (s *Store) Save(_ context.Context, name, symbol string, res *model.Result) error {
	if err := store.ValidateKey(name, symbol); err != nil {
		return err
	}
	data, err := store.Encode(res)
	if err != nil {
		return err
	}

	dir := filepath.Join(s.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+symbol+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	// removal fails harmlessly once the rename has happened
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.Path(name, symbol)); err != nil {
		return fmt.Errorf("rename into %s: %w", dir, err)
	}
	return nil
}
