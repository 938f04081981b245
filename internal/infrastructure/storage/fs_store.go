package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"TdnetDownloader/internal/ports"
)

// FileStore keeps documents under root/<dir>/<name>.
type FileStore struct {
	root string
}

var _ ports.DocumentStore = (*FileStore)(nil)

// NewFileStore roots the store at dir; "" means the working directory.
func NewFileStore(root string) *FileStore {
	if root == "" {
		root = "."
	}
	return &FileStore{root: root}
}

// Path returns the location of name inside dir.
func (s *FileStore) Path(dir, name string) string {
	return filepath.Join(s.root, dir, name)
}

// EnsureDir creates root/dir when it does not exist yet.
func (s *FileStore) EnsureDir(dir string) error {
	path := filepath.Join(s.root, dir)
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("save path %s exists and is not a directory", path)
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return nil
}

// Exists reports whether dir/name is already present.
func (s *FileStore) Exists(dir, name string) (bool, error) {
	_, err := os.Stat(s.Path(dir, name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", name, err)
}

// Write stores data through a temp file and a rename so a crash never leaves
// a truncated document under the final name.
func (s *FileStore) Write(dir, name string, data []byte) error {
	target := s.Path(dir, name)

	tmp, err := os.CreateTemp(filepath.Dir(target), ".partial-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
