package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// ErrOutsideRoot is returned for paths that escape the store directory.
var ErrOutsideRoot = errors.New("path outside store root")

// Store creates, opens and removes media files below a root directory.
type Store struct {
	fs   afero.Fs
	root string
}

// New creates the root directory on fs if needed.
func New(fs afero.Fs, root string) (*Store, error) {
	if fs == nil {
		return nil, errors.New("filesystem cannot be nil")
	}
	if root == "" {
		return nil, errors.New("store root cannot be empty")
	}
	root = filepath.Clean(root)
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root %s: %w", root, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "store.New",
		"root":     root,
	}).Debug("File store ready")

	return &Store{fs: fs, root: root}, nil
}

// NewOS creates a store on the operating system filesystem.
func NewOS(root string) (*Store, error) {
	return New(afero.NewOsFs(), root)
}

// Fs returns the underlying filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Root returns the store directory.
func (s *Store) Root() string {
	return s.root
}

// TempPath returns a fresh path of the form root/prefix-<uuid>ext. The file
// is not created.
func (s *Store) TempPath(prefix, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(s.root, fmt.Sprintf("%s-%s%s", prefix, uuid.NewString(), ext))
}

// Create opens path for writing, removing any stale file there first.
func (s *Store) Create(path string) (afero.File, error) {
	if err := s.contains(path); err != nil {
		return nil, err
	}
	if err := s.Remove(path); err != nil {
		return nil, err
	}
	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}

// Open opens path for reading.
func (s *Store) Open(path string) (afero.File, error) {
	if err := s.contains(path); err != nil {
		return nil, err
	}
	return s.fs.Open(path)
}

// Remove deletes path. A missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := s.contains(path); err != nil {
		return err
	}
	err := s.fs.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path is present.
func (s *Store) Exists(path string) bool {
	ok, err := afero.Exists(s.fs, path)
	return err == nil && ok
}

// Size returns the file size in bytes.
func (s *Store) Size(path string) (int64, error) {
	info, err := s.fs.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// List returns the files directly below the root, sorted by name.
func (s *Store) List() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(s.root, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Store) contains(path string) error {
	rel, err := filepath.Rel(s.root, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return nil
}
