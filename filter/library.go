package filter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var (
	// ErrUnknownFilter is returned for an identifier with no registration or file.
	ErrUnknownFilter = errors.New("unknown filter")
	// ErrInvalidFilterID is returned for identifiers that are not plain names.
	ErrInvalidFilterID = errors.New("invalid filter id")
)

// Extensions searched, in order, for a filter file.
var lutExtensions = []string{".cube", ".png", ".jpg", ".jpeg", ".webp"}

const (
	// DefaultDimension is the edge length of image LUTs.
	DefaultDimension = 64
	// DefaultCacheSize is the number of decoded tables kept in memory.
	DefaultCacheSize = 16
)

// IsIdentityID reports whether id selects the unfiltered passthrough.
func IsIdentityID(id string) bool {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "", "none", "original":
		return true
	}
	return false
}

// LibraryOptions configures a Library.
type LibraryOptions struct {
	// Dir holds <id>.cube, .png, .jpg, .jpeg and .webp tables.
	Dir string
	// Dimension is the edge length of image tables.
	Dimension int
	// CacheSize bounds the number of decoded tables kept.
	CacheSize int
	// ColorSpace is the working space for tables resolved by Resolve.
	ColorSpace ColorSpace
	// OnChange is called from Watch after a filter file changes.
	OnChange func(id string)
}

// Library resolves filter identifiers to transforms.
type Library struct {
	fs    afero.Fs
	opts  LibraryOptions
	cache *lru.Cache[string, *LUT]

	mu         sync.RWMutex
	registered map[string]Transform
}

// NewLibrary creates a library reading tables from opts.Dir on fs.
func NewLibrary(fs afero.Fs, opts LibraryOptions) (*Library, error) {
	if opts.Dimension == 0 {
		opts.Dimension = DefaultDimension
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if _, err := NewLUT(opts.Dimension); err != nil {
		return nil, err
	}
	cache, err := lru.New[string, *LUT](opts.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Library{
		fs:         fs,
		opts:       opts,
		cache:      cache,
		registered: make(map[string]Transform),
	}, nil
}

// Register makes t available as id. It replaces any file of the same name.
func (l *Library) Register(id string, t Transform) error {
	if err := validateID(id); err != nil {
		return err
	}
	if IsIdentityID(id) {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidFilterID, id)
	}
	if t == nil {
		return fmt.Errorf("transform cannot be nil")
	}
	l.mu.Lock()
	l.registered[id] = t
	l.mu.Unlock()
	return nil
}

// RegisterLUT registers a table evaluated in the library's color space.
func (l *Library) RegisterLUT(id string, lut *LUT) error {
	t, err := NewLUTTransform(id, lut, l.opts.ColorSpace)
	if err != nil {
		return err
	}
	return l.Register(id, t)
}

// Resolve returns the transform for id in the library's color space.
func (l *Library) Resolve(id string) (Transform, error) {
	return l.ResolveIn(id, l.opts.ColorSpace)
}

// ResolveIn returns the transform for id evaluated in space. Identity IDs
// resolve to Identity.
func (l *Library) ResolveIn(id string, space ColorSpace) (Transform, error) {
	if IsIdentityID(id) {
		return Identity{}, nil
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	l.mu.RLock()
	t, ok := l.registered[id]
	l.mu.RUnlock()
	if ok {
		return t, nil
	}
	lut, err := l.Lookup(id)
	if err != nil {
		return nil, err
	}
	return NewLUTTransform(id, lut, space)
}

// Lookup returns the decoded table stored for id, reading it on a cache miss.
func (l *Library) Lookup(id string) (*LUT, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if lut, ok := l.cache.Get(id); ok {
		return lut, nil
	}
	files, err := l.tableFiles(id)
	if err != nil {
		return nil, fmt.Errorf("list filters: %w", err)
	}
	for _, ext := range lutExtensions {
		name, ok := files[ext]
		if !ok {
			continue
		}
		path := filepath.Join(l.opts.Dir, name)
		lut, err := l.load(path, ext)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Library.Lookup",
				"filter":   id,
				"path":     path,
				"error":    err.Error(),
			}).Error("Failed to load filter")
			return nil, fmt.Errorf("load filter %q: %w", id, err)
		}
		l.cache.Add(id, lut)
		logrus.WithFields(logrus.Fields{
			"function": "Library.Lookup",
			"filter":   id,
			"path":     path,
			"size":     lut.Size,
		}).Debug("Loaded filter table")
		return lut, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, id)
}

// tableFiles maps each lower-case extension to the directory entry holding
// id's table. Extensions match regardless of case, as in IDs.
func (l *Library) tableFiles(id string) (map[string]string, error) {
	entries, err := afero.ReadDir(l.fs, l.opts.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	files := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := idFromPath(e.Name()); ok && name == id {
			files[strings.ToLower(filepath.Ext(e.Name()))] = e.Name()
		}
	}
	return files, nil
}

func (l *Library) load(path, ext string) (*LUT, error) {
	f, err := l.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeLUT(f, ext, l.opts.Dimension)
}

func decodeLUT(r io.Reader, ext string, dimension int) (*LUT, error) {
	if ext == ".cube" {
		return ParseCube(r)
	}
	return ReadImageLUT(r, dimension)
}

// Invalidate drops the cached table for id.
func (l *Library) Invalidate(id string) {
	l.cache.Remove(id)
}

// Cached returns the number of decoded tables held.
func (l *Library) Cached() int {
	return l.cache.Len()
}

// IDs lists every registered filter and every table file in the directory,
// sorted. Identity IDs are not included.
func (l *Library) IDs() ([]string, error) {
	seen := make(map[string]struct{})
	l.mu.RLock()
	for id := range l.registered {
		seen[id] = struct{}{}
	}
	l.mu.RUnlock()

	entries, err := afero.ReadDir(l.fs, l.opts.Dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := idFromPath(e.Name()); ok {
			seen[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Watch invalidates cached tables when files in the directory change. It
// needs the directory to exist on the OS filesystem and blocks until ctx is
// done.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.opts.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", l.opts.Dir, err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "Library.Watch",
		"dir":      l.opts.Dir,
	}).Info("Watching filter directory")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			l.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logrus.WithFields(logrus.Fields{
				"function": "Library.Watch",
				"error":    err.Error(),
			}).Warn("Filter watcher error")
		}
	}
}

func (l *Library) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	id, ok := idFromPath(event.Name)
	if !ok {
		return
	}
	l.Invalidate(id)
	logrus.WithFields(logrus.Fields{
		"function": "Library.handleEvent",
		"filter":   id,
		"op":       event.Op.String(),
	}).Debug("Filter file changed")
	if l.opts.OnChange != nil {
		l.opts.OnChange(id)
	}
}

func idFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	for _, known := range lutExtensions {
		if ext == known {
			return strings.TrimSuffix(base, filepath.Ext(base)), true
		}
	}
	return "", false
}

func validateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidFilterID, id)
	}
	return nil
}
