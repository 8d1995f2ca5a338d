package store

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(afero.NewMemMapFs(), "/media")
	require.NoError(t, err)
	return s
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, "/media")
	assert.Error(t, err)
	_, err = New(afero.NewMemMapFs(), "")
	assert.Error(t, err)
}

func TestTempPathIsUnique(t *testing.T) {
	s := newTestStore(t)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		p := s.TempPath("clip", "f24")
		assert.True(t, strings.HasPrefix(filepath.Base(p), "clip-"))
		assert.Equal(t, ".f24", filepath.Ext(p))
		assert.False(t, seen[p], "duplicate path %s", p)
		seen[p] = true
	}
}

func TestCreateRemovesStaleFile(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(s.Root(), "output.f24")
	require.NoError(t, afero.WriteFile(s.Fs(), path, []byte("stale data"), 0o644))

	f, err := s.Create(path)
	require.NoError(t, err)
	_, err = f.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := afero.ReadFile(s.Fs(), path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	size, err := s.Size(path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
}

func TestRemoveAndExists(t *testing.T) {
	s := newTestStore(t)
	path := s.TempPath("clip", ".f24")
	assert.False(t, s.Exists(path))
	assert.NoError(t, s.Remove(path), "removing a missing file is not an error")

	f, err := s.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.True(t, s.Exists(path))

	require.NoError(t, s.Remove(path))
	assert.False(t, s.Exists(path))
}

func TestPathsOutsideRootRejected(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create("/etc/passwd")
	assert.ErrorIs(t, err, ErrOutsideRoot)
	assert.ErrorIs(t, s.Remove("/media/../etc/passwd"), ErrOutsideRoot)
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"b.f24", "a.f24"} {
		f, err := s.Create(filepath.Join(s.Root(), name))
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}
	require.NoError(t, s.Fs().MkdirAll(filepath.Join(s.Root(), "sub"), 0o755))

	files, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"/media/a.f24", "/media/b.f24"}, files)
}
