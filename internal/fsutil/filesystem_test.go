package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var osfs OSFileSystem
	out := filepath.Join(dir, "nested", "a.txt")

	require.NoError(t, osfs.MkdirAll(filepath.Dir(out), 0o755))
	w, err := osfs.Create(out)
	require.NoError(t, err)
	_, err = w.Write([]byte("grid"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.True(t, osfs.Exists(out))
	data, err := osfs.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "grid", string(data))

	info, err := osfs.Stat(out)
	require.NoError(t, err)
	assert.EqualValues(t, 4, info.Size())
	assert.False(t, osfs.Exists(filepath.Join(dir, "missing")))
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	t.Parallel()

	m := NewMemoryFileSystem()
	w, err := m.Create("/out/1.png")
	require.NoError(t, err)
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)

	data, err := m.ReadFile("/out/1.png")
	require.NoError(t, err)
	assert.Empty(t, data)

	require.NoError(t, w.Close())
	data, err = m.ReadFile("/out/./1.png")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestMemoryFileSystem_OpenAndStat(t *testing.T) {
	t.Parallel()

	m := NewMemoryFileSystem()
	require.NoError(t, m.WriteFile("bg.png", []byte("pixels"), 0o644))

	f, err := m.Open("bg.png")
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, "bg.png", info.Name())
	assert.EqualValues(t, 6, info.Size())
	assert.False(t, info.IsDir())
}

func TestMemoryFileSystem_Missing(t *testing.T) {
	t.Parallel()

	m := NewMemoryFileSystem()
	_, err := m.Open("nope")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	_, err = m.ReadFile("nope")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	_, err = m.Stat("nope")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.False(t, m.Exists("nope"))
}

func TestMemoryFileSystem_Dirs(t *testing.T) {
	t.Parallel()

	m := NewMemoryFileSystem()
	require.NoError(t, m.MkdirAll("a/b/c", 0o755))
	assert.True(t, m.Exists("a"))
	assert.True(t, m.Exists("a/b"))

	info, err := m.Stat("a/b/c")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.True(t, info.Mode().IsDir())
}

func TestMemoryFileSystem_WriteIsolation(t *testing.T) {
	t.Parallel()

	m := NewMemoryFileSystem()
	src := []byte("abc")
	require.NoError(t, m.WriteFile("x", src, 0o644))
	src[0] = 'z'

	got, err := m.ReadFile("x")
	require.NoError(t, err)
	got[1] = 'z'

	again, err := m.ReadFile("x")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestMemoryFileSystem_Files(t *testing.T) {
	t.Parallel()

	m := NewMemoryFileSystem()
	for _, name := range []string{"out/2.png", "out/1.png", "other/x", "out/sub/y"} {
		require.NoError(t, m.WriteFile(name, nil, 0o644))
	}
	assert.Equal(t, []string{"out/1.png", "out/2.png", "out/sub/y"}, m.Files("out"))
	assert.Len(t, m.Files(""), 4)
	assert.Empty(t, m.Files("missing"))
}
