package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/treesum/pkg/treesum/hasher"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()

	c, err := Open(filepath.Join(t.TempDir(), "digests"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func statFile(t *testing.T, content string) (string, os.FileInfo) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return path, info
}

func TestGetMissing(t *testing.T) {
	c := openTestCache(t)

	_, err := c.Get("/root", "a.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAndLookup(t *testing.T) {
	c := openTestCache(t)
	_, info := statFile(t, "hello")

	entries := map[string]*Entry{
		"sub/f.txt": {
			Kind:      hasher.KindFile,
			Digest:    "abc123",
			Size:      info.Size(),
			Mtime:     info.ModTime().UnixNano(),
			Algorithm: hasher.SHA256,
		},
	}
	require.NoError(t, c.Update("/root", entries))

	digest, ok := c.Lookup("/root", "sub/f.txt", info, hasher.SHA256)
	require.True(t, ok)
	assert.Equal(t, hasher.Digest("abc123"), digest)
}

func TestLookupRejectsStaleEntries(t *testing.T) {
	c := openTestCache(t)
	path, info := statFile(t, "hello")

	require.NoError(t, c.Update("/root", map[string]*Entry{
		"f.txt": {
			Kind:      hasher.KindFile,
			Digest:    "abc123",
			Size:      info.Size(),
			Mtime:     info.ModTime().UnixNano(),
			Algorithm: hasher.SHA256,
		},
	}))

	// Different algorithm is a miss even when stat matches.
	_, ok := c.Lookup("/root", "f.txt", info, hasher.MD5)
	assert.False(t, ok)

	// Different root is a different key space.
	_, ok = c.Lookup("/other", "f.txt", info, hasher.SHA256)
	assert.False(t, ok)

	// Touching the file invalidates the entry.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
	touched, err := os.Stat(path)
	require.NoError(t, err)
	_, ok = c.Lookup("/root", "f.txt", touched, hasher.SHA256)
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	c := openTestCache(t)
	_, info := statFile(t, "hello")

	entry := &Entry{
		Kind:      hasher.KindFile,
		Digest:    "abc123",
		Size:      info.Size(),
		Mtime:     info.ModTime().UnixNano(),
		Algorithm: hasher.SHA256,
	}
	require.NoError(t, c.Update("/a", map[string]*Entry{"f.txt": entry}))
	require.NoError(t, c.Update("/b", map[string]*Entry{"f.txt": entry}))

	require.NoError(t, c.Invalidate("/a"))

	_, err := c.Get("/a", "f.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Get("/b", "f.txt")
	assert.NoError(t, err, "other roots must be untouched")
}
