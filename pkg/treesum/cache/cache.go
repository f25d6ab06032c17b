package cache

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/adrg/xdg"
	badger "github.com/dgraph-io/badger/v4"

	"github.com/jamesainslie/treesum/pkg/treesum/hasher"
)

// ErrNotFound is returned when a cache entry doesn't exist.
var ErrNotFound = errors.New("cache entry not found")

// Cache wraps a Badger store of file digests keyed by (root, relative path).
type Cache struct {
	db *badger.DB
}

// DefaultPath returns the default cache location under the XDG cache dir.
func DefaultPath() string {
	return filepath.Join(xdg.CacheHome, "treesum", "digests")
}

// Open opens or creates a cache at the given path.
func Open(path string) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logging is noise for a CLI

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get retrieves a cached entry by root and relative path.
func (c *Cache) Get(root, relPath string) (*Entry, error) {
	key := makeKey(root, relPath)
	var entry Entry

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(entry.Decode)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Lookup returns the cached digest for a file if it is still valid: same
// algorithm, same size, same mtime. Any mismatch, decode failure, or store
// error is treated as a miss.
func (c *Cache) Lookup(root, relPath string, info fs.FileInfo, alg hasher.Algorithm) (hasher.Digest, bool) {
	entry, err := c.Get(root, relPath)
	if err != nil {
		return "", false
	}
	if entry.Algorithm != alg || entry.Kind != hasher.KindFile {
		return "", false
	}
	if entry.Size != info.Size() || entry.Mtime != info.ModTime().UnixNano() {
		return "", false
	}
	return entry.Digest, true
}

// Update writes a batch of entries for a root in a single write batch.
func (c *Cache) Update(root string, entries map[string]*Entry) error {
	wb := c.db.NewWriteBatch()
	defer wb.Cancel()

	for relPath, entry := range entries {
		value, err := entry.Encode()
		if err != nil {
			return err
		}
		if err := wb.Set(makeKey(root, relPath), value); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Invalidate removes all cached entries under a root.
func (c *Cache) Invalidate(root string) error {
	prefix := makeKeyPrefix(root)

	return c.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
}
