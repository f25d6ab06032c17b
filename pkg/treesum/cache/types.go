// Package cache provides a persistent digest cache so repeated scans skip
// re-reading files whose size and mtime have not changed. It is the Go
// rendition of the original tool's incremental "continue" mode: the cache
// is advisory, and a cold or deleted cache only costs time, never
// correctness.
package cache

import (
	"bytes"
	"encoding/gob"

	"github.com/jamesainslie/treesum/pkg/treesum/hasher"
)

// keySeparator separates root from relative path in cache keys. NUL never
// appears in paths.
const keySeparator = '\x00'

// Entry is one cached digest with the stat fields used to validate it.
type Entry struct {
	Kind   hasher.Kind
	Digest hasher.Digest
	Size   int64
	Mtime  int64 // UnixNano

	// Algorithm the digest was computed with. A cached digest from a
	// different algorithm is never reused.
	Algorithm hasher.Algorithm
}

// Encode serializes the entry using gob.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes bytes into the entry using gob.
func (e *Entry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// makeKey creates a cache key from root and relative path.
func makeKey(root, relPath string) []byte {
	return []byte(root + string(keySeparator) + relPath)
}

// makeKeyPrefix returns the prefix covering all keys under a root.
func makeKeyPrefix(root string) []byte {
	return []byte(root + string(keySeparator))
}
