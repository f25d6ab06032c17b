// Package hasher computes content digests for files and the combining
// digests that roll child entries up into their parent directory.
//
// A directory digest is defined over the canonical serialization of its
// direct children as (name, kind, digest) tuples. Sorting those tuples is
// the caller's job; Combine hashes exactly what it is given.
package hasher

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Digest is a hex-encoded hash value. Digests are opaque and compared by
// equality only.
type Digest string

// Kind identifies what a tree entry is. It participates in the combining
// hash so that a file and a directory with the same name and content
// digest still produce different parent digests.
type Kind string

// Entry kinds.
const (
	KindFile    Kind = "file"
	KindDir     Kind = "dir"
	KindSymlink Kind = "symlink"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindFile, KindDir, KindSymlink:
		return true
	}
	return false
}

// Algorithm selects the hash function used for a scan.
type Algorithm string

// Supported algorithms. SHA256 is the default; MD5 matches trees hashed
// by older tooling; XXH64 is not cryptographic but is considerably faster
// and fine for change detection on trusted local trees.
const (
	SHA256 Algorithm = "sha256"
	MD5    Algorithm = "md5"
	XXH64  Algorithm = "xxh64"
)

// ErrUnknownAlgorithm is returned by New for an unrecognized algorithm name.
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// ParseAlgorithm parses an algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case SHA256, MD5, XXH64:
		return Algorithm(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// ChildRecord is one already-sorted child of a directory, as fed to Combine.
type ChildRecord struct {
	Name   string
	Kind   Kind
	Digest Digest
}

// Hasher computes digests with a fixed algorithm. It is stateless and safe
// for concurrent use.
type Hasher struct {
	alg Algorithm
}

// New returns a Hasher for the given algorithm.
func New(alg Algorithm) (*Hasher, error) {
	if _, err := ParseAlgorithm(string(alg)); err != nil {
		return nil, err
	}
	return &Hasher{alg: alg}, nil
}

// Algorithm returns the algorithm this hasher was created with.
func (h *Hasher) Algorithm() Algorithm {
	return h.alg
}

func (h *Hasher) newHash() hash.Hash {
	switch h.alg {
	case MD5:
		return md5.New()
	case XXH64:
		return xxhash.New()
	default:
		return sha256.New()
	}
}

// HashFile returns the digest of the file's contents. The file is streamed
// through the hash so memory use is bounded regardless of file size.
func (h *Hasher) HashFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()

	hh := h.newHash()
	if _, err := io.Copy(hh, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return Digest(hex.EncodeToString(hh.Sum(nil))), nil
}

// HashString returns the digest of a literal string. Used for symlink
// targets, which are hashed as leaves rather than followed.
func (h *Hasher) HashString(s string) Digest {
	hh := h.newHash()
	hh.Write([]byte(s))
	return Digest(hex.EncodeToString(hh.Sum(nil)))
}

// Combine hashes the canonical serialization of sorted child records into
// a directory digest. Each field is NUL-terminated: names cannot contain
// NUL on any supported filesystem, kinds and hex digests never do, so the
// framing is unambiguous and two different child sequences cannot collide
// on serialization alone.
func (h *Hasher) Combine(records []ChildRecord) Digest {
	hh := h.newHash()
	for _, r := range records {
		hh.Write([]byte(r.Name))
		hh.Write([]byte{0})
		hh.Write([]byte(r.Kind))
		hh.Write([]byte{0})
		hh.Write([]byte(r.Digest))
		hh.Write([]byte{0})
	}
	return Digest(hex.EncodeToString(hh.Sum(nil)))
}
