// Package manifest defines the persisted checksum tree for one directory
// root and its on-disk store.
package manifest

import (
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/jamesainslie/treesum/pkg/treesum/hasher"
)

// FormatVersion is the manifest file format version this build reads and
// writes. Loading any other version fails rather than guessing.
const FormatVersion = 1

// DefaultFilename is the well-known manifest name at a tree root.
const DefaultFilename = "tree_checksum.json"

// Entry is one node of the checksum tree: a file, directory, or symlink.
// It is a tagged variant discriminated by Kind; Children is populated for
// directories only, sorted by name. Entries are immutable once a scan
// completes.
type Entry struct {
	Name   string        `json:"name"`
	Kind   hasher.Kind   `json:"kind"`
	Digest hasher.Digest `json:"digest"`

	// Size is the file size in bytes; for directories it is the total
	// recursive size of the subtree.
	Size int64 `json:"size"`

	// ModTime is the file modification time. Informational only, never
	// part of any digest.
	ModTime time.Time `json:"mod_time,omitzero"`

	// FileCount is the recursive number of files under a directory.
	FileCount int `json:"file_count,omitempty"`

	Children []*Entry `json:"children,omitempty"`
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool {
	return e.Kind == hasher.KindDir
}

// Child returns the direct child with the given name, or nil. Children
// are sorted by name, so lookup is a binary search.
func (e *Entry) Child(name string) *Entry {
	i := sort.Search(len(e.Children), func(i int) bool {
		return e.Children[i].Name >= name
	})
	if i < len(e.Children) && e.Children[i].Name == name {
		return e.Children[i]
	}
	return nil
}

// Walk visits the entry and all descendants pre-order. The visitor
// receives the slash-separated path relative to the root ("." for the
// root itself). Returning false stops descent into that subtree.
func (e *Entry) Walk(rel string, fn func(rel string, e *Entry) bool) {
	if rel == "" {
		rel = "."
	}
	if !fn(rel, e) {
		return
	}
	for _, c := range e.Children {
		c.Walk(path.Join(rel, c.Name), fn)
	}
}

// validate checks structural invariants recursively: known kinds, sorted
// children, digests present, children only under directories.
func (e *Entry) validate(rel string) error {
	if e.Name == "" && rel != "." {
		return fmt.Errorf("entry at %s: empty name", rel)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("entry at %s: unknown kind %q", rel, e.Kind)
	}
	if e.Digest == "" {
		return fmt.Errorf("entry at %s: missing digest", rel)
	}
	if !e.IsDir() && len(e.Children) > 0 {
		return fmt.Errorf("entry at %s: non-directory with children", rel)
	}
	for i, c := range e.Children {
		if i > 0 && e.Children[i-1].Name >= c.Name {
			return fmt.Errorf("entry at %s: children not sorted at %q", rel, c.Name)
		}
		if err := c.validate(path.Join(rel, c.Name)); err != nil {
			return err
		}
	}
	return nil
}

// Manifest is the checksum tree for one root plus metadata. RootLabel and
// ScanID are for display and correlation only and never affect a digest;
// two scans of byte-identical trees agree on every digest even when these
// fields differ.
type Manifest struct {
	FormatVersion int              `json:"format_version"`
	Algorithm     hasher.Algorithm `json:"algorithm"`
	CreatedAt     time.Time        `json:"created_at"`
	ScanID        string           `json:"scan_id,omitempty"`
	RootLabel     string           `json:"root_label,omitempty"`
	Root          *Entry           `json:"root"`
}

// Validate checks the manifest's structural invariants. It does not
// recompute digests.
func (m *Manifest) Validate() error {
	if m.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: format version %d, this build supports %d",
			ErrFormat, m.FormatVersion, FormatVersion)
	}
	if _, err := hasher.ParseAlgorithm(string(m.Algorithm)); err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if m.Root == nil {
		return fmt.Errorf("%w: missing root entry", ErrFormat)
	}
	if !m.Root.IsDir() {
		return fmt.Errorf("%w: root entry is not a directory", ErrFormat)
	}
	if err := m.Root.validate("."); err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return nil
}
