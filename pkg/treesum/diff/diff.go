// Package diff compares two checksum manifests and produces an ordered
// report of per-path classifications. Equal directory digests prove two
// subtrees identical without descending, which is the performance
// property the manifest exists to provide.
package diff

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/jamesainslie/treesum/pkg/treesum/manifest"
	"github.com/jamesainslie/treesum/pkg/treesum/scanner"
)

// ErrAlgorithmMismatch is returned when the two manifests were hashed
// with different algorithms; their digests are not comparable.
var ErrAlgorithmMismatch = errors.New("manifests use different hash algorithms")

// Diff compares manifest a (the reference) against manifest b and returns
// the report of b relative to a: Added means present in b only, Removed
// present in a only.
func Diff(a, b *manifest.Manifest) (*Report, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if a.Algorithm != b.Algorithm {
		return nil, fmt.Errorf("%w: %s vs %s", ErrAlgorithmMismatch, a.Algorithm, b.Algorithm)
	}

	rep := &Report{Algorithm: a.Algorithm}
	diffDir(".", a.Root, b.Root, rep)
	return rep, nil
}

// DiffLive scans liveRoot on demand and compares manifest a against the
// fresh result. The scan uses a's algorithm so digests stay comparable.
func DiffLive(ctx context.Context, a *manifest.Manifest, liveRoot string, opts scanner.Options) (*Report, *scanner.Result, error) {
	opts.Root = liveRoot
	opts.Algorithm = a.Algorithm

	res, err := scanner.New(opts).Scan(ctx)
	if err != nil {
		return nil, nil, err
	}
	rep, err := Diff(a, res.Manifest)
	if err != nil {
		return nil, nil, err
	}
	return rep, res, nil
}

// diffDir compares two directories known to exist on both sides with the
// same kind. Equal digests short-circuit the whole subtree.
func diffDir(rel string, a, b *manifest.Entry, rep *Report) {
	if a.Digest == b.Digest {
		rep.add(Record{Path: rel, Class: ClassUnchanged, Kind: b.Kind, ShortCircuit: true})
		return
	}
	rep.add(Record{Path: rel, Class: ClassChanged, Kind: b.Kind})

	// Children are sorted by name on both sides; a single merge pass
	// classifies every name present on either side.
	i, j := 0, 0
	for i < len(a.Children) || j < len(b.Children) {
		switch {
		case j >= len(b.Children) || (i < len(a.Children) && a.Children[i].Name < b.Children[j].Name):
			ca := a.Children[i]
			rep.add(Record{Path: path.Join(rel, ca.Name), Class: ClassRemoved, Kind: ca.Kind})
			i++

		case i >= len(a.Children) || b.Children[j].Name < a.Children[i].Name:
			cb := b.Children[j]
			rep.add(Record{Path: path.Join(rel, cb.Name), Class: ClassAdded, Kind: cb.Kind})
			j++

		default:
			diffEntry(path.Join(rel, a.Children[i].Name), a.Children[i], b.Children[j], rep)
			i++
			j++
		}
	}
}

// diffEntry compares two same-named entries. A kind mismatch is always a
// single changed record and is never recursed into.
func diffEntry(rel string, a, b *manifest.Entry, rep *Report) {
	if a.Kind != b.Kind {
		rep.add(Record{Path: rel, Class: ClassChanged, Kind: b.Kind, OldKind: a.Kind})
		return
	}
	if a.IsDir() {
		diffDir(rel, a, b, rep)
		return
	}
	if a.Digest == b.Digest {
		rep.add(Record{Path: rel, Class: ClassUnchanged, Kind: b.Kind})
		return
	}
	rep.add(Record{Path: rel, Class: ClassChanged, Kind: b.Kind})
}
