// Package sync applies a diff report to a destination tree so it matches
// the source ("update-copy"). It consumes the report as computed; nothing
// is rescanned mid-flight.
//
// Destructive deletes are opt-in: removed entries are only deleted from
// the destination when Options.Delete is set, and a kind change (file
// replaced by directory or vice versa) needs Delete for its removal half.
// Within one name that removal always happens before the new entry is
// copied, so kind changes replace cleanly; this ordering is fixed.
//
// Failures are collected per entry and processing continues with the
// remaining records (FailFast aborts instead). The destination's manifest
// should be recomputed after a sync rather than assumed.
package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/treesum/pkg/treesum/diff"
	"github.com/jamesainslie/treesum/pkg/treesum/hasher"
)

// Options configures an update-copy.
type Options struct {
	// Delete enables removing destination entries that are absent from
	// the source. Off by default; skipped deletes are reported, not
	// silently dropped.
	Delete bool

	// DryRun counts and reports what would change without touching the
	// destination.
	DryRun bool

	// FailFast aborts on the first per-entry failure.
	FailFast bool
}

// Failure records one entry that could not be applied.
type Failure struct {
	Path  string `json:"path"`
	Op    string `json:"op"` // "copy" or "delete"
	Error string `json:"error"`
}

// Result summarizes an update-copy.
type Result struct {
	FilesCopied int   `json:"files_copied"`
	DirsCreated int   `json:"dirs_created"`
	Deleted     int   `json:"deleted"`
	BytesCopied int64 `json:"bytes_copied"`

	// SkippedDeletes lists removed entries left in place because Delete
	// was not enabled.
	SkippedDeletes []string `json:"skipped_deletes,omitempty"`

	Failures []Failure `json:"failures,omitempty"`
}

// Clean reports whether every applicable record was applied.
func (r *Result) Clean() bool {
	return len(r.Failures) == 0
}

type syncer struct {
	srcRoot string
	dstRoot string
	opts    Options
	res     *Result
	ctx     context.Context
}

// UpdateCopy applies the report's changes from srcRoot onto dstRoot. The
// returned error is non-nil only for fatal conditions (cancellation, bad
// roots, or the first failure under FailFast); per-entry failures are in
// Result.Failures.
func UpdateCopy(ctx context.Context, rep *diff.Report, srcRoot, dstRoot string, opts Options) (*Result, error) {
	srcRoot, err := filepath.Abs(srcRoot)
	if err != nil {
		return nil, err
	}
	dstRoot, err = filepath.Abs(dstRoot)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dstRoot); err != nil {
		return nil, fmt.Errorf("sync destination: %w", err)
	}

	s := &syncer{srcRoot: srcRoot, dstRoot: dstRoot, opts: opts, res: &Result{}, ctx: ctx}

	for _, rec := range rep.Records {
		if err := ctx.Err(); err != nil {
			// Partial results stand; already-copied files remain copied.
			return s.res, err
		}
		if err := s.apply(rec); err != nil {
			return s.res, err
		}
	}
	return s.res, nil
}

// apply dispatches one record. Directory records classified by recursion
// are no-ops here: their children follow in the report.
func (s *syncer) apply(rec diff.Record) error {
	switch rec.Class {
	case diff.ClassUnchanged:
		return nil

	case diff.ClassAdded:
		return s.copyEntry(rec.Path, rec.Kind)

	case diff.ClassRemoved:
		return s.deleteEntry(rec.Path)

	case diff.ClassChanged:
		if rec.OldKind != "" {
			// Kind change: remove the old entry, then copy the new one.
			if !s.opts.Delete {
				s.res.SkippedDeletes = append(s.res.SkippedDeletes, rec.Path)
				return nil
			}
			if err := s.deleteEntry(rec.Path); err != nil {
				return err
			}
			return s.copyEntry(rec.Path, rec.Kind)
		}
		if rec.Kind == hasher.KindDir {
			return nil // children carry the changes
		}
		return s.copyEntry(rec.Path, rec.Kind)
	}
	return nil
}

func (s *syncer) copyEntry(rel string, kind hasher.Kind) error {
	src := filepath.Join(s.srcRoot, filepath.FromSlash(rel))
	dst := filepath.Join(s.dstRoot, filepath.FromSlash(rel))

	switch kind {
	case hasher.KindDir:
		return s.copyTree(src, dst)
	case hasher.KindSymlink:
		return s.copySymlink(src, dst, rel)
	default:
		return s.copyFile(src, dst, rel)
	}
}

func (s *syncer) deleteEntry(rel string) error {
	if !s.opts.Delete {
		s.res.SkippedDeletes = append(s.res.SkippedDeletes, rel)
		return nil
	}

	if s.opts.DryRun {
		s.res.Deleted++
		return nil
	}

	dst := filepath.Join(s.dstRoot, filepath.FromSlash(rel))
	if err := os.RemoveAll(dst); err != nil {
		return s.fail(rel, "delete", err)
	}
	s.res.Deleted++
	return nil
}

// fail records a per-entry failure, or returns it when FailFast is set.
func (s *syncer) fail(rel, op string, err error) error {
	if s.opts.FailFast {
		return fmt.Errorf("%s %s: %w", op, rel, err)
	}
	s.res.Failures = append(s.res.Failures, Failure{Path: rel, Op: op, Error: err.Error()})
	return nil
}
