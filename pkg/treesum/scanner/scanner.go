// Package scanner walks a directory tree bottom-up and assembles the
// checksum manifest: file digests at the leaves, combining digests at
// every directory, children sorted by name so the result is independent
// of filesystem iteration order.
//
// Policy, fixed so that repeated scans stay comparable:
//   - symlinks are never followed; they hash as leaves over their target
//     string, which also rules out cycles
//   - devices, sockets, and fifos are skipped and recorded
//   - an unreadable entry is recorded in Result.Errors and omitted from
//     the manifest (the parent digest covers what was actually hashed);
//     FailFast aborts instead, and an unreadable root always aborts
//   - cancellation aborts the whole scan, a manifest is all-or-nothing
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/treesum/pkg/treesum/cache"
	"github.com/jamesainslie/treesum/pkg/treesum/hasher"
	"github.com/jamesainslie/treesum/pkg/treesum/logging"
	"github.com/jamesainslie/treesum/pkg/treesum/manifest"
)

// EntryError records a per-entry failure that did not abort the scan.
type EntryError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Result is the outcome of a scan.
type Result struct {
	Manifest *manifest.Manifest

	DirsScanned  int64
	FilesScanned int64
	BytesHashed  int64
	CacheHits    int64
	CacheMisses  int64
	Elapsed      time.Duration

	// Errors lists unreadable entries omitted from the manifest.
	Errors []EntryError

	// Skipped lists special files (devices, sockets, fifos) left out by
	// policy.
	Skipped []string
}

// Scanner performs one scan. A Scanner is single-use; create a new one
// per scan.
type Scanner struct {
	opts Options
	h    *hasher.Hasher
	root string

	// sem bounds concurrent subtree hashing. A directory that cannot get
	// a slot recurses inline, so the pool can never deadlock on itself.
	sem chan struct{}

	dirsScanned  atomic.Int64
	filesScanned atomic.Int64
	bytesHashed  atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
	currentPath  atomic.Value
	lastProgress atomic.Int64

	errs   []EntryError
	errsMu sync.Mutex

	skipped   []string
	skippedMu sync.Mutex

	cacheEntries   map[string]*cache.Entry
	cacheEntriesMu sync.Mutex

	abortErr error
	abortMu  sync.Mutex
}

// New creates a Scanner with the given options.
func New(opts Options) *Scanner {
	_ = opts.Validate()

	s := &Scanner{opts: opts}
	s.currentPath.Store("")
	return s
}

// Scan walks the tree and returns the manifest plus scan statistics. It
// blocks until complete or the context is cancelled; a cancelled or
// aborted scan returns no manifest.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	start := time.Now()

	root, err := filepath.Abs(s.opts.Root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s: not a directory", root)
	}
	s.root = root

	if s.h, err = hasher.New(s.opts.Algorithm); err != nil {
		return nil, err
	}

	s.sem = make(chan struct{}, s.opts.Workers)
	if s.opts.Cache != nil {
		s.cacheEntries = make(map[string]*cache.Entry)
	}

	s.currentPath.Store(root)
	s.reportProgressForce()

	rootEntry, err := s.scanDir(ctx, root, ".")
	if err != nil {
		return nil, err
	}
	if err := s.aborted(); err != nil {
		return nil, err
	}
	if rootEntry == nil {
		return nil, fmt.Errorf("scan root %s: unreadable", root)
	}

	s.flushCacheEntries()
	s.reportProgressForce()

	m := &manifest.Manifest{
		FormatVersion: manifest.FormatVersion,
		Algorithm:     s.opts.Algorithm,
		CreatedAt:     time.Now().UTC(),
		ScanID:        uuid.NewString(),
		RootLabel:     root,
		Root:          rootEntry,
	}

	return &Result{
		Manifest:     m,
		DirsScanned:  s.dirsScanned.Load(),
		FilesScanned: s.filesScanned.Load(),
		BytesHashed:  s.bytesHashed.Load(),
		CacheHits:    s.cacheHits.Load(),
		CacheMisses:  s.cacheMisses.Load(),
		Elapsed:      time.Since(start),
		Errors:       s.errs,
		Skipped:      s.skipped,
	}, nil
}

// scanDir hashes one directory post-order: children first (subdirectories
// possibly in parallel), then the combining digest over the sorted child
// records. Returns (nil, nil) when the directory was unreadable and the
// error was recorded.
func (s *Scanner) scanDir(ctx context.Context, dir, rel string) (*manifest.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.aborted(); err != nil {
		return nil, err
	}

	s.currentPath.Store(dir)
	s.dirsScanned.Add(1)
	s.reportProgress()

	// os.ReadDir sorts by filename; the digest depends on that order, so
	// it is part of the contract here, not a convenience.
	entries, err := os.ReadDir(dir)
	if err != nil {
		if rel == "." {
			return nil, fmt.Errorf("scan root: %w", err)
		}
		s.addError(dir, err)
		return nil, nil
	}

	children := make([]*manifest.Entry, len(entries))
	var wg sync.WaitGroup

	for i, de := range entries {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		if err := s.aborted(); err != nil {
			wg.Wait()
			return nil, err
		}

		name := de.Name()
		if rel == "." && name == s.opts.ManifestName {
			continue
		}
		full := filepath.Join(dir, name)
		childRel := path.Join(rel, name)
		if s.isExcluded(full, childRel) {
			continue
		}

		switch {
		case de.IsDir():
			select {
			case s.sem <- struct{}{}:
				wg.Add(1)
				go func(i int, full, childRel string) {
					defer wg.Done()
					defer func() { <-s.sem }()
					e, err := s.scanDir(ctx, full, childRel)
					if err != nil {
						s.abort(err)
						return
					}
					children[i] = e
				}(i, full, childRel)
			default:
				e, err := s.scanDir(ctx, full, childRel)
				if err != nil {
					wg.Wait()
					return nil, err
				}
				children[i] = e
			}

		case de.Type()&fs.ModeSymlink != 0:
			children[i] = s.symlinkEntry(full, name)

		case de.Type().IsRegular():
			children[i] = s.fileEntry(full, childRel, de)

		default:
			s.addSkipped(full)
		}
	}

	wg.Wait()
	if err := s.aborted(); err != nil {
		return nil, err
	}

	return s.combineDir(rel, children), nil
}

// combineDir builds the directory entry from its (possibly sparse) child
// slice. Nil slots are omitted: excluded entries, skipped specials, and
// errored subtrees.
func (s *Scanner) combineDir(rel string, children []*manifest.Entry) *manifest.Entry {
	kept := make([]*manifest.Entry, 0, len(children))
	for _, c := range children {
		if c != nil {
			kept = append(kept, c)
		}
	}

	records := make([]hasher.ChildRecord, len(kept))
	var size int64
	var fileCount int
	for i, c := range kept {
		records[i] = hasher.ChildRecord{Name: c.Name, Kind: c.Kind, Digest: c.Digest}
		size += c.Size
		switch c.Kind {
		case hasher.KindDir:
			fileCount += c.FileCount
		case hasher.KindFile:
			fileCount++
		}
	}

	name := path.Base(rel)
	if rel == "." {
		name = "."
	}
	return &manifest.Entry{
		Name:      name,
		Kind:      hasher.KindDir,
		Digest:    s.h.Combine(records),
		Size:      size,
		FileCount: fileCount,
		Children:  kept,
	}
}

// fileEntry hashes one regular file, consulting the digest cache first.
// Returns nil after recording the error if the file cannot be read.
func (s *Scanner) fileEntry(full, rel string, de fs.DirEntry) *manifest.Entry {
	info, err := de.Info()
	if err != nil {
		s.addError(full, err)
		return nil
	}
	size := info.Size()

	var digest hasher.Digest
	if s.opts.Cache != nil {
		if d, ok := s.opts.Cache.Lookup(s.root, rel, info, s.opts.Algorithm); ok {
			s.cacheHits.Add(1)
			digest = d
		}
	}
	if digest == "" {
		s.cacheMisses.Add(1)
		digest, err = s.h.HashFile(full)
		if err != nil {
			s.addError(full, err)
			return nil
		}
		s.bytesHashed.Add(size)
	}

	s.filesScanned.Add(1)
	s.reportProgress()
	s.collectCacheEntry(rel, &cache.Entry{
		Kind:      hasher.KindFile,
		Digest:    digest,
		Size:      size,
		Mtime:     info.ModTime().UnixNano(),
		Algorithm: s.opts.Algorithm,
	})

	return &manifest.Entry{
		Name:    de.Name(),
		Kind:    hasher.KindFile,
		Digest:  digest,
		Size:    size,
		ModTime: info.ModTime(),
	}
}

// symlinkEntry hashes a symlink as a leaf over its target string. The
// link is never followed.
func (s *Scanner) symlinkEntry(full, name string) *manifest.Entry {
	target, err := os.Readlink(full)
	if err != nil {
		s.addError(full, err)
		return nil
	}
	return &manifest.Entry{
		Name:   name,
		Kind:   hasher.KindSymlink,
		Digest: s.h.HashString(target),
		Size:   int64(len(target)),
	}
}

// isExcluded checks a path against the exclusion patterns: literal
// prefix, basename glob, or relative-path glob.
func (s *Scanner) isExcluded(full, rel string) bool {
	for _, pattern := range s.opts.Exclude {
		if pattern == "" {
			continue
		}
		if full == pattern || rel == pattern {
			return true
		}
		if matched, err := path.Match(pattern, filepath.Base(full)); err == nil && matched {
			return true
		}
		if matched, err := path.Match(pattern, rel); err == nil && matched {
			return true
		}
	}
	return false
}

func (s *Scanner) addError(path string, err error) {
	if s.opts.FailFast {
		s.abort(fmt.Errorf("%s: %w", path, err))
		return
	}
	s.errsMu.Lock()
	s.errs = append(s.errs, EntryError{Path: path, Error: err.Error()})
	s.errsMu.Unlock()
}

func (s *Scanner) addSkipped(path string) {
	s.skippedMu.Lock()
	s.skipped = append(s.skipped, path)
	s.skippedMu.Unlock()
}

// abort records the first fatal error; later calls are dropped.
func (s *Scanner) abort(err error) {
	s.abortMu.Lock()
	if s.abortErr == nil {
		s.abortErr = err
	}
	s.abortMu.Unlock()
}

func (s *Scanner) aborted() error {
	s.abortMu.Lock()
	defer s.abortMu.Unlock()
	return s.abortErr
}

func (s *Scanner) collectCacheEntry(rel string, entry *cache.Entry) {
	if s.cacheEntries == nil {
		return
	}
	s.cacheEntriesMu.Lock()
	s.cacheEntries[rel] = entry
	s.cacheEntriesMu.Unlock()
}

func (s *Scanner) flushCacheEntries() {
	if s.opts.Cache == nil || len(s.cacheEntries) == 0 {
		return
	}
	if err := s.opts.Cache.Update(s.root, s.cacheEntries); err != nil {
		// The cache is advisory; a failed flush costs the next scan time,
		// never this scan's result.
		logging.Get("scanner").Warn("digest cache update failed", "error", err)
	}
}

// reportProgress calls the progress callback, throttled to every 50ms.
func (s *Scanner) reportProgress() {
	if s.opts.OnProgress == nil {
		return
	}
	now := time.Now().UnixMilli()
	last := s.lastProgress.Load()
	if now-last < 50 {
		return
	}
	if !s.lastProgress.CompareAndSwap(last, now) {
		return
	}
	s.sendProgress()
}

// reportProgressForce bypasses the throttle for phase changes.
func (s *Scanner) reportProgressForce() {
	if s.opts.OnProgress == nil {
		return
	}
	s.lastProgress.Store(time.Now().UnixMilli())
	s.sendProgress()
}

func (s *Scanner) sendProgress() {
	currentPath, _ := s.currentPath.Load().(string)
	s.opts.OnProgress(Progress{
		DirsScanned:  s.dirsScanned.Load(),
		FilesScanned: s.filesScanned.Load(),
		BytesHashed:  s.bytesHashed.Load(),
		CacheHits:    s.cacheHits.Load(),
		CacheMisses:  s.cacheMisses.Load(),
		CurrentPath:  currentPath,
	})
}
