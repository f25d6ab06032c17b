// Package watcher keeps a tree's manifest current: it watches the tree
// recursively and, after a change burst settles, invokes a rescan
// callback. Used by the `treesum watch` command.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/treesum/pkg/treesum/logging"
	"github.com/jamesainslie/treesum/pkg/treesum/manifest"
)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the watcher waits after the last event before
	// firing OnSettled. Bursts (editor saves, builds, rsync) coalesce
	// into a single rescan.
	Debounce time.Duration

	// ManifestName is ignored when it changes, so the rescan that
	// rewrites the manifest does not retrigger the watcher. Defaults to
	// manifest.DefaultFilename.
	ManifestName string

	// OnSettled runs after a change burst settles. Errors are logged,
	// not fatal; watching continues.
	OnSettled func(ctx context.Context) error
}

// Watcher watches one root recursively.
type Watcher struct {
	root   string
	opts   Options
	fsw    *fsnotify.Watcher
	log    *log.Logger
	mu     sync.Mutex
	closed bool
}

// New creates a Watcher for root. Call Run to start it.
func New(root string, opts Options) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", absRoot)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	if opts.ManifestName == "" {
		opts.ManifestName = manifest.DefaultFilename
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root: absRoot,
		opts: opts,
		fsw:  fsw,
		log:  logging.Get("watcher"),
	}
	if err := w.addRecursive(absRoot); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addRecursive adds watches for a directory and everything under it.
// Symlinks are not followed, so link cycles cannot loop the watcher.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.log.Warn("skipping unwatchable path", "path", path, "error", walkErr)
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				w.log.Warn("watch add failed", "path", path, "error", err)
			}
		}
		return nil
	})
}

// Run processes events until the context is cancelled. It blocks.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()
	w.log.Debug("watch loop started", "root", w.root, "debounce", w.opts.Debounce)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.ignored(event.Name) {
				continue
			}
			w.log.Debug("fs event", "op", event.Op.String(), "path", event.Name)

			// New directories need their own watches before anything
			// inside them can be seen.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
				}
			}

			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case <-timerC:
			timer = nil
			timerC = nil
			if w.opts.OnSettled == nil {
				continue
			}
			if err := w.opts.OnSettled(ctx); err != nil {
				w.log.Error("rescan after change failed", "error", err)
			}
		}
	}
}

// ignored filters events for the manifest file itself and its temp files.
func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	if base == w.opts.ManifestName {
		return true
	}
	return strings.HasPrefix(base, w.opts.ManifestName+".tmp-")
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.fsw.Close()
}
