package sync

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	sysync "sync"

	"github.com/charlievieth/fastwalk"
)

// copyFile copies one regular file, preserving mode and mtime. The write
// truncates in place; parent directories always exist because added
// directories are copied as whole subtrees before any child record could
// reference them.
func (s *syncer) copyFile(src, dst, rel string) error {
	info, err := os.Stat(src)
	if err != nil {
		return s.fail(rel, "copy", err)
	}

	if s.opts.DryRun {
		s.res.FilesCopied++
		s.res.BytesCopied += info.Size()
		return nil
	}

	n, err := copyFileContents(src, dst)
	if err != nil {
		return s.fail(rel, "copy", err)
	}
	s.res.FilesCopied++
	s.res.BytesCopied += n
	return nil
}

// copySymlink recreates a symlink at dst with the source's target. An
// existing destination link is replaced.
func (s *syncer) copySymlink(src, dst, rel string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return s.fail(rel, "copy", err)
	}

	if s.opts.DryRun {
		s.res.FilesCopied++
		return nil
	}

	if _, err := os.Lstat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			return s.fail(rel, "copy", err)
		}
	}
	if err := os.Symlink(target, dst); err != nil {
		return s.fail(rel, "copy", err)
	}
	s.res.FilesCopied++
	return nil
}

// copyTree copies a whole source subtree to dst. fastwalk parallelizes
// the traversal, so result updates go through a mutex-guarded collector.
func (s *syncer) copyTree(src, dst string) error {
	if s.opts.DryRun {
		return s.countTree(src)
	}

	var mu sysync.Mutex
	var failures []Failure
	var filesCopied, dirsCreated int
	var bytesCopied int64

	record := func(rel, op string, err error) {
		mu.Lock()
		failures = append(failures, Failure{Path: rel, Op: op, Error: err.Error()})
		mu.Unlock()
	}

	conf := fastwalk.Config{Follow: false}
	walkErr := fastwalk.Walk(&conf, src, func(path string, d fs.DirEntry, err error) error {
		if cerr := s.ctx.Err(); cerr != nil {
			return cerr
		}

		rel := strings.TrimPrefix(path, src)
		rel = strings.TrimPrefix(rel, string(filepath.Separator))
		target := filepath.Join(dst, rel)

		if err != nil {
			record(rel, "copy", err)
			return nil
		}

		switch {
		case d.IsDir():
			info, ierr := d.Info()
			mode := os.FileMode(0o755)
			if ierr == nil {
				mode = info.Mode().Perm()
			}
			if merr := os.MkdirAll(target, mode); merr != nil {
				record(rel, "copy", merr)
				return fastwalk.SkipDir
			}
			mu.Lock()
			dirsCreated++
			mu.Unlock()

		case d.Type()&fs.ModeSymlink != 0:
			linkTarget, lerr := os.Readlink(path)
			if lerr != nil {
				record(rel, "copy", lerr)
				return nil
			}
			if _, serr := os.Lstat(target); serr == nil {
				_ = os.Remove(target)
			}
			if serr := os.Symlink(linkTarget, target); serr != nil {
				record(rel, "copy", serr)
				return nil
			}
			mu.Lock()
			filesCopied++
			mu.Unlock()

		case d.Type().IsRegular():
			n, cerr := copyFileContents(path, target)
			if cerr != nil {
				record(rel, "copy", cerr)
				return nil
			}
			mu.Lock()
			filesCopied++
			bytesCopied += n
			mu.Unlock()
		}
		return nil
	})

	s.res.FilesCopied += filesCopied
	s.res.DirsCreated += dirsCreated
	s.res.BytesCopied += bytesCopied

	if walkErr != nil {
		rel, _ := filepath.Rel(s.srcRoot, src)
		return s.fail(filepath.ToSlash(rel), "copy", walkErr)
	}
	for _, f := range failures {
		if err := s.fail(f.Path, f.Op, stringError(f.Error)); err != nil {
			return err
		}
	}
	return nil
}

// countTree tallies what copyTree would do, for dry runs.
func (s *syncer) countTree(src string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		switch {
		case d.IsDir():
			s.res.DirsCreated++
		case d.Type().IsRegular():
			if info, ierr := d.Info(); ierr == nil {
				s.res.BytesCopied += info.Size()
			}
			s.res.FilesCopied++
		case d.Type()&fs.ModeSymlink != 0:
			s.res.FilesCopied++
		}
		return nil
	})
}

// copyFileContents copies src to dst preserving mode and mtime.
func copyFileContents(src, dst string) (int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, err
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}

	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return n, nil
}

// stringError wraps an already-stringified error for re-reporting.
type stringError string

func (e stringError) Error() string { return string(e) }
