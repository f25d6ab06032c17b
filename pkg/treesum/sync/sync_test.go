package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/treesum/pkg/treesum/diff"
	"github.com/jamesainslie/treesum/pkg/treesum/scanner"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

// diffTrees scans both roots and diffs dst (reference) against src, which
// is the direction update-copy consumes: Added means present in src.
func diffTrees(t *testing.T, src, dst string) *diff.Report {
	t.Helper()

	dstRes, err := scanner.New(scanner.Options{Root: dst}).Scan(context.Background())
	require.NoError(t, err)
	srcRes, err := scanner.New(scanner.Options{Root: src}).Scan(context.Background())
	require.NoError(t, err)

	rep, err := diff.Diff(dstRes.Manifest, srcRes.Manifest)
	require.NoError(t, err)
	return rep
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// treesEqual verifies src and dst now scan to the same root digest.
func treesEqual(t *testing.T, src, dst string) {
	t.Helper()

	rep := diffTrees(t, src, dst)
	assert.True(t, rep.Clean(), "trees still differ: %+v", rep.Changes())
}

func TestUpdateCopyChangedFileOnly(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"f1.txt": "hello", "sub/f2.txt": "earth"})
	writeTree(t, dst, map[string]string{"f1.txt": "hello", "sub/f2.txt": "world"})

	untouched := filepath.Join(dst, "f1.txt")
	before, err := os.Stat(untouched)
	require.NoError(t, err)

	rep := diffTrees(t, src, dst)
	res, err := UpdateCopy(context.Background(), rep, src, dst, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.FilesCopied, "only the changed file is copied")
	assert.Equal(t, "earth", readFile(t, filepath.Join(dst, "sub", "f2.txt")))

	after, err := os.Stat(untouched)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "f1.txt must be untouched")

	treesEqual(t, src, dst)
}

func TestUpdateCopyAddsFileAndDirectory(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{
		"common.txt":    "base",
		"new.txt":       "a file",
		"newdir/a.txt":  "1",
		"newdir/deep/b": "2",
	})
	writeTree(t, dst, map[string]string{"common.txt": "base"})

	rep := diffTrees(t, src, dst)
	res, err := UpdateCopy(context.Background(), rep, src, dst, Options{})
	require.NoError(t, err)
	assert.True(t, res.Clean())

	assert.Equal(t, "a file", readFile(t, filepath.Join(dst, "new.txt")))
	assert.Equal(t, "2", readFile(t, filepath.Join(dst, "newdir", "deep", "b")))
	treesEqual(t, src, dst)
}

func TestUpdateCopyDeleteGated(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"keep.txt": "x"})
	writeTree(t, dst, map[string]string{"keep.txt": "x", "stale.txt": "old"})

	// Without Delete the file stays and is reported.
	rep := diffTrees(t, src, dst)
	res, err := UpdateCopy(context.Background(), rep, src, dst, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Deleted)
	assert.Equal(t, []string{"stale.txt"}, res.SkippedDeletes)
	assert.FileExists(t, filepath.Join(dst, "stale.txt"))

	// With Delete exactly that file is removed and the trees converge.
	res, err = UpdateCopy(context.Background(), rep, src, dst, Options{Delete: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.NoFileExists(t, filepath.Join(dst, "stale.txt"))
	treesEqual(t, src, dst)
}

func TestUpdateCopyDeletesDirectorySubtree(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"keep.txt": "x"})
	writeTree(t, dst, map[string]string{"keep.txt": "x", "gone/a": "1", "gone/deep/b": "2"})

	rep := diffTrees(t, src, dst)
	res, err := UpdateCopy(context.Background(), rep, src, dst, Options{Delete: true})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Deleted, "a removed directory is one delete")
	assert.NoDirExists(t, filepath.Join(dst, "gone"))
	treesEqual(t, src, dst)
}

func TestUpdateCopyKindChange(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"thing/inner.txt": "now a directory"})
	writeTree(t, dst, map[string]string{"thing": "a file"})

	rep := diffTrees(t, src, dst)

	// Kind changes need Delete for their removal half.
	res, err := UpdateCopy(context.Background(), rep, src, dst, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"thing"}, res.SkippedDeletes)
	assert.FileExists(t, filepath.Join(dst, "thing"))

	res, err = UpdateCopy(context.Background(), rep, src, dst, Options{Delete: true})
	require.NoError(t, err)
	assert.True(t, res.Clean())
	assert.Equal(t, "now a directory", readFile(t, filepath.Join(dst, "thing", "inner.txt")))
	treesEqual(t, src, dst)
}

func TestUpdateCopySymlink(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"target.txt": "x"})
	writeTree(t, dst, map[string]string{"target.txt": "x"})
	require.NoError(t, os.Symlink("target.txt", filepath.Join(src, "link")))

	rep := diffTrees(t, src, dst)
	_, err := UpdateCopy(context.Background(), rep, src, dst, Options{})
	require.NoError(t, err)

	target, err := os.Readlink(filepath.Join(dst, "link"))
	require.NoError(t, err)
	assert.Equal(t, "target.txt", target)
	treesEqual(t, src, dst)
}

func TestUpdateCopyDryRun(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"new.txt": "added", "changed.txt": "after"})
	writeTree(t, dst, map[string]string{"changed.txt": "before", "stale.txt": "old"})

	rep := diffTrees(t, src, dst)
	res, err := UpdateCopy(context.Background(), rep, src, dst, Options{Delete: true, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 2, res.FilesCopied)
	assert.Equal(t, 1, res.Deleted)

	// Nothing actually happened.
	assert.NoFileExists(t, filepath.Join(dst, "new.txt"))
	assert.FileExists(t, filepath.Join(dst, "stale.txt"))
	assert.Equal(t, "before", readFile(t, filepath.Join(dst, "changed.txt")))
}

func TestUpdateCopyNoopOnCleanReport(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"f.txt": "same"})
	writeTree(t, dst, map[string]string{"f.txt": "same"})

	rep := diffTrees(t, src, dst)
	require.True(t, rep.Clean())

	res, err := UpdateCopy(context.Background(), rep, src, dst, Options{Delete: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.FilesCopied)
	assert.Equal(t, 0, res.Deleted)
}

func TestUpdateCopyMissingDestination(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"f.txt": "x"})

	rep := &diff.Report{}
	_, err := UpdateCopy(context.Background(), rep, src, filepath.Join(t.TempDir(), "absent"), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUpdateCopyCollectsFailuresAndContinues(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"gone.txt": "vanishes", "stays.txt": "sibling"})
	writeTree(t, dst, map[string]string{"anchor.txt": "keeps dst non-empty"})

	rep := diffTrees(t, src, dst)
	// The source file disappears between diff and apply.
	require.NoError(t, os.Remove(filepath.Join(src, "gone.txt")))

	res, err := UpdateCopy(context.Background(), rep, src, dst, Options{})
	require.NoError(t, err, "per-entry failures do not abort the sync")

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "gone.txt", res.Failures[0].Path)
	assert.Equal(t, "copy", res.Failures[0].Op)
	assert.False(t, res.Clean())

	// The sibling after the failed entry was still copied.
	assert.Equal(t, 1, res.FilesCopied)
	assert.Equal(t, "sibling", readFile(t, filepath.Join(dst, "stays.txt")))
}

func TestUpdateCopyFailFastAborts(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"gone.txt": "vanishes", "stays.txt": "sibling"})
	writeTree(t, dst, map[string]string{"anchor.txt": "keeps dst non-empty"})

	rep := diffTrees(t, src, dst)
	require.NoError(t, os.Remove(filepath.Join(src, "gone.txt")))

	_, err := UpdateCopy(context.Background(), rep, src, dst, Options{FailFast: true})
	require.Error(t, err)

	// Records apply in name order, so the sibling after the failed entry
	// was never reached.
	assert.NoFileExists(t, filepath.Join(dst, "stays.txt"))
}

func TestUpdateCopyCancelledKeepsPartialResults(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"f.txt": "x"})
	writeTree(t, dst, map[string]string{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := diffTrees(t, src, dst)
	res, err := UpdateCopy(ctx, rep, src, dst, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, res, "partial results are preserved for sync")
}
