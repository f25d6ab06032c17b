package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startWatcher runs w until the test ends and returns a channel that
// receives once per settled change burst.
func startWatcher(t *testing.T, root string, debounce time.Duration) chan struct{} {
	t.Helper()

	settled := make(chan struct{}, 16)
	w, err := New(root, Options{
		Debounce: debounce,
		OnSettled: func(ctx context.Context) error {
			settled <- struct{}{}
			return nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)

	// Give the event loop a moment to start before mutating the tree.
	time.Sleep(50 * time.Millisecond)
	return settled
}

func waitSettled(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not settle in time")
	}
}

func TestBurstCoalescesToOneRescan(t *testing.T) {
	root := t.TempDir()
	settled := startWatcher(t, root, 200*time.Millisecond)

	for i := range 5 {
		name := filepath.Join(root, "f"+string(rune('a'+i))+".txt")
		require.NoError(t, os.WriteFile(name, []byte("x"), 0o644))
	}

	waitSettled(t, settled)

	select {
	case <-settled:
		t.Fatal("burst triggered more than one rescan")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestNewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	settled := startWatcher(t, root, 150*time.Millisecond)

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	waitSettled(t, settled)

	// Changes inside the new directory must be seen too.
	require.NoError(t, os.WriteFile(filepath.Join(sub, "inner.txt"), []byte("x"), 0o644))
	waitSettled(t, settled)
}

func TestManifestWritesAreIgnored(t *testing.T) {
	root := t.TempDir()
	settled := startWatcher(t, root, 150*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "tree_checksum.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tree_checksum.json.tmp-123"), []byte("{}"), 0o644))

	select {
	case <-settled:
		t.Fatal("manifest write triggered a rescan")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, Options{Debounce: time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCancelDuringDebounceSkipsRescan(t *testing.T) {
	root := t.TempDir()
	settled := make(chan struct{}, 1)
	w, err := New(root, Options{
		Debounce: 500 * time.Millisecond,
		OnSettled: func(ctx context.Context) error {
			settled <- struct{}{}
			return nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond) // event seen, debounce still pending
	cancel()
	<-done

	select {
	case <-settled:
		t.Fatal("rescan fired after Run returned")
	case <-time.After(time.Second):
	}
}

func TestNewMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"), Options{})
	assert.Error(t, err)
}

func TestIgnoredPaths(t *testing.T) {
	w := &Watcher{opts: Options{ManifestName: "tree_checksum.json"}}

	assert.True(t, w.ignored("/tree/tree_checksum.json"))
	assert.True(t, w.ignored("/tree/tree_checksum.json.tmp-42"))
	assert.False(t, w.ignored("/tree/tree_checksum.jsonx"))
	assert.False(t, w.ignored("/tree/data.txt"))
}

func TestCloseTwice(t *testing.T) {
	w, err := New(t.TempDir(), Options{})
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
