package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is an Invalidator that remembers every path it was handed.
type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) InvalidateFiles(paths ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, paths...)
	return len(paths)
}

func (r *recorder) seen(p string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.paths, p)
}

func startWatcher(t *testing.T, root string, target Invalidator, opts ...Option) {
	t.Helper()
	w, err := New(root, target, append([]Option{WithDebounce(20 * time.Millisecond)}, opts...)...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, w.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give Run a moment to register the initial watches.
	require.Eventually(t, func() bool { return len(w.watcher.WatchList()) > 0 }, time.Second, 5*time.Millisecond)
}

func TestWatcher_ReportsRelativePaths(t *testing.T) {
	// --- Arrange ---
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0o755))
	rec := &recorder{}
	startWatcher(t, root, rec)

	// --- Act ---
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "BUILD"), []byte("x"), 0o644))

	// --- Assert ---
	require.Eventually(t, func() bool { return rec.seen("pkg/BUILD") }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_FollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, rec)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "new"), 0o755))
	require.Eventually(t, func() bool { return rec.seen("new") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "new", "BUILD"), []byte("x"), 0o644))
	require.Eventually(t, func() bool { return rec.seen("new/BUILD") }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_OnFlush(t *testing.T) {
	root := t.TempDir()
	flushed := make(chan []string, 4)
	startWatcher(t, root, &recorder{}, OnFlush(func(paths []string, removed int) {
		assert.Equal(t, len(paths), removed)
		flushed <- paths
	}))

	require.NoError(t, os.WriteFile(filepath.Join(root, "BUILD"), []byte("x"), 0o644))

	select {
	case paths := <-flushed:
		assert.Contains(t, paths, "BUILD")
	case <-time.After(2 * time.Second):
		t.Fatal("no flush after a file change")
	}
}

func TestRelative(t *testing.T) {
	w := &Watcher{root: filepath.FromSlash("/repo")}

	testCases := []struct {
		name   string
		path   string
		want   string
		wantOK bool
	}{
		{name: "nested file", path: "/repo/pkg/BUILD", want: "pkg/BUILD", wantOK: true},
		{name: "root file", path: "/repo/BUILD", want: "BUILD", wantOK: true},
		{name: "root itself", path: "/repo", wantOK: false},
		{name: "outside", path: "/elsewhere/BUILD", wantOK: false},
		{name: "hidden", path: "/repo/.git/HEAD", wantOK: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := w.relative(filepath.FromSlash(tc.path))
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
