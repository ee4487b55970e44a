// Package watch turns filesystem events under a build root into product
// graph invalidations.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vk/rulegrid/internal/ctxlog"
)

// DefaultDebounce is how long the watcher waits for more events before it
// flushes a batch.
const DefaultDebounce = 200 * time.Millisecond

// Invalidator is the part of the scheduler the watcher drives.
type Invalidator interface {
	InvalidateFiles(paths ...string) int
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a batch is flushed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// OnFlush registers a callback run after each batch with the changed paths
// and the number of nodes removed.
func OnFlush(fn func(paths []string, removed int)) Option {
	return func(w *Watcher) { w.onFlush = fn }
}

// Watcher watches every non-hidden directory below a root. Changed paths
// are reported to the Invalidator relative to the root and slash
// separated.
type Watcher struct {
	root     string
	target   Invalidator
	debounce time.Duration
	onFlush  func([]string, int)
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

// New creates a watcher for root. Call Run to start it.
func New(root string, target Invalidator, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		root:     abs,
		target:   target,
		debounce: DefaultDebounce,
		watcher:  fw,
		pending:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches until ctx is done, then closes the watcher. Pending changes
// are flushed before it returns.
func (w *Watcher) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("root", w.root)
	defer w.watcher.Close()

	if err := w.addTree(w.root); err != nil {
		return err
	}
	logger.Info("👀 Watching for changes.", "directories", len(w.watcher.WatchList()))

	for {
		select {
		case <-ctx.Done():
			w.flush(ctx)
			logger.Debug("Watcher stopped.")
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("File watcher error.", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	logger := ctxlog.FromContext(ctx)
	rel, ok := w.relative(ev.Name)
	if !ok {
		return
	}
	if ev.Has(fsnotify.Create) {
		if err := w.addTree(ev.Name); err != nil {
			logger.Debug("Could not watch new path.", "path", rel, "error", err)
		}
	}
	logger.Debug("File change detected.", "path", rel, "op", ev.Op.String())

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[rel] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.flush(ctx) })
}

// flush hands the pending paths to the Invalidator.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := slices.Sorted(maps.Keys(w.pending))
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	removed := w.target.InvalidateFiles(paths...)
	ctxlog.FromContext(ctx).Info("Invalidated changed files.", "paths", len(paths), "nodes", removed)
	if w.onFlush != nil {
		w.onFlush(paths, removed)
	}
}

// addTree watches dir and every non-hidden directory below it. Paths that
// are not directories are ignored.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

// relative maps an event path to the form params use. Hidden paths are
// dropped.
func (w *Watcher) relative(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", false
		}
	}
	return rel, true
}
