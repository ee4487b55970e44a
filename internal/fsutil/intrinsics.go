package fsutil

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vk/rulegrid/internal/ctxlog"
	"github.com/vk/rulegrid/internal/registry"
	"github.com/vk/rulegrid/internal/store"
)

// PathGlobs requests the files directly inside Dir whose base names match
// Patterns and none of Ignores. Dir is relative to the build root and slash
// separated; "" is the root.
type PathGlobs struct {
	Dir      string
	Patterns []string
	Ignores  []string
}

// InvalidatedBy reports whether a change to p, relative to the build root,
// may change the snapshot of g. Adding or removing any file in Dir counts.
func (g PathGlobs) InvalidatedBy(p string) bool {
	return parentDir(p) == g.Dir || p == g.Dir
}

// FileDigest is one captured file.
type FileDigest struct {
	Path   string
	Digest store.Digest
}

// InvalidatedBy reports whether p is the captured file.
func (d FileDigest) InvalidatedBy(p string) bool {
	return p == d.Path
}

// Snapshot is the set of files matched by a PathGlobs, sorted by path.
type Snapshot struct {
	Dir   string
	Files []FileDigest
}

// IsEmpty reports whether no file matched.
func (s Snapshot) IsEmpty() bool {
	return len(s.Files) == 0
}

// Paths returns the paths of the captured files.
func (s Snapshot) Paths() []string {
	out := make([]string, len(s.Files))
	for i, f := range s.Files {
		out[i] = f.Path
	}
	return out
}

// FileContent is the content captured for a FileDigest.
type FileContent struct {
	Path    string
	Content []byte
}

// Module registers the filesystem intrinsics against one build root. File
// contents are captured into Store so that a FileDigest always reads back
// the bytes its Snapshot saw.
type Module struct {
	Root  string
	Store store.Store
}

// Register implements registry.Module.
func (m *Module) Register(r *registry.Registry) {
	registry.Intrinsic1(r, "path_globs_to_snapshot", m.snapshot)
	registry.Intrinsic1(r, "digest_to_file_content", m.content)
}

func (m *Module) snapshot(ctx context.Context, g PathGlobs) (Snapshot, error) {
	logger := ctxlog.FromContext(ctx)
	dir := filepath.Join(m.Root, filepath.FromSlash(g.Dir))

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("Snapshot of missing directory is empty.", "dir", g.Dir)
		return Snapshot{Dir: g.Dir}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read directory '%s': %w", g.Dir, err)
	}

	snap := Snapshot{Dir: g.Dir}
	for _, e := range entries {
		if e.IsDir() || !MatchAny(e.Name(), g.Patterns) || MatchAny(e.Name(), g.Ignores) {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to read file '%s': %w", e.Name(), err)
		}
		d, err := m.Store.Put(ctx, content)
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to store file '%s': %w", e.Name(), err)
		}
		snap.Files = append(snap.Files, FileDigest{Path: path.Join(g.Dir, e.Name()), Digest: d})
	}
	slices.SortFunc(snap.Files, func(a, b FileDigest) int { return strings.Compare(a.Path, b.Path) })
	logger.Debug("Captured snapshot.", "dir", g.Dir, "files", len(snap.Files))
	return snap, nil
}

func (m *Module) content(ctx context.Context, d FileDigest) (FileContent, error) {
	b, err := m.Store.Get(ctx, d.Digest)
	if err != nil {
		return FileContent{}, fmt.Errorf("failed to load content of '%s': %w", d.Path, err)
	}
	return FileContent{Path: d.Path, Content: b}, nil
}

func parentDir(p string) string {
	d := path.Dir(p)
	if d == "." || d == "/" {
		return ""
	}
	return d
}
