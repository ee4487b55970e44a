// Package fsutil provides the engine's filesystem intrinsics and file
// system utility functions.
package fsutil

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
)

// MatchAny reports whether name matches any of patterns. Patterns use
// path.Match syntax and are matched against the base name only.
func MatchAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// FindDirs recursively searches root for directories holding at least one
// file that matches patterns and none of ignores. It returns their paths
// relative to root, slash separated and sorted. The root itself is "".
func FindDirs(root string, patterns, ignores []string) ([]string, error) {
	if len(patterns) == 0 {
		panic("patterns must not be empty")
	}

	seen := make(map[string]struct{})
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if !MatchAny(d.Name(), patterns) || MatchAny(d.Name(), ignores) {
			return nil
		}
		rel, err := filepath.Rel(root, filepath.Dir(p))
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			rel = ""
		}
		seen[rel] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	slices.Sort(dirs)
	return dirs, nil
}
