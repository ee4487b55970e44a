// Package targets provides the default record kinds: `target`, `files`,
// `library` and `binary`.
package targets

import (
	"errors"
	"fmt"
	"slices"

	"github.com/vk/rulegrid/internal/hydration"
	"github.com/zclconf/go-cty/cty"
)

// Kind names.
const (
	KindTarget  = "target"
	KindFiles   = "files"
	KindLibrary = "library"
	KindBinary  = "binary"
)

// RegisterKinds binds the default kinds in k.
func RegisterKinds(k hydration.Kinds) {
	hydration.RegisterKind[Target](k, KindTarget)
	hydration.RegisterKind[Files](k, KindFiles)
	hydration.RegisterKind[Library](k, KindLibrary)
	hydration.RegisterKind[Binary](k, KindBinary)
}

// Target is the base of every default kind. Any of them may extend a
// plain target.
type Target struct {
	Name         string   `cty:"name"`
	Description  string   `cty:"description"`
	Tags         []string `cty:"tags"`
	Dependencies []string `cty:"dependencies"`
}

// Validate rejects empty and repeated tags.
func (t *Target) Validate() error {
	seen := make(map[string]bool, len(t.Tags))
	for _, tag := range t.Tags {
		if tag == "" {
			return errors.New("tags must not be empty strings")
		}
		if seen[tag] {
			return fmt.Errorf("tag %q is repeated", tag)
		}
		seen[tag] = true
	}
	return nil
}

// Files is a group of source files.
type Files struct {
	Target
	Sources []string `cty:"sources"`
}

// Validate requires at least one source.
func (f *Files) Validate() error {
	if err := f.Target.Validate(); err != nil {
		return err
	}
	if len(f.Sources) == 0 {
		return errors.New("files need at least one source")
	}
	return nil
}

// Library is a compiled unit. Fields it does not declare are kept in
// Extra.
type Library struct {
	Target
	Sources []string             `cty:"sources"`
	Options *LibraryOptions      `cty:"options"`
	Extra   map[string]cty.Value `cty:",remain"`
}

// LibraryOptions is the nested `options` block of a library.
type LibraryOptions struct {
	Race  bool     `cty:"race"`
	Flags []string `cty:"flags"`
}

// Validate rejects repeated sources.
func (l *Library) Validate() error {
	if err := l.Target.Validate(); err != nil {
		return err
	}
	sorted := slices.Clone(l.Sources)
	slices.Sort(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return fmt.Errorf("source %q is listed twice", sorted[i])
		}
	}
	return nil
}

// Binary links a main library with further libraries and named groups of
// resource files. Its reference fields hold the hydrated records they
// name; they are not dependencies.
type Binary struct {
	Target
	Main      *Library          `cty:"main,ref"`
	Libraries []*Library        `cty:"libraries,ref"`
	Resources map[string]*Files `cty:"resources,ref"`
}

// Validate requires a main library.
func (b *Binary) Validate() error {
	if err := b.Target.Validate(); err != nil {
		return err
	}
	if b.Main == nil {
		return errors.New("binary needs a main library")
	}
	return nil
}
