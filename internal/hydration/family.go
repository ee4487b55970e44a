package hydration

import (
	"context"
	"fmt"
	"path"

	"github.com/vk/rulegrid/internal/address"
	"github.com/vk/rulegrid/internal/ctxlog"
	"github.com/vk/rulegrid/internal/engine"
	"github.com/vk/rulegrid/internal/fsutil"
	"github.com/vk/rulegrid/internal/hcl"
	"github.com/vk/rulegrid/modules/env_vars"
)

// parseAddressFamily captures and parses every declaration file of dir.
func (m *Module) parseAddressFamily(ctx context.Context, dir Dir, opts BuildFileOptions) (AddressFamily, error) {
	logger := ctxlog.FromContext(ctx)
	family := AddressFamily{Dir: dir, Structs: make(map[string]UnhydratedStruct)}

	snap, err := engine.Get[fsutil.Snapshot, fsutil.PathGlobs](ctx, fsutil.PathGlobs{
		Dir:      string(dir),
		Patterns: opts.Patterns,
		Ignores:  opts.Ignores,
	})
	if err != nil {
		return AddressFamily{}, fmt.Errorf("failed to list declaration files in '%s': %w", dir, err)
	}
	if snap.IsEmpty() {
		return family, nil
	}

	contents, err := engine.GetAll[fsutil.FileContent, fsutil.FileDigest](ctx, snap.Files)
	if err != nil {
		return AddressFamily{}, err
	}

	files := make([]*hcl.File, len(contents))
	b := engine.NewBatch(ctx)
	envs := make([]*engine.Future[env_vars.EnvironmentVars], len(contents))
	for i, fc := range contents {
		f, err := m.parser.ParseFile(fc.Path, fc.Content)
		if err != nil {
			return AddressFamily{}, err
		}
		files[i] = f
		if len(f.EnvVars()) > 0 {
			envs[i] = engine.Add[env_vars.EnvironmentVars](b, env_vars.NewRequest(f.EnvVars()...))
		}
	}
	if err := b.Wait(); err != nil {
		return AddressFamily{}, fmt.Errorf("failed to read environment for '%s': %w", dir, err)
	}

	declaredIn := make(map[string]string)
	for i, f := range files {
		var env map[string]string
		if envs[i] != nil {
			env, _ = envs[i].Value()
		}
		structs, err := m.parser.Decode(f, env)
		if err != nil {
			return AddressFamily{}, err
		}
		family.Files = append(family.Files, f.Name)

		for _, s := range structs {
			if _, ok := m.Kinds[s.Kind]; !ok {
				return AddressFamily{}, &UnknownKindError{File: f.Name, Name: s.Name, Kind: s.Kind, Known: m.Kinds.Names()}
			}
			if prev, dup := declaredIn[s.Name]; dup {
				return AddressFamily{}, &DuplicateNameError{Dir: dir, Name: s.Name, Files: []string{prev, f.Name}}
			}
			declaredIn[s.Name] = f.Name

			deps, err := address.ParseAll(s.Dependencies, string(dir))
			if err != nil {
				return AddressFamily{}, fmt.Errorf("%s: invalid dependencies of '%s': %w", f.Name, s.Name, err)
			}
			family.Structs[s.Name] = UnhydratedStruct{
				Address:      address.New(string(dir), s.Name),
				Struct:       s,
				Dependencies: deps,
			}
		}
	}

	logger.Debug("Parsed address family.", "dir", string(dir), "files", len(family.Files), "records", len(family.Structs))
	return family, nil
}

// resolveAddress finds the record a names in its directory's family.
func (m *Module) resolveAddress(ctx context.Context, a address.Address) (UnhydratedStruct, error) {
	family, err := engine.Get[AddressFamily, Dir](ctx, Dir(a.SpecPath))
	if err != nil {
		return UnhydratedStruct{}, err
	}
	if len(family.Files) == 0 {
		return UnhydratedStruct{}, &ResolveError{Address: a, NoFiles: true}
	}
	u, ok := family.Structs[a.TargetName]
	if !ok {
		return UnhydratedStruct{}, &ResolveError{Address: a, Suggestions: suggest(a.TargetName, family.Names())}
	}
	return u, nil
}

// addressesInDir lists the address of every record in a family.
func addressesInDir(_ context.Context, family AddressFamily) (Addresses, error) {
	if len(family.Files) == 0 {
		return nil, &ResolveError{Address: address.New(string(family.Dir), path.Base(string(family.Dir))), NoFiles: true}
	}
	names := family.Names()
	out := make(Addresses, len(names))
	for i, name := range names {
		out[i] = address.New(string(family.Dir), name)
	}
	return out, nil
}
