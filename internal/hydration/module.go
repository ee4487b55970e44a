package hydration

import (
	"context"
	"slices"

	"github.com/vk/rulegrid/internal/address"
	"github.com/vk/rulegrid/internal/fsutil"
	"github.com/vk/rulegrid/internal/hcl"
	"github.com/vk/rulegrid/internal/registry"
	"github.com/vk/rulegrid/internal/value"
	"github.com/vk/rulegrid/modules/env_vars"
)

// Module registers the hydration rules. It needs the rules of fsutil.Module
// and env_vars.Module installed in the same registry.
type Module struct {
	// Kinds binds record kinds to Go types.
	Kinds Kinds
	// Options selects declaration files. Empty patterns select
	// DefaultPatterns.
	Options BuildFileOptions

	parser *hcl.Parser
	types  *value.Types
}

// Register implements registry.Module.
func (m *Module) Register(r *registry.Registry) {
	if m.Kinds == nil {
		m.Kinds = NewKinds()
	}
	m.parser = hcl.NewParser()
	m.types = r.Types()

	opts := m.Options
	if len(opts.Patterns) == 0 {
		opts.Patterns = slices.Clone(DefaultPatterns)
	}
	registry.Singleton(r, "build_file_options", func(context.Context) (BuildFileOptions, error) {
		return opts, nil
	})

	registry.Task2(r, "parse_address_family", m.parseAddressFamily,
		registry.GetOf[fsutil.Snapshot, fsutil.PathGlobs](r),
		registry.GetOf[fsutil.FileContent, fsutil.FileDigest](r),
		registry.GetOf[env_vars.EnvironmentVars, env_vars.EnvironmentVarsRequest](r),
	)
	registry.Task1(r, "resolve_address", m.resolveAddress,
		registry.GetOf[AddressFamily, Dir](r),
	)
	registry.Task1(r, "addresses_in_dir", addressesInDir)
	registry.Task1(r, "hydrate_struct", m.hydrateStruct,
		registry.GetOf[HydratedStruct, address.Address](r),
	)
	registry.Task1(r, "hydrate_structs", hydrateStructs,
		registry.GetOf[HydratedStruct, address.Address](r),
	)
	registry.Task1(r, "transitive_hydrated_structs", transitiveHydratedStructs,
		registry.GetOf[HydratedStruct, address.Address](r),
	)

	dir := registry.Type[Dir](r)
	addr := registry.Type[address.Address](r)
	addrs := registry.Type[Addresses](r)
	registry.Query[AddressFamily](r, dir)
	registry.Query[Addresses](r, dir)
	registry.Query[UnhydratedStruct](r, addr)
	registry.Query[HydratedStruct](r, addr)
	registry.Query[HydratedStructs](r, addrs)
	registry.Query[TransitiveHydratedStructs](r, addrs)
}
