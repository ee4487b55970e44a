package app

import (
	"github.com/vk/rulegrid/internal/fsutil"
	"github.com/vk/rulegrid/internal/hydration"
	"github.com/vk/rulegrid/internal/registry"
	"github.com/vk/rulegrid/internal/store"
	"github.com/vk/rulegrid/modules/env_vars"
	"github.com/vk/rulegrid/modules/targets"
)

// coreModules is the definitive list of rule modules compiled into the
// rulegrid binary, bound to one build root and store.
func coreModules(cfg *Config, st store.Store) []registry.Module {
	kinds := hydration.NewKinds()
	targets.RegisterKinds(kinds)

	return []registry.Module{
		&fsutil.Module{Root: cfg.Root, Store: st},
		&env_vars.Module{},
		&hydration.Module{
			Kinds:   kinds,
			Options: hydration.BuildFileOptions{Patterns: cfg.Patterns, Ignores: cfg.Ignores},
		},
	}
}
