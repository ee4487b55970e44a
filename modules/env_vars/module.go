// Package env_vars provides the rule that reads environment variables for
// declaration files.
package env_vars

import (
	"context"
	"os"
	"slices"
	"strings"

	"github.com/vk/rulegrid/internal/ctxlog"
	"github.com/vk/rulegrid/internal/registry"
)

// EnvironmentVarsRequest names the variables a caller needs.
type EnvironmentVarsRequest struct {
	Names []string
}

// NewRequest returns a request for names, sorted and deduplicated so that
// equal sets share one node.
func NewRequest(names ...string) EnvironmentVarsRequest {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	return EnvironmentVarsRequest{Names: slices.Compact(sorted)}
}

// EnvironmentVars holds the requested variables that are set. Unset
// variables are absent.
type EnvironmentVars map[string]string

// Module implements the registry.Module interface for this package.
type Module struct {
	// Environ returns the environment as KEY=value pairs. Defaults to
	// os.Environ.
	Environ func() []string
}

// Register registers the environment rule with the engine.
func (m *Module) Register(r *registry.Registry) {
	registry.Intrinsic1(r, "environment_vars", m.environmentVars)
}

func (m *Module) environmentVars(ctx context.Context, req EnvironmentVarsRequest) (EnvironmentVars, error) {
	environ := m.Environ
	if environ == nil {
		environ = os.Environ
	}

	all := make(map[string]string)
	for _, e := range environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			all[pair[0]] = pair[1]
		}
	}

	out := make(EnvironmentVars, len(req.Names))
	for _, name := range req.Names {
		if v, ok := all[name]; ok {
			out[name] = v
		}
	}
	ctxlog.FromContext(ctx).Debug("Read environment variables.", "requested", len(req.Names), "set", len(out))
	return out, nil
}
