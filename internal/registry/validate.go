package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/rulegrid/internal/ctxlog"
	"github.com/vk/rulegrid/internal/rules"
)

// Validate performs the structural checks that do not need a compiled rule
// graph. It reports every problem at once.
func (r *Registry) Validate(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, rule := range r.rules {
		if rule.Func == nil {
			errs = append(errs, fmt.Sprintf("rule '%s': no function", rule.Name))
		}
		if !rule.Output.Type.Valid() {
			errs = append(errs, fmt.Sprintf("rule '%s': invalid output type", rule.Name))
		}
		if rule.Kind == rules.Singleton && (len(rule.Inputs) > 0 || len(rule.Gets) > 0) {
			errs = append(errs, fmt.Sprintf("rule '%s': singletons cannot declare inputs or gets", rule.Name))
		}
		if rule.Kind == rules.Intrinsic && len(rule.Inputs) != 1 {
			errs = append(errs, fmt.Sprintf("rule '%s': intrinsics take exactly one input, got %d", rule.Name, len(rule.Inputs)))
		}
		seen := make(map[rules.Product]bool)
		for _, in := range rule.Inputs {
			if seen[in.Product] {
				errs = append(errs, fmt.Sprintf("rule '%s': selector '%s' declared twice", rule.Name, in.Product.Describe(r.types)))
			}
			seen[in.Product] = true
		}
		for _, g := range rule.Gets {
			if !g.Product.Valid() || !g.Subject.Valid() {
				errs = append(errs, fmt.Sprintf("rule '%s': get declaration with invalid types", rule.Name))
			}
		}
	}

	for _, q := range r.queries {
		if len(q.Params) == 0 {
			logger.Warn("Query declares no params; it can only be satisfied by rules without selectors.", "product", q.Product.Describe(r.types))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	logger.Debug("Registry validation passed.", "rules", len(r.rules), "queries", len(r.queries), "unions", len(r.unions))
	return nil
}
