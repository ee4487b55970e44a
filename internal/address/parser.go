// internal/address/parser.go
package address

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// segmentRegex matches a single directory segment of a spec path.
var segmentRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// nameRegex matches a target name.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.@+-]+$`)

// isValidSegmentName checks for undesirable but technically valid names.
func isValidSegmentName(name string) bool {
	if name == "." || name == ".." || name == "-" {
		return false
	}
	return true
}

// Parse creates an Address from its string form. relativeTo is the spec
// path of the referencing file and is only consulted for the `:name` form.
func Parse(spec, relativeTo string) (Address, error) {
	if spec == "" {
		return Address{}, fmt.Errorf("address cannot be empty")
	}

	raw := strings.TrimPrefix(spec, "//")
	specPath, name, hasName := strings.Cut(raw, ":")
	if hasName && specPath == "" && !strings.HasPrefix(spec, "//") {
		specPath = relativeTo
	}

	specPath, err := parseSpecPath(specPath)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", spec, err)
	}

	if !hasName {
		if specPath == "" {
			return Address{}, fmt.Errorf("invalid address %q: a root address needs an explicit name", spec)
		}
		name = path.Base(specPath)
	}
	if err := validateName(name); err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", spec, err)
	}

	return Address{SpecPath: specPath, TargetName: name}, nil
}

// MustParse is Parse for addresses known to be valid, such as literals in
// tests. It panics on error.
func MustParse(spec string) Address {
	a, err := Parse(spec, "")
	if err != nil {
		panic(err)
	}
	return a
}

// ParseAll parses every spec relative to the same directory.
func ParseAll(specs []string, relativeTo string) ([]Address, error) {
	out := make([]Address, 0, len(specs))
	for _, s := range specs {
		a, err := Parse(s, relativeTo)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func parseSpecPath(p string) (string, error) {
	if p == "" || p == "." {
		return "", nil
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("spec path %q must be relative to the build root", p)
	}

	p = strings.TrimSuffix(p, "/")
	for _, segment := range strings.Split(p, "/") {
		if segment == "" {
			return "", fmt.Errorf("spec path contains empty segment")
		}
		if !segmentRegex.MatchString(segment) {
			return "", fmt.Errorf("invalid path segment format: %q", segment)
		}
		if !isValidSegmentName(segment) {
			return "", fmt.Errorf("invalid segment name: %q", segment)
		}
	}
	return p, nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("target name cannot be empty")
	}
	if !nameRegex.MatchString(name) || !isValidSegmentName(name) {
		return fmt.Errorf("invalid target name: %q", name)
	}
	return nil
}
