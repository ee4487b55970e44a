// internal/address/address.go
package address

import (
	"path"
	"strings"
)

// String serializes the Address into its canonical `spec_path:target_name`
// form. Addresses in the build root render as `//:name`.
func (a Address) String() string {
	if a.SpecPath == "" {
		return "//:" + a.TargetName
	}
	return a.SpecPath + ":" + a.TargetName
}

// Reference renders the shortest form that parses back to a from a file in
// dir.
func (a Address) Reference(dir string) string {
	switch {
	case a.SpecPath == dir:
		return ":" + a.TargetName
	case a.SpecPath != "" && path.Base(a.SpecPath) == a.TargetName:
		return a.SpecPath
	default:
		return a.String()
	}
}

// IsZero reports whether a is the zero Address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Namespace is the spec path rendered for messages, with the build root
// shown as `//`.
func (a Address) Namespace() string {
	if a.SpecPath == "" {
		return "//"
	}
	return a.SpecPath
}

// Compare orders addresses by spec path, then name.
func Compare(a, b Address) int {
	if c := strings.Compare(a.SpecPath, b.SpecPath); c != 0 {
		return c
	}
	return strings.Compare(a.TargetName, b.TargetName)
}
