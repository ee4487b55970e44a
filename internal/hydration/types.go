package hydration

import (
	"github.com/vk/rulegrid/internal/address"
	"github.com/vk/rulegrid/internal/config"
	"github.com/vk/rulegrid/internal/hcl"
)

// Dir is a directory relative to the build root, slash separated. The
// build root itself is "".
type Dir string

// DefaultPatterns are the base-name globs of declaration files.
var DefaultPatterns = []string{"BUILD", "BUILD.hcl", "*.build.hcl"}

// BuildFileOptions selects which files of a directory hold declarations.
type BuildFileOptions struct {
	Patterns []string
	Ignores  []string
}

// AddressFamily is every record declared in one directory.
type AddressFamily struct {
	Dir     Dir
	Files   []string
	Structs map[string]UnhydratedStruct
}

// Names returns the record names of the family, sorted.
func (f AddressFamily) Names() []string {
	return sortedKeys(f.Structs)
}

// UnhydratedStruct is a parsed record whose inheritance has not been
// resolved. Dependencies are the record's own declared dependencies.
type UnhydratedStruct struct {
	Address      address.Address
	Struct       config.Struct
	Dependencies []address.Address
}

// HydratedStruct is a fully resolved record and the object decoded from
// it. Record holds the resolved fields with dependencies in canonical
// form; Object is a pointer to the Go type registered for Kind.
type HydratedStruct struct {
	Address      address.Address
	Kind         string
	Object       any
	Record       config.Struct
	Dependencies []address.Address
}

// Render writes the resolved record back as HCL.
func (h HydratedStruct) Render() []byte {
	return hcl.Render(h.Record)
}

// Addresses is an ordered list of addresses.
type Addresses []address.Address

// HydratedStructs holds one HydratedStruct per requested address, in
// request order.
type HydratedStructs []HydratedStruct

// TransitiveHydratedStructs is the dependency closure of a set of roots.
// Closure lists every struct once in breadth-first order, roots first.
type TransitiveHydratedStructs struct {
	Roots   []HydratedStruct
	Closure []HydratedStruct
}
