// Package config defines the format-agnostic record model for declaration
// files: the Struct, its inheritance references, and the pure inheritance
// resolution applied during hydration.
//
// The `config.Struct` is the single source of truth for the `hcl` parser
// and the `hydration` rules. Concrete formats live in separate packages.
package config
