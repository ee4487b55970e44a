// Package hcl provides the concrete HCL implementation of the declaration
// file format. It parses files into `config.Struct` records, reports the
// environment variables a file reads, binds hydrated fields onto Go types
// using `cty` struct tags, and renders records back to HCL.
//
// A declaration file is a sequence of named record blocks:
//
//	library "core" {
//	  extends      = ":base"
//	  sources      = ["core.go"]
//	  dependencies = ["//third_party:yaml"]
//
//	  options {
//	    race = env.RACE == "1"
//	  }
//	}
//
// Nested blocks are anonymous records. `extends` and `merges` may be given
// as address strings or as nested blocks holding an inline record.
package hcl
