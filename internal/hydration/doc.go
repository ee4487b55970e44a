// Package hydration turns declaration files into typed, addressable
// objects. It is implemented entirely as engine rules, so every step is
// memoized per address and invalidated with the files it read.
//
// Hydrating an address walks these steps:
//
//  1. The directory's declaration files are captured as a snapshot and
//     parsed into an AddressFamily, reading any `env.NAME` variables the
//     files reference.
//  2. The address is resolved to its UnhydratedStruct within the family.
//  3. `extends` and `merges` references are hydrated recursively and folded
//     in with config.ResolveInheritance. Nested blocks and inline records
//     are hydrated in place.
//  4. The result is decoded onto the Go type registered for the record's
//     kind and validated.
//
// Resolution failures are *ResolveError, mismatched ancestors or fields are
// *ResolvedTypeMismatchError, and inheritance cycles surface at the root as
// a cycle error.
package hydration
