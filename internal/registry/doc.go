// Package registry is the rule registration surface.
//
// Modules register tasks, singletons, intrinsics, root types, queries and
// unions into a Registry constructed by the caller. There is no global
// registry: a Registry is created per application (or per test) and handed
// to the rule graph compiler once populated.
//
// Register methods panic on programmer errors such as duplicate rule names,
// matching how handler registration has always failed fast at startup.
// Validate reports the remaining structural problems in one aggregated
// error before compilation.
package registry
