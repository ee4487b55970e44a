// Package store provides content-addressed storage for file contents read
// by the engine's filesystem intrinsics.
//
// # Why Store Exists
//
// Snapshots capture a directory's files by digest, and the product graph
// memoizes them until the watcher invalidates the owning directory. File
// contents are kept in a Store keyed by the same digest, so a FileContent
// request always returns exactly the bytes its Snapshot saw, even if the
// file changed on disk in the meantime.
//
// Two implementations are provided:
//   - MemoryStore: ephemeral, backed by sync.Map, used by tests and one-shot runs
//   - SQLiteStore: persistent, backed by modernc.org/sqlite, reused across runs
package store
