// Package app contains the core application logic. It wires the rule
// registry, the compiled rule graph, the scheduler and the content store
// into one App, and runs its commands, decoupled from any specific
// entrypoint like a CLI or server.
package app
