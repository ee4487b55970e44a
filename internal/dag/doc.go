// Package dag is a concurrency-safe directed edge store. Edges point from a
// dependency to the node that depends on it. The package does not forbid
// cycles; callers that need acyclicity check with Reaches before adding an
// edge or run DetectCycles afterwards.
package dag
