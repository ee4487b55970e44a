// Package engine runs nodes of the product graph.
//
// Every node runs on its own goroutine. A rule body executes only while it
// holds one of a fixed number of worker slots, and gives the slot back
// whenever it waits: while its input selectors are computed, and inside Get,
// GetAll and Batch.Wait. A body may therefore request any number of further
// computations without starving the pool.
//
// Get is only valid inside a rule body. The engine places the running
// node's frame in the body's context and Get reads it from there:
//
//	func area(ctx context.Context, s Scene) (float64, error) {
//		a, err := engine.Get[Area, Shape](ctx, s.Shape)
//		...
//	}
//
// Node bodies run with a context detached from the requester, so a caller
// that stops waiting does not cancel work other callers may share.
package engine
