package metrics

import "time"

// ResultLabel enumerates node outcomes for counters.
type ResultLabel string

const (
	ResultReturn ResultLabel = "return"
	ResultThrow  ResultLabel = "throw"
	ResultNoop   ResultLabel = "noop"
)

// Recorder defines observability hooks for the engine.
type Recorder interface {
	ObserveNodeDuration(rule string, d time.Duration)
	IncNodeResult(rule string, result ResultLabel)
	IncNodeRequest(memoized bool)
	SetGraphSize(n int)
	AddInvalidated(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveNodeDuration(string, time.Duration) {}
func (NoopRecorder) IncNodeResult(string, ResultLabel)         {}
func (NoopRecorder) IncNodeRequest(bool)                       {}
func (NoopRecorder) SetGraphSize(int)                          {}
func (NoopRecorder) AddInvalidated(int)                        {}
