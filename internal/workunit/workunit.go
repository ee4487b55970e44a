// Package workunit streams node lifecycle events to interested sinks.
package workunit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vk/rulegrid/internal/ctxlog"
)

// Kind tells whether an event opens or closes a span.
type Kind string

const (
	Started   Kind = "started"
	Completed Kind = "completed"
)

// Event describes one node execution. Started and Completed events of the
// same node share a SpanID.
type Event struct {
	Kind        Kind          `json:"kind"`
	SpanID      string        `json:"span_id"`
	ParentID    string        `json:"parent_id,omitempty"`
	Rule        string        `json:"rule"`
	Description string        `json:"description"`
	State       string        `json:"state,omitempty"`
	Error       string        `json:"error,omitempty"`
	Time        time.Time     `json:"time"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// Sink receives events. Emit must not block for long; it runs on the node's
// goroutine.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// NewSpanID returns a time-ordered span id.
func NewSpanID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Fanout forwards every event to each sink in order.
type Fanout []Sink

func (f Fanout) Emit(ctx context.Context, ev Event) {
	for _, s := range f {
		s.Emit(ctx, ev)
	}
}

// LogSink writes events to the context logger at debug level.
type LogSink struct{}

func (LogSink) Emit(ctx context.Context, ev Event) {
	logger := ctxlog.FromContext(ctx)
	switch ev.Kind {
	case Started:
		logger.Debug("Workunit started.", "span", ev.SpanID, "parent", ev.ParentID, "node", ev.Description)
	default:
		logger.Debug("Workunit completed.", "span", ev.SpanID, "node", ev.Description, "state", ev.State, "duration", ev.Duration, "error", ev.Error)
	}
}

// Collector keeps every event in memory.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *Collector) Emit(_ context.Context, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Events returns a copy of the collected events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}
