package engine

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ReasonCycle is the Noop reason for a Get that would wait on itself.
const ReasonCycle = "cycle"

// ErrNotInRule is returned by Get and friends when ctx does not belong to a
// running rule body.
var ErrNotInRule = errors.New("engine: Get called outside of a rule body")

// ErrNoValue matches every NoopError.
var ErrNoValue = errors.New("no value")

// NoopError reports a request that completed without a value.
type NoopError struct {
	Reason string
}

func (e *NoopError) Error() string {
	return fmt.Sprintf("no value: %s", e.Reason)
}

// Is makes errors.Is(err, ErrNoValue) hold for any NoopError.
func (e *NoopError) Is(target error) bool {
	return target == ErrNoValue
}

// Noop returns the error a rule body returns to finish its node without a
// value.
func Noop(reason string) error {
	return &NoopError{Reason: reason}
}

// NodeError is the error of a node that threw. Trace lists node
// descriptions from the failing node up to the outermost node that
// propagated the error.
type NodeError struct {
	Trace []string
	Err   error
}

func (e *NodeError) Error() string {
	return e.Err.Error()
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// Traceback renders the engine traceback followed by the error.
func (e *NodeError) Traceback() string {
	var b strings.Builder
	b.WriteString("Engine traceback:\n")
	for i := len(e.Trace) - 1; i >= 0; i-- {
		b.WriteString("  in ")
		b.WriteString(e.Trace[i])
		b.WriteByte('\n')
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

func wrapNodeError(desc string, err error) *NodeError {
	var child *NodeError
	if errors.As(err, &child) {
		return &NodeError{Trace: append(slices.Clone(child.Trace), desc), Err: err}
	}
	return &NodeError{Trace: []string{desc}, Err: err}
}

// PanicError is a panic recovered from a rule body.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// UndeclaredGetError reports a Get whose (product, subject) pair is not in
// the rule's gets clause.
type UndeclaredGetError struct {
	Rule    string
	Product string
	Subject string
}

func (e *UndeclaredGetError) Error() string {
	return fmt.Sprintf("rule '%s' issued Get(%s, %s) without declaring it", e.Rule, e.Product, e.Subject)
}

// AggregateError collects the failures of a batch.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d requests failed:\n- %s", len(e.Errors), strings.Join(msgs, "\n- "))
}

func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// combine reduces per-request errors. Throws win over Noops; a single
// throw is returned as is.
func combine(errs []error) error {
	var throws []error
	var noop error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, ErrNoValue) {
			if noop == nil {
				noop = err
			}
			continue
		}
		throws = append(throws, err)
	}
	switch {
	case len(throws) == 1:
		return throws[0]
	case len(throws) > 1:
		return &AggregateError{Errors: throws}
	default:
		return noop
	}
}
