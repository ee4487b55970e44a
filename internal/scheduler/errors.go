package scheduler

import (
	"fmt"
	"strings"
)

// CycleError is the error of a root whose computation would have waited on
// itself.
type CycleError struct {
	Root string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected while computing %s", e.Root)
}

// NoRootError reports a request whose product and param types match no
// compiled root.
type NoRootError struct {
	Product string
	Params  string
}

func (e *NoRootError) Error() string {
	return fmt.Sprintf("no compiled root computes %s from %s", e.Product, e.Params)
}

// ExecutionError aggregates the failures of an Execute call.
type ExecutionError struct {
	Errors []error
}

func (e *ExecutionError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("execution failed:\n- %s", strings.Join(msgs, "\n- "))
}

func (e *ExecutionError) Unwrap() []error {
	return e.Errors
}
