package rulegraph

import (
	"fmt"
	"strings"
)

// MissingRuleError reports a product that no rule can compute from the
// available params.
type MissingRuleError struct {
	Product string
	Params  string
	Reasons []string
}

func (e *MissingRuleError) Error() string {
	msg := fmt.Sprintf("no rule can compute %s from %s", e.Product, e.Params)
	if len(e.Reasons) == 0 {
		return msg
	}
	return msg + ":\n  - " + strings.Join(e.Reasons, "\n  - ")
}

// AmbiguousRuleError reports more than one rule able to compute a product
// from the same params.
type AmbiguousRuleError struct {
	Product    string
	Params     string
	Candidates []string
}

func (e *AmbiguousRuleError) Error() string {
	return fmt.Sprintf("ambiguous rules to compute %s from %s: %s", e.Product, e.Params, strings.Join(e.Candidates, ", "))
}

// RuleCycleError reports products that can only be computed from
// themselves through input selectors.
type RuleCycleError struct {
	Product string
	Params  string
	Path    []string
}

func (e *RuleCycleError) Error() string {
	return fmt.Sprintf("cycle detected among rules computing %s from %s: %s", e.Product, e.Params, strings.Join(e.Path, " -> "))
}

// CompileError aggregates every problem found while compiling.
type CompileError struct {
	Errors []error
}

func (e *CompileError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("rule graph compilation failed:\n- %s", strings.Join(msgs, "\n- "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *CompileError) Unwrap() []error {
	return e.Errors
}

func firstLine(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
