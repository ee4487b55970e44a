package hydration

import (
	"fmt"
	"strings"

	"github.com/vk/rulegrid/internal/address"
)

// ResolveError reports an address that names no record. When the
// directory holds declaration files, Suggestions lists the closest known
// names.
type ResolveError struct {
	Address     address.Address
	Suggestions []string
	// NoFiles is set when the directory has no declaration files at all.
	NoFiles bool
}

func (e *ResolveError) Error() string {
	if e.NoFiles {
		return fmt.Sprintf("Directory '%s' does not contain any declaration files.", e.Address.SpecPath)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The address %s does not exist.\n\n", e.Address)
	fmt.Fprintf(&b, "The name '%s' is not defined in the directory '%s'.", e.Address.TargetName, e.Address.Namespace())
	if len(e.Suggestions) > 0 {
		b.WriteString(" Did you mean one of these names?\n")
		for _, s := range e.Suggestions {
			fmt.Fprintf(&b, "\n  * :%s", s)
		}
	}
	return b.String()
}

// DuplicateNameError reports two records of one directory with the same
// name.
type DuplicateNameError struct {
	Dir   Dir
	Name  string
	Files []string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("name '%s' is declared more than once in directory '%s' (%s)", e.Name, e.Dir, strings.Join(e.Files, ", "))
}

// UnknownKindError reports a record whose kind has no registered type.
type UnknownKindError struct {
	File  string
	Name  string
	Kind  string
	Known []string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("%s: record '%s' has unknown kind '%s', expected one of: %s", e.File, e.Name, e.Kind, strings.Join(e.Known, ", "))
}

// ResolvedTypeMismatchError reports a record that cannot become an object
// of its kind: an ancestor of an incompatible kind, or fields that do not
// fit the kind's type.
type ResolvedTypeMismatchError struct {
	Address address.Address
	Kind    string
	Err     error
}

func (e *ResolvedTypeMismatchError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Address, e.Kind, e.Err)
}

func (e *ResolvedTypeMismatchError) Unwrap() error {
	return e.Err
}

// ValidationError reports a hydrated object that rejected its own fields.
type ValidationError struct {
	Address address.Address
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Address, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
