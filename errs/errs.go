// Package errs defines the error taxonomy shared by every autofilter package.
//
// Callers match categories with errors.Is against the sentinels below and
// extract details with errors.As on the typed errors.
package errs

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Standard errors returned by autofilter packages.
var (
	// ErrArgumentMissing indicates a required argument (type, expression,
	// filter instance) was nil.
	ErrArgumentMissing = errors.New("argument missing")

	// ErrInvalidArgument indicates a supplied value violates a structural
	// precondition, e.g. an accessor that is not a direct member access.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidOperation indicates an operation was called while its paired
	// "can" predicate is false.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrFilterNotMapped indicates no builder is registered for a
	// (filter, entity) type pair.
	ErrFilterNotMapped = errors.New("filter not mapped")

	// ErrFilterPropertyMissingMapping indicates a filter type has fields that
	// are neither mapped nor ignored.
	ErrFilterPropertyMissingMapping = errors.New("filter property missing mapping")
)

// Missing returns an error wrapping ErrArgumentMissing for the named argument.
func Missing(pkg, arg string) error {
	return fmt.Errorf("%s: %s: %w", pkg, arg, ErrArgumentMissing)
}

// Invalid returns an error wrapping ErrInvalidArgument.
func Invalid(pkg, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", pkg, fmt.Sprintf(format, args...), ErrInvalidArgument)
}

// Operation returns an error wrapping ErrInvalidOperation.
func Operation(pkg, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", pkg, fmt.Sprintf(format, args...), ErrInvalidOperation)
}

// FilterNotMappedError is returned when an expression is requested for a
// (filter, entity) pair that was never registered.
type FilterNotMappedError struct {
	FilterType reflect.Type
	EntityType reflect.Type
}

func (e *FilterNotMappedError) Error() string {
	return fmt.Sprintf("filter %s is not mapped to %s", typeName(e.FilterType), typeName(e.EntityType))
}

// Is reports whether target is ErrFilterNotMapped.
func (e *FilterNotMappedError) Is(target error) bool {
	return target == ErrFilterNotMapped
}

// FilterPropertyMissingMappingError lists every field of a filter type that is
// neither mapped to an entity field nor explicitly ignored.
type FilterPropertyMissingMappingError struct {
	FilterType reflect.Type
	Properties []string
}

func (e *FilterPropertyMissingMappingError) Error() string {
	return fmt.Sprintf(
		"filter %s is missing a mapping for the following properties:\n %s\nall properties must be mapped to an entity property or ignored",
		typeName(e.FilterType), strings.Join(e.Properties, "\n "),
	)
}

// Is reports whether target is ErrFilterPropertyMissingMapping.
func (e *FilterPropertyMissingMappingError) Is(target error) bool {
	return target == ErrFilterPropertyMissingMapping
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
