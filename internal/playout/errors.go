package playout

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies generation failures
type ErrorKind int

const (
	// ErrKindUnknownReference indicates a content or sequence key that does not resolve
	ErrKindUnknownReference ErrorKind = iota
	// ErrKindEmptyCollection indicates a block whose collection has no schedulable members
	ErrKindEmptyCollection
	// ErrKindRecursionTooDeep indicates nested sequences exceeded the depth ceiling
	ErrKindRecursionTooDeep
	// ErrKindEmptyPlayout indicates a full pass over the playout emitted nothing
	ErrKindEmptyPlayout
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case ErrKindUnknownReference:
		return "unknown_reference"
	case ErrKindEmptyCollection:
		return "empty_collection"
	case ErrKindRecursionTooDeep:
		return "sequence_recursion_too_deep"
	case ErrKindEmptyPlayout:
		return "empty_playout"
	default:
		return "unknown"
	}
}

// ErrInvalidMaxItems is returned when an item cap is not positive
var ErrInvalidMaxItems = errors.New("max items must be greater than zero")

// GenerationError describes why a playlist could not be generated
type GenerationError struct {
	Kind     ErrorKind
	Key      string // offending content or sequence key
	Sequence string // sequence being expanded, if known
	Line     int    // source line of the directive, if known
	Cause    error
}

// Error implements the error interface
func (e *GenerationError) Error() string {
	var b strings.Builder
	b.WriteString("generation failed: ")
	b.WriteString(e.Kind.String())
	if e.Key != "" {
		fmt.Fprintf(&b, " %q", e.Key)
	}
	if e.Sequence != "" {
		fmt.Fprintf(&b, " in sequence %q", e.Sequence)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// IsGenerationError reports whether err is a GenerationError of the given kind
func IsGenerationError(err error, kind ErrorKind) bool {
	var ge *GenerationError
	return errors.As(err, &ge) && ge.Kind == kind
}
