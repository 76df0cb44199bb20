package schedule

import (
	"errors"
	"fmt"
	"strings"
)

// ParseErrorKind classifies schedule loading failures
type ParseErrorKind int

const (
	// ParseErrSyntax indicates the file is not valid YAML
	ParseErrSyntax ParseErrorKind = iota
	// ParseErrMalformed indicates a structurally invalid field
	ParseErrMalformed
	// ParseErrImport indicates an import could not be read
	ParseErrImport
	// ParseErrImportCycle indicates the import graph contains a cycle
	ParseErrImportCycle
)

// String returns the string representation of ParseErrorKind
func (k ParseErrorKind) String() string {
	switch k {
	case ParseErrSyntax:
		return "syntax"
	case ParseErrMalformed:
		return "malformed"
	case ParseErrImport:
		return "import"
	case ParseErrImportCycle:
		return "import_cycle"
	default:
		return "unknown"
	}
}

var (
	// ErrPlayoutNotFound is returned when a playout index is out of range
	ErrPlayoutNotFound = errors.New("playout not found")

	// ErrUnresolvedReference is returned by Document.Validate for dangling keys
	ErrUnresolvedReference = errors.New("unresolved schedule reference")
)

// ParseError describes why a schedule document could not be loaded
type ParseError struct {
	Kind   ParseErrorKind
	File   string
	Line   int
	Field  string
	Reason string
	Chain  []string // import chain for cycle errors
	Cause  error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("schedule ")
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.File != "" {
		b.WriteString(" in ")
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
	}
	if e.Field != "" {
		b.WriteString(": field ")
		b.WriteString(e.Field)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if len(e.Chain) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Chain, " -> "))
		b.WriteString(")")
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// IsParseError reports whether err is a ParseError of the given kind
func IsParseError(err error, kind ParseErrorKind) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Kind == kind
}

func malformed(file string, line int, field, reason string) *ParseError {
	return &ParseError{Kind: ParseErrMalformed, File: file, Line: line, Field: field, Reason: reason}
}
