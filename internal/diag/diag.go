// Package diag implements the error taxonomy described by the project's
// error-handling design: user-input errors, resource errors, and
// internal-consistency errors, each distinguishable in their message
// prefix. It follows the teacher repo's CompilerError/ErrorCollector shape
// (errors.go), trimmed to what a single-pass batch compiler needs: a
// source location for parse errors, a plain message otherwise.
package diag

import "fmt"

// Category classifies an Error per the error-handling design (§7):
// user input, resource (OS-level), or internal-consistency.
type Category int

const (
	User Category = iota
	Resource
	Internal
)

func (c Category) String() string {
	switch c {
	case User:
		return "error"
	case Resource:
		return "resource error"
	case Internal:
		return "internal error"
	default:
		return "error"
	}
}

// Location is a position in source text, used for parser diagnostics.
type Location struct {
	File   string
	Offset int // instructions parsed so far, counted across all sources
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("offset %d", l.Offset)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Offset)
}

// Error is a single diagnostic. It implements the error interface so it can
// be returned and wrapped through ordinary Go error-handling paths.
type Error struct {
	Category Category
	Message  string
	Location *Location // nil when not applicable (resource/internal errors)
}

func (e *Error) Error() string {
	if e.Location != nil {
		return fmt.Sprintf("%s: %s: %s", e.Category, e.Location, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Syntax builds a user-input error anchored at a source location, for
// unmatched brackets and similar parse failures.
func Syntax(loc Location, format string, args ...any) *Error {
	return &Error{Category: User, Message: fmt.Sprintf(format, args...), Location: &loc}
}

// Resourcef builds a resource error (mmap/mprotect failure and similar).
func Resourcef(format string, args ...any) *Error {
	return &Error{Category: Resource, Message: fmt.Sprintf(format, args...)}
}

// Internalf builds an internal-consistency error: an unhandled IR opcode, a
// reused parser, a write to an RX buffer. These denote a bug in bfjit
// itself, never bad input.
func Internalf(format string, args ...any) *Error {
	return &Error{Category: Internal, Message: fmt.Sprintf(format, args...)}
}
