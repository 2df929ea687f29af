package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseParse    Phase = "parse"    // binary to module
	PhaseEncode   Phase = "encode"   // module to binary
	PhaseValidate Phase = "validate" // module invariant checks
	PhasePass     Phase = "pass"     // optimization passes
)

// Kind categorizes the error
type Kind string

const (
	KindUnknownSection Kind = "unknown_section"
	KindUnknownOpcode  Kind = "unknown_opcode"
	KindTruncated      Kind = "truncated"
	KindOverflow       Kind = "overflow"
	KindInvalidType    Kind = "invalid_type"
	KindSizeMismatch   Kind = "size_mismatch"
	KindBadMagic       Kind = "bad_magic"
	KindBadVersion     Kind = "bad_version"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindTypeMismatch   Kind = "type_mismatch"
	KindBadLabel       Kind = "bad_label"
	KindBadArity       Kind = "bad_arity"
	KindUnsupported    Kind = "unsupported"
	KindNotFound       Kind = "not_found"
	KindInvalidData    Kind = "invalid_data"
)

// Error is the structured error type used throughout the toolkit
type Error struct {
	Cause    error
	Phase    Phase
	Kind     Kind
	Section  string // section name, for parse/encode errors
	Function string // function name, for validate/pass errors
	Detail   string
	Offset   int // byte offset, -1 when unknown
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Section != "" {
		b.WriteString(" in section ")
		b.WriteString(e.Section)
	}
	if e.Function != "" {
		b.WriteString(" in function ")
		b.WriteString(e.Function)
	}
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " at offset %d", e.Offset)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:  phase,
			Kind:   kind,
			Offset: -1,
		},
	}
}

// Section sets the section name
func (b *Builder) Section(name string) *Builder {
	b.err.Section = name
	return b
}

// Function sets the function name
func (b *Builder) Function(name string) *Builder {
	b.err.Function = name
	return b
}

// Offset sets the byte offset
func (b *Builder) Offset(pos int) *Builder {
	b.err.Offset = pos
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// UnknownSection creates an unknown section name error
func UnknownSection(name string, offset int) *Error {
	return &Error{
		Phase:   PhaseParse,
		Kind:    KindUnknownSection,
		Section: name,
		Offset:  offset,
		Detail:  fmt.Sprintf("unfamiliar section %q", name),
	}
}

// UnknownOpcode creates an unknown opcode byte error
func UnknownOpcode(code byte, offset int) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindUnknownOpcode,
		Offset: offset,
		Detail: fmt.Sprintf("bad code 0x%02x", code),
	}
}

// Truncated creates a truncated input error
func Truncated(section string, offset int, cause error) *Error {
	return &Error{
		Phase:   PhaseParse,
		Kind:    KindTruncated,
		Section: section,
		Offset:  offset,
		Cause:   cause,
	}
}

// SizeMismatch creates a section size mismatch error
func SizeMismatch(section string, want, got int) *Error {
	return &Error{
		Phase:   PhaseParse,
		Kind:    KindSizeMismatch,
		Section: section,
		Offset:  got,
		Detail:  fmt.Sprintf("section ends at %d, expected %d", got, want),
	}
}

// InvalidType creates a bad value-type byte error
func InvalidType(offset int, code byte) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidType,
		Offset: offset,
		Detail: fmt.Sprintf("invalid value type byte 0x%02x", code),
	}
}

// OutOfBounds creates an out of bounds index error
func OutOfBounds(fn, what string, index, length int) *Error {
	return &Error{
		Phase:    PhaseValidate,
		Kind:     KindOutOfBounds,
		Function: fn,
		Offset:   -1,
		Detail:   fmt.Sprintf("%s index %d out of bounds (length %d)", what, index, length),
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(fn, detail string) *Error {
	return &Error{
		Phase:    PhaseValidate,
		Kind:     KindTypeMismatch,
		Function: fn,
		Offset:   -1,
		Detail:   detail,
	}
}

// BadLabel creates an unresolved break target error
func BadLabel(fn, label string) *Error {
	return &Error{
		Phase:    PhaseValidate,
		Kind:     KindBadLabel,
		Function: fn,
		Offset:   -1,
		Detail:   fmt.Sprintf("break target %q does not resolve to an enclosing label", label),
	}
}

// Unsupported creates an unsupported construct error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Offset: -1,
		Detail: what,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Offset: -1,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with phase and kind context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Offset: -1,
		Detail: detail,
		Cause:  cause,
	}
}
