package elab

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/desflat/internal/ir"
)

// ErrorCode categorizes elaboration errors.
type ErrorCode string

const (
	// ErrCodeArity indicates an actual/formal event count mismatch.
	ErrCodeArity ErrorCode = "ARITY"

	// ErrCodeUnresolvedEvent indicates a dotted event reference to an
	// instance not yet processed, or to an event it does not declare.
	ErrCodeUnresolvedEvent ErrorCode = "UNRESOLVED_EVENT"

	// ErrCodeControllabilityMismatch indicates an actual event whose
	// controllability cannot fill the formal position.
	ErrCodeControllabilityMismatch ErrorCode = "CONTROLLABILITY_MISMATCH"

	// ErrCodeUnknownReference indicates a reference to a nonexistent
	// template, instance, location or event.
	ErrCodeUnknownReference ErrorCode = "UNKNOWN_REFERENCE"

	// ErrCodeSemanticsViolation indicates a requirement disabling an
	// uncontrollable event.
	ErrCodeSemanticsViolation ErrorCode = "SEMANTICS_VIOLATION"

	// ErrCodeDuplicateName indicates two templates, instances, locations or
	// events sharing a name in the same namespace.
	ErrCodeDuplicateName ErrorCode = "DUPLICATE_NAME"

	// ErrCodeMalformedTemplate indicates a template or inline automaton
	// without exactly one initial location.
	ErrCodeMalformedTemplate ErrorCode = "MALFORMED_TEMPLATE"
)

// Stage names the statement list an error refers to.
type Stage string

const (
	StageTemplate    Stage = "template"
	StageComponent   Stage = "component"
	StageRequirement Stage = "requirement"
)

// Error is an elaboration failure with enough context to locate the
// offending source statement.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Stage and Statement locate the statement (0-based index within the
	// stage's list). Statement is -1 when not applicable.
	Stage     Stage
	Statement int

	// Names lists the referenced names, outermost first.
	Names []string

	// Pos is the source position when the front end provided one.
	Pos ir.Pos
}

// Sentinels for errors.Is. Only the code is compared.
var (
	ErrArity                   = &Error{Code: ErrCodeArity}
	ErrUnresolvedEvent         = &Error{Code: ErrCodeUnresolvedEvent}
	ErrControllabilityMismatch = &Error{Code: ErrCodeControllabilityMismatch}
	ErrUnknownReference        = &Error{Code: ErrCodeUnknownReference}
	ErrSemanticsViolation      = &Error{Code: ErrCodeSemanticsViolation}
	ErrDuplicateName           = &Error{Code: ErrCodeDuplicateName}
	ErrMalformedTemplate       = &Error{Code: ErrCodeMalformedTemplate}
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Pos.IsValid() {
		b.WriteString(e.Pos.String())
		b.WriteString(": ")
	}
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Stage != "" && e.Statement >= 0 {
		fmt.Fprintf(&b, " (%s #%d)", e.Stage, e.Statement)
	}
	return b.String()
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code ErrorCode, stage Stage, stmt int, pos ir.Pos, names []string, format string, args ...any) *Error {
	return &Error{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Stage:     stage,
		Statement: stmt,
		Names:     names,
		Pos:       pos,
	}
}

// CodeOf returns the error code of an elaboration error, or "".
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsArityError returns true if the error is an arity mismatch.
func IsArityError(err error) bool { return CodeOf(err) == ErrCodeArity }

// IsUnresolvedEventError returns true if the error is an unresolved event reference.
func IsUnresolvedEventError(err error) bool { return CodeOf(err) == ErrCodeUnresolvedEvent }

// IsControllabilityMismatchError returns true if the error is a controllability mismatch.
func IsControllabilityMismatchError(err error) bool {
	return CodeOf(err) == ErrCodeControllabilityMismatch
}

// IsUnknownReferenceError returns true if the error is an unknown reference.
func IsUnknownReferenceError(err error) bool { return CodeOf(err) == ErrCodeUnknownReference }

// IsSemanticsViolationError returns true if a requirement disables an uncontrollable event.
func IsSemanticsViolationError(err error) bool { return CodeOf(err) == ErrCodeSemanticsViolation }

// IsDuplicateNameError returns true if the error is a name collision.
func IsDuplicateNameError(err error) bool { return CodeOf(err) == ErrCodeDuplicateName }
