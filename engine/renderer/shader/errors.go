package shader

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind categorizes shader build failures.
type ErrorKind uint8

const (
	// ErrMissingSourceFile indicates the top-level stage source could not be read.
	ErrMissingSourceFile ErrorKind = iota

	// ErrMissingIncludeFile indicates an #include target could not be read.
	ErrMissingIncludeFile

	// ErrMalformedConditional indicates unbalanced #if/#elif/#else/#endif directives.
	ErrMalformedConditional

	// ErrCompilerInvocationFailed indicates the external compiler could not be started.
	ErrCompilerInvocationFailed

	// ErrCompile indicates the compiler rejected the translation unit or timed out.
	ErrCompile

	// ErrUnsupportedStageExtension indicates a source file whose extension names no known stage.
	ErrUnsupportedStageExtension

	// ErrBindingConflict indicates a cached module's bindings collide with bindings
	// already assigned in the requesting pipeline.
	ErrBindingConflict
)

// String returns a human-readable error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrMissingSourceFile:
		return "MissingSourceFile"
	case ErrMissingIncludeFile:
		return "MissingIncludeFile"
	case ErrMalformedConditional:
		return "MalformedConditional"
	case ErrCompilerInvocationFailed:
		return "CompilerInvocationFailed"
	case ErrCompile:
		return "CompileError"
	case ErrUnsupportedStageExtension:
		return "UnsupportedStageExtension"
	case ErrBindingConflict:
		return "BindingConflict"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by every stage of the shader build pipeline.
type Error struct {
	// Kind categorizes the error.
	Kind ErrorKind

	// Path is the file the error refers to (source, include or compiler executable).
	Path string

	// Stage is the stage being compiled, if known.
	Stage *StageKind

	// Line is the 1-based line in Path, or 0 when the error has no position.
	Line int

	// Message provides details about the error.
	Message string

	// Diagnostics holds the remapped compiler diagnostics for ErrCompile.
	Diagnostics []Diagnostic

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("shader ")
	sb.WriteString(e.Kind.String())
	if e.Path != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Path)
		if e.Line > 0 {
			fmt.Fprintf(&sb, ":%d", e.Line)
		}
	}
	if e.Stage != nil {
		fmt.Fprintf(&sb, " (%s)", e.Stage.String())
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if len(e.Diagnostics) > 0 {
		fmt.Fprintf(&sb, ": %s", e.Diagnostics[0].String())
		if len(e.Diagnostics) > 1 {
			fmt.Fprintf(&sb, " (and %d more)", len(e.Diagnostics)-1)
		}
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so the exported
// sentinels can be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Path == "" && t.Message == ""
}

// Recoverable reports whether a batch build may continue with the next entry.
// Only compile errors are recoverable; every other kind aborts the pipeline.
func (e *Error) Recoverable() bool {
	return e.Kind == ErrCompile
}

// WithStage returns the error with its stage set. The receiver is modified in place.
func (e *Error) WithStage(s StageKind) *Error {
	e.Stage = &s
	return e
}

// Sentinels for errors.Is.
var (
	ErrMissingSource    = &Error{Kind: ErrMissingSourceFile}
	ErrMissingInclude   = &Error{Kind: ErrMissingIncludeFile}
	ErrMalformed        = &Error{Kind: ErrMalformedConditional}
	ErrInvocation       = &Error{Kind: ErrCompilerInvocationFailed}
	ErrCompileFailed    = &Error{Kind: ErrCompile}
	ErrUnsupportedStage = &Error{Kind: ErrUnsupportedStageExtension}
	ErrBindingCollision = &Error{Kind: ErrBindingConflict}
)

// KindOf extracts the ErrorKind from err.
//
// Parameters:
//   - err: any error, possibly wrapping an *Error
//
// Returns:
//   - ErrorKind: the kind of the first *Error in the chain
//   - bool: false if err does not wrap an *Error
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsRecoverable reports whether err is a recoverable shader build error.
func IsRecoverable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Recoverable()
}
