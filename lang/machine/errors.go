package machine

import "fmt"

// ErrorKind classifies a runtime error (spec.md §7). Every *Error carries
// one of these eight kinds; CorruptBytecode is not raised by the VM itself
// but by callers that decode a bytecode container (the CLI's run command).
// No pack example shows a typed-Kind error
// for a bytecode VM, so this enum is designed directly from spec.md's
// prose rather than grounded on a third-party pattern (see DESIGN.md).
type ErrorKind int

const (
	TypeMismatch ErrorKind = iota
	DivisionByZero
	UndefinedVariable
	ArityMismatch
	IndexOutOfRange
	ModuleLoadFailure
	CorruptBytecode
	InternalInvariant
)

func (k ErrorKind) String() string {
	switch k {
	case TypeMismatch:
		return "TypeMismatch"
	case DivisionByZero:
		return "DivisionByZero"
	case UndefinedVariable:
		return "UndefinedVariable"
	case ArityMismatch:
		return "ArityMismatch"
	case IndexOutOfRange:
		return "IndexOutOfRange"
	case ModuleLoadFailure:
		return "ModuleLoadFailure"
	case CorruptBytecode:
		return "CorruptBytecode"
	case InternalInvariant:
		return "InternalInvariant"
	default:
		return "Unknown"
	}
}

// Error is the error type raised by the running VM (spec.md §7): every
// runtime fault carries a Kind, a human-readable Message, and the source
// Line active when it occurred. Wrapped, when set, is the lower-level
// error (an io/encoding/binary failure, or a ModuleLoader's own error)
// that caused this one, so callers can use errors.As/errors.Is to recover
// it (spec.md §7).
type Error struct {
	Kind    ErrorKind
	Message string
	Line    int
	Wrapped error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d)", e.Kind, e.Message, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause, if any, to errors.As/errors.Is.
func (e *Error) Unwrap() error { return e.Wrapped }
