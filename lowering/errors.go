package lowering

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/gogpu/spvlower/ir"
)

// ErrorKind categorizes lowering failures.
type ErrorKind uint8

const (
	// ErrUnsupportedType indicates a type outside the target type universe.
	ErrUnsupportedType ErrorKind = iota

	// ErrUnsupportedAttribute indicates a constant that cannot be re-encoded
	// for its converted type.
	ErrUnsupportedAttribute

	// ErrUnsupportedPredicate indicates a comparison predicate without a
	// target opcode.
	ErrUnsupportedPredicate

	// ErrUnsupportedOperand indicates operands a pattern declines, such as
	// boolean xor.
	ErrUnsupportedOperand

	// ErrUnsupportedAccess indicates a memory access path the emulator
	// cannot address.
	ErrUnsupportedAccess

	// ErrNoMatch indicates that no pattern is registered for an operation.
	ErrNoMatch

	// ErrUnconvertibleOp indicates that every candidate pattern failed.
	ErrUnconvertibleOp

	// ErrIllegalResult indicates an illegal operation that would survive conversion.
	ErrIllegalResult

	// ErrInvalidModule indicates the module is malformed.
	ErrInvalidModule
)

// String returns a human-readable error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrUnsupportedType:
		return "UnsupportedType"
	case ErrUnsupportedAttribute:
		return "UnsupportedAttribute"
	case ErrUnsupportedPredicate:
		return "UnsupportedPredicate"
	case ErrUnsupportedOperand:
		return "UnsupportedOperand"
	case ErrUnsupportedAccess:
		return "UnsupportedAccess"
	case ErrNoMatch:
		return "NoMatch"
	case ErrUnconvertibleOp:
		return "UnconvertibleOp"
	case ErrIllegalResult:
		return "IllegalResult"
	case ErrInvalidModule:
		return "InvalidModule"
	default:
		return "Unknown"
	}
}

// Error represents a lowering failure.
type Error struct {
	// Kind categorizes the error.
	Kind ErrorKind

	// Op is the kind of the operation being converted, if any.
	Op ir.OpKind

	// Message provides details about the error.
	Message string

	// Err is the underlying cause, e.g. the pattern failures of an
	// unconvertible operation.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("lowering %s (%s): %s", e.Kind, e.Op, msg)
	}
	return fmt.Sprintf("lowering %s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, op *ir.Operation, format string, args ...any) *Error {
	e := &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
	if op != nil {
		e.Op = op.Kind
	}
	return e
}

// IsKind reports whether err, any error aggregated into it, or any cause
// they wrap is a lowering error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	for _, e := range multierr.Errors(err) {
		var le *Error
		if errors.As(e, &le) && (le.Kind == kind || IsKind(le.Err, kind)) {
			return true
		}
	}
	return false
}
