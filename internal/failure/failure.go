package failure

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind categorizes errors for the handling strategy of the run
type Kind int

const (
	KindUnknown       Kind = iota
	KindConfiguration      // Invalid or missing configuration, fatal before any task runs
	KindResolution         // A task identifier could not be turned into a task
	KindDelivery           // A sink or reporter could not deliver, never fatal
	KindRuntime            // A task or handler failed at run time
	KindRecursive          // A fault occurred while handling a fault
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindResolution:
		return "resolution"
	case KindDelivery:
		return "delivery"
	case KindRuntime:
		return "runtime"
	case KindRecursive:
		return "recursive"
	default:
		return "unknown"
	}
}

// Error wraps errors with an operation and a kind
type Error struct {
	Kind    Kind
	Op      string // "build", "resolve", "deliver", etc.
	Message string
	Err     error
}

// Error implements error interface
func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

// Unwrap implements error unwrapping
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a kinded error carrying a stack trace of the caller.
func New(kind Kind, op, message string) error {
	return pkgerrors.WithStack(&Error{Kind: kind, Op: op, Message: message})
}

// Newf is New with a format string.
func Newf(kind Kind, op, format string, args ...interface{}) error {
	return pkgerrors.WithStack(&Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)})
}

// Wrap attaches a kind and operation to err. A nil err returns nil.
func Wrap(kind Kind, op string, err error, message string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(&Error{Kind: kind, Op: op, Message: message, Err: err})
}

// Configuration is shorthand for a configuration error.
func Configuration(op, format string, args ...interface{}) error {
	return pkgerrors.WithStack(&Error{Kind: KindConfiguration, Op: op, Message: fmt.Sprintf(format, args...)})
}

// KindOf reports the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StackTracer is implemented by errors that captured a call stack.
type StackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// Stack returns the deepest stack trace recorded in err's chain.
func Stack(err error) (pkgerrors.StackTrace, bool) {
	var st pkgerrors.StackTrace
	for err != nil {
		if t, ok := err.(StackTracer); ok {
			st = t.StackTrace()
		}
		err = errors.Unwrap(err)
	}
	return st, st != nil
}
