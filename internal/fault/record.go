package fault

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/psantana5/adapter-skeleton/internal/failure"
)

const (
	failurePkg = "/internal/failure."
	faultPkg   = "/internal/fault."
)

// NewRecord describes a panic value or returned error. Errors that
// captured a stack report their origin; anything else reports the panic
// site and the current goroutine stack.
func NewRecord(v interface{}) Record {
	var rec Record
	switch t := v.(type) {
	case error:
		rec.Message = t.Error()
	case string:
		rec.Message = t
	default:
		rec.Message = fmt.Sprint(t)
	}

	if err, ok := v.(error); ok {
		if st, ok := failure.Stack(err); ok {
			rec.Location = frameLocation(st)
			rec.Stacktrace = strings.TrimPrefix(fmt.Sprintf("%+v", st), "\n")
			return rec
		}
		var re runtime.Error
		if !errors.As(err, &re) && !inPanic() {
			rec.Location = callerLocation()
			return rec
		}
	}

	rec.Location = panicSite()
	rec.Stacktrace = string(debug.Stack())
	return rec
}

// frameLocation returns file:line of the first frame outside the error
// constructors.
func frameLocation(st pkgerrors.StackTrace) string {
	for _, f := range st {
		pc := uintptr(f) - 1
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		if strings.Contains(fn.Name(), failurePkg) {
			continue
		}
		file, line := fn.FileLine(pc)
		return fmt.Sprintf("%s:%d", file, line)
	}
	return ""
}

// panicSite returns the frame that panicked, or the first caller outside
// this package when not panicking.
func panicSite() string {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	afterPanic := false
	fallback := ""
	for {
		f, more := frames.Next()
		switch {
		case f.Function == "runtime.gopanic":
			afterPanic = true
		case strings.HasPrefix(f.Function, "runtime."):
		case afterPanic:
			return fmt.Sprintf("%s:%d", f.File, f.Line)
		case fallback == "" && !strings.Contains(f.Function, faultPkg):
			fallback = fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		if !more {
			break
		}
	}
	return fallback
}

func callerLocation() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !strings.Contains(f.Function, faultPkg) && !strings.HasPrefix(f.Function, "runtime.") {
			return fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		if !more {
			return ""
		}
	}
}

func inPanic() bool {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if f.Function == "runtime.gopanic" {
			return true
		}
		if !more {
			return false
		}
	}
}
