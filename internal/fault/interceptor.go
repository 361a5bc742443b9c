package fault

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/psantana5/adapter-skeleton/internal/failure"
	"github.com/psantana5/adapter-skeleton/internal/metrics"
	"github.com/psantana5/adapter-skeleton/pkg/logging"
)

// DefaultReserveSize is the emergency memory held until shutdown.
const DefaultReserveSize = 256 * 1024

// SuccessMessage is logged when the run ends without a fault.
const SuccessMessage = "app successfully completed"

// State of the interceptor lifecycle.
type State int

const (
	StateUnregistered State = iota
	StateRegistered
	StateHandlingException
	StateHandlingError
	StateHandlingFatal
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateHandlingException:
		return "handling-exception"
	case StateHandlingError:
		return "handling-error"
	case StateHandlingFatal:
		return "handling-fatal"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Log receives fault and completion records.
type Log interface {
	Fault(message, stacktrace string) error
	Submit(level logging.Level, message string)
}

// Options configures an Interceptor
type Options struct {
	ReserveSize int
	Threshold   Severity
	// Raw receives fallback lines when the log is unusable. Defaults to stderr.
	Raw io.Writer
	// Exit ends the process. Defaults to os.Exit.
	Exit func(code int)
	// Signals turns SIGINT and SIGTERM into fatal conditions.
	Signals bool
	Metrics *metrics.Metrics
}

// Interceptor turns panics, escalated errors, fatal conditions and signals
// into one fault record and a process exit.
type Interceptor struct {
	mu        sync.Mutex
	state     State
	reserve   []byte
	size      int
	threshold Severity
	handled   bool
	last      Condition
	ctx       logging.Context
	log       Log
	raw       io.Writer
	exit      func(int)
	signals   bool
	sigCh     chan os.Signal
	stop      chan struct{}
	onFault   []func()
	onExit    []func()
	metrics   *metrics.Metrics
}

// New creates an unregistered interceptor
func New(opts Options) *Interceptor {
	if opts.Raw == nil {
		opts.Raw = os.Stderr
	}
	if opts.Exit == nil {
		opts.Exit = os.Exit
	}
	if opts.ReserveSize < 0 {
		opts.ReserveSize = 0
	}
	return &Interceptor{
		size:      opts.ReserveSize,
		threshold: opts.Threshold,
		raw:       opts.Raw,
		exit:      opts.Exit,
		signals:   opts.Signals,
		metrics:   opts.Metrics,
	}
}

// Register installs the interceptor and reserves memory. Calling it again
// has no effect.
func (i *Interceptor) Register() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != StateUnregistered {
		return
	}
	if i.size > 0 {
		i.reserve = make([]byte, i.size)
	}
	i.state = StateRegistered

	if i.signals {
		i.sigCh = make(chan os.Signal, 1)
		i.stop = make(chan struct{})
		signal.Notify(i.sigCh, syscall.SIGINT, syscall.SIGTERM)
		go i.watchSignals(i.sigCh, i.stop)
	}
}

// Unregister uninstalls the interceptor; triggers are ignored afterwards.
func (i *Interceptor) Unregister() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == StateRegistered {
		i.state = StateUnregistered
	}
	i.stopSignals()
}

func (i *Interceptor) stopSignals() {
	if i.sigCh == nil {
		return
	}
	signal.Stop(i.sigCh)
	close(i.stop)
	i.sigCh = nil
	i.stop = nil
}

func (i *Interceptor) watchSignals(ch <-chan os.Signal, stop <-chan struct{}) {
	select {
	case sig := <-ch:
		i.Fatal(Condition{Class: ClassCore, Message: fmt.Sprintf("terminated by signal %s", sig)})
	case <-stop:
	}
}

// SetLog attaches the diagnostic log faults are reported to.
func (i *Interceptor) SetLog(l Log) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.log = l
}

// SetContext sets the identity used for raw fallback lines.
func (i *Interceptor) SetContext(ctx logging.Context) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ctx = ctx
}

// SetThreshold replaces the reporting threshold for recoverable errors.
func (i *Interceptor) SetThreshold(s Severity) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.threshold = s
}

// Reserve resizes the memory reservation.
func (i *Interceptor) Reserve(size int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if size < 0 {
		size = 0
	}
	i.size = size
	if i.state == StateRegistered {
		i.reserve = nil
		if size > 0 {
			i.reserve = make([]byte, size)
		}
	}
}

// Reserved returns the number of bytes currently held.
func (i *Interceptor) Reserved() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.reserve)
}

// OnFault adds a hook run once before a non-zero exit.
func (i *Interceptor) OnFault(fn func()) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onFault = append(i.onFault, fn)
}

// OnExit adds a hook run before any exit.
func (i *Interceptor) OnExit(fn func()) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onExit = append(i.onExit, fn)
}

// State returns the current lifecycle state.
func (i *Interceptor) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Recover handles a panic in progress. Use as: defer i.Recover()
func (i *Interceptor) Recover() {
	if r := recover(); r != nil {
		i.HandleException(r)
	}
}

// Catch handles an error returned to the top of the main flow as an
// uncaught fault. A nil error is ignored.
func (i *Interceptor) Catch(err error) {
	if err != nil {
		i.HandleException(err)
	}
}

// HandleException reports v as a fault and shuts down with exit code 1.
// A fault raised while another is being handled goes straight to the raw
// channel.
func (i *Interceptor) HandleException(v interface{}) {
	i.mu.Lock()
	switch i.state {
	case StateRegistered:
	case StateHandlingException, StateHandlingError, StateHandlingFatal:
		i.mu.Unlock()
		i.fallback(NewRecord(v).Message)
		return
	case StateTerminated:
		i.mu.Unlock()
		return
	default:
		i.mu.Unlock()
		panic(v)
	}
	i.state = StateHandlingException
	i.stopSignals()
	i.mu.Unlock()

	i.metrics.Fault("exception")
	rec := NewRecord(v)
	if !i.report(rec) {
		return
	}

	i.mu.Lock()
	i.handled = true
	i.mu.Unlock()
	i.Shutdown()
}

// HandleError escalates a recoverable error of the given severity. It
// returns a runtime fault when the severity is within the threshold and
// nil otherwise; the run continues either way.
func (i *Interceptor) HandleError(sev Severity, err error) error {
	if err == nil {
		return nil
	}
	i.mu.Lock()
	active := i.state == StateRegistered && i.threshold&sev != 0
	if active {
		i.state = StateHandlingError
	}
	i.mu.Unlock()
	if !active {
		return nil
	}

	i.metrics.Fault("error")
	escalated := failure.Wrap(failure.KindRuntime, sev.String(), err, "")

	i.mu.Lock()
	if i.state == StateHandlingError {
		i.state = StateRegistered
	}
	i.mu.Unlock()
	return escalated
}

// RecordFatal stores the last runtime condition, inspected at shutdown.
func (i *Interceptor) RecordFatal(c Condition) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != StateTerminated {
		i.last = c
	}
}

// Fatal records a condition and shuts down immediately.
func (i *Interceptor) Fatal(c Condition) {
	i.RecordFatal(c)
	i.Shutdown()
}

// Shutdown releases the reservation and ends the run: exit 1 after a
// handled exception or a fatal condition, otherwise log completion and
// exit 0.
func (i *Interceptor) Shutdown() {
	i.mu.Lock()
	switch i.state {
	case StateRegistered, StateHandlingException:
	default:
		i.mu.Unlock()
		return
	}
	i.reserve = nil
	handled := i.handled
	last := i.last
	if !handled && last.Class.Fatal() {
		i.state = StateHandlingFatal
		i.stopSignals()
	}
	log := i.log
	i.mu.Unlock()

	switch {
	case handled:
		i.terminate(1)
	case last.Class.Fatal():
		i.metrics.Fault(last.Class.String())
		rec := Record{Message: last.Message, Location: last.Location}
		if !i.report(rec) {
			return
		}
		i.terminate(1)
	default:
		if log != nil {
			if err := i.safe(func() { log.Submit(logging.INFO, SuccessMessage) }); err != nil {
				i.fallback(err.Error())
				return
			}
		}
		i.terminate(0)
	}
}

// report writes rec to the log, or to the raw channel when no log is
// attached. It returns false if the fallback path already exited.
func (i *Interceptor) report(rec Record) bool {
	i.mu.Lock()
	log := i.log
	ctx := i.ctx
	i.mu.Unlock()

	if log == nil {
		fmt.Fprintln(i.raw, ctx.Format(rec.Text(), rec.Stacktrace))
		return true
	}

	var ferr error
	err := i.safe(func() { ferr = log.Fault(rec.Text(), rec.Stacktrace) })
	if err == nil {
		err = ferr
	}
	if err != nil {
		i.fallback(err.Error())
		return false
	}
	return true
}

// safe runs fn and converts a panic into an error.
func (i *Interceptor) safe(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = failure.Newf(failure.KindRecursive, "report fault", "%v", r)
		}
	}()
	fn()
	return nil
}

// fallback emits one raw line and exits 1 with no further handling.
func (i *Interceptor) fallback(message string) {
	i.mu.Lock()
	if i.state == StateTerminated {
		i.mu.Unlock()
		return
	}
	i.state = StateTerminated
	i.reserve = nil
	i.stopSignals()
	i.mu.Unlock()

	i.metrics.Fault("recursive")
	fmt.Fprintf(i.raw, "Fatal exception over exception: %s\n", message)
	i.exit(1)
}

func (i *Interceptor) terminate(code int) {
	i.mu.Lock()
	if i.state == StateTerminated {
		i.mu.Unlock()
		return
	}
	i.state = StateTerminated
	i.stopSignals()
	onFault := i.onFault
	onExit := i.onExit
	i.mu.Unlock()

	if code != 0 {
		for _, fn := range onFault {
			i.safe(fn)
		}
	}
	for _, fn := range onExit {
		i.safe(fn)
	}
	i.exit(code)
}
