package diag

import (
	"context"
	"fmt"
	"time"

	"github.com/psantana5/adapter-skeleton/internal/failure"
	"github.com/psantana5/adapter-skeleton/internal/metrics"
	"github.com/psantana5/adapter-skeleton/internal/sink"
	"github.com/psantana5/adapter-skeleton/pkg/logging"
)

// DefaultSinkTimeout bounds a single delivery to one sink.
const DefaultSinkTimeout = 30 * time.Second

// Log fans diagnostic messages out to the console and every configured
// sink, in order. The console is always first.
type Log struct {
	ctx     logging.Context
	console sink.Sink
	sinks   []sink.Sink
	debug   bool
	timeout time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
}

// Option configures a Log
type Option func(*Log)

// WithDebug enables Profile output.
func WithDebug(debug bool) Option {
	return func(l *Log) { l.debug = debug }
}

// WithMetrics records submissions and delivery failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Log) { l.metrics = m }
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithSinkTimeout bounds each delivery.
func WithSinkTimeout(d time.Duration) Option {
	return func(l *Log) { l.timeout = d }
}

// New creates a log writing to console followed by custom.
func New(ctx logging.Context, console sink.Sink, custom []sink.Sink, opts ...Option) *Log {
	l := &Log{
		ctx:     ctx,
		console: console,
		sinks:   append([]sink.Sink{console}, custom...),
		timeout: DefaultSinkTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Context returns the identity stamped on every message.
func (l *Log) Context() logging.Context { return l.ctx }

// Sinks returns the ordered sink list, console first.
func (l *Log) Sinks() []sink.Sink { return l.sinks }

// Debug reports whether profiling messages are emitted.
func (l *Log) Debug() bool { return l.debug }

// Submit formats message with an empty stacktrace and dispatches it.
func (l *Log) Submit(level logging.Level, message string) {
	l.dispatch(level, l.ctx.Format(message, ""))
}

func (l *Log) Info(message string)  { l.Submit(logging.INFO, message) }
func (l *Log) Warn(message string)  { l.Submit(logging.WARN, message) }
func (l *Log) Error(message string) { l.Submit(logging.ERROR, message) }

// Profile emits a DEBUG message only when debug is enabled.
func (l *Log) Profile(message string) {
	if !l.debug {
		return
	}
	l.Submit(logging.DEBUG, message)
}

// Fault dispatches a fault record at ERROR. A panic raised while
// formatting or delivering is returned as a recursive failure so the
// caller can fall back to its raw channel.
func (l *Log) Fault(message, stacktrace string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = failure.Newf(failure.KindRecursive, "report fault", "%v", r)
		}
	}()
	l.dispatch(logging.ERROR, l.ctx.Format(message, stacktrace))
	return nil
}

// Local writes a message to the console only.
func (l *Log) Local(level logging.Level, message string) {
	l.console.Handle(context.Background(), l.record(level, l.ctx.Format(message, "")))
}

// Close flushes and closes every sink except the console. Flush failures
// are reported on the console.
func (l *Log) Close() error {
	var first error
	for _, s := range l.sinks[1:] {
		if err := s.Close(); err != nil {
			l.deliveryFailed(s, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (l *Log) record(level logging.Level, line string) logging.Record {
	return logging.Record{Level: level, Time: l.now(), Message: line}
}

func (l *Log) dispatch(level logging.Level, line string) {
	rec := l.record(level, line)
	l.metrics.RecordSubmitted(level.Name())

	for _, s := range l.sinks {
		if !s.Accepts(level) {
			continue
		}
		if err := l.deliver(s, rec); err != nil {
			l.deliveryFailed(s, err)
		}
	}
}

func (l *Log) deliver(s sink.Sink, rec logging.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	return s.Handle(ctx, rec)
}

func (l *Log) deliveryFailed(s sink.Sink, err error) {
	l.metrics.SinkFailed(s.Name())
	err = failure.Wrap(failure.KindDelivery, "deliver", err, fmt.Sprintf("sink %s", s.Name()))
	l.console.Handle(context.Background(), l.record(logging.WARN, l.ctx.Format(err.Error(), "")))
}
