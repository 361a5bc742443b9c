package sink

import (
	"context"
	"io"

	"github.com/psantana5/adapter-skeleton/pkg/logging"
)

// Kind identifies a sink implementation.
type Kind string

const (
	KindConsole   Kind = "console"
	KindRelay     Kind = "proxy-relay"
	KindSearch    Kind = "search-index"
	KindMail      Kind = "mail"
	KindHeartbeat Kind = "heartbeat"
)

// Sink is a configured delivery target for diagnostic records.
// Handle is called only for records the sink Accepts.
type Sink interface {
	Kind() Kind
	Name() string
	Level() logging.Level
	Accepts(level logging.Level) bool
	Handle(ctx context.Context, rec logging.Record) error
	HandleBatch(ctx context.Context, recs []logging.Record) error
	SetFormatter(f logging.Formatter)
	PushProcessor(p logging.Processor)
	Close() error
}

// Env carries the run-wide values sink constructors may need.
type Env struct {
	Context logging.Context
	RunID   string
	Stdout  io.Writer
	Stderr  io.Writer
}

// handler holds the state shared by every sink: identity, minimum level,
// formatter and processors.
type handler struct {
	kind       Kind
	name       string
	level      logging.Level
	formatter  logging.Formatter
	processors []logging.Processor
}

func newHandler(kind Kind, name string, level logging.Level) handler {
	if name == "" {
		name = string(kind)
	}
	return handler{
		kind:      kind,
		name:      name,
		level:     level,
		formatter: logging.NewLineFormatter(),
	}
}

func (h *handler) Kind() Kind           { return h.kind }
func (h *handler) Name() string         { return h.name }
func (h *handler) Level() logging.Level { return h.level }

func (h *handler) Accepts(level logging.Level) bool {
	return level >= h.level
}

func (h *handler) SetFormatter(f logging.Formatter) {
	if f != nil {
		h.formatter = f
	}
}

func (h *handler) PushProcessor(p logging.Processor) {
	h.processors = append(h.processors, p)
}

func (h *handler) process(rec logging.Record) logging.Record {
	for _, p := range h.processors {
		rec = p.Process(rec)
	}
	return rec
}

func (h *handler) render(rec logging.Record) string {
	return h.formatter.Format(h.process(rec))
}

// handleEach delivers a batch one record at a time and returns the first error.
func handleEach(ctx context.Context, s Sink, recs []logging.Record) error {
	var first error
	for _, rec := range recs {
		if !s.Accepts(rec.Level) {
			continue
		}
		if err := s.Handle(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
