package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/psantana5/adapter-skeleton/pkg/logging"
)

// Console writes one line per record to a stream. Write errors are
// swallowed; the console is the channel of last resort.
type Console struct {
	handler
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a console sink writing to w
func NewConsole(w io.Writer, level logging.Level) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{
		handler: newHandler(KindConsole, "", level),
		w:       w,
	}
}

func (c *Console) Handle(_ context.Context, rec logging.Record) error {
	line := c.render(rec)

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, line)
	return nil
}

func (c *Console) HandleBatch(ctx context.Context, recs []logging.Record) error {
	return handleEach(ctx, c, recs)
}

func (c *Console) Close() error { return nil }

var consoleFactory = Factory{
	Kind:        KindConsole,
	Aliases:     []string{"stream", "StreamHandler", "stdout"},
	Description: "Writes lines to stdout or stderr",
	Params: []Param{
		{Name: "stream", Default: "stdout"},
		{Name: "level", Default: "debug"},
	},
	New: func(env Env, name string, args Args) (Sink, error) {
		var w io.Writer
		switch stream := strings.ToLower(args.String("stream")); stream {
		case "stdout":
			w = env.Stdout
		case "stderr":
			w = env.Stderr
			if w == nil {
				w = os.Stderr
			}
		default:
			return nil, fmt.Errorf("unsupported stream %q", stream)
		}
		c := NewConsole(w, args.Level("level"))
		c.name = name
		return c, nil
	},
}
