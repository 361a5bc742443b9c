package tasks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/psantana5/adapter-skeleton/internal/failure"
	"github.com/psantana5/adapter-skeleton/internal/invoke"
	"github.com/psantana5/adapter-skeleton/internal/registry"
)

// Builtin describes a task shipped with the adapter.
type Builtin struct {
	ID          string
	Description string
	New         func() invoke.Task
}

var builtins = []Builtin{
	{
		ID:          "echo",
		Description: "Merges its params over the previous map result",
		New:         func() invoke.Task { return invoke.Typed("echo", echo) },
	},
	{
		ID:          "fail",
		Description: "Returns an error (params: message, default \"Alert!\")",
		New:         func() invoke.Task { return invoke.NewTask("fail", fail) },
	},
	{
		ID:          "panic",
		Description: "Panics (params: message)",
		New:         func() invoke.Task { return invoke.NewTask("panic", panicTask) },
	},
	{
		ID:          "sleep",
		Description: "Waits for params.duration, passing the previous result through",
		New:         func() invoke.Task { return invoke.NewTask("sleep", sleep) },
	},
}

// Builtins lists the shipped tasks by ID.
func Builtins() []Builtin {
	out := append([]Builtin(nil), builtins...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Register adds every built-in task to the container.
func Register(c *registry.Container) {
	for _, b := range builtins {
		b := b
		c.Register(b.ID, func() (interface{}, error) { return b.New(), nil })
	}
}

func echo(_ context.Context, prior map[string]interface{}, params invoke.Params) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(prior)+len(params))
	for k, v := range prior {
		out[k] = v
	}
	for k, v := range params {
		out[k] = v
	}
	return out, nil
}

func fail(_ context.Context, _ invoke.Result, params invoke.Params) (interface{}, error) {
	msg := params.String("message")
	if msg == "" {
		msg = "Alert!"
	}
	return nil, failure.New(failure.KindRuntime, "fail", msg)
}

func panicTask(_ context.Context, _ invoke.Result, params invoke.Params) (interface{}, error) {
	msg := params.String("message")
	if msg == "" {
		msg = "panic task invoked"
	}
	panic(msg)
}

func sleep(ctx context.Context, prior invoke.Result, params invoke.Params) (interface{}, error) {
	d, err := time.ParseDuration(params.String("duration"))
	if err != nil {
		return nil, fmt.Errorf("invalid duration %q: %w", params.String("duration"), err)
	}
	select {
	case <-time.After(d):
		return prior.Value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
