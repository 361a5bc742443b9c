package invoke

import (
	"context"
	"fmt"
	"time"

	"github.com/psantana5/adapter-skeleton/internal/failure"
	"github.com/psantana5/adapter-skeleton/internal/metrics"
)

// Descriptor names a task and the parameters it is invoked with.
type Descriptor struct {
	ID     string `json:"id" yaml:"id"`
	Params Params `json:"params,omitempty" yaml:"params,omitempty"`
}

// Resolver turns an identifier into a component.
type Resolver interface {
	Resolve(id string) (interface{}, error)
}

// Profiler receives start and stop markers around each task.
type Profiler interface {
	Profile(message string)
}

// Chain runs tasks in order, threading each result into the next task.
type Chain struct {
	resolver Resolver
	profiler Profiler
	metrics  *metrics.Metrics
}

// Option configures a Chain
type Option func(*Chain)

// WithMetrics records task durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Chain) { c.metrics = m }
}

// NewChain creates a chain
func NewChain(resolver Resolver, profiler Profiler, opts ...Option) *Chain {
	c := &Chain{resolver: resolver, profiler: profiler}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run resolves and invokes each descriptor in order. The first error
// stops the chain and is returned unchanged; later tasks are not resolved.
func (c *Chain) Run(ctx context.Context, tasks []Descriptor) (Result, error) {
	var prev Result
	for _, d := range tasks {
		if err := ctx.Err(); err != nil {
			return prev, err
		}

		task, err := c.resolve(d.ID)
		if err != nil {
			return prev, err
		}

		params := d.Params
		if params == nil {
			params = Params{}
		}

		c.profile(fmt.Sprintf("Starting %s task...", task.Name()))
		start := time.Now()
		out, err := task.Invoke(ctx, prev, params)
		c.metrics.ObserveTask(d.ID, time.Since(start))
		if err != nil {
			return prev, err
		}
		c.profile(fmt.Sprintf("Stopping %s task...", task.Name()))

		if out.Producer == "" {
			out.Producer = task.Name()
		}
		prev = out
	}
	return prev, nil
}

func (c *Chain) resolve(id string) (Task, error) {
	component, err := c.resolver.Resolve(id)
	if err != nil {
		return nil, failure.Wrap(failure.KindResolution, "resolve task", err, id)
	}
	task, ok := component.(Task)
	if !ok {
		return nil, failure.Newf(failure.KindResolution, "resolve task", "%s (%T) does not implement the task capability", id, component)
	}
	return task, nil
}

func (c *Chain) profile(message string) {
	if c.profiler != nil {
		c.profiler.Profile(message)
	}
}
