package invoke

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/psantana5/adapter-skeleton/internal/failure"
)

// Params are the per-invocation parameters of a task.
type Params map[string]interface{}

func (p Params) String(key string) string { return cast.ToString(p[key]) }
func (p Params) Int(key string) int       { return cast.ToInt(p[key]) }
func (p Params) Bool(key string) bool     { return cast.ToBool(p[key]) }

// StringMap returns the params as a plain map.
func (p Params) StringMap() map[string]interface{} {
	return map[string]interface{}(p)
}

// Result is the output of a task, tagged with the task that produced it.
// The zero Result is passed to the first task.
type Result struct {
	Producer string
	Value    interface{}
}

// Empty reports whether no task produced the result.
func (r Result) Empty() bool {
	return r.Producer == "" && r.Value == nil
}

// Task is a unit of work in the chain.
type Task interface {
	Name() string
	Invoke(ctx context.Context, prior Result, params Params) (Result, error)
}

// Func adapts a function to Task.
type Func struct {
	name string
	fn   func(ctx context.Context, prior Result, params Params) (interface{}, error)
}

// NewTask wraps fn as a task named name.
func NewTask(name string, fn func(ctx context.Context, prior Result, params Params) (interface{}, error)) *Func {
	return &Func{name: name, fn: fn}
}

func (f *Func) Name() string { return f.name }

func (f *Func) Invoke(ctx context.Context, prior Result, params Params) (Result, error) {
	v, err := f.fn(ctx, prior, params)
	if err != nil {
		return Result{}, err
	}
	return Result{Producer: f.name, Value: v}, nil
}

// Typed adapts a function with a statically typed input. A prior result
// of another type fails the invocation; the empty result is passed as the
// zero value of In.
func Typed[In, Out any](name string, fn func(ctx context.Context, prior In, params Params) (Out, error)) Task {
	return NewTask(name, func(ctx context.Context, prior Result, params Params) (interface{}, error) {
		var in In
		if prior.Value != nil {
			v, ok := prior.Value.(In)
			if !ok {
				return nil, failure.Newf(failure.KindRuntime, "invoke "+name,
					"expected %T from previous task, got %T from %s", in, prior.Value, prior.Producer)
			}
			in = v
		}
		return fn(ctx, in, params)
	})
}

func (r Result) String() string {
	if r.Empty() {
		return "<none>"
	}
	return fmt.Sprintf("%s: %v", r.Producer, r.Value)
}
