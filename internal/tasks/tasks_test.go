package tasks

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/psantana5/adapter-skeleton/internal/failure"
	"github.com/psantana5/adapter-skeleton/internal/invoke"
	"github.com/psantana5/adapter-skeleton/internal/registry"
)

func newChain() *invoke.Chain {
	c := registry.New()
	Register(c)
	return invoke.NewChain(c, nil)
}

func TestEchoMergesParams(t *testing.T) {
	res, err := newChain().Run(context.Background(), []invoke.Descriptor{
		{ID: "echo", Params: invoke.Params{"a": 1, "b": 1}},
		{ID: "echo", Params: invoke.Params{"b": 2}},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	out := res.Value.(map[string]interface{})
	if out["a"] != 1 || out["b"] != 2 {
		t.Errorf("Unexpected echo output %v", out)
	}
	if res.Producer != "echo" {
		t.Errorf("Producer = %q", res.Producer)
	}
}

func TestFailReturnsAlert(t *testing.T) {
	_, err := newChain().Run(context.Background(), []invoke.Descriptor{{ID: "fail"}, {ID: "echo"}})
	if err == nil || !strings.Contains(err.Error(), "Alert!") {
		t.Fatalf("Expected Alert!, got %v", err)
	}
	if !failure.Is(err, failure.KindRuntime) {
		t.Errorf("Expected runtime kind, got %v", failure.KindOf(err))
	}
}

func TestPanicTaskPanics(t *testing.T) {
	defer func() {
		if r := recover(); r != "kaboom" {
			t.Errorf("Expected panic kaboom, got %v", r)
		}
	}()
	newChain().Run(context.Background(), []invoke.Descriptor{{ID: "panic", Params: invoke.Params{"message": "kaboom"}}})
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := newChain().Run(ctx, []invoke.Descriptor{{ID: "sleep", Params: invoke.Params{"duration": "1m"}}})
	if err != context.DeadlineExceeded {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestBuiltinsSorted(t *testing.T) {
	ids := []string{}
	for _, b := range Builtins() {
		ids = append(ids, b.ID)
	}
	if strings.Join(ids, ",") != "echo,fail,panic,sleep" {
		t.Errorf("Builtins = %v", ids)
	}
}
