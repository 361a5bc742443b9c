package failure

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := Configuration("build", "unknown sink kind %q", "pager")
	if !Is(err, KindConfiguration) {
		t.Errorf("Expected configuration kind, got %v", KindOf(err))
	}
	if Is(err, KindDelivery) {
		t.Error("Configuration error reported as delivery")
	}

	wrapped := fmt.Errorf("startup: %w", err)
	if KindOf(wrapped) != KindConfiguration {
		t.Error("Kind lost through fmt.Errorf wrapping")
	}

	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("Plain errors should have unknown kind")
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindDelivery, "deliver", cause, "relay")

	if got := err.Error(); got != "deliver: relay: connection refused" {
		t.Errorf("Unexpected message %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("Wrapped cause not reachable with errors.Is")
	}
	if Wrap(KindDelivery, "deliver", nil, "relay") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestStack(t *testing.T) {
	err := New(KindRuntime, "invoke", "Alert!")

	st, ok := Stack(err)
	if !ok || len(st) == 0 {
		t.Fatal("Expected a captured stack trace")
	}
	if trace := fmt.Sprintf("%+v", st); !strings.Contains(trace, "failure_test.go") {
		t.Errorf("Stack trace does not reference the caller:\n%s", trace)
	}

	if _, ok := Stack(errors.New("plain")); ok {
		t.Error("Plain errors should have no stack")
	}
}
