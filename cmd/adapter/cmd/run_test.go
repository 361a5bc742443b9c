package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"

	"github.com/psantana5/adapter-skeleton/internal/config"
	"github.com/psantana5/adapter-skeleton/internal/sink"
)

type runResult struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
	exits  []int
}

func runYAML(t *testing.T, yaml string, readErr error) *runResult {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	config.BindEnv(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}

	r := &runResult{}
	runAdapter(v, readErr, runOptions{
		stdout: &r.stdout,
		stderr: &r.stderr,
		exit:   func(code int) { r.exits = append(r.exits, code) },
	})
	return r
}

func (r *runResult) exitCode(t *testing.T) int {
	t.Helper()
	if len(r.exits) != 1 {
		t.Fatalf("Expected exactly one exit, got %v", r.exits)
	}
	return r.exits[0]
}

func TestRunSuccess(t *testing.T) {
	r := runYAML(t, `
name: orders
company: acme
debug: true
tasks:
  - echo
  - id: echo
    params:
      greeting: hello
`, nil)

	if code := r.exitCode(t); code != 0 {
		t.Fatalf("Expected exit 0, got %d (stdout %q)", code, r.stdout.String())
	}
	out := r.stdout.String()
	for _, want := range []string{
		"[acme][adapter][orders][Starting echo task...][-]",
		"[Stopping echo task...]",
		"[info]",
		"app successfully completed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected stdout to contain %q, got %q", want, out)
		}
	}
	if r.stderr.Len() != 0 {
		t.Errorf("Expected empty stderr, got %q", r.stderr.String())
	}
}

func TestRunWithoutDebugOmitsProfiling(t *testing.T) {
	r := runYAML(t, "name: orders\ncompany: acme\ntasks: [echo]\n", nil)

	if code := r.exitCode(t); code != 0 {
		t.Fatalf("Expected exit 0, got %d", code)
	}
	if strings.Contains(r.stdout.String(), "Starting echo task") {
		t.Errorf("Profiling messages must be gated on debug: %q", r.stdout.String())
	}
}

func TestRunTaskFailureReportsFault(t *testing.T) {
	var mu sync.Mutex
	var pings []string
	router := mux.NewRouter()
	router.HandleFunc("/ping/{uid}", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		pings = append(pings, "success:"+mux.Vars(r)["uid"])
		mu.Unlock()
		fmt.Fprint(w, "OK")
	})
	router.HandleFunc("/ping/{uid}/fail", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		pings = append(pings, "fail:"+mux.Vars(r)["uid"])
		mu.Unlock()
		fmt.Fprint(w, "OK")
	})
	server := httptest.NewServer(router)
	defer server.Close()

	r := runYAML(t, fmt.Sprintf(`
name: orders
company: acme
tasks:
  - fail
  - echo
healthcheck:
  uid: abc
  host: %s/
`, server.URL), nil)

	if code := r.exitCode(t); code != 1 {
		t.Fatalf("Expected exit 1, got %d", code)
	}
	out := r.stdout.String()
	if !strings.Contains(out, "[error]") || !strings.Contains(out, "Alert!") {
		t.Errorf("Expected fault record on console, got %q", out)
	}
	if strings.Contains(out, "app successfully completed") {
		t.Errorf("Failed run must not log completion: %q", out)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(pings) != 1 || pings[0] != "fail:abc" {
		t.Errorf("Expected one failure ping, got %v", pings)
	}
}

func TestRunPanicIsRecovered(t *testing.T) {
	r := runYAML(t, `
name: orders
company: acme
tasks:
  - id: panic
    params:
      message: exploded
`, nil)

	if code := r.exitCode(t); code != 1 {
		t.Fatalf("Expected exit 1, got %d", code)
	}
	if !strings.Contains(r.stdout.String(), "exploded") {
		t.Errorf("Expected panic message on console, got %q", r.stdout.String())
	}
}

func TestRunUnknownTask(t *testing.T) {
	r := runYAML(t, "name: orders\ncompany: acme\ntasks: [missing]\n", nil)

	if code := r.exitCode(t); code != 1 {
		t.Fatalf("Expected exit 1, got %d", code)
	}
	if !strings.Contains(r.stdout.String(), "missing") {
		t.Errorf("Expected resolution error on console, got %q", r.stdout.String())
	}
}

func TestRunConfigurationErrorsGoToRawChannel(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		readErr error
		want    string
	}{
		{"missing name", "company: acme\n", nil, "application must have name"},
		{"unknown sink", "name: orders\ncompany: acme\nlogger:\n  handlers:\n    - kind: pager\n", nil, "pager"},
		{"unreadable file", "", errors.New("failed to read config adapter.yaml: yaml: line 1"), "failed to read config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runYAML(t, tt.yaml, tt.readErr)
			if code := r.exitCode(t); code != 1 {
				t.Fatalf("Expected exit 1, got %d", code)
			}
			if !strings.Contains(r.stderr.String(), tt.want) {
				t.Errorf("Expected stderr to contain %q, got %q", tt.want, r.stderr.String())
			}
		})
	}
}

func TestRunDeliversToRelay(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	router := mux.NewRouter()
	router.HandleFunc("/{bot}/{chat}", func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		buf.ReadFrom(r.Body)
		mu.Lock()
		bodies = append(bodies, buf.String())
		mu.Unlock()
	}).Methods(http.MethodPost)
	server := httptest.NewServer(router)
	defer server.Close()

	r := runYAML(t, fmt.Sprintf(`
name: orders
company: acme
tasks: [fail]
logger:
  handlers:
    - kind: telegram_proxy
      host: %s
      botId: bot
      chatId: chat
      level: error
`, server.URL), nil)

	if code := r.exitCode(t); code != 1 {
		t.Fatalf("Expected exit 1, got %d", code)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 1 {
		t.Fatalf("Expected one relayed record, got %v", bodies)
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(bodies[0]), &payload); err != nil {
		t.Fatalf("Relay body is not JSON: %v", err)
	}
	line, ok := payload[sink.RelayMessageKey]
	if !ok || !strings.Contains(line, "Alert!") {
		t.Errorf("Unexpected relay body %q", bodies[0])
	}
	// level, time and four message fields: the stacktrace is stripped
	if strings.Count(line, "][") != 5 || !strings.HasSuffix(line, "]") {
		t.Errorf("Expected stacktrace-less line, got %q", line)
	}
}

func TestRunClosesDiagnosticLogOnExit(t *testing.T) {
	var mu sync.Mutex
	var docs int
	router := mux.NewRouter()
	router.HandleFunc("/logs/_doc", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		docs++
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":"cluster unavailable","status":503}`)
	}).Methods(http.MethodPost)
	server := httptest.NewServer(router)
	defer server.Close()

	r := runYAML(t, fmt.Sprintf(`
name: orders
company: acme
tasks: [echo]
logger:
  handlers:
    - kind: search-index
      host: %s/logs/_doc
      user: adapter
      password: secret
`, server.URL), nil)

	if code := r.exitCode(t); code != 0 {
		t.Fatalf("Expected exit 0, got %d", code)
	}

	mu.Lock()
	defer mu.Unlock()
	if docs != 1 {
		t.Fatalf("Expected the buffered lines to be indexed once on exit, got %d", docs)
	}
	out := r.stdout.String()
	if !strings.Contains(out, "shutdown diagnostic log: failed to close diagnostic log") {
		t.Errorf("Expected close failure on console, got %q", out)
	}
	if !strings.Contains(out, "cluster unavailable") {
		t.Errorf("Expected index error detail on console, got %q", out)
	}
}
