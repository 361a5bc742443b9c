package sink

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/psantana5/adapter-skeleton/internal/failure"
	"github.com/psantana5/adapter-skeleton/pkg/logging"
)

func testEnv() Env {
	return Env{
		Context: logging.Context{Company: "acme", Type: "import", Name: "orders"},
		RunID:   "run-1",
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	}
}

func TestBuildEmpty(t *testing.T) {
	sinks, err := NewBuilder(Builtin(), testEnv()).Build(nil)
	if err != nil {
		t.Fatalf("Build(nil) failed: %v", err)
	}
	if len(sinks) != 0 {
		t.Errorf("Expected no sinks, got %d", len(sinks))
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		specs []HandlerSpec
		want  string
	}{
		{
			name:  "unknown kind",
			specs: []HandlerSpec{{Kind: "pager"}},
			want:  `unknown sink kind "pager"`,
		},
		{
			name:  "missing required",
			specs: []HandlerSpec{{Kind: "relay", Args: map[string]interface{}{"host": "http://relay", "botId": "b"}}},
			want:  `missing required parameter "chatId"`,
		},
		{
			name:  "empty required",
			specs: []HandlerSpec{{Kind: "relay", Args: map[string]interface{}{"host": "http://relay", "botId": "b", "chatId": ""}}},
			want:  `missing required parameter "chatId"`,
		},
		{
			name: "unknown processor",
			specs: []HandlerSpec{{
				Kind:       "heartbeat",
				Args:       map[string]interface{}{"baseDomain": "http://hc", "adapterId": "x"},
				Processors: []string{"uppercase"},
			}},
			want: `unknown processor "uppercase"`,
		},
		{
			name: "duplicate kind",
			specs: []HandlerSpec{
				{Kind: "heartbeat", Args: map[string]interface{}{"baseDomain": "http://hc", "adapterId": "x"}},
				{Kind: "health_checker", Name: "second", Args: map[string]interface{}{"baseDomain": "http://hc", "adapterId": "y"}},
			},
			want: "already configured",
		},
		{
			name: "invalid mail address",
			specs: []HandlerSpec{{Kind: "mail", Args: map[string]interface{}{
				"host": "smtp", "user": "u", "password": "p", "title": "t", "from": "not-an-address", "to": "ops@example.com",
			}}},
			want: "invalid sender address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder(Builtin(), testEnv()).Build(tt.specs)
			if err == nil {
				t.Fatal("Expected build error")
			}
			if !failure.Is(err, failure.KindConfiguration) {
				t.Errorf("Expected configuration error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestBuildDefaultsAndAliases(t *testing.T) {
	specs := []HandlerSpec{
		{
			Kind: `Adapter\Log\ProxyTelegramHandler`,
			Name: "telegram_proxy",
			Args: map[string]interface{}{"proxy": "http://relay/", "botToken": "bot", "CHATID": "chat"},
		},
		{
			Kind: "health_checker",
			Args: map[string]interface{}{"host": "http://hc", "uid": "abc", "level": "error", "timeout": "3"},
		},
	}

	sinks, err := NewBuilder(Builtin(), testEnv()).Build(specs)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(sinks) != 2 {
		t.Fatalf("Expected 2 sinks, got %d", len(sinks))
	}

	relay, ok := sinks[0].(*Relay)
	if !ok {
		t.Fatalf("Expected *Relay, got %T", sinks[0])
	}
	if relay.Name() != "telegram_proxy" {
		t.Errorf("Relay name = %q", relay.Name())
	}
	if relay.Endpoint() != "http://relay/bot/chat" {
		t.Errorf("Relay endpoint = %q", relay.Endpoint())
	}
	if relay.Level() != logging.INFO {
		t.Errorf("Relay default level = %v, want INFO", relay.Level())
	}
	if relay.client.Timeout != 10*time.Second {
		t.Errorf("Relay default timeout = %v", relay.client.Timeout)
	}
	if len(relay.processors) != 1 {
		t.Errorf("Relay should get the default stacktraceless processor, has %d", len(relay.processors))
	}

	hb := sinks[1].(*Heartbeat)
	if hb.URL() != "http://hc/ping/abc" {
		t.Errorf("Heartbeat URL = %q", hb.URL())
	}
	if hb.Level() != logging.ERROR || hb.Accepts(logging.WARN) {
		t.Errorf("Heartbeat level not applied: %v", hb.Level())
	}
	if hb.client.Timeout != 3*time.Second {
		t.Errorf("Heartbeat timeout = %v", hb.client.Timeout)
	}
}

func TestBuildConsoleStream(t *testing.T) {
	env := testEnv()
	sinks, err := NewBuilder(Builtin(), env).Build([]HandlerSpec{
		{Kind: "stream", Args: map[string]interface{}{"stream": "stderr", "level": "warning"}},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	rec := logging.Record{Level: logging.WARN, Time: time.Unix(0, 0).UTC(), Message: "[a][b][c][d][-]"}
	if err := sinks[0].Handle(context.Background(), rec); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if got := env.Stderr.(*bytes.Buffer).String(); got != "[warning][1970-01-01T00:00:00Z][a][b][c][d][-]\n" {
		t.Errorf("Unexpected stderr output %q", got)
	}
	if env.Stdout.(*bytes.Buffer).Len() != 0 {
		t.Error("Nothing should be written to stdout")
	}
}

func TestFactoryDescribe(t *testing.T) {
	f, ok := Builtin().Lookup("elastic")
	if !ok {
		t.Fatal("elastic alias not registered")
	}
	required, optional := f.Describe()
	if strings.Join(required, ",") != "host,user,password" {
		t.Errorf("Required = %v", required)
	}
	if !strings.Contains(strings.Join(optional, ","), "timeout=15") {
		t.Errorf("Optional = %v", optional)
	}
}

func TestBuildByCanonicalKind(t *testing.T) {
	tests := []struct {
		kind string
		args map[string]interface{}
		want Kind
	}{
		{"console", nil, KindConsole},
		{"proxy-relay", map[string]interface{}{"host": "http://relay", "botId": "b", "chatId": "c"}, KindRelay},
		{"search-index", map[string]interface{}{"host": "http://index", "user": "u", "password": "p"}, KindSearch},
		{"mail", map[string]interface{}{
			"host": "smtp", "user": "u", "password": "p", "title": "t", "from": "adapter@example.com", "to": "ops@example.com",
		}, KindMail},
		{"heartbeat", map[string]interface{}{"baseDomain": "http://hc", "adapterId": "x"}, KindHeartbeat},
		{"relay", map[string]interface{}{"host": "http://relay", "botId": "b", "chatId": "c"}, KindRelay},
		{"search", map[string]interface{}{"host": "http://index", "user": "u", "password": "p"}, KindSearch},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			sinks, err := NewBuilder(Builtin(), testEnv()).Build([]HandlerSpec{{Kind: tt.kind, Args: tt.args}})
			if err != nil {
				t.Fatalf("Build(%q) failed: %v", tt.kind, err)
			}
			defer sinks[0].Close()
			if sinks[0].Kind() != tt.want {
				t.Errorf("Kind = %q, want %q", sinks[0].Kind(), tt.want)
			}
			if sinks[0].Name() != string(tt.want) {
				t.Errorf("Default name = %q, want %q", sinks[0].Name(), tt.want)
			}
		})
	}
}
