package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/psantana5/adapter-skeleton/internal/failure"
	"github.com/psantana5/adapter-skeleton/internal/fault"
)

func load(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	return Load(v)
}

// arg looks a key up case-insensitively; viper lowercases nested keys.
func arg(args map[string]interface{}, key string) interface{} {
	for k, v := range args {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t, "name: orders\ncompany: acme\n")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Type != "adapter" {
		t.Errorf("Type = %q", cfg.Type)
	}
	if cfg.Fault.MemoryReserve != fault.DefaultReserveSize {
		t.Errorf("MemoryReserve = %d", cfg.Fault.MemoryReserve)
	}
	if cfg.Fault.MemoryPoll != time.Second {
		t.Errorf("MemoryPoll = %v", cfg.Fault.MemoryPoll)
	}
	if cfg.HealthCheck.Timeout != 5*time.Second || !cfg.HealthCheck.Verify {
		t.Errorf("HealthCheck = %+v", cfg.HealthCheck)
	}
	if s, _ := cfg.Threshold(); s != fault.SeverityAll {
		t.Errorf("Threshold = %v", s)
	}
	if len(cfg.Handlers) != 0 || len(cfg.Tasks) != 0 {
		t.Errorf("Expected no handlers or tasks, got %v / %v", cfg.Handlers, cfg.Tasks)
	}
	ctx := cfg.Context()
	if ctx.Company != "acme" || ctx.Type != "adapter" || ctx.Name != "orders" {
		t.Errorf("Context = %+v", ctx)
	}
}

func TestLoadRequiresIdentity(t *testing.T) {
	tests := []struct {
		yaml string
		want string
	}{
		{"company: acme\n", "application must have name"},
		{"name: orders\n", "application must have company"},
		{"name: orders\ncompany: acme\nfault:\n  report: [loud]\n", "unknown severity"},
	}

	for _, tt := range tests {
		_, err := load(t, tt.yaml)
		if !failure.Is(err, failure.KindConfiguration) || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("Expected %q configuration error, got %v", tt.want, err)
		}
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("APPLICATION_NAME", "from-env")
	t.Setenv("APPLICATION_DEBUG", "1")
	t.Setenv("HEALTH_CHECK_IO_UID", "abc")

	cfg, err := load(t, "name: orders\ncompany: acme\n")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Name != "from-env" || !cfg.Debug || cfg.HealthCheck.UID != "abc" {
		t.Errorf("Env not applied: %+v", cfg)
	}
}

func TestTaskShapes(t *testing.T) {
	cfg, err := load(t, `
name: orders
company: acme
tasks:
  - echo
  - id: fail
    params:
      message: boom
  - sleep:
      duration: 1s
`)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Tasks) != 3 {
		t.Fatalf("Expected 3 tasks, got %v", cfg.Tasks)
	}
	if cfg.Tasks[0].ID != "echo" || len(cfg.Tasks[0].Params) != 0 {
		t.Errorf("Task 0 = %+v", cfg.Tasks[0])
	}
	if cfg.Tasks[1].ID != "fail" || cfg.Tasks[1].Params.String("message") != "boom" {
		t.Errorf("Task 1 = %+v", cfg.Tasks[1])
	}
	if cfg.Tasks[2].ID != "sleep" || cfg.Tasks[2].Params.String("duration") != "1s" {
		t.Errorf("Task 2 = %+v", cfg.Tasks[2])
	}
}

func TestTasksMappingRejected(t *testing.T) {
	_, err := load(t, "name: orders\ncompany: acme\ntasks:\n  echo: {}\n")
	if !failure.Is(err, failure.KindConfiguration) {
		t.Errorf("Expected configuration error for unordered tasks, got %v", err)
	}
}

func TestHandlersListForm(t *testing.T) {
	cfg, err := load(t, `
name: orders
company: acme
logger:
  handlers:
    - kind: relay
      name: chat
      args:
        host: http://relay
        botId: bot
        chatId: chat
      processors: [stacktraceless]
    - kind: heartbeat
      baseDomain: http://hc
      adapterId: abc
      level: error
`)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Handlers) != 2 {
		t.Fatalf("Expected 2 handlers, got %v", cfg.Handlers)
	}
	relay := cfg.Handlers[0]
	if relay.Kind != "relay" || relay.Name != "chat" || arg(relay.Args, "botId") != "bot" || relay.Processors[0] != "stacktraceless" {
		t.Errorf("Relay handler = %+v", relay)
	}
	hb := cfg.Handlers[1]
	if hb.Kind != "heartbeat" || arg(hb.Args, "level") != "error" || arg(hb.Args, "adapterId") != "abc" {
		t.Errorf("Heartbeat handler = %+v", hb)
	}
}

func TestHandlersFlatForm(t *testing.T) {
	cfg, err := load(t, `
name: orders
company: acme
logger:
  handlers: elastic
  config:
    elastic:
      host: http://index
      user: u
      password: p
      options:
        proxy: http://squid:3128
        timeout: 3
`)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Handlers) != 1 {
		t.Fatalf("Expected 1 handler, got %v", cfg.Handlers)
	}
	h := cfg.Handlers[0]
	if h.Kind != "elastic" || h.Name != "elastic" {
		t.Errorf("Handler = %+v", h)
	}
	if arg(h.Args, "httpProxy") != "http://squid:3128" || arg(h.Args, "timeout") != 3 {
		t.Errorf("Options not flattened: %v", h.Args)
	}
	if _, ok := h.Args["options"]; ok {
		t.Error("options key should be removed")
	}
}

func TestHandlersReflectionForm(t *testing.T) {
	cfg, err := load(t, `
name: orders
company: acme
logger:
  handlers: telegram_proxy
  config:
    - __name__: telegram_proxy
      __class__: Adapter\Log\ProxyTelegramHandler
      __processors__:
        - __class__: Adapter\Log\StacktracelessProcessor
      proxy: http://relay
      botToken: bot
      chatId: chat
    - __name__: unused
      __class__: ElasticHandler
`)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Handlers) != 1 {
		t.Fatalf("Expected 1 handler, got %v", cfg.Handlers)
	}
	h := cfg.Handlers[0]
	if h.Name != "telegram_proxy" || !strings.HasSuffix(h.Kind, "ProxyTelegramHandler") {
		t.Errorf("Handler = %+v", h)
	}
	if len(h.Processors) != 1 || !strings.HasSuffix(h.Processors[0], "StacktracelessProcessor") {
		t.Errorf("Processors = %v", h.Processors)
	}
	if arg(h.Args, "proxy") != "http://relay" {
		t.Errorf("Args = %v", h.Args)
	}
}

func TestHandlersEnvForm(t *testing.T) {
	t.Setenv("LOGGER_HANDLERS", "telegram_proxy")
	t.Setenv("LOGGER_TELEGRAM_PROXY_ADDRESS", "http://relay")
	t.Setenv("LOGGER_TELEGRAM_PROXY_BOT_ID", "bot")
	t.Setenv("LOGGER_TELEGRAM_PROXY_CHAT_ID", "chat")
	t.Setenv("CURL_CONNECT_TIMEOUT", "7")

	cfg, err := load(t, "name: orders\ncompany: acme\n")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Handlers) != 1 {
		t.Fatalf("Expected 1 handler, got %v", cfg.Handlers)
	}
	h := cfg.Handlers[0]
	if h.Kind != "proxy-relay" || h.Args["host"] != "http://relay" || h.Args["timeout"] != "7" {
		t.Errorf("Handler = %+v", h)
	}
	if len(h.Processors) != 1 || h.Processors[0] != "stacktraceless" {
		t.Errorf("Processors = %v", h.Processors)
	}
}

func TestHandlersEnvFormMissingVariable(t *testing.T) {
	t.Setenv("LOGGER_HANDLERS", "telegram_proxy")
	t.Setenv("LOGGER_TELEGRAM_PROXY_ADDRESS", "http://relay")
	t.Setenv("LOGGER_TELEGRAM_PROXY_BOT_ID", "")

	_, err := load(t, "name: orders\ncompany: acme\n")
	if err == nil || !strings.Contains(err.Error(), "environment LOGGER_TELEGRAM_PROXY_BOT_ID not exist") {
		t.Errorf("Expected missing environment error, got %v", err)
	}
}

func TestHandlersUnknownName(t *testing.T) {
	_, err := load(t, "name: orders\ncompany: acme\nlogger:\n  handlers: [pager]\n")
	if err == nil || !strings.Contains(err.Error(), "for logger handler [pager] configuration not exists") {
		t.Errorf("Expected missing configuration error, got %v", err)
	}
}

func TestRedacted(t *testing.T) {
	cfg, err := load(t, `
name: orders
company: acme
logger:
  handlers:
    - kind: elastic
      host: http://index
      user: u
      password: secret
`)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	red := cfg.Redacted()
	if arg(red.Handlers[0].Args, "password") != "****" {
		t.Errorf("Password not masked: %v", red.Handlers[0].Args)
	}
	if arg(cfg.Handlers[0].Args, "password") != "secret" {
		t.Error("Redacted must not modify the original")
	}
}
