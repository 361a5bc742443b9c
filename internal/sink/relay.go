package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/psantana5/adapter-skeleton/pkg/logging"
)

// RelayMessageKey is the JSON key the chat relay expects the text under.
const RelayMessageKey = `¯\_(ツ)_/¯ `

// Relay posts every accepted record to a chat relay proxy at
// {host}/{botId}/{chatId}.
type Relay struct {
	handler
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

// RelayConfig configures a relay sink
type RelayConfig struct {
	Host      string
	BotID     string
	ChatID    string
	Level     logging.Level
	Timeout   time.Duration
	HTTPProxy string
	Verify    bool
	// Rate caps sends per second; zero means unlimited.
	Rate float64
}

// NewRelay creates a relay sink
func NewRelay(name string, cfg RelayConfig) (*Relay, error) {
	if cfg.Host == "" || cfg.BotID == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("relay requires host, bot id and chat id")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client, err := newHTTPClient(cfg.Timeout, cfg.HTTPProxy, cfg.Verify)
	if err != nil {
		return nil, err
	}

	r := &Relay{
		handler:  newHandler(KindRelay, name, cfg.Level),
		endpoint: joinURL(cfg.Host, cfg.BotID, cfg.ChatID),
		client:   client,
	}
	if cfg.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	return r, nil
}

// Endpoint returns the URL records are posted to.
func (r *Relay) Endpoint() string { return r.endpoint }

func (r *Relay) Handle(ctx context.Context, rec logging.Record) error {
	return r.send(ctx, r.render(rec))
}

func (r *Relay) HandleBatch(ctx context.Context, recs []logging.Record) error {
	return handleEach(ctx, r, recs)
}

func (r *Relay) Close() error { return nil }

func (r *Relay) send(ctx context.Context, text string) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("relay rate limit: %w", err)
		}
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]string{RelayMessageKey: text}); err != nil {
		return fmt.Errorf("failed to encode relay message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, &body)
	if err != nil {
		return fmt.Errorf("failed to create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return fmt.Errorf("relay rejected message: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

var relayFactory = Factory{
	Kind:        KindRelay,
	Aliases:     []string{"relay", "telegram_proxy", "ProxyTelegramHandler", "telegram"},
	Description: "Posts each line to a chat relay proxy",
	Params: []Param{
		{Name: "host", Aliases: []string{"proxy", "address"}, Required: true},
		{Name: "botId", Aliases: []string{"botToken", "bot_id", "bot"}, Required: true},
		{Name: "chatId", Aliases: []string{"chat_id", "chat"}, Required: true},
		{Name: "level", Default: "info"},
		{Name: "timeout", Default: 10},
		{Name: "httpProxy", Aliases: []string{"http_proxy"}, Default: ""},
		{Name: "verify", Default: true},
		{Name: "rate", Default: 0},
	},
	Processors: []string{"stacktraceless"},
	New: func(env Env, name string, args Args) (Sink, error) {
		return NewRelay(name, RelayConfig{
			Host:      args.String("host"),
			BotID:     args.String("botId"),
			ChatID:    args.String("chatId"),
			Level:     args.Level("level"),
			Timeout:   args.Duration("timeout"),
			HTTPProxy: args.String("httpProxy"),
			Verify:    args.Bool("verify"),
			Rate:      args.Float("rate"),
		})
	},
}
