package sink

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/psantana5/adapter-skeleton/pkg/logging"
)

// Heartbeat pings {baseDomain}/ping/{adapterId} for every accepted record.
type Heartbeat struct {
	handler
	url    string
	client *http.Client
}

// NewHeartbeat creates a heartbeat sink
func NewHeartbeat(name, baseDomain, adapterID string, level logging.Level, timeout time.Duration, verify bool) (*Heartbeat, error) {
	if baseDomain == "" || adapterID == "" {
		return nil, fmt.Errorf("heartbeat requires base domain and adapter id")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client, err := newHTTPClient(timeout, "", verify)
	if err != nil {
		return nil, err
	}
	return &Heartbeat{
		handler: newHandler(KindHeartbeat, name, level),
		url:     joinURL(baseDomain, "ping", adapterID),
		client:  client,
	}, nil
}

// URL returns the ping URL.
func (h *Heartbeat) URL() string { return h.url }

func (h *Heartbeat) Handle(ctx context.Context, _ logging.Record) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create ping request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return fmt.Errorf("ping rejected: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (h *Heartbeat) HandleBatch(ctx context.Context, recs []logging.Record) error {
	return handleEach(ctx, h, recs)
}

func (h *Heartbeat) Close() error { return nil }

var heartbeatFactory = Factory{
	Kind:        KindHeartbeat,
	Aliases:     []string{"health_checker", "HealthCheckerHandler", "healthcheck"},
	Description: "Pings a liveness endpoint for each record",
	Params: []Param{
		{Name: "baseDomain", Aliases: []string{"host", "base_domain"}, Required: true},
		{Name: "adapterId", Aliases: []string{"uid", "adapter_id", "id"}, Required: true},
		{Name: "level", Default: "info"},
		{Name: "timeout", Default: 10},
		{Name: "verify", Default: true},
	},
	New: func(env Env, name string, args Args) (Sink, error) {
		return NewHeartbeat(name,
			args.String("baseDomain"),
			args.String("adapterId"),
			args.Level("level"),
			args.Duration("timeout"),
			args.Bool("verify"),
		)
	},
}
