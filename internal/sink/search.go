package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/psantana5/adapter-skeleton/pkg/logging"
)

// SearchDocument is the document indexed for a delivery.
type SearchDocument struct {
	Timestamp string `json:"@timestamp"`
	Status    string `json:"status"`
	Company   string `json:"company"`
	Adapter   string `json:"adapter"`
	Message   string `json:"message"`
	RunID     string `json:"run_id,omitempty"`
}

// Search buffers records and indexes them as one aggregated document
// when closed.
type Search struct {
	handler
	host     string
	user     string
	password string
	client   *http.Client
	ctx      logging.Context
	runID    string
	timeout  time.Duration

	mu     sync.Mutex
	buffer []logging.Record
}

// SearchConfig configures a search-index sink
type SearchConfig struct {
	Host      string
	User      string
	Password  string
	Level     logging.Level
	Timeout   time.Duration
	HTTPProxy string
	Verify    bool
}

// NewSearch creates a search-index sink
func NewSearch(name string, env Env, cfg SearchConfig) (*Search, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Password == "" {
		return nil, fmt.Errorf("search index requires host, user and password")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	client, err := newHTTPClient(cfg.Timeout, cfg.HTTPProxy, cfg.Verify)
	if err != nil {
		return nil, err
	}

	return &Search{
		handler:  newHandler(KindSearch, name, cfg.Level),
		host:     cfg.Host,
		user:     cfg.User,
		password: cfg.Password,
		client:   client,
		ctx:      env.Context,
		runID:    env.RunID,
		timeout:  cfg.Timeout,
	}, nil
}

func (s *Search) Handle(_ context.Context, rec logging.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = append(s.buffer, rec)
	return nil
}

// HandleBatch indexes the records immediately as one document.
func (s *Search) HandleBatch(ctx context.Context, recs []logging.Record) error {
	accepted := make([]logging.Record, 0, len(recs))
	for _, rec := range recs {
		if s.Accepts(rec.Level) {
			accepted = append(accepted, rec)
		}
	}
	if len(accepted) == 0 {
		return nil
	}
	return s.index(ctx, s.aggregate(accepted))
}

// Close flushes the buffer.
func (s *Search) Close() error {
	s.mu.Lock()
	recs := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	if len(recs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.index(ctx, s.aggregate(recs))
}

// aggregate renders each record on its own line. The document takes the
// level and time of the last record.
func (s *Search) aggregate(recs []logging.Record) SearchDocument {
	var sb strings.Builder
	for _, rec := range recs {
		sb.WriteString(s.render(rec))
		sb.WriteString("\n")
	}

	last := recs[len(recs)-1]
	status := "success"
	if last.Level >= logging.ERROR {
		status = "error"
	}
	return SearchDocument{
		Timestamp: last.Time.Format(logging.DateTimeLayout),
		Status:    status,
		Company:   s.ctx.Company,
		Adapter:   s.ctx.Name,
		Message:   sb.String(),
		RunID:     s.runID,
	}
}

type searchResponse struct {
	Error  json.RawMessage `json:"error"`
	Status int             `json:"status"`
}

func (s *Search) index(ctx context.Context, doc SearchDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode index document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create index request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.user, s.password)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("index request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read index response: %w", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("can not parse index response (HTTP %d): %s", resp.StatusCode, truncate(string(body), maxErrorBody))
	}
	if len(parsed.Error) > 0 && string(parsed.Error) != "null" {
		return fmt.Errorf("error from index: status %d: %s", parsed.Status, truncate(string(parsed.Error), maxErrorBody))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("error from index: HTTP %d", resp.StatusCode)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var searchFactory = Factory{
	Kind:        KindSearch,
	Aliases:     []string{"search", "elastic", "ElasticHandler", "elasticsearch"},
	Description: "Indexes buffered lines as one document on close",
	Batch:       true,
	Params: []Param{
		{Name: "host", Aliases: []string{"url"}, Required: true},
		{Name: "user", Aliases: []string{"login", "username"}, Required: true},
		{Name: "password", Required: true},
		{Name: "level", Default: "debug"},
		{Name: "timeout", Default: 15},
		{Name: "httpProxy", Aliases: []string{"http_proxy"}, Default: ""},
		{Name: "verify", Default: false},
	},
	New: func(env Env, name string, args Args) (Sink, error) {
		return NewSearch(name, env, SearchConfig{
			Host:      args.String("host"),
			User:      args.String("user"),
			Password:  args.String("password"),
			Level:     args.Level("level"),
			Timeout:   args.Duration("timeout"),
			HTTPProxy: args.String("httpProxy"),
			Verify:    args.Bool("verify"),
		})
	},
}
