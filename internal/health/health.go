package health

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/psantana5/adapter-skeleton/internal/failure"
	"github.com/psantana5/adapter-skeleton/internal/metrics"
)

// DefaultTimeout bounds one ping.
const DefaultTimeout = 5 * time.Second

const maxBody = 1024

// Outcome classifies a ping response.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotFound
	OutcomeUnreachable
	OutcomeMalformed
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not-found"
	case OutcomeUnreachable:
		return "unreachable"
	case OutcomeMalformed:
		return "malformed-response"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

var fold = cases.Fold()

// Classify maps a ping response to an outcome. The body decides first:
// "ok" and "not found" are recognized case-insensitively whatever the
// status. Otherwise a transport error or non-2xx status is unreachable.
func Classify(status int, body string, err error) Outcome {
	if err != nil {
		return OutcomeUnreachable
	}
	switch fold.String(strings.TrimSpace(body)) {
	case "ok":
		return OutcomeOK
	case "not found":
		return OutcomeNotFound
	}
	if status < 200 || status >= 300 {
		return OutcomeUnreachable
	}
	return OutcomeMalformed
}

// Reporter signals run liveness to an external monitor. Neither method
// returns an error; problems are reported as warnings.
type Reporter interface {
	Success(ctx context.Context) Outcome
	Failure(ctx context.Context) Outcome
}

// WarnFunc receives human-readable warnings.
type WarnFunc func(message string)

// Config configures the reporter
type Config struct {
	UID     string        `json:"uid" yaml:"uid"`
	Host    string        `json:"host" yaml:"host"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	Verify  bool          `json:"verify" yaml:"verify"`
}

// Enabled reports whether a UID is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.UID) != ""
}

// Checker pings {host}/ping/{uid} and {host}/ping/{uid}/fail.
type Checker struct {
	uid     string
	host    string
	client  *http.Client
	warn    WarnFunc
	metrics *metrics.Metrics
}

// Option configures a Checker
type Option func(*Checker)

// WithMetrics counts outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Checker) { c.metrics = m }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) { c.client = client }
}

// New creates a checker. A UID without a host is a configuration error.
func New(cfg Config, warn WarnFunc, opts ...Option) (*Checker, error) {
	uid := strings.TrimSpace(cfg.UID)
	if uid == "" {
		return nil, failure.Configuration("health check", "uid is required")
	}
	host := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		return nil, failure.Configuration("health check", "host is required when uid %s is set", uid)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if warn == nil {
		warn = func(string) {}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !cfg.Verify}

	c := &Checker{
		uid:    uid,
		host:   host,
		client: &http.Client{Timeout: timeout, Transport: transport},
		warn:   warn,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FromConfig returns a Checker, or a Null reporter when no UID is set.
func FromConfig(cfg Config, warn WarnFunc, opts ...Option) (Reporter, error) {
	if !cfg.Enabled() {
		return Null{}, nil
	}
	return New(cfg, warn, opts...)
}

// URL returns the success ping URL.
func (c *Checker) URL() string {
	return fmt.Sprintf("%s/ping/%s", c.host, c.uid)
}

func (c *Checker) Success(ctx context.Context) Outcome {
	return c.ping(ctx, c.URL())
}

func (c *Checker) Failure(ctx context.Context) Outcome {
	return c.ping(ctx, c.URL()+"/fail")
}

func (c *Checker) ping(ctx context.Context, url string) Outcome {
	status, body, err := c.get(ctx, url)
	outcome := Classify(status, body, err)
	c.metrics.Heartbeat(outcome.String())

	switch outcome {
	case OutcomeOK:
	case OutcomeNotFound:
		c.warn(fmt.Sprintf("UID %s not found in service. Check adapter UID in %s", c.uid, c.host))
	default:
		c.warn(fmt.Sprintf("Unable get %s", url))
	}
	return outcome
}

func (c *Checker) get(ctx context.Context, url string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(body), nil
}

// Null is the reporter used when liveness reporting is not configured.
type Null struct{}

func (Null) Success(context.Context) Outcome { return OutcomeSkipped }
func (Null) Failure(context.Context) Outcome { return OutcomeSkipped }
