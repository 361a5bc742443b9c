package sink

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/psantana5/adapter-skeleton/pkg/logging"
)

// MailConfig configures a mail sink
type MailConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	Encryption string // "", "tls" (STARTTLS) or "ssl" (implicit TLS)
	Title      string
	From       string
	To         []string
	Level      logging.Level
	Timeout    time.Duration
}

// Validate checks credentials and addresses.
func (c MailConfig) Validate() error {
	if c.Host == "" || c.User == "" || c.Password == "" {
		return fmt.Errorf("mail requires host, user and password")
	}
	switch c.Encryption {
	case "", "tls", "ssl":
	default:
		return fmt.Errorf("unsupported mail encryption %q", c.Encryption)
	}
	if c.Title == "" {
		return fmt.Errorf("mail requires a title")
	}
	if _, err := mail.ParseAddress(c.From); err != nil {
		return fmt.Errorf("invalid sender address %q: %w", c.From, err)
	}
	if len(c.To) == 0 {
		return fmt.Errorf("mail requires at least one recipient")
	}
	for _, to := range c.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return fmt.Errorf("invalid recipient address %q: %w", to, err)
		}
	}
	return nil
}

// Mail buffers records and sends them as one message when closed.
type Mail struct {
	handler
	cfg MailConfig

	mu     sync.Mutex
	buffer []logging.Record
}

// NewMail creates a mail sink
func NewMail(name string, cfg MailConfig) (*Mail, error) {
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	cfg.Encryption = strings.ToLower(cfg.Encryption)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Mail{
		handler: newHandler(KindMail, name, cfg.Level),
		cfg:     cfg,
	}, nil
}

func (m *Mail) Handle(_ context.Context, rec logging.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffer = append(m.buffer, rec)
	return nil
}

// HandleBatch sends the accepted records immediately as one message.
func (m *Mail) HandleBatch(ctx context.Context, recs []logging.Record) error {
	accepted := make([]logging.Record, 0, len(recs))
	for _, rec := range recs {
		if m.Accepts(rec.Level) {
			accepted = append(accepted, rec)
		}
	}
	if len(accepted) == 0 {
		return nil
	}
	return m.deliver(ctx, m.message(accepted, time.Now()))
}

// Close flushes the buffer.
func (m *Mail) Close() error {
	m.mu.Lock()
	recs := m.buffer
	m.buffer = nil
	m.mu.Unlock()

	if len(recs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout)
	defer cancel()
	return m.deliver(ctx, m.message(recs, time.Now()))
}

func (m *Mail) message(recs []logging.Record, now time.Time) []byte {
	var body strings.Builder
	for _, rec := range recs {
		body.WriteString(m.render(rec))
		body.WriteString("\r\n")
	}

	domain := m.cfg.Host
	if addr, err := mail.ParseAddress(m.cfg.From); err == nil {
		if at := strings.LastIndex(addr.Address, "@"); at >= 0 {
			domain = addr.Address[at+1:]
		}
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(m.cfg.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", m.cfg.Title)
	fmt.Fprintf(&msg, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&msg, "Message-ID: <%s@%s>\r\n", uuid.NewString(), domain)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body.String())
	return msg.Bytes()
}

func (m *Mail) deliver(ctx context.Context, msg []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	dialer := &net.Dialer{Timeout: m.cfg.Timeout}
	tlsConfig := &tls.Config{ServerName: m.cfg.Host}

	var conn net.Conn
	var err error
	if m.cfg.Encryption == "ssl" {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to mail server %s: %w", addr, err)
	}
	conn.SetDeadline(time.Now().Add(m.cfg.Timeout))

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake failed: %w", err)
	}
	defer client.Close()

	if m.cfg.Encryption == "tls" {
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls failed: %w", err)
		}
	}
	if ok, _ := client.Extension("AUTH"); ok {
		if err := client.Auth(smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	from, _ := mail.ParseAddress(m.cfg.From)
	if err := client.Mail(from.Address); err != nil {
		return fmt.Errorf("smtp MAIL FROM failed: %w", err)
	}
	for _, to := range m.cfg.To {
		rcpt, _ := mail.ParseAddress(to)
		if err := client.Rcpt(rcpt.Address); err != nil {
			return fmt.Errorf("smtp RCPT TO %s failed: %w", rcpt.Address, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write mail body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mail rejected: %w", err)
	}
	return client.Quit()
}

var mailFactory = Factory{
	Kind:        KindMail,
	Aliases:     []string{"swiftmailer", "SwiftmailerHandler", "smtp", "mailer"},
	Description: "Mails buffered lines as one message on close",
	Batch:       true,
	Params: []Param{
		{Name: "host", Required: true},
		{Name: "user", Aliases: []string{"username", "login"}, Required: true},
		{Name: "password", Required: true},
		{Name: "port", Default: 25},
		{Name: "encryption", Default: ""},
		{Name: "title", Aliases: []string{"subject"}, Required: true},
		{Name: "from", Required: true},
		{Name: "to", Required: true},
		{Name: "level", Default: "debug"},
		{Name: "timeout", Default: 20},
	},
	New: func(env Env, name string, args Args) (Sink, error) {
		return NewMail(name, MailConfig{
			Host:       args.String("host"),
			Port:       args.Int("port"),
			User:       args.String("user"),
			Password:   args.String("password"),
			Encryption: args.String("encryption"),
			Title:      args.String("title"),
			From:       args.String("from"),
			To:         args.Strings("to"),
			Level:      args.Level("level"),
			Timeout:    args.Duration("timeout"),
		})
	},
}
