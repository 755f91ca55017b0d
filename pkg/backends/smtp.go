package backends

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wneessen/go-mail"
)

// DefaultSMTPPort is used when SMTPConfig.Port is zero.
const DefaultSMTPPort = 25

// SMTPConfig describes a mail relay and envelope.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	To       []string
	Subject  string
	Username string
	Password string
	// Secure requires STARTTLS.
	Secure  bool
	Timeout time.Duration
}

// MailSender sends one prepared message.
type MailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPBackend sends one email per entry. The rendered entry becomes the
// plain-text body.
type SMTPBackend struct {
	cfg    SMTPConfig
	sender MailSender

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewSMTPBackend validates cfg and prepares a go-mail client.
func NewSMTPBackend(cfg SMTPConfig) (*SMTPBackend, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.Secure {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(authType(cfg)),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp backend: %w", err)
	}
	return NewSMTPBackendWithSender(cfg, client)
}

// authType picks the SMTP AUTH mechanism. Over STARTTLS the strongest
// mechanism the server offers is negotiated. Without TLS go-mail refuses
// PLAIN to remote hosts, so the explicit unencrypted variant is used.
func authType(cfg SMTPConfig) mail.SMTPAuthType {
	if cfg.Secure {
		return mail.SMTPAuthAutoDiscover
	}
	return mail.SMTPAuthPlainNoEnc
}

// NewSMTPBackendWithSender uses sender instead of a real SMTP client.
func NewSMTPBackendWithSender(cfg SMTPConfig, sender MailSender) (*SMTPBackend, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SMTPBackend{cfg: cfg, sender: sender, ctx: ctx, cancel: cancel}, nil
}

func (c *SMTPConfig) validate() error {
	if c.Host == "" {
		return fmt.Errorf("smtp backend: mailhost is required")
	}
	if c.From == "" {
		return fmt.Errorf("smtp backend: fromaddr is required")
	}
	if len(c.To) == 0 {
		return fmt.Errorf("smtp backend: at least one recipient is required")
	}
	if c.Port == 0 {
		c.Port = DefaultSMTPPort
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("smtp backend: invalid port %d", c.Port)
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

func (s *SMTPBackend) message(entry []byte) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.cfg.From, err)
	}
	if err := m.To(s.cfg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipients %q: %w", strings.Join(s.cfg.To, ", "), err)
	}
	m.Subject(s.cfg.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, string(entry))
	return m, nil
}

func (s *SMTPBackend) Write(entry []byte) (int, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, fmt.Errorf("smtp backend closed")
	}

	m, err := s.message(entry)
	if err != nil {
		return 0, err
	}
	if err := s.sender.DialAndSendWithContext(s.ctx, m); err != nil {
		return 0, fmt.Errorf("smtp %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	return len(entry), nil
}

func (s *SMTPBackend) Flush() error {
	return nil
}

// Close cancels any transmission in progress.
func (s *SMTPBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.cancel()
	}
	return nil
}
