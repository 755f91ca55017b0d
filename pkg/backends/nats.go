package backends

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConfig describes a NATS subject to publish entries on.
type NATSConfig struct {
	URL     string
	Subject string
	Timeout time.Duration
	// Username and Password enable user info authentication.
	Username string
	Password string
}

// Publisher is the subset of *nats.Conn used by NATSBackend.
type Publisher interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATSBackend publishes one message per entry.
type NATSBackend struct {
	conn    Publisher
	subject string
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewNATSBackend connects to cfg.URL.
func NewNATSBackend(cfg NATSConfig) (*NATSBackend, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	options := []nats.Option{
		nats.Name("logpipe"),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	}
	if cfg.Username != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	conn, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("nats backend: connect %s: %w", cfg.URL, err)
	}
	return NewNATSBackendWithPublisher(cfg, conn)
}

// NewNATSBackendWithPublisher publishes through an existing connection.
func NewNATSBackendWithPublisher(cfg NATSConfig, conn Publisher) (*NATSBackend, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &NATSBackend{conn: conn, subject: cfg.Subject, timeout: cfg.Timeout}, nil
}

func (c *NATSConfig) validate() error {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.Subject == "" {
		return fmt.Errorf("nats backend: subject is required")
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return nil
}

func (n *NATSBackend) Write(entry []byte) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return 0, fmt.Errorf("nats backend closed")
	}
	// Publish may retain the slice until the connection flushes.
	data := make([]byte, len(entry))
	copy(data, entry)
	if err := n.conn.Publish(n.subject, data); err != nil {
		return 0, fmt.Errorf("nats publish %s: %w", n.subject, err)
	}
	return len(entry), nil
}

// Flush waits for the server to acknowledge everything published so far.
func (n *NATSBackend) Flush() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	return n.conn.FlushTimeout(n.timeout)
}

func (n *NATSBackend) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	err := n.conn.FlushTimeout(n.timeout)
	n.conn.Close()
	return err
}
