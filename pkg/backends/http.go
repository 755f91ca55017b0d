package backends

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/wayneeseguin/logpipe/pkg/types"
)

// EventIDHeader carries the event ID on every HTTP delivery so receivers can
// discard duplicates.
const EventIDHeader = "X-Event-ID"

// HTTPConfig describes an HTTP endpoint.
type HTTPConfig struct {
	// Host is "host[:port]" or a full base URL.
	Host string
	// URL is the request path, e.g. "/log".
	URL    string
	Method string
	Secure bool
	// Headers are added to every request.
	Headers map[string]string
	Timeout time.Duration
	// Client overrides the HTTP client, mostly for tests.
	Client *http.Client
}

// HTTPBackend sends one request per entry. POST and PUT carry the entry as
// the body; GET sends it in the "msg" query parameter. Any transport failure
// or non-2xx status is an error.
type HTTPBackend struct {
	endpoint string
	method   string
	headers  map[string]string
	client   *http.Client

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewHTTPBackend validates cfg and returns a ready backend. No connection is
// made until the first write.
func NewHTTPBackend(cfg HTTPConfig) (*HTTPBackend, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("http backend: host is required")
	}
	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut:
	default:
		return nil, fmt.Errorf("http backend: unsupported method %q", cfg.Method)
	}

	base := cfg.Host
	if !strings.Contains(base, "://") {
		scheme := "http"
		if cfg.Secure {
			scheme = "https"
		}
		base = scheme + "://" + base
	}
	endpoint, err := url.Parse(strings.TrimRight(base, "/") + "/" + strings.TrimLeft(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("http backend: invalid endpoint: %w", err)
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &HTTPBackend{
		endpoint: endpoint.String(),
		method:   method,
		headers:  cfg.Headers,
		client:   client,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Endpoint returns the resolved request URL.
func (h *HTTPBackend) Endpoint() string {
	return h.endpoint
}

func (h *HTTPBackend) Write(entry []byte) (int, error) {
	return h.WriteEvent(nil, entry)
}

// WriteEvent sends entry and tags the request with the event ID.
func (h *HTTPBackend) WriteEvent(ev *types.Event, entry []byte) (int, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return 0, fmt.Errorf("http backend closed")
	}

	req, err := h.newRequest(entry)
	if err != nil {
		return 0, err
	}
	if ev != nil && ev.ID != "" {
		req.Header.Set(EventIDHeader, ev.ID)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http %s %s: %w", h.method, h.endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("http %s %s: unexpected status %s", h.method, h.endpoint, resp.Status)
	}
	return len(entry), nil
}

func (h *HTTPBackend) newRequest(entry []byte) (*http.Request, error) {
	var req *http.Request
	var err error
	if h.method == http.MethodGet {
		u, _ := url.Parse(h.endpoint)
		q := u.Query()
		q.Set("msg", strings.TrimRight(string(entry), "\n"))
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(h.ctx, h.method, u.String(), nil)
	} else {
		req, err = http.NewRequestWithContext(h.ctx, h.method, h.endpoint, bytes.NewReader(entry))
		if err == nil {
			req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Flush is a no-op; every write is a complete request.
func (h *HTTPBackend) Flush() error {
	return nil
}

// Close aborts in-flight requests and rejects further writes.
func (h *HTTPBackend) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.cancel()
	h.client.CloseIdleConnections()
	return nil
}
