package logpipe

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wayneeseguin/logpipe/pkg/formatters"
	"github.com/wayneeseguin/logpipe/pkg/types"
)

// recordBackend stores every entry it receives. When block is set, Write
// waits for it to be closed.
type recordBackend struct {
	mu      sync.Mutex
	entries []string
	block   chan struct{}
	started chan struct{}
	fail    error
	closes  int
	flushes int
}

func newBlockingBackend() *recordBackend {
	return &recordBackend{block: make(chan struct{}), started: make(chan struct{}, 100)}
}

func (r *recordBackend) Write(entry []byte) (int, error) {
	if r.started != nil {
		select {
		case r.started <- struct{}{}:
		default:
		}
	}
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return 0, r.fail
	}
	r.entries = append(r.entries, string(entry))
	return len(entry), nil
}

func (r *recordBackend) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return nil
}

func (r *recordBackend) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	return nil
}

func (r *recordBackend) Entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

func (r *recordBackend) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

// messageRenderer renders just the message, which keeps assertions simple.
var messageRenderer = formatters.RenderFunc(func(ev *types.Event) ([]byte, error) {
	return []byte(ev.Message), nil
})

// eventRecorder is a renderer that keeps the events it sees.
type eventRecorder struct {
	mu     sync.Mutex
	events []*types.Event
}

func (e *eventRecorder) Render(ev *types.Event) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return []byte(ev.Message), nil
}

func (e *eventRecorder) Events() []*types.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*types.Event(nil), e.events...)
}

// errorRecorder collects internal errors.
type errorRecorder struct {
	mu   sync.Mutex
	errs []LogError
}

func (e *errorRecorder) handle(err LogError) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, err)
}

func (e *errorRecorder) Errors() []LogError {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]LogError(nil), e.errs...)
}

func backendSink(name string, b *recordBackend) SinkConfig {
	return SinkConfig{Kind: KindBackend, Name: name, Backend: b, Renderer: messageRenderer}
}

func mustBuild(t *testing.T, spec Spec) *Logger {
	t.Helper()
	if spec.ErrorHandler == nil {
		spec.ErrorHandler = SilentErrorHandler
	}
	logger, err := Build(spec)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitStarted(t *testing.T, b *recordBackend) {
	t.Helper()
	select {
	case <-b.started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never reached the backend")
	}
}

func outcomes(results []Result) []Outcome {
	out := make([]Outcome, len(results))
	for i, r := range results {
		out[i] = r.Outcome
	}
	return out
}

var errBoom = errors.New("boom")
