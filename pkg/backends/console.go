package backends

import (
	"io"
	"os"
	"sync"
)

// ConsoleBackend writes entries to stdout, stderr or any io.Writer.
// The stream itself is never closed.
type ConsoleBackend struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleBackend returns a backend writing to stderr when toStderr is
// set, stdout otherwise.
func NewConsoleBackend(toStderr bool) *ConsoleBackend {
	if toStderr {
		return &ConsoleBackend{w: os.Stderr}
	}
	return &ConsoleBackend{w: os.Stdout}
}

// NewWriterBackend wraps an arbitrary writer.
func NewWriterBackend(w io.Writer) *ConsoleBackend {
	return &ConsoleBackend{w: w}
}

func (c *ConsoleBackend) Write(entry []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.Write(entry)
}

// Flush syncs the stream when it supports it.
func (c *ConsoleBackend) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (c *ConsoleBackend) Close() error {
	return c.Flush()
}
