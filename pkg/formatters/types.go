package formatters

import (
	"time"

	"github.com/wayneeseguin/logpipe/pkg/types"
)

// DefaultTemplate is the line layout used when no format is configured.
const DefaultTemplate = "{time} [{level}] {name}: {message}"

// DefaultTimestampFormat mirrors the classic "asctime" layout with milliseconds.
const DefaultTimestampFormat = "2006-01-02 15:04:05.000"

// Renderer turns a single event into the bytes written by a sink.
// Implementations must be safe for concurrent use and must not modify the event.
type Renderer interface {
	Render(ev *types.Event) ([]byte, error)
}

// RenderFunc adapts a function to the Renderer interface.
type RenderFunc func(ev *types.Event) ([]byte, error)

// Render implements Renderer.
func (f RenderFunc) Render(ev *types.Event) ([]byte, error) {
	return f(ev)
}

// FormatOptions controls the output format
type FormatOptions struct {
	Template        string
	TimestampFormat string
	TimeZone        *time.Location
	// AppendNewline terminates every rendered event with '\n'.
	AppendNewline bool
}

// DefaultFormatOptions returns default formatting options
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{
		Template:        DefaultTemplate,
		TimestampFormat: DefaultTimestampFormat,
		TimeZone:        time.Local,
		AppendNewline:   true,
	}
}

func (o FormatOptions) formatTime(t time.Time) string {
	layout := o.TimestampFormat
	if layout == "" {
		layout = DefaultTimestampFormat
	}
	if o.TimeZone != nil {
		t = t.In(o.TimeZone)
	}
	return t.Format(layout)
}
