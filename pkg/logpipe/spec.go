package logpipe

import (
	"io"
	"time"

	"github.com/wayneeseguin/logpipe/pkg/backends"
	"github.com/wayneeseguin/logpipe/pkg/features"
	"github.com/wayneeseguin/logpipe/pkg/formatters"
	"github.com/wayneeseguin/logpipe/pkg/types"
)

// Defaults applied by Build.
const (
	DefaultName            = "root"
	DefaultLevel           = types.LevelInfo
	DefaultQueueSize       = 1000
	DefaultBatchCapacity   = 100
	DefaultBatchFlushLevel = types.LevelError
	DefaultShutdownTimeout = 5 * time.Second
)

// SinkKind tags the transport of a SinkConfig.
type SinkKind string

// Supported sink kinds.
const (
	KindConsole           SinkKind = "console"
	KindFile              SinkKind = "file"
	KindRotatingFile      SinkKind = "rotating_file"
	KindTimedRotatingFile SinkKind = "timed_rotating_file"
	KindSMTP              SinkKind = "smtp"
	KindHTTP              SinkKind = "http"
	KindNATS              SinkKind = "nats"
	// KindBackend delivers to a caller supplied backends.Backend.
	KindBackend SinkKind = "backend"
)

// Spec is the fully merged description of a pipeline. Build never modifies
// it.
type Spec struct {
	// Name is the logical source name stamped on every event.
	Name string
	// Level is the logger-wide threshold; zero selects DefaultLevel.
	Level types.Level
	// Format is the default text template for sinks without their own.
	Format string
	// Formatter is the default renderer tag: text, json or color.
	Formatter string
	// Context is merged into the fields of every event.
	Context types.Fields
	// Filters apply to every sink, ahead of the sink's own filters.
	Filters []features.Filter
	Sinks   []SinkConfig

	// ShutdownTimeout bounds Close; zero selects DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
	// ErrorHandler receives internal failures; nil selects StderrErrorHandler.
	ErrorHandler ErrorHandler
	// RequireSink makes Build fail when no sink could be constructed.
	RequireSink bool
}

// SinkConfig describes one sink. Kind selects which of the transport
// sections is read; the others are ignored.
type SinkConfig struct {
	Kind SinkKind
	// Name identifies the sink in stats and errors; defaults to the kind.
	Name string

	// Level is the sink threshold. Zero lets through everything that
	// passes the logger threshold.
	Level     types.Level
	Format    string
	Formatter string
	// Renderer overrides Format and Formatter.
	Renderer formatters.Renderer
	Filters  []features.Filter

	// Async delivers through a bounded queue and a dedicated worker.
	// Ignored for console sinks.
	Async bool
	// QueueSize bounds the async queue; zero selects DefaultQueueSize.
	QueueSize int
	Batch     *BatchConfig

	Console  *ConsoleConfig
	File     *FileConfig
	Rotating *RotatingFileConfig
	Timed    *TimedRotatingFileConfig
	SMTP     *backends.SMTPConfig
	HTTP     *backends.HTTPConfig
	NATS     *backends.NATSConfig
	Backend  backends.Backend

	// Err marks a sink whose settings could not be decoded. Build skips it
	// with a ConfigurationError wrapping Err.
	Err error
}

// BatchConfig enables the batching layer for a sink.
type BatchConfig struct {
	// Capacity is the number of events buffered before a flush.
	Capacity int
	// FlushLevel forces a flush when an event at or above it arrives.
	// Zero selects DefaultBatchFlushLevel.
	FlushLevel types.Level
	// FlushInterval, when positive, also flushes on a timer.
	FlushInterval time.Duration
}

// ConsoleConfig selects the console stream.
type ConsoleConfig struct {
	Stderr bool
	// Writer replaces the process stream when set.
	Writer io.Writer
}

// FileConfig is a plain append-only file.
type FileConfig struct {
	Path string
}

// RotatingFileConfig is a size rotated file.
type RotatingFileConfig struct {
	Path        string
	MaxBytes    int64
	BackupCount int
}

// TimedRotatingFileConfig is a file rotated at wall clock boundaries.
type TimedRotatingFileConfig struct {
	Path        string
	When        string
	Interval    int
	BackupCount int
	UTC         bool
	// Now replaces the clock, for tests.
	Now func() time.Time
}
