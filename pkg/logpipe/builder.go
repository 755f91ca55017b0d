package logpipe

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/wayneeseguin/logpipe/pkg/backends"
	"github.com/wayneeseguin/logpipe/pkg/features"
	"github.com/wayneeseguin/logpipe/pkg/formatters"
)

// Build assembles the pipeline described by spec.
//
// Every sink is built independently: a sink that cannot be constructed is
// skipped, its ConfigurationError is reported to the error handler and kept
// in Logger.BuildErrors, and the remaining sinks are built as usual. Build
// always returns a usable Logger. The error is non-nil only when
// spec.RequireSink is set and no sink could be built.
func Build(spec Spec) (*Logger, error) {
	core := newCore(spec)

	names := make(map[string]int, len(spec.Sinks))
	for _, cfg := range spec.Sinks {
		name := uniqueName(cfg, names)
		sink, err := core.buildSink(spec, cfg, name)
		if err != nil {
			cerr := &ConfigurationError{Sink: name, Kind: cfg.Kind, Err: err}
			core.buildErrors = append(core.buildErrors, cerr)
			core.reportError(LogError{
				Operation:   "build",
				Destination: name,
				Message:     "sink skipped",
				Err:         cerr,
				Timestamp:   time.Now(),
			})
			continue
		}
		core.sinks = append(core.sinks, sink)
	}

	logger := &Logger{core: core, name: core.name, injector: features.NewContextInjector(spec.Context)}
	if spec.RequireSink && len(core.sinks) == 0 {
		return logger, errors.Wrapf(ErrNoSinks, "%d sink(s) failed", len(core.buildErrors))
	}
	return logger, nil
}

func uniqueName(cfg SinkConfig, seen map[string]int) string {
	name := cfg.Name
	if name == "" {
		name = string(cfg.Kind)
	}
	seen[name]++
	if n := seen[name]; n > 1 {
		name = fmt.Sprintf("%s#%d", name, n)
	}
	return name
}

// buildSink assembles gate -> async -> batching -> delivery for one sink.
// The backend is created last so nothing leaks when an earlier step fails.
func (c *core) buildSink(spec Spec, cfg SinkConfig, name string) (Sink, error) {
	if cfg.Err != nil {
		return nil, cfg.Err
	}
	renderer, err := buildRenderer(spec, cfg)
	if err != nil {
		return nil, err
	}

	filters, err := features.NewFilterChain(append(append([]features.Filter{}, spec.Filters...), cfg.Filters...)...)
	if err != nil {
		return nil, err
	}
	if cfg.QueueSize < 0 {
		return nil, fmt.Errorf("queue_size must not be negative, got %d", cfg.QueueSize)
	}
	if cfg.Batch != nil && cfg.Batch.Capacity < 0 {
		return nil, fmt.Errorf("batch capacity must not be negative, got %d", cfg.Batch.Capacity)
	}

	backend, err := buildBackend(cfg)
	if err != nil {
		return nil, err
	}

	stats := c.collector.Sink(name, string(cfg.Kind))
	if r, ok := backend.(backends.Rotator); ok {
		r.SetRotateHook(func(string) { stats.TrackRotation() })
	}

	var sink Sink = newDeliverySink(name, renderer, backend, stats, c.reportError)
	if cfg.Batch != nil {
		sink = newBatchingSink(sink, *cfg.Batch, stats)
	}
	if cfg.Async && cfg.Kind != KindConsole {
		sink = newAsyncSink(sink, cfg.QueueSize, stats, c.reportError)
	}
	return &gateSink{inner: sink, level: cfg.Level, filters: filters, stats: stats, report: c.reportError}, nil
}

func buildRenderer(spec Spec, cfg SinkConfig) (formatters.Renderer, error) {
	if cfg.Renderer != nil {
		return cfg.Renderer, nil
	}
	tag := cfg.Formatter
	if tag == "" {
		tag = spec.Formatter
	}
	template := cfg.Format
	if template == "" {
		template = spec.Format
	}
	return formatters.Create(tag, template)
}

func buildBackend(cfg SinkConfig) (backends.Backend, error) {
	switch cfg.Kind {
	case KindConsole:
		c := cfg.Console
		if c == nil {
			c = &ConsoleConfig{}
		}
		if c.Writer != nil {
			return backends.NewWriterBackend(c.Writer), nil
		}
		return backends.NewConsoleBackend(c.Stderr), nil

	case KindFile:
		if cfg.File == nil || strings.TrimSpace(cfg.File.Path) == "" {
			return nil, errors.New("file sink requires a path")
		}
		return backends.NewFileBackend(cfg.File.Path)

	case KindRotatingFile:
		r := cfg.Rotating
		if r == nil || strings.TrimSpace(r.Path) == "" {
			return nil, errors.New("rotating_file sink requires a filename")
		}
		return backends.NewRotatingFileBackend(r.Path, features.SizePolicy{MaxBytes: r.MaxBytes, BackupCount: r.BackupCount})

	case KindTimedRotatingFile:
		r := cfg.Timed
		if r == nil || strings.TrimSpace(r.Path) == "" {
			return nil, errors.New("timed_rotating_file sink requires a filename")
		}
		policy := features.TimePolicy{When: r.When, Interval: r.Interval, BackupCount: r.BackupCount, UTC: r.UTC}
		return backends.NewTimedRotatingFileBackend(r.Path, policy, r.Now)

	case KindSMTP:
		if cfg.SMTP == nil {
			return nil, errors.New("smtp sink requires smtp settings")
		}
		return backends.NewSMTPBackend(*cfg.SMTP)

	case KindHTTP:
		if cfg.HTTP == nil {
			return nil, errors.New("http sink requires http settings")
		}
		return backends.NewHTTPBackend(*cfg.HTTP)

	case KindNATS:
		if cfg.NATS == nil {
			return nil, errors.New("nats sink requires nats settings")
		}
		return backends.NewNATSBackend(*cfg.NATS)

	case KindBackend:
		if cfg.Backend == nil {
			return nil, errors.New("backend sink requires a backend")
		}
		return cfg.Backend, nil

	case "":
		return nil, errors.New("sink kind is required")
	default:
		return nil, errors.Errorf("unsupported sink kind %q", cfg.Kind)
	}
}
