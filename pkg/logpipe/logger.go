package logpipe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wayneeseguin/logpipe/internal/metrics"
	"github.com/wayneeseguin/logpipe/pkg/features"
	"github.com/wayneeseguin/logpipe/pkg/types"
)

// SinkStats is a point-in-time snapshot of one sink's delivery counters.
// Passed == Delivered + QueueFull + Errors + ShutdownDrops + Pending.
type SinkStats = metrics.SinkStats

// Metrics holds logger-wide counters plus every sink's SinkStats.
type Metrics = metrics.Metrics

// core is shared by a Logger and every child created with With.
type core struct {
	name            string
	level           types.Level
	sinks           []Sink // fixed once Build returns
	buildErrors     []error
	collector       *metrics.Collector
	errorHandler    ErrorHandler
	shutdownTimeout time.Duration
	now             func() time.Time

	closed    atomic.Bool
	closeOnce sync.Once
}

func newCore(spec Spec) *core {
	c := &core{
		name:            spec.Name,
		level:           spec.Level,
		collector:       metrics.NewCollector(),
		errorHandler:    spec.ErrorHandler,
		shutdownTimeout: spec.ShutdownTimeout,
		now:             time.Now,
	}
	if c.name == "" {
		c.name = DefaultName
	}
	if c.level == 0 {
		c.level = DefaultLevel
	}
	if c.errorHandler == nil {
		c.errorHandler = StderrErrorHandler
	}
	if c.shutdownTimeout <= 0 {
		c.shutdownTimeout = DefaultShutdownTimeout
	}
	return c
}

func (c *core) reportError(err LogError) {
	c.collector.TrackError(err.Operation)
	c.errorHandler(err)
}

// Logger is the façade producers log through. It is safe for concurrent use.
// Nothing that happens inside a sink is returned to, or panics in, the
// caller of a logging method.
type Logger struct {
	core     *core
	name     string
	injector *features.ContextInjector
}

// Name returns the logical source name stamped on events.
func (l *Logger) Name() string { return l.name }

// Level returns the logger threshold.
func (l *Logger) Level() types.Level { return l.core.level }

// IsLevelEnabled reports whether events at level pass the logger threshold.
func (l *Logger) IsLevelEnabled(level types.Level) bool {
	return level >= l.core.level
}

// Sinks returns the names of the sinks that were built, in declaration order.
func (l *Logger) Sinks() []string {
	names := make([]string, len(l.core.sinks))
	for i, s := range l.core.sinks {
		names[i] = s.Name()
	}
	return names
}

// BuildErrors returns the ConfigurationErrors of the sinks Build skipped.
func (l *Logger) BuildErrors() []error {
	return append([]error(nil), l.core.buildErrors...)
}

// With returns a child logger that adds fields to every event. The child
// shares sinks with its parent; closing either closes both.
func (l *Logger) With(fields ...types.Field) *Logger {
	return &Logger{
		core:     l.core,
		name:     l.name,
		injector: features.NewContextInjector(l.injector.Merge(fields)),
	}
}

// Named returns a child logger with a different source name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{core: l.core, name: name, injector: l.injector}
}

// Emit builds an event and fans it out, returning one Result per sink. It
// returns nil when the event is below the logger threshold or the logger
// is closed.
func (l *Logger) Emit(level types.Level, msg string, fields ...types.Field) []Result {
	return l.emit(level, msg, nil, fields)
}

func (l *Logger) emit(level types.Level, msg string, exc *types.Exception, fields types.Fields) []Result {
	c := l.core
	if level < c.level {
		c.collector.TrackBelowLevel()
		return nil
	}
	if c.closed.Load() {
		return nil
	}
	c.collector.TrackMessageLogged(int(level))

	ev := &types.Event{
		ID:        uuid.NewString(),
		Time:      c.now(),
		Level:     level,
		Name:      l.name,
		Message:   msg,
		Fields:    l.injector.Merge(fields),
		Exception: exc,
	}

	results := make([]Result, len(c.sinks))
	for i, s := range c.sinks {
		results[i] = s.Accept(ev)
	}
	return results
}

// Log emits msg at level.
func (l *Logger) Log(level types.Level, msg string, fields ...types.Field) {
	l.emit(level, msg, nil, fields)
}

// LogContext emits msg with the request scoped fields found on ctx. Call
// fields win over ctx fields, which win over the logger's static context.
func (l *Logger) LogContext(ctx context.Context, level types.Level, msg string, fields ...types.Field) {
	if !l.IsLevelEnabled(level) {
		l.core.collector.TrackBelowLevel()
		return
	}
	l.emit(level, msg, nil, features.FieldsFromContext(ctx).Merge(fields...))
}

// Logf formats and emits a message. Formatting is skipped below the threshold.
func (l *Logger) Logf(level types.Level, format string, args ...interface{}) {
	if !l.IsLevelEnabled(level) {
		l.core.collector.TrackBelowLevel()
		return
	}
	l.emit(level, fmt.Sprintf(format, args...), nil, nil)
}

// LogError emits msg with err attached as exception info.
func (l *Logger) LogError(level types.Level, msg string, err error, fields ...types.Field) {
	if !l.IsLevelEnabled(level) {
		l.core.collector.TrackBelowLevel()
		return
	}
	l.emit(level, msg, exceptionFromError(err), fields)
}

// Debug logs a message at DEBUG level.
func (l *Logger) Debug(msg string, fields ...types.Field) { l.Log(types.LevelDebug, msg, fields...) }

// Info logs a message at INFO level.
func (l *Logger) Info(msg string, fields ...types.Field) { l.Log(types.LevelInfo, msg, fields...) }

// Warning logs a message at WARNING level.
func (l *Logger) Warning(msg string, fields ...types.Field) { l.Log(types.LevelWarning, msg, fields...) }

// Error logs a message at ERROR level.
func (l *Logger) Error(msg string, fields ...types.Field) { l.Log(types.LevelError, msg, fields...) }

// Critical logs a message at CRITICAL level.
func (l *Logger) Critical(msg string, fields ...types.Field) { l.Log(types.LevelCritical, msg, fields...) }

// Debugf logs a formatted message at DEBUG level.
func (l *Logger) Debugf(format string, args ...interface{}) { l.Logf(types.LevelDebug, format, args...) }

// Infof logs a formatted message at INFO level.
func (l *Logger) Infof(format string, args ...interface{}) { l.Logf(types.LevelInfo, format, args...) }

// Warningf logs a formatted message at WARNING level.
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Logf(types.LevelWarning, format, args...)
}

// Errorf logs a formatted message at ERROR level.
func (l *Logger) Errorf(format string, args ...interface{}) { l.Logf(types.LevelError, format, args...) }

// Criticalf logs a formatted message at CRITICAL level.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	l.Logf(types.LevelCritical, format, args...)
}

// Sync flushes batching layers and transports of every sink without
// closing anything. Events sitting in async queues are not waited for.
func (l *Logger) Sync() error {
	var result *multierror.Error
	for _, s := range l.core.sinks {
		if err := s.Flush(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "flush %s", s.Name()))
		}
	}
	return result.ErrorOrNil()
}

// Close shuts the pipeline down within the configured shutdown timeout.
func (l *Logger) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), l.core.shutdownTimeout)
	defer cancel()
	return l.Shutdown(ctx)
}

// Shutdown stops the pipeline: every sink drains its queue, flushes its
// batch and closes its transport, all sinks in parallel. It returns when
// every sink has finished, or as soon as the sinks still working have
// given up after ctx is done and counted what they dropped. Errors
// from all sinks are collected; one failing sink never keeps the others
// from closing. Only the first call does any work.
func (l *Logger) Shutdown(ctx context.Context) error {
	var err error
	l.core.closeOnce.Do(func() {
		err = l.core.shutdown(ctx)
	})
	return err
}

func (c *core) shutdown(ctx context.Context) error {
	c.closed.Store(true)

	type closeResult struct {
		name string
		err  error
	}
	results := make(chan closeResult, len(c.sinks))
	for _, s := range c.sinks {
		go func(s Sink) {
			results <- closeResult{name: s.Name(), err: s.Close(ctx)}
		}(s)
	}

	// Every sink's Close is bounded by ctx.
	var result *multierror.Error
	for range c.sinks {
		r := <-results
		if r.err == nil {
			continue
		}
		result = multierror.Append(result, r.err)
		if !errors.Is(r.err, ErrShutdownTimeout) {
			c.reportError(LogError{Operation: "close", Destination: r.name, Message: "close failed", Err: r.err, Timestamp: time.Now()})
		}
	}
	return result.ErrorOrNil()
}

// Closed reports whether Close or Shutdown has been called.
func (l *Logger) Closed() bool {
	return l.core.closed.Load()
}

// Stats returns a snapshot of every sink's counters in declaration order.
func (l *Logger) Stats() []SinkStats {
	return l.core.collector.GetMetrics().Sinks
}

// Metrics returns logger-wide and per-sink metrics.
func (l *Logger) Metrics() Metrics {
	return l.core.collector.GetMetrics()
}

// Collector exposes the logger's metrics to Prometheus.
func (l *Logger) Collector() prometheus.Collector {
	return metrics.NewPrometheusCollector(l.core.collector, l.core.name, func(level int) string {
		return types.Level(level).String()
	})
}
