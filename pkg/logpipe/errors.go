package logpipe

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/wayneeseguin/logpipe/pkg/types"
)

// Sentinel errors reported in Results and by Close.
var (
	// ErrQueueFull means an async sink dropped an event because its queue
	// was at capacity.
	ErrQueueFull = errors.New("queue full")
	// ErrSinkClosed means the event arrived after the sink started closing.
	ErrSinkClosed = errors.New("sink closed")
	// ErrShutdownTimeout means a sink did not drain before the shutdown
	// deadline; whatever was still queued has been dropped.
	ErrShutdownTimeout = errors.New("shutdown timed out")
	// ErrNoSinks is returned by Build when RequireSink is set and no sink
	// could be constructed.
	ErrNoSinks = errors.New("no sink could be built")
)

// ConfigurationError reports a sink that could not be built. Only that sink
// is skipped.
type ConfigurationError struct {
	Sink string
	Kind SinkKind
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("sink %q (%s): %v", e.Sink, e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Cause supports errors.Cause.
func (e *ConfigurationError) Cause() error {
	return e.Err
}

// DeliveryError reports a failed render or transport write.
type DeliveryError struct {
	Sink string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %q: %v", e.Sink, e.Err)
}

// Unwrap returns the underlying error
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Cause supports errors.Cause.
func (e *DeliveryError) Cause() error {
	return e.Err
}

// LogError describes an internal failure of the pipeline itself. These are
// never sent through the pipeline; they go to the ErrorHandler.
type LogError struct {
	Operation   string    // build, deliver, flush, close
	Destination string    // sink name, empty for logger-wide failures
	Message     string    // human readable summary
	Err         error     // the underlying error
	Timestamp   time.Time // when the error occurred
}

// Error implements the error interface
func (e LogError) Error() string {
	if e.Destination == "" {
		return fmt.Sprintf("%s: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Operation, e.Destination, e.Message, e.Err)
}

// Unwrap returns the underlying error
func (e LogError) Unwrap() error {
	return e.Err
}

// ErrorHandler receives internal pipeline failures.
type ErrorHandler func(err LogError)

// SilentErrorHandler discards all errors (used in tests)
var SilentErrorHandler ErrorHandler = func(LogError) {}

// StderrErrorHandler writes one line per error to stderr.
var StderrErrorHandler ErrorHandler = func(err LogError) {
	fmt.Fprintf(os.Stderr, "logpipe: %s %s\n", err.Timestamp.Format(time.RFC3339), err.Error())
}

// exceptionFromError converts err into exception info. A stack trace is
// included when err, or the error it wraps, was created by github.com/pkg/errors.
func exceptionFromError(err error) *types.Exception {
	if err == nil {
		return nil
	}
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}

	exc := &types.Exception{Message: err.Error(), Type: fmt.Sprintf("%T", errors.Cause(err))}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			exc.Stack = fmt.Sprintf("%+v", st.StackTrace())
		}
	}
	return exc
}
