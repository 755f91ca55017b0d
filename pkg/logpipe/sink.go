package logpipe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wayneeseguin/logpipe/internal/metrics"
	"github.com/wayneeseguin/logpipe/pkg/backends"
	"github.com/wayneeseguin/logpipe/pkg/formatters"
	"github.com/wayneeseguin/logpipe/pkg/types"
)

// Outcome classifies what a sink did with an event.
type Outcome int

// Possible outcomes of Sink.Accept.
const (
	// OutcomeAccepted: delivered, or queued/buffered for delivery.
	OutcomeAccepted Outcome = iota
	// OutcomeFiltered: below the sink level or rejected by a filter.
	OutcomeFiltered
	// OutcomeQueueFull: dropped by a saturated async queue.
	OutcomeQueueFull
	// OutcomeDeliveryError: render or transport failure.
	OutcomeDeliveryError
	// OutcomeRejected: the sink is closing or closed.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeFiltered:
		return "filtered"
	case OutcomeQueueFull:
		return "queue_full"
	case OutcomeDeliveryError:
		return "delivery_error"
	case OutcomeRejected:
		return "rejected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the classification of one event at one sink. Err is set for
// QueueFull, DeliveryError and Rejected.
type Result struct {
	Sink    string
	Outcome Outcome
	Err     error
}

// Sink is one delivery path. Implementations never panic or block the
// caller on behalf of a remote transport when configured as async.
type Sink interface {
	Name() string
	Accept(ev *types.Event) Result
	// Flush pushes out buffered events without closing.
	Flush() error
	// Close releases the sink, bounded by ctx. Further calls are no-ops.
	Close(ctx context.Context) error
}

// deliverySink renders an event and writes it to a backend, inline.
type deliverySink struct {
	name     string
	renderer formatters.Renderer
	backend  backends.Backend
	stats    *metrics.SinkCounters
	report   func(LogError)

	closed    atomic.Bool
	closeOnce sync.Once
	closeDone chan struct{} // closed once backend.Close returned
	closeErr  error
}

func newDeliverySink(name string, r formatters.Renderer, b backends.Backend, stats *metrics.SinkCounters, report func(LogError)) *deliverySink {
	return &deliverySink{name: name, renderer: r, backend: b, stats: stats, report: report}
}

func (d *deliverySink) Name() string { return d.name }

func (d *deliverySink) Accept(ev *types.Event) Result {
	if d.closed.Load() {
		d.stats.TrackOutcome(metrics.OutcomeShutdownDrop)
		return Result{Sink: d.name, Outcome: OutcomeRejected, Err: ErrSinkClosed}
	}

	if err := d.deliver(ev); err != nil {
		derr := &DeliveryError{Sink: d.name, Err: err}
		d.stats.TrackOutcome(metrics.OutcomeError)
		d.report(LogError{
			Operation:   "deliver",
			Destination: d.name,
			Message:     "delivery failed",
			Err:         err,
			Timestamp:   time.Now(),
		})
		return Result{Sink: d.name, Outcome: OutcomeDeliveryError, Err: derr}
	}
	d.stats.TrackOutcome(metrics.OutcomeDelivered)
	return Result{Sink: d.name, Outcome: OutcomeAccepted}
}

func (d *deliverySink) deliver(ev *types.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during delivery: %v", r)
		}
	}()

	entry, err := d.renderer.Render(ev)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	start := time.Now()
	var n int
	if ew, ok := d.backend.(backends.EventWriter); ok {
		n, err = ew.WriteEvent(ev, entry)
	} else {
		n, err = d.backend.Write(entry)
	}
	d.stats.TrackWrite(n, time.Since(start))
	return err
}

func (d *deliverySink) Flush() error {
	if d.closed.Load() {
		return nil
	}
	return d.backend.Flush()
}

// Close closes the backend. A delivery racing with Close fails with the
// backend's own error and is counted as a delivery error. When ctx ends
// before the backend has closed, Close returns ErrShutdownTimeout and the
// backend finishes closing in the background.
func (d *deliverySink) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		d.closeDone = make(chan struct{})
		go func() {
			defer close(d.closeDone)
			if err := d.backend.Close(); err != nil {
				d.closeErr = fmt.Errorf("close %s: %w", d.name, err)
			}
		}()
	})

	select {
	case <-d.closeDone:
	case <-ctx.Done():
		select {
		case <-d.closeDone:
		default:
			return fmt.Errorf("close %s: %w", d.name, ErrShutdownTimeout)
		}
	}
	return d.closeErr
}
