package logpipe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/wayneeseguin/logpipe/internal/metrics"
	"github.com/wayneeseguin/logpipe/pkg/types"
)

// State of an async sink.
type State int32

// Async sink states, in the only order they are entered.
const (
	StateRunning State = iota
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return "stopped"
	}
}

// asyncSink decouples producers from a slow sink. Accept never blocks: an
// event is either placed on the bounded queue or dropped with QueueFull.
// One worker goroutine delivers queued events to the wrapped sink in FIFO
// order.
//
// The capacity covers events queued plus the one being delivered, so with
// capacity K and a stalled worker exactly K events are held.
type asyncSink struct {
	inner    Sink
	queue    chan *types.Event
	capacity int64
	pending  atomic.Int64
	stats    *metrics.SinkCounters
	report   func(LogError)

	// mu orders state changes against enqueues: producers hold it shared.
	mu    sync.RWMutex
	state State

	drain   chan struct{} // closed when draining starts
	done    chan struct{} // closed when the worker exits
	abandon atomic.Bool   // set when the drain deadline passed

	closeOnce sync.Once
	closeErr  error
}

func newAsyncSink(inner Sink, capacity int, stats *metrics.SinkCounters, report func(LogError)) *asyncSink {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	a := &asyncSink{
		inner:    inner,
		queue:    make(chan *types.Event, capacity),
		capacity: int64(capacity),
		stats:    stats,
		report:   report,
		drain:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *asyncSink) Name() string { return a.inner.Name() }

// State returns the current lifecycle state.
func (a *asyncSink) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Pending returns the number of events queued or being delivered.
func (a *asyncSink) Pending() int {
	return int(a.pending.Load())
}

func (a *asyncSink) Accept(ev *types.Event) Result {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.state != StateRunning {
		a.stats.TrackOutcome(metrics.OutcomeShutdownDrop)
		return Result{Sink: a.Name(), Outcome: OutcomeRejected, Err: ErrSinkClosed}
	}

	if a.pending.Add(1) > a.capacity {
		a.pending.Add(-1)
		a.stats.TrackOutcome(metrics.OutcomeQueueFull)
		return Result{Sink: a.Name(), Outcome: OutcomeQueueFull, Err: ErrQueueFull}
	}

	// The channel never holds more than pending events, so this send
	// always finds room.
	select {
	case a.queue <- ev:
		return Result{Sink: a.Name(), Outcome: OutcomeAccepted}
	default:
		a.pending.Add(-1)
		a.stats.TrackOutcome(metrics.OutcomeQueueFull)
		return Result{Sink: a.Name(), Outcome: OutcomeQueueFull, Err: ErrQueueFull}
	}
}

func (a *asyncSink) run() {
	defer close(a.done)
	for {
		select {
		case ev := <-a.queue:
			a.process(ev)
		case <-a.drain:
			for !a.abandon.Load() {
				select {
				case ev := <-a.queue:
					a.process(ev)
				default:
					return
				}
			}
			return
		}
	}
}

func (a *asyncSink) process(ev *types.Event) {
	defer a.pending.Add(-1)
	if a.abandon.Load() {
		a.stats.TrackShutdownDrops(1)
		return
	}
	// The wrapped sink classifies and reports its own failures.
	a.inner.Accept(ev)
}

// Flush flushes the wrapped sink. Events still queued are not waited for.
func (a *asyncSink) Flush() error {
	return a.inner.Flush()
}

// Close stops accepting events and lets the worker drain the queue. If ctx
// expires first, the events still queued are dropped, counted as shutdown
// drops and ErrShutdownTimeout is returned. Close never outlives ctx: after
// a timeout the wrapped sink is closed right away so that a blocked
// transport is interrupted.
func (a *asyncSink) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.closeErr = a.shutdown(ctx)
	})
	return a.closeErr
}

func (a *asyncSink) shutdown(ctx context.Context) error {
	a.mu.Lock()
	a.state = StateDraining
	a.mu.Unlock()
	close(a.drain)

	var timeoutErr error
	select {
	case <-a.done:
	case <-ctx.Done():
		select {
		case <-a.done:
		default:
			timeoutErr = a.abandonQueue()
		}
	}

	a.mu.Lock()
	a.state = StateStopped
	a.mu.Unlock()

	if timeoutErr != nil {
		// The worker may be stuck inside the transport. The wrapped sink
		// is closed with the expired ctx, which closes the transport
		// without waiting on the worker.
		_ = a.inner.Close(ctx)
		return timeoutErr
	}
	return a.inner.Close(ctx)
}

// abandonQueue stops the worker from delivering anything else and counts
// what is still queued as shutdown drops.
func (a *asyncSink) abandonQueue() error {
	a.abandon.Store(true)
	dropped := 0
	for {
		select {
		case <-a.queue:
			a.pending.Add(-1)
			dropped++
			continue
		default:
		}
		break
	}
	a.stats.TrackShutdownDrops(dropped)
	err := errors.Wrapf(ErrShutdownTimeout, "sink %q: %d queued events dropped", a.Name(), dropped)
	a.report(LogError{
		Operation:   "close",
		Destination: a.Name(),
		Message:     "drain did not finish in time",
		Err:         err,
		Timestamp:   time.Now(),
	})
	return err
}
