package logpipe

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/wayneeseguin/logpipe/internal/buffer"
	"github.com/wayneeseguin/logpipe/internal/metrics"
	"github.com/wayneeseguin/logpipe/pkg/types"
)

// batchingSink buffers events and hands them to the wrapped sink in bursts:
// when Capacity events are buffered, when an event at or above FlushLevel
// arrives (that event included), on Flush and on Close.
type batchingSink struct {
	inner      Sink
	batch      *buffer.Batch[*types.Event]
	flushLevel types.Level
	stats      *metrics.SinkCounters
}

func newBatchingSink(inner Sink, cfg BatchConfig, stats *metrics.SinkCounters) *batchingSink {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultBatchCapacity
	}
	if cfg.FlushLevel == 0 {
		cfg.FlushLevel = DefaultBatchFlushLevel
	}
	b := &batchingSink{inner: inner, flushLevel: cfg.FlushLevel, stats: stats}
	b.batch = buffer.NewBatch(cfg.Capacity, cfg.FlushInterval, b.deliver)
	stats.SetBufferedFunc(b.Buffered)
	return b
}

func (b *batchingSink) Name() string { return b.inner.Name() }

// Accept reports a delivery error when a flush triggered by ev failed for
// any of the flushed events.
func (b *batchingSink) Accept(ev *types.Event) Result {
	err := b.batch.Add(ev, ev.Level >= b.flushLevel)
	switch {
	case err == nil:
		return Result{Sink: b.Name(), Outcome: OutcomeAccepted}
	case errors.Is(err, buffer.ErrClosed):
		b.stats.TrackOutcome(metrics.OutcomeShutdownDrop)
		return Result{Sink: b.Name(), Outcome: OutcomeRejected, Err: ErrSinkClosed}
	default:
		return Result{Sink: b.Name(), Outcome: OutcomeDeliveryError, Err: err}
	}
}

// deliver runs under the batch lock, oldest event first.
func (b *batchingSink) deliver(events []*types.Event) error {
	var result *multierror.Error
	for _, ev := range events {
		if r := b.inner.Accept(ev); r.Err != nil {
			result = multierror.Append(result, r.Err)
		}
	}
	return result.ErrorOrNil()
}

// Buffered returns the number of events waiting for a flush.
func (b *batchingSink) Buffered() int {
	return b.batch.Stats().BufferedEntries
}

func (b *batchingSink) Flush() error {
	var result *multierror.Error
	if err := b.batch.Flush(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := b.inner.Flush(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Close flushes what is buffered, then closes the wrapped sink. Delivery
// failures during the final flush were already reported per event, so only
// the close error is returned.
//
// Close is bounded by ctx. When the deadline has passed, the wrapped sink is
// closed first so that a flush stuck in the transport is interrupted, and
// whatever is still buffered reaches a closed sink and counts as dropped on
// shutdown.
func (b *batchingSink) Close(ctx context.Context) error {
	if ctx.Err() != nil {
		err := b.inner.Close(ctx)
		go func() { _ = b.batch.Close() }()
		return err
	}

	flushed := make(chan struct{})
	go func() {
		_ = b.batch.Close()
		close(flushed)
	}()

	select {
	case <-flushed:
		return b.inner.Close(ctx)
	case <-ctx.Done():
		select {
		case <-flushed:
			return b.inner.Close(ctx)
		default:
		}
	}
	var result *multierror.Error
	result = multierror.Append(result, errors.Wrapf(ErrShutdownTimeout, "sink %q: final flush did not finish", b.Name()))
	if err := b.inner.Close(ctx); err != nil && !errors.Is(err, ErrShutdownTimeout) {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
