package logpipe

import (
	"context"
	"fmt"
	"time"

	"github.com/wayneeseguin/logpipe/internal/metrics"
	"github.com/wayneeseguin/logpipe/pkg/features"
	"github.com/wayneeseguin/logpipe/pkg/types"
)

// gateSink applies a sink's level and filter chain before anything reaches
// its queue or transport.
type gateSink struct {
	inner   Sink
	level   types.Level
	filters features.FilterChain
	stats   *metrics.SinkCounters
	report  func(LogError)
}

func (g *gateSink) Name() string { return g.inner.Name() }

func (g *gateSink) Accept(ev *types.Event) Result {
	if !g.allow(ev) {
		g.stats.TrackFiltered()
		return Result{Sink: g.inner.Name(), Outcome: OutcomeFiltered}
	}
	g.stats.TrackPassed()
	return g.inner.Accept(ev)
}

// allow treats a panicking filter as a rejection.
func (g *gateSink) allow(ev *types.Event) (ok bool) {
	if ev.Level < g.level {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
			g.report(LogError{
				Operation:   "filter",
				Destination: g.inner.Name(),
				Message:     "filter panicked",
				Err:         fmt.Errorf("%v", r),
				Timestamp:   time.Now(),
			})
		}
	}()
	return g.filters.Allow(ev)
}

func (g *gateSink) Flush() error { return g.inner.Flush() }

func (g *gateSink) Close(ctx context.Context) error { return g.inner.Close(ctx) }
