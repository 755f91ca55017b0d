package logpipe

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/wayneeseguin/logpipe/internal/metrics"
	"github.com/wayneeseguin/logpipe/pkg/types"
)

func newTestBatching(b *recordBackend, cfg BatchConfig) (*batchingSink, *metrics.SinkCounters) {
	stats := metrics.NewCollector().Sink("batch", "backend")
	inner := newDeliverySink("batch", messageRenderer, b, stats, SilentErrorHandler)
	return newBatchingSink(inner, cfg, stats), stats
}

func TestBatchingSink_FlushOnCapacity(t *testing.T) {
	const capacity = 5
	b := &recordBackend{}
	s, _ := newTestBatching(b, BatchConfig{Capacity: capacity, FlushLevel: types.LevelError})

	for i := 1; i < capacity; i++ {
		s.Accept(&types.Event{Level: types.LevelInfo, Message: fmt.Sprint(i)})
		if n := len(b.Entries()); n != 0 {
			t.Fatalf("delivered %d events before the batch was full", n)
		}
	}
	s.Accept(&types.Event{Level: types.LevelInfo, Message: fmt.Sprint(capacity)})

	if got := fmt.Sprint(b.Entries()); got != "[1 2 3 4 5]" {
		t.Errorf("delivered %s, want all five in order", got)
	}
	if s.Buffered() != 0 {
		t.Errorf("Buffered() = %d after flush", s.Buffered())
	}
}

func TestBatchingSink_FlushOnTrigger(t *testing.T) {
	b := &recordBackend{}
	s, _ := newTestBatching(b, BatchConfig{Capacity: 10, FlushLevel: types.LevelError})

	s.Accept(&types.Event{Level: types.LevelDebug, Message: "a"})
	s.Accept(&types.Event{Level: types.LevelWarning, Message: "b"})
	if len(b.Entries()) != 0 {
		t.Fatal("events below the flush level must stay buffered")
	}

	r := s.Accept(&types.Event{Level: types.LevelCritical, Message: "c"})
	if r.Outcome != OutcomeAccepted {
		t.Errorf("trigger outcome = %v", r.Outcome)
	}
	if got := fmt.Sprint(b.Entries()); got != "[a b c]" {
		t.Errorf("delivered %s, want [a b c]", got)
	}
	if s.Buffered() != 0 {
		t.Error("buffer should be empty after a triggered flush")
	}
}

func TestBatchingSink_DefaultFlushLevel(t *testing.T) {
	b := &recordBackend{}
	s, _ := newTestBatching(b, BatchConfig{})

	s.Accept(&types.Event{Level: types.LevelWarning, Message: "w"})
	if len(b.Entries()) != 0 {
		t.Fatal("warning should not trigger the default flush level")
	}
	s.Accept(&types.Event{Level: types.LevelError, Message: "e"})
	if len(b.Entries()) != 2 {
		t.Errorf("error should flush with the default flush level, got %v", b.Entries())
	}
}

func TestBatchingSink_CloseFlushesOnce(t *testing.T) {
	b := &recordBackend{}
	s, stats := newTestBatching(b, BatchConfig{Capacity: 10})

	s.Accept(&types.Event{Level: types.LevelInfo, Message: "x"})
	s.Accept(&types.Event{Level: types.LevelInfo, Message: "y"})

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if got := fmt.Sprint(b.Entries()); got != "[x y]" {
		t.Errorf("delivered %s, want [x y] exactly once", got)
	}
	if b.Closes() != 1 {
		t.Errorf("backend closed %d times", b.Closes())
	}

	r := s.Accept(&types.Event{Level: types.LevelError, Message: "late"})
	if r.Outcome != OutcomeRejected {
		t.Errorf("Accept after Close = %v", r.Outcome)
	}
	if st := stats.Snapshot(); st.Delivered != 2 || st.ShutdownDrops != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestBatchingSink_DeliveryErrorSurfacesOnTrigger(t *testing.T) {
	b := &recordBackend{fail: errBoom}
	s, stats := newTestBatching(b, BatchConfig{Capacity: 10})

	s.Accept(&types.Event{Level: types.LevelInfo, Message: "x"})
	r := s.Accept(&types.Event{Level: types.LevelError, Message: "y"})
	if r.Outcome != OutcomeDeliveryError || r.Err == nil {
		t.Errorf("outcome = %v err = %v", r.Outcome, r.Err)
	}
	if st := stats.Snapshot(); st.Errors != 2 {
		t.Errorf("Errors = %d, want 2", st.Errors)
	}
}

func TestBatchingSink_FlushInterval(t *testing.T) {
	b := &recordBackend{}
	s, _ := newTestBatching(b, BatchConfig{Capacity: 100, FlushInterval: 20 * time.Millisecond})
	defer s.Close(context.Background())

	s.Accept(&types.Event{Level: types.LevelInfo, Message: "tick"})
	waitFor(t, "timed flush", func() bool { return len(b.Entries()) == 1 })
}

func TestBatchingSink_Flush(t *testing.T) {
	b := &recordBackend{}
	s, _ := newTestBatching(b, BatchConfig{Capacity: 100})

	s.Accept(&types.Event{Level: types.LevelInfo, Message: "x"})
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(b.Entries()) != 1 || b.flushes != 1 {
		t.Errorf("entries=%v flushes=%d", b.Entries(), b.flushes)
	}
	s.Close(context.Background())
}
