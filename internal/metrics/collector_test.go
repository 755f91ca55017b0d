package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector()
	if c == nil {
		t.Fatal("NewCollector() returned nil")
	}
	if c.GetMessageCount(20) != 0 {
		t.Error("Expected initial message count to be 0")
	}
	if c.GetErrorCount() != 0 {
		t.Error("Expected initial error count to be 0")
	}
	if len(c.GetMetrics().Sinks) != 0 {
		t.Error("Expected no sinks")
	}
}

func TestSinkRegistration(t *testing.T) {
	c := NewCollector()
	a := c.Sink("console", "console")
	b := c.Sink("file", "file")
	if again := c.Sink("console", "console"); again != a {
		t.Error("Sink() should return the same counters for the same name")
	}

	a.TrackPassed()
	b.TrackFiltered()

	m := c.GetMetrics()
	if len(m.Sinks) != 2 || m.Sinks[0].Name != "console" || m.Sinks[1].Name != "file" {
		t.Fatalf("sinks = %+v, want registration order", m.Sinks)
	}
	if m.Sinks[0].Passed != 1 || m.Sinks[1].Filtered != 1 {
		t.Errorf("unexpected counters %+v", m.Sinks)
	}
}

func TestSinkCounters_Accounting(t *testing.T) {
	s := NewCollector().Sink("http", "http")

	for i := 0; i < 10; i++ {
		s.TrackPassed()
	}
	s.TrackOutcome(OutcomeDelivered)
	s.TrackOutcome(OutcomeDelivered)
	s.TrackOutcome(OutcomeQueueFull)
	s.TrackOutcome(OutcomeError)
	s.TrackShutdownDrops(3)
	s.TrackShutdownDrops(0)

	st := s.Snapshot()
	if st.Delivered != 2 || st.QueueFull != 1 || st.Errors != 1 || st.ShutdownDrops != 3 {
		t.Fatalf("unexpected snapshot %+v", st)
	}
	if st.Pending != 3 {
		t.Errorf("Pending = %d, want 3", st.Pending)
	}
	if st.Passed != st.Delivered+st.Dropped()+st.Pending {
		t.Error("every passed event must be classified")
	}
}

func TestSinkCounters_Writes(t *testing.T) {
	s := NewCollector().Sink("file", "file")
	s.TrackWrite(100, 10*time.Millisecond)
	s.TrackWrite(50, 30*time.Millisecond)
	s.TrackRotation()

	st := s.Snapshot()
	if st.BytesWritten != 150 || st.Rotations != 1 {
		t.Errorf("bytes=%d rotations=%d", st.BytesWritten, st.Rotations)
	}
	if st.AverageWrite != 20*time.Millisecond || st.MaxWrite != 30*time.Millisecond {
		t.Errorf("avg=%v max=%v", st.AverageWrite, st.MaxWrite)
	}
	if st.LastWrite.IsZero() {
		t.Error("LastWrite should be set")
	}
}

func TestConcurrentTracking(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := c.Sink("shared", "file")
			for i := 0; i < 1000; i++ {
				c.TrackMessageLogged(20)
				s.TrackPassed()
				s.TrackOutcome(OutcomeDelivered)
				c.TrackError("shared")
			}
		}()
	}
	wg.Wait()

	if got := c.GetMessageCount(20); got != 8000 {
		t.Errorf("GetMessageCount() = %d, want 8000", got)
	}
	if got := c.GetErrorCountBySource("shared"); got != 8000 {
		t.Errorf("GetErrorCountBySource() = %d, want 8000", got)
	}
	st := c.GetMetrics().Sinks[0]
	if st.Delivered != 8000 || st.Pending != 0 {
		t.Errorf("unexpected snapshot %+v", st)
	}
}

func TestPrometheusCollector(t *testing.T) {
	c := NewCollector()
	c.TrackMessageLogged(20)
	c.TrackMessageLogged(40)
	c.TrackBelowLevel()
	s := c.Sink("audit", "file")
	s.TrackPassed()
	s.TrackOutcome(OutcomeDelivered)

	pc := NewPrometheusCollector(c, "app", func(l int) string {
		return map[int]string{20: "INFO", 40: "ERROR"}[l]
	})

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(pc); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	expected := `
# HELP logpipe_events_total Events accepted by the logger, by level.
# TYPE logpipe_events_total counter
logpipe_events_total{level="ERROR",logger="app"} 1
logpipe_events_total{level="INFO",logger="app"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "logpipe_events_total"); err != nil {
		t.Error(err)
	}

	if n := testutil.CollectAndCount(pc, "logpipe_sink_events_total"); n != 5 {
		t.Errorf("sink outcome series = %d, want 5", n)
	}

	s.SetBufferedFunc(func() int { return 3 })
	expected = `
# HELP logpipe_sink_buffered_events Events held by a batching layer awaiting a flush.
# TYPE logpipe_sink_buffered_events gauge
logpipe_sink_buffered_events{kind="file",logger="app",sink="audit"} 3
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "logpipe_sink_buffered_events"); err != nil {
		t.Error(err)
	}
}
