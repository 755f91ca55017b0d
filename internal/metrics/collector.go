package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Outcome classifies what happened to one event at one sink.
type Outcome int

// Outcomes tracked per sink.
const (
	OutcomeDelivered Outcome = iota
	OutcomeQueueFull
	OutcomeError
	OutcomeShutdownDrop
)

// SinkCounters holds the delivery counters of a single sink.
// Every event counted in passed ends up in exactly one of delivered,
// queueFull, errors or shutdownDrops, or is still pending.
type SinkCounters struct {
	name string
	kind string

	passed        atomic.Uint64
	filtered      atomic.Uint64
	delivered     atomic.Uint64
	queueFull     atomic.Uint64
	errors        atomic.Uint64
	shutdownDrops atomic.Uint64

	rotations    atomic.Uint64
	bytesWritten atomic.Uint64

	// Performance metrics
	writeCount     atomic.Uint64
	totalWriteTime atomic.Int64 // nanoseconds
	maxWriteTime   atomic.Int64 // nanoseconds

	lastWrite atomic.Int64 // unix nanoseconds

	buffered atomic.Pointer[func() int]
}

// Name returns the sink name.
func (s *SinkCounters) Name() string { return s.name }

// TrackPassed records an event that passed the sink's gate.
func (s *SinkCounters) TrackPassed() { s.passed.Add(1) }

// TrackFiltered records an event rejected by level or filters.
func (s *SinkCounters) TrackFiltered() { s.filtered.Add(1) }

// TrackOutcome records the final classification of a passed event.
func (s *SinkCounters) TrackOutcome(o Outcome) {
	switch o {
	case OutcomeDelivered:
		s.delivered.Add(1)
	case OutcomeQueueFull:
		s.queueFull.Add(1)
	case OutcomeError:
		s.errors.Add(1)
	case OutcomeShutdownDrop:
		s.shutdownDrops.Add(1)
	}
}

// TrackShutdownDrops records n events discarded when a drain timed out.
func (s *SinkCounters) TrackShutdownDrops(n int) {
	if n > 0 {
		s.shutdownDrops.Add(uint64(n))
	}
}

// SetBufferedFunc reports events held by a batching layer in Buffered.
// fn must not block.
func (s *SinkCounters) SetBufferedFunc(fn func() int) {
	s.buffered.Store(&fn)
}

// TrackRotation increments the rotation counter.
func (s *SinkCounters) TrackRotation() {
	s.rotations.Add(1)
}

// TrackWrite records write metrics.
func (s *SinkCounters) TrackWrite(bytes int, duration time.Duration) {
	s.bytesWritten.Add(uint64(bytes))
	s.writeCount.Add(1)
	s.totalWriteTime.Add(int64(duration))
	s.lastWrite.Store(time.Now().UnixNano())

	// Update max write time
	for {
		oldMax := s.maxWriteTime.Load()
		if int64(duration) <= oldMax {
			break
		}
		if s.maxWriteTime.CompareAndSwap(oldMax, int64(duration)) {
			break
		}
	}
}

// SinkStats is a point-in-time copy of a sink's counters.
type SinkStats struct {
	Name          string        `json:"name"`
	Kind          string        `json:"kind"`
	Passed        uint64        `json:"passed"`
	Filtered      uint64        `json:"filtered"`
	Delivered     uint64        `json:"delivered"`
	QueueFull     uint64        `json:"queue_full"`
	Errors        uint64        `json:"errors"`
	ShutdownDrops uint64        `json:"shutdown_drops"`
	Pending       uint64        `json:"pending"`
	Buffered      uint64        `json:"buffered"`
	Rotations     uint64        `json:"rotations"`
	BytesWritten  uint64        `json:"bytes_written"`
	LastWrite     time.Time     `json:"last_write"`
	AverageWrite  time.Duration `json:"average_write_time"`
	MaxWrite      time.Duration `json:"max_write_time"`
}

// Dropped is the number of events that will never be delivered.
func (s SinkStats) Dropped() uint64 {
	return s.QueueFull + s.Errors + s.ShutdownDrops
}

// Snapshot returns the current counters. Outcomes are read before passed so
// a concurrent delivery can never make Pending negative.
func (s *SinkCounters) Snapshot() SinkStats {
	st := SinkStats{
		Name:          s.name,
		Kind:          s.kind,
		Filtered:      s.filtered.Load(),
		Delivered:     s.delivered.Load(),
		QueueFull:     s.queueFull.Load(),
		Errors:        s.errors.Load(),
		ShutdownDrops: s.shutdownDrops.Load(),
		Rotations:     s.rotations.Load(),
		BytesWritten:  s.bytesWritten.Load(),
		MaxWrite:      time.Duration(s.maxWriteTime.Load()),
	}
	if fn := s.buffered.Load(); fn != nil {
		if n := (*fn)(); n > 0 {
			st.Buffered = uint64(n)
		}
	}
	st.Passed = s.passed.Load()
	if done := st.Delivered + st.Dropped(); st.Passed > done {
		st.Pending = st.Passed - done
	}
	if n := s.writeCount.Load(); n > 0 {
		st.AverageWrite = time.Duration(s.totalWriteTime.Load()) / time.Duration(n)
	}
	if ns := s.lastWrite.Load(); ns > 0 {
		st.LastWrite = time.Unix(0, ns)
	}
	return st
}

// Collector handles metrics collection for a logger and its sinks.
type Collector struct {
	// Message counts by level
	messagesByLevel sync.Map // map[int]*atomic.Uint64
	belowLevel      atomic.Uint64

	mu    sync.RWMutex
	sinks map[string]*SinkCounters
	order []string

	// Error metrics
	errorCount     atomic.Uint64
	errorsBySource sync.Map // map[string]*atomic.Uint64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{sinks: make(map[string]*SinkCounters)}
}

// Sink returns the counters for name, registering them on first use.
func (c *Collector) Sink(name, kind string) *SinkCounters {
	c.mu.RLock()
	s, ok := c.sinks[name]
	c.mu.RUnlock()
	if ok {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok = c.sinks[name]; ok {
		return s
	}
	s = &SinkCounters{name: name, kind: kind}
	c.sinks[name] = s
	c.order = append(c.order, name)
	return s
}

// TrackMessageLogged increments the message counter for a level.
func (c *Collector) TrackMessageLogged(level int) {
	val, _ := c.messagesByLevel.LoadOrStore(level, &atomic.Uint64{})
	val.(*atomic.Uint64).Add(1)
}

// TrackBelowLevel records an event discarded by the logger's own threshold.
func (c *Collector) TrackBelowLevel() {
	c.belowLevel.Add(1)
}

// TrackError increments the error counter and tracks by source.
func (c *Collector) TrackError(source string) {
	c.errorCount.Add(1)
	val, _ := c.errorsBySource.LoadOrStore(source, &atomic.Uint64{})
	val.(*atomic.Uint64).Add(1)
}

// GetMessageCount returns the number of messages logged at a specific level.
func (c *Collector) GetMessageCount(level int) uint64 {
	if val, ok := c.messagesByLevel.Load(level); ok {
		return val.(*atomic.Uint64).Load()
	}
	return 0
}

// GetErrorCount returns the total error count.
func (c *Collector) GetErrorCount() uint64 {
	return c.errorCount.Load()
}

// GetErrorCountBySource returns the error count for a specific source.
func (c *Collector) GetErrorCountBySource(source string) uint64 {
	if val, ok := c.errorsBySource.Load(source); ok {
		return val.(*atomic.Uint64).Load()
	}
	return 0
}

// Metrics contains runtime metrics for the logger.
type Metrics struct {
	MessagesLogged map[int]uint64    `json:"messages_logged"`
	BelowLevel     uint64            `json:"below_level"`
	ErrorCount     uint64            `json:"error_count"`
	ErrorsBySource map[string]uint64 `json:"errors_by_source"`
	Sinks          []SinkStats       `json:"sinks"`
}

// GetMetrics returns current metrics snapshot. Sinks are listed in
// registration order.
func (c *Collector) GetMetrics() Metrics {
	m := Metrics{
		MessagesLogged: make(map[int]uint64),
		BelowLevel:     c.belowLevel.Load(),
		ErrorCount:     c.errorCount.Load(),
		ErrorsBySource: make(map[string]uint64),
	}

	c.messagesByLevel.Range(func(key, value interface{}) bool {
		if count := value.(*atomic.Uint64).Load(); count > 0 {
			m.MessagesLogged[key.(int)] = count
		}
		return true
	})
	c.errorsBySource.Range(func(key, value interface{}) bool {
		if count := value.(*atomic.Uint64).Load(); count > 0 {
			m.ErrorsBySource[key.(string)] = count
		}
		return true
	})

	c.mu.RLock()
	for _, name := range c.order {
		m.Sinks = append(m.Sinks, c.sinks[name].Snapshot())
	}
	c.mu.RUnlock()
	return m
}

// Levels returns the levels that have been counted, ascending.
func (m Metrics) Levels() []int {
	levels := make([]int, 0, len(m.MessagesLogged))
	for l := range m.MessagesLogged {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	return levels
}
