package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "logpipe"

// PrometheusCollector exposes a Collector to a Prometheus registry. Values
// are read from the Collector on every scrape.
type PrometheusCollector struct {
	source      *Collector
	logger      string
	levelName   func(int) string
	events      *prometheus.Desc
	belowLevel  *prometheus.Desc
	sinkEvents  *prometheus.Desc
	sinkPending *prometheus.Desc
	buffered    *prometheus.Desc
	rotations   *prometheus.Desc
	bytes       *prometheus.Desc
	maxWrite    *prometheus.Desc
	errors      *prometheus.Desc
}

var _ prometheus.Collector = (*PrometheusCollector)(nil)

// NewPrometheusCollector wraps c. logger becomes a constant label on every
// metric; levelName renders level numbers and may be nil.
func NewPrometheusCollector(c *Collector, logger string, levelName func(int) string) *PrometheusCollector {
	if levelName == nil {
		levelName = strconv.Itoa
	}
	constLabels := prometheus.Labels{"logger": logger}
	return &PrometheusCollector{
		source:    c,
		logger:    logger,
		levelName: levelName,
		events: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "events_total"),
			"Events accepted by the logger, by level.",
			[]string{"level"}, constLabels),
		belowLevel: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "events_below_level_total"),
			"Events discarded by the logger threshold.",
			nil, constLabels),
		sinkEvents: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sink", "events_total"),
			"Events seen by a sink, by outcome.",
			[]string{"sink", "kind", "outcome"}, constLabels),
		sinkPending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sink", "pending_events"),
			"Events queued or buffered and not yet delivered.",
			[]string{"sink", "kind"}, constLabels),
		buffered: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sink", "buffered_events"),
			"Events held by a batching layer awaiting a flush.",
			[]string{"sink", "kind"}, constLabels),
		rotations: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sink", "rotations_total"),
			"File rotations performed by a sink.",
			[]string{"sink", "kind"}, constLabels),
		bytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sink", "written_bytes_total"),
			"Rendered bytes handed to a sink transport.",
			[]string{"sink", "kind"}, constLabels),
		maxWrite: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sink", "max_write_seconds"),
			"Slowest single transport write.",
			[]string{"sink", "kind"}, constLabels),
		errors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "internal_errors_total"),
			"Internal errors reported by source.",
			[]string{"source"}, constLabels),
	}
}

// Describe implements prometheus.Collector.
func (p *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.events
	ch <- p.belowLevel
	ch <- p.sinkEvents
	ch <- p.sinkPending
	ch <- p.buffered
	ch <- p.rotations
	ch <- p.bytes
	ch <- p.maxWrite
	ch <- p.errors
}

// Collect implements prometheus.Collector.
func (p *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	m := p.source.GetMetrics()

	for _, level := range m.Levels() {
		ch <- prometheus.MustNewConstMetric(p.events, prometheus.CounterValue,
			float64(m.MessagesLogged[level]), p.levelName(level))
	}
	ch <- prometheus.MustNewConstMetric(p.belowLevel, prometheus.CounterValue, float64(m.BelowLevel))

	for source, n := range m.ErrorsBySource {
		ch <- prometheus.MustNewConstMetric(p.errors, prometheus.CounterValue, float64(n), source)
	}

	for _, s := range m.Sinks {
		outcomes := []struct {
			name  string
			value uint64
		}{
			{"filtered", s.Filtered},
			{"delivered", s.Delivered},
			{"queue_full", s.QueueFull},
			{"error", s.Errors},
			{"shutdown_drop", s.ShutdownDrops},
		}
		for _, o := range outcomes {
			ch <- prometheus.MustNewConstMetric(p.sinkEvents, prometheus.CounterValue,
				float64(o.value), s.Name, s.Kind, o.name)
		}
		ch <- prometheus.MustNewConstMetric(p.sinkPending, prometheus.GaugeValue, float64(s.Pending), s.Name, s.Kind)
		ch <- prometheus.MustNewConstMetric(p.buffered, prometheus.GaugeValue, float64(s.Buffered), s.Name, s.Kind)
		ch <- prometheus.MustNewConstMetric(p.rotations, prometheus.CounterValue, float64(s.Rotations), s.Name, s.Kind)
		ch <- prometheus.MustNewConstMetric(p.bytes, prometheus.CounterValue, float64(s.BytesWritten), s.Name, s.Kind)
		ch <- prometheus.MustNewConstMetric(p.maxWrite, prometheus.GaugeValue, s.MaxWrite.Seconds(), s.Name, s.Kind)
	}
}
