package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports a Stream's counters as a prometheus.Registry for an
// operator-facing /metrics endpoint, reading them live from
// Stream.Snapshot. The GetSystemInfo/GetMemoryStats syscalls read the
// process and memory managers directly and do not use this registry.
type Metrics struct {
	registry *prometheus.Registry

	produced  prometheus.GaugeFunc
	consumed  prometheus.GaugeFunc
	dropped   prometheus.GaugeFunc
	active    prometheus.GaugeFunc
	utilization prometheus.GaugeFunc
}

// NewMetrics registers gauges backed by live reads of stream's counters.
func NewMetrics(stream *Stream) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.produced = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "kernel_event_stream_produced_total",
		Help: "Events pushed onto the kernel event stream.",
	}, func() float64 { return float64(stream.Snapshot().Produced) })

	m.consumed = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "kernel_event_stream_consumed_total",
		Help: "Events popped off the kernel event stream by subscribers.",
	}, func() float64 { return float64(stream.Snapshot().Consumed) })

	m.dropped = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "kernel_event_stream_dropped_total",
		Help: "Events rejected because the stream ring was full.",
	}, func() float64 { return float64(stream.Snapshot().Dropped) })

	m.active = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "kernel_event_stream_active_subscribers",
		Help: "Currently registered event stream subscribers.",
	}, func() float64 { return float64(stream.Snapshot().ActiveSubscribers) })

	m.utilization = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "kernel_event_stream_utilization_ratio",
		Help: "Fraction of the event ring's capacity currently occupied.",
	}, func() float64 { return stream.Snapshot().Utilization })

	m.registry.MustRegister(m.produced, m.consumed, m.dropped, m.active, m.utilization)
	return m
}

// Registry exposes the underlying prometheus.Registry for an HTTP
// handler (promhttp.HandlerFor) to gather from.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
