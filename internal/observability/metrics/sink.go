package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SinkMetrics counts deliveries to the detection sinks and the telemetry
// side channel. All methods are safe to call on a nil receiver.
type SinkMetrics struct {
	deliveriesTotal  *prometheus.CounterVec
	telemetryPackets *prometheus.CounterVec
	telemetryQueue   prometheus.Gauge
	registry         *prometheus.Registry
}

// NewSinkMetrics creates and registers the sink metrics.
func NewSinkMetrics(registry *prometheus.Registry) (*SinkMetrics, error) {
	m := &SinkMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register sink metrics: %w", err)
	}
	return m, nil
}

func (m *SinkMetrics) initMetrics() {
	m.deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kws_sink_deliveries_total",
			Help: "Total number of detection deliveries per sink",
		},
		[]string{"sink", "status"}, // status: success, error, skipped
	)

	m.telemetryPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kws_telemetry_packets_total",
			Help: "Total number of telemetry packets by outcome",
		},
		[]string{"status"}, // status: success, dropped, error
	)

	m.telemetryQueue = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kws_telemetry_queue_length",
		Help: "Telemetry packets waiting to be written",
	})
}

// RecordDelivery counts one delivery attempt to a sink.
func (m *SinkMetrics) RecordDelivery(sink, status string) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(sink, status).Inc()
}

// RecordTelemetryPacket counts one telemetry packet outcome.
func (m *SinkMetrics) RecordTelemetryPacket(status string) {
	if m == nil {
		return
	}
	m.telemetryPackets.WithLabelValues(status).Inc()
}

// SetTelemetryQueueLength updates the telemetry queue gauge.
func (m *SinkMetrics) SetTelemetryQueueLength(n int) {
	if m == nil {
		return
	}
	m.telemetryQueue.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *SinkMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.deliveriesTotal.Describe(ch)
	m.telemetryPackets.Describe(ch)
	ch <- m.telemetryQueue.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *SinkMetrics) Collect(ch chan<- prometheus.Metric) {
	m.deliveriesTotal.Collect(ch)
	m.telemetryPackets.Collect(ch)
	ch <- m.telemetryQueue
}
