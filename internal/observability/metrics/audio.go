package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// AudioMetrics contains Prometheus metrics for the capture path and the ring buffer.
// All methods are safe to call on a nil receiver.
type AudioMetrics struct {
	chunksTotal     *prometheus.CounterVec
	bytesTotal      *prometheus.CounterVec
	inputLevel      *prometheus.GaugeVec
	clippingTotal   *prometheus.CounterVec
	overflowsTotal  *prometheus.CounterVec
	captureStopped  *prometheus.CounterVec
	underrunsTotal  prometheus.Counter
	ringFillBytes   prometheus.Gauge
	ringCapacity    prometheus.Gauge
	ringUtilization prometheus.Gauge
	registry        *prometheus.Registry
}

// NewAudioMetrics creates and registers the audio metrics.
func NewAudioMetrics(registry *prometheus.Registry) (*AudioMetrics, error) {
	m := &AudioMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register audio metrics: %w", err)
	}
	return m, nil
}

func (m *AudioMetrics) initMetrics() {
	m.chunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kws_audio_chunks_total",
			Help: "Total number of capture chunks pushed into the ring buffer",
		},
		[]string{"source"},
	)

	m.bytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kws_audio_bytes_total",
			Help: "Total PCM bytes captured",
		},
		[]string{"source"},
	)

	m.inputLevel = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kws_audio_input_level_dbfs",
			Help: "RMS level of the most recent capture chunk in dBFS",
		},
		[]string{"source"},
	)

	m.clippingTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kws_audio_clipping_chunks_total",
			Help: "Total number of capture chunks containing clipped samples",
		},
		[]string{"source"},
	)

	m.overflowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kws_audio_ring_overflows_total",
			Help: "Total number of capture chunks rejected by a full ring buffer",
		},
		[]string{"source"},
	)

	m.captureStopped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kws_audio_capture_stopped_total",
			Help: "Total number of capture tasks ended by a transfer error",
		},
		[]string{"source"},
	)

	m.underrunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kws_audio_ring_underruns_total",
		Help: "Total number of pipeline reads that found less than one stride of audio",
	})

	m.ringFillBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kws_audio_ring_fill_bytes",
		Help: "Bytes waiting in the ring buffer",
	})

	m.ringCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kws_audio_ring_capacity_bytes",
		Help: "Ring buffer capacity in bytes",
	})

	m.ringUtilization = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kws_audio_ring_utilization_ratio",
		Help: "Ring buffer utilization ratio (0.0 to 1.0)",
	})
}

// RecordChunk counts one captured chunk and updates the input level.
func (m *AudioMetrics) RecordChunk(source string, bytes int, levelDBFS float64, clipping bool) {
	if m == nil {
		return
	}
	m.chunksTotal.WithLabelValues(source).Inc()
	m.bytesTotal.WithLabelValues(source).Add(float64(bytes))
	m.inputLevel.WithLabelValues(source).Set(levelDBFS)
	if clipping {
		m.clippingTotal.WithLabelValues(source).Inc()
	}
}

// RecordOverflow counts a chunk rejected by the ring buffer.
func (m *AudioMetrics) RecordOverflow(source string) {
	if m == nil {
		return
	}
	m.overflowsTotal.WithLabelValues(source).Inc()
}

// RecordCaptureStopped counts a capture task ended by an error.
func (m *AudioMetrics) RecordCaptureStopped(source string) {
	if m == nil {
		return
	}
	m.captureStopped.WithLabelValues(source).Inc()
}

// RecordUnderrun counts a take that found too little audio.
func (m *AudioMetrics) RecordUnderrun() {
	if m == nil {
		return
	}
	m.underrunsTotal.Inc()
}

// SetRingFill updates the ring buffer fill gauges.
func (m *AudioMetrics) SetRingFill(available, capacity int) {
	if m == nil {
		return
	}
	m.ringFillBytes.Set(float64(available))
	m.ringCapacity.Set(float64(capacity))
	if capacity > 0 {
		m.ringUtilization.Set(float64(available) / float64(capacity))
	}
}

// Describe implements the prometheus.Collector interface.
func (m *AudioMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.chunksTotal.Describe(ch)
	m.bytesTotal.Describe(ch)
	m.inputLevel.Describe(ch)
	m.clippingTotal.Describe(ch)
	m.overflowsTotal.Describe(ch)
	m.captureStopped.Describe(ch)
	ch <- m.underrunsTotal.Desc()
	ch <- m.ringFillBytes.Desc()
	ch <- m.ringCapacity.Desc()
	ch <- m.ringUtilization.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *AudioMetrics) Collect(ch chan<- prometheus.Metric) {
	m.chunksTotal.Collect(ch)
	m.bytesTotal.Collect(ch)
	m.inputLevel.Collect(ch)
	m.clippingTotal.Collect(ch)
	m.overflowsTotal.Collect(ch)
	m.captureStopped.Collect(ch)
	ch <- m.underrunsTotal
	ch <- m.ringFillBytes
	ch <- m.ringCapacity
	ch <- m.ringUtilization
}
