package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DetectionMetrics contains Prometheus metrics for the pipeline loop,
// inference and the detection stage. All methods are safe to call on a nil
// receiver.
type DetectionMetrics struct {
	cyclesTotal       prometheus.Counter
	slicesTotal       prometheus.Counter
	cycleDuration     prometheus.Histogram
	inferenceDuration prometheus.Histogram
	accumulator       *prometheus.GaugeVec
	reported          *prometheus.GaugeVec
	detectionsTotal   *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
	registry          *prometheus.Registry
}

// NewDetectionMetrics creates and registers the detection metrics.
func NewDetectionMetrics(registry *prometheus.Registry) (*DetectionMetrics, error) {
	m := &DetectionMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register detection metrics: %w", err)
	}
	return m, nil
}

func (m *DetectionMetrics) initMetrics() {
	m.cyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kws_pipeline_cycles_total",
		Help: "Total number of pipeline cycles that ran the classifier",
	})

	m.slicesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kws_pipeline_feature_slices_total",
		Help: "Total number of feature slices computed",
	})

	m.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kws_pipeline_cycle_duration_seconds",
		Help:    "Time taken by one pipeline cycle",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	})

	m.inferenceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kws_inference_duration_seconds",
		Help:    "Time taken by one classifier invocation",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	m.accumulator = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kws_detection_accumulator",
			Help: "Smoothed posterior sum per category",
		},
		[]string{"label"},
	)

	m.reported = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kws_detection_reported",
			Help: "1 for the currently reported category, 0 otherwise",
		},
		[]string{"label"},
	)

	m.detectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kws_detections_total",
			Help: "Total number of trigger events per category",
		},
		[]string{"label"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kws_pipeline_errors_total",
			Help: "Total number of pipeline errors by stage",
		},
		[]string{"stage"},
	)
}

// RecordCycle records one classifier cycle and the slices it consumed.
func (m *DetectionMetrics) RecordCycle(slices int, duration time.Duration) {
	if m == nil {
		return
	}
	m.cyclesTotal.Inc()
	m.slicesTotal.Add(float64(slices))
	m.cycleDuration.Observe(duration.Seconds())
}

// ObserveInference records the duration of one classifier invocation.
func (m *DetectionMetrics) ObserveInference(duration time.Duration) {
	if m == nil {
		return
	}
	m.inferenceDuration.Observe(duration.Seconds())
}

// SetAccumulator publishes the smoothed scores; labels and acc share indices.
func (m *DetectionMetrics) SetAccumulator(labels []string, acc []int) {
	if m == nil {
		return
	}
	for i := range min(len(labels), len(acc)) {
		m.accumulator.WithLabelValues(labels[i]).Set(float64(acc[i]))
	}
}

// SetReported marks label as the reported category. An empty label clears all.
func (m *DetectionMetrics) SetReported(labels []string, label string) {
	if m == nil {
		return
	}
	for _, l := range labels {
		value := 0.0
		if l == label {
			value = 1
		}
		m.reported.WithLabelValues(l).Set(value)
	}
}

// RecordDetection counts a trigger event.
func (m *DetectionMetrics) RecordDetection(label string) {
	if m == nil {
		return
	}
	m.detectionsTotal.WithLabelValues(label).Inc()
}

// RecordError counts an error at the given pipeline stage.
func (m *DetectionMetrics) RecordError(stage string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(stage).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *DetectionMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.cyclesTotal.Desc()
	ch <- m.slicesTotal.Desc()
	ch <- m.cycleDuration.Desc()
	ch <- m.inferenceDuration.Desc()
	m.accumulator.Describe(ch)
	m.reported.Describe(ch)
	m.detectionsTotal.Describe(ch)
	m.errorsTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DetectionMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.cyclesTotal
	ch <- m.slicesTotal
	ch <- m.cycleDuration
	ch <- m.inferenceDuration
	m.accumulator.Collect(ch)
	m.reported.Collect(ch)
	m.detectionsTotal.Collect(ch)
	m.errorsTotal.Collect(ch)
}
