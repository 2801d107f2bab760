package sink

import (
	"context"
	"sync"

	"github.com/tphakala/kws-go/internal/detection"
	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/logger"
	"github.com/tphakala/kws-go/internal/observability/metrics"
)

// Multi fans the held label and fired detections out to several sinks.
// A failing sink does not stop delivery to the others.
type Multi struct {
	mu         sync.RWMutex
	states     []EventSink
	detections []DetectionSink
	metrics    *metrics.SinkMetrics
}

// NewMulti returns an empty fan-out. m may be nil.
func NewMulti(m *metrics.SinkMetrics) *Multi {
	return &Multi{metrics: m}
}

// AddEventSink registers a receiver for the held label.
func (m *Multi) AddEventSink(s EventSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, s)
}

// AddDetectionSink registers a receiver for detections.
func (m *Multi) AddDetectionSink(s DetectionSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = append(m.detections, s)
}

// Names returns the registered detection sink names.
func (m *Multi) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.detections))
	for i, s := range m.detections {
		names[i] = s.Name()
	}
	return names
}

// Report implements EventSink.
func (m *Multi) Report(label string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for _, s := range m.states {
		if err := s.Report(label); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Name implements DetectionSink.
func (m *Multi) Name() string { return "multi" }

// Deliver implements DetectionSink. It returns the joined errors of the
// sinks that failed; skipped deliveries are not errors.
func (m *Multi) Deliver(ctx context.Context, ev detection.Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for _, s := range m.detections {
		err := s.Deliver(ctx, ev)
		switch {
		case err == nil:
			m.metrics.RecordDelivery(s.Name(), metrics.StatusSuccess)
		case errors.Is(err, ErrSkipped):
			m.metrics.RecordDelivery(s.Name(), metrics.StatusSkipped)
		default:
			m.metrics.RecordDelivery(s.Name(), metrics.StatusError)
			GetLogger().Warn("detection delivery failed",
				logger.String("sink", s.Name()),
				logger.String("label", ev.Label),
				logger.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
