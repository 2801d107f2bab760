package sink

import (
	"context"

	"github.com/tphakala/kws-go/internal/detection"
	"github.com/tphakala/kws-go/internal/logger"
)

// LogSink writes detections to the module logger.
type LogSink struct {
	log logger.Logger
}

// NewLogSink returns a LogSink writing to log, or to the sink logger when nil.
func NewLogSink(log logger.Logger) *LogSink {
	if log == nil {
		log = GetLogger()
	}
	return &LogSink{log: log}
}

// Name implements DetectionSink.
func (s *LogSink) Name() string { return "log" }

// Deliver implements DetectionSink.
func (s *LogSink) Deliver(_ context.Context, ev detection.Event) error {
	s.log.Info("detection",
		logger.String("label", ev.Label),
		logger.Int("category", int(ev.Category)),
		logger.Int("score", ev.Score),
		logger.Float64("confidence", ev.Confidence),
		logger.Time("timestamp", ev.Timestamp),
		logger.String("event_id", ev.ID.String()))
	return nil
}
