// Package sink delivers pipeline output. An EventSink receives the held
// label every cycle, a DetectionSink receives each fired detection.
package sink

import (
	"context"

	"github.com/tphakala/kws-go/internal/detection"
	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/logger"
)

// ErrSkipped is returned by a DetectionSink that chose not to deliver.
var ErrSkipped = errors.NewStd("delivery skipped")

// EventSink receives the currently held label, "" before the first detection.
type EventSink interface {
	Report(label string) error
}

// DetectionSink receives fired detections.
type DetectionSink interface {
	Name() string
	Deliver(ctx context.Context, ev detection.Event) error
}

// GetLogger returns the sink logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("sink")
}
