// Package detection turns per-frame classifier scores into debounced keyword
// detections. PosteriorSmoother keeps a moving sum of the last H score
// vectors, DebounceTrigger thresholds that sum and holds the last detected
// category until a new one fires.
package detection

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/logger"
)

// Category is an index into the model's label table.
type Category int

// NoDetection is the state held before the first detection. It never
// collides with a real category, silence included.
const NoDetection Category = -1

// MaxScore is the largest per-frame score a classifier can emit.
const MaxScore = 255

var (
	// ErrLengthMismatch is returned when a score vector has the wrong length.
	ErrLengthMismatch = errors.NewStd("posterior length mismatch")
	// ErrUnknownCategory is returned when an index is outside the label table.
	ErrUnknownCategory = errors.NewStd("unknown category")
)

// String returns the index, or "none" for NoDetection.
func (c Category) String() string {
	if c == NoDetection {
		return "none"
	}
	return fmt.Sprintf("%d", int(c))
}

// Event is one confirmed detection.
type Event struct {
	ID         uuid.UUID
	Category   Category
	Label      string
	Score      int     // moving sum at the time of firing
	Confidence float64 // Score divided by the largest possible sum
	Timestamp  time.Time
}

func newEvent(c Category, score int, now time.Time) *Event {
	return &Event{
		ID:        uuid.New(),
		Category:  c,
		Score:     score,
		Timestamp: now,
	}
}

// GetLogger returns the detection logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("detection")
}
