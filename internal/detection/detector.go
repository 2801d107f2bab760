package detection

import (
	"fmt"
	"time"

	"github.com/tphakala/kws-go/internal/logger"
)

// Result is the outcome of one Process call.
type Result struct {
	Top           Category
	Accumulator   []int
	Reported      Category
	ReportedLabel string
	Event         *Event // nil unless a detection fired this frame
}

// Detector owns the smoother, the trigger and the label table for one
// pipeline instance.
type Detector struct {
	smoother *PosteriorSmoother
	trigger  *DebounceTrigger
	labels   []string
	now      func() time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// NewDetector builds a detector for len(labels) categories. The trigger
// level is perFrameThreshold times depth.
func NewDetector(labels []string, depth, perFrameThreshold int, suppression time.Duration, opts ...Option) (*Detector, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("detector needs at least one label")
	}
	if perFrameThreshold < 0 || perFrameThreshold > MaxScore {
		return nil, fmt.Errorf("per-frame threshold %d outside 0..%d", perFrameThreshold, MaxScore)
	}

	smoother, err := NewPosteriorSmoother(depth, len(labels))
	if err != nil {
		return nil, err
	}

	d := &Detector{
		smoother: smoother,
		trigger:  NewDebounceTrigger(perFrameThreshold*depth, suppression),
		labels:   append([]string(nil), labels...),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Process runs one classifier output through smoothing and debouncing.
func (d *Detector) Process(posteriors []uint8) (Result, error) {
	top, acc, err := d.smoother.Update(posteriors)
	if err != nil {
		return Result{}, err
	}

	reported, ev := d.trigger.Evaluate(top, acc, d.now())
	res := Result{
		Top:           top,
		Accumulator:   acc,
		Reported:      reported,
		ReportedLabel: d.Label(reported),
		Event:         ev,
	}

	if ev != nil {
		ev.Label = d.Label(ev.Category)
		ev.Confidence = float64(ev.Score) / float64(d.smoother.Depth()*MaxScore)
		GetLogger().Info("keyword detected",
			logger.String("label", ev.Label),
			logger.Int("score", ev.Score),
			logger.Float64("confidence", ev.Confidence),
			logger.String("event_id", ev.ID.String()))
	}

	return res, nil
}

// Label maps a category to its label. NoDetection maps to "".
func (d *Detector) Label(c Category) string {
	if c < 0 || int(c) >= len(d.labels) {
		return ""
	}
	return d.labels[c]
}

// CategoryOf returns the index of label.
func (d *Detector) CategoryOf(label string) (Category, error) {
	for i, l := range d.labels {
		if l == label {
			return Category(i), nil
		}
	}
	return NoDetection, fmt.Errorf("%w: %q", ErrUnknownCategory, label)
}

// Labels returns a copy of the label table.
func (d *Detector) Labels() []string {
	return append([]string(nil), d.labels...)
}

// State returns the held category, its label and when it last fired.
func (d *Detector) State() (Category, string, time.Time) {
	c, at := d.trigger.State()
	return c, d.Label(c), at
}

// Threshold returns the accumulator level that fires a detection.
func (d *Detector) Threshold() int { return d.trigger.Threshold() }

// Reset clears the moving sum and the held category.
func (d *Detector) Reset() {
	d.smoother.Reset()
	d.trigger.Reset()
}
