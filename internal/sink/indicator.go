package sink

import (
	"fmt"
	"sync"

	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/logger"
)

// Color is an indicator color.
type Color struct {
	Name    string
	R, G, B uint8
}

// Palette maps label index to indicator color. Index 0 is off.
var Palette = []Color{
	{"black", 0, 0, 0},
	{"orange", 255, 128, 0},
	{"green", 0, 255, 0},
	{"red", 255, 0, 0},
	{"blue", 0, 0, 255},
	{"yellow", 255, 255, 0},
	{"cyan", 0, 255, 255},
	{"magenta", 255, 0, 255},
	{"purple", 128, 0, 255},
	{"mint", 62, 180, 137},
}

// Off is the color shown for no detection and for unknown labels.
var Off = Palette[0]

// ErrUnknownLabel is returned for labels outside the label table.
var ErrUnknownLabel = errors.NewStd("unknown label")

// Display shows one color at a time.
type Display interface {
	SetColor(c Color) error
}

// IndicatorSink maps the held label to a palette color and drives a Display.
// The display is only touched when the label changes.
type IndicatorSink struct {
	mu      sync.Mutex
	display Display
	index   map[string]int
	current string
	color   Color
	started bool
}

// NewIndicatorSink returns an indicator for labels. Labels past the
// palette share the off color.
func NewIndicatorSink(labels []string, display Display) *IndicatorSink {
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	return &IndicatorSink{display: display, index: index, color: Off}
}

// ColorFor returns the palette color for label.
func (s *IndicatorSink) ColorFor(label string) (Color, error) {
	if label == "" {
		return Off, nil
	}
	i, ok := s.index[label]
	if !ok || i >= len(Palette) {
		return Off, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	return Palette[i], nil
}

// Report implements EventSink.
func (s *IndicatorSink) Report(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started && label == s.current {
		return nil
	}

	color, colorErr := s.ColorFor(label)
	if err := s.display.SetColor(color); err != nil {
		return errors.New(err).
			Component("sink").
			Category(errors.CategorySystem).
			Context("sink", "indicator").
			Context("color", color.Name).
			Build()
	}

	s.started = true
	s.current = label
	s.color = color
	return colorErr
}

// Current returns the held label and its color.
func (s *IndicatorSink) Current() (string, Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.color
}

// LogDisplay is a Display that logs color changes.
type LogDisplay struct{}

// SetColor implements Display.
func (LogDisplay) SetColor(c Color) error {
	GetLogger().Info("indicator",
		logger.String("color", c.Name),
		logger.String("rgb", fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)))
	return nil
}
