package pipeline

import (
	"time"

	"github.com/tphakala/kws-go/internal/detection"
)

// State is a snapshot of the pipeline for the HTTP API and the CLI.
type State struct {
	Cycles        uint64             `json:"cycles"`
	Slices        uint64             `json:"slices"`
	Underruns     uint64             `json:"underruns"`
	Labels        []string           `json:"labels"`
	Top           string             `json:"top"`
	Accumulator   []int              `json:"accumulator"`
	Reported      detection.Category `json:"reported"`
	ReportedLabel string             `json:"reported_label"`
	LastDetection *detection.Event   `json:"last_detection,omitempty"`
	Detections    uint64             `json:"detections"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func (p *Pipeline) updateState(res StepResult) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	p.state.Top = p.deps.Detector.Label(res.Top)
	p.state.Accumulator = res.Accumulator
	p.state.Reported = res.Reported
	p.state.ReportedLabel = res.ReportedLabel
	if res.Event != nil {
		ev := *res.Event
		p.state.LastDetection = &ev
		p.state.Detections++
	}
	p.state.UpdatedAt = time.Now()
}

// State returns a copy of the latest cycle state.
func (p *Pipeline) State() State {
	p.stateMu.RLock()
	s := p.state
	p.stateMu.RUnlock()

	s.Cycles = p.cycles.Load()
	s.Slices = p.slices.Load()
	s.Underruns = p.underruns.Load()
	s.Labels = append([]string(nil), p.labels...)
	s.Accumulator = append([]int(nil), s.Accumulator...)
	if s.LastDetection != nil {
		ev := *s.LastDetection
		s.LastDetection = &ev
	}
	return s
}
