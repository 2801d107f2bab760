// Package pipeline runs the foreground keyword spotting loop. Each cycle
// drains whole strides from the capture ring, turns each stride into one
// feature slice, classifies the feature window once, then smooths, debounces
// and reports.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/kws-go/internal/classifier"
	"github.com/tphakala/kws-go/internal/detection"
	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/features"
	"github.com/tphakala/kws-go/internal/logger"
	"github.com/tphakala/kws-go/internal/myaudio"
	"github.com/tphakala/kws-go/internal/observability/metrics"
	"github.com/tphakala/kws-go/internal/sink"
)

// Telemetry receives the classifier input and output of every cycle.
type Telemetry interface {
	Submit(features []int8, posteriors []uint8) bool
}

// Config holds the pipeline geometry.
type Config struct {
	WindowSize        int // samples per analysis window
	WindowStride      int // new samples per slice
	SliceCount        int // slices per classifier input
	SliceWidth        int // features per slice
	MaxSlicesPerCycle int // 0 means SliceCount
	PollInterval      time.Duration
}

// Deps are the collaborators of a Pipeline. Sinks, Telemetry and the
// metrics are optional.
type Deps struct {
	Ring          *myaudio.AudioRingBuffer
	Extractor     features.Extractor
	Classifier    classifier.Classifier
	Detector      *detection.Detector
	StateSink     sink.EventSink
	DetectionSink sink.DetectionSink
	Telemetry     Telemetry
	Metrics       *metrics.DetectionMetrics
	AudioMetrics  *metrics.AudioMetrics
}

// StepResult describes one cycle.
type StepResult struct {
	Slices     int  // feature slices added this cycle
	Underrun   bool // the ring ran out before the slice budget was used
	Posteriors []uint8
	detection.Result
}

// Pipeline owns the per-instance window, smoothing and trigger state. Step
// and Run must be called from one goroutine; State may be called from any.
type Pipeline struct {
	cfg         Config
	deps        Deps
	window      *myaudio.SlidingAudioWindow
	featureWin  *features.SlidingFeatureWindow
	strideBytes int
	maxSlices   int
	labels      []string

	underrunLog *rate.Limiter
	errorLog    *rate.Limiter

	cycles    atomic.Uint64
	slices    atomic.Uint64
	underruns atomic.Uint64

	stateMu sync.RWMutex
	state   State
}

// GetLogger returns the pipeline logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("pipeline")
}

// New validates the classifier against the pipeline geometry and builds a
// pipeline. A contract mismatch is returned as a classifier-contract error
// and the pipeline is not built.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Ring == nil || deps.Extractor == nil || deps.Classifier == nil || deps.Detector == nil {
		return nil, errors.Newf("pipeline requires a ring, an extractor, a classifier and a detector").
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}
	if deps.Extractor.SliceWidth() != cfg.SliceWidth {
		return nil, errors.Newf("extractor produces %d features per slice, want %d", deps.Extractor.SliceWidth(), cfg.SliceWidth).
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()
	}

	labels := deps.Detector.Labels()
	if err := classifier.ValidateContract(deps.Classifier.Contract(), cfg.SliceCount, cfg.SliceWidth, len(labels)); err != nil {
		return nil, err
	}

	window, err := myaudio.NewSlidingAudioWindow(cfg.WindowSize, cfg.WindowSize-cfg.WindowStride)
	if err != nil {
		return nil, errors.New(err).Component("pipeline").Category(errors.CategoryConfiguration).Build()
	}
	featureWin, err := features.NewSlidingFeatureWindow(cfg.SliceCount, cfg.SliceWidth)
	if err != nil {
		return nil, errors.New(err).Component("pipeline").Category(errors.CategoryConfiguration).Build()
	}

	maxSlices := cfg.MaxSlicesPerCycle
	if maxSlices <= 0 {
		maxSlices = cfg.SliceCount
	}

	p := &Pipeline{
		cfg:         cfg,
		deps:        deps,
		window:      window,
		featureWin:  featureWin,
		strideBytes: window.Stride() * 2,
		maxSlices:   maxSlices,
		labels:      labels,
		underrunLog: rate.NewLimiter(rate.Every(10*time.Second), 1),
		errorLog:    rate.NewLimiter(rate.Every(time.Second), 3),
		state:       State{Reported: detection.NoDetection, Accumulator: make([]int, len(labels))},
	}

	GetLogger().Info("pipeline ready",
		logger.Int("stride_bytes", p.strideBytes),
		logger.Int("max_slices_per_cycle", maxSlices),
		logger.String("contract", deps.Classifier.Contract().String()))

	return p, nil
}

// StrideBytes returns the ring bytes consumed per feature slice.
func (p *Pipeline) StrideBytes() int {
	return p.strideBytes
}

// Step runs one cycle. Running out of audio is not an error, the cycle
// classifies the feature window it already has.
func (p *Pipeline) Step(ctx context.Context) (StepResult, error) {
	start := time.Now()
	var res StepResult

	for res.Slices < p.maxSlices {
		raw, ok := p.deps.Ring.TryTake(p.strideBytes)
		if !ok {
			res.Underrun = true
			break
		}
		if err := p.window.AdvanceBytes(raw); err != nil {
			return res, p.stageError(metrics.StageFeatures, err)
		}
		slice, err := p.deps.Extractor.Extract(p.window.CurrentWindow())
		if err != nil {
			return res, p.stageError(metrics.StageFeatures, err)
		}
		if err := p.featureWin.AppendSlice(slice); err != nil {
			return res, p.stageError(metrics.StageFeatures, err)
		}
		res.Slices++
	}

	if res.Underrun {
		p.underruns.Add(1)
		p.deps.AudioMetrics.RecordUnderrun()
		if p.underrunLog.Allow() {
			GetLogger().Debug("buffer underrun, classifying the current window",
				logger.Int("slices", res.Slices),
				logger.Int("available", p.deps.Ring.AvailableLen()),
				logger.Int("wanted", p.strideBytes))
		}
	}

	flattened := p.featureWin.Flattened()
	inferenceStart := time.Now()
	posteriors, err := p.deps.Classifier.Classify(flattened)
	if err != nil {
		return res, p.stageError(metrics.StageInference, err)
	}
	p.deps.Metrics.ObserveInference(time.Since(inferenceStart))
	res.Posteriors = posteriors

	res.Result, err = p.deps.Detector.Process(posteriors)
	if err != nil {
		return res, p.stageError(metrics.StageDetection, err)
	}

	p.deliver(ctx, res.Result)

	if p.deps.Telemetry != nil {
		p.deps.Telemetry.Submit(flattened, posteriors)
	}

	p.cycles.Add(1)
	p.slices.Add(uint64(res.Slices))
	p.deps.Metrics.RecordCycle(res.Slices, time.Since(start))
	p.deps.Metrics.SetAccumulator(p.labels, res.Accumulator)
	p.deps.AudioMetrics.SetRingFill(p.deps.Ring.AvailableLen(), p.deps.Ring.Capacity())
	p.updateState(res)

	return res, nil
}

func (p *Pipeline) deliver(ctx context.Context, r detection.Result) {
	if p.deps.StateSink != nil {
		if err := p.deps.StateSink.Report(r.ReportedLabel); err != nil && p.errorLog.Allow() {
			GetLogger().Warn("state sink failed", logger.String("label", r.ReportedLabel), logger.Error(err))
		}
	}

	if r.Event == nil {
		return
	}
	p.deps.Metrics.RecordDetection(r.Event.Label)
	p.deps.Metrics.SetReported(p.labels, r.ReportedLabel)
	if p.deps.DetectionSink != nil {
		if err := p.deps.DetectionSink.Deliver(ctx, *r.Event); err != nil {
			p.deps.Metrics.RecordError(metrics.StageDelivery)
		}
	}
}

func (p *Pipeline) stageError(stage string, err error) error {
	p.deps.Metrics.RecordError(stage)
	category := errors.CategoryFeature
	switch stage {
	case metrics.StageInference:
		category = errors.CategoryInference
	case metrics.StageDetection:
		category = errors.CategoryClassifierContract
	}
	return errors.New(fmt.Errorf("%s stage: %w", stage, err)).
		Component("pipeline").
		Category(category).
		Context("stage", stage).
		Build()
}

// Run calls Step every poll interval until ctx is cancelled. Cycle errors
// are logged and counted, the loop keeps going.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	GetLogger().Info("pipeline started", logger.Duration("poll_interval", p.cfg.PollInterval))
	defer GetLogger().Info("pipeline stopped", logger.Uint64("cycles", p.cycles.Load()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if _, err := p.Step(ctx); err != nil && p.errorLog.Allow() {
			GetLogger().Error("pipeline cycle failed", logger.Error(err))
		}
	}
}

// Reset clears the audio window, the feature window and the detector.
func (p *Pipeline) Reset() {
	p.window.Reset()
	p.featureWin.Reset()
	p.deps.Detector.Reset()
}
