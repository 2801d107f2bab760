// Package analysis assembles the keyword spotter from the settings and runs
// it against a live capture device or an audio file.
package analysis

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/tphakala/kws-go/internal/classifier"
	"github.com/tphakala/kws-go/internal/conf"
	"github.com/tphakala/kws-go/internal/datastore"
	"github.com/tphakala/kws-go/internal/debugstream"
	"github.com/tphakala/kws-go/internal/detection"
	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/features"
	"github.com/tphakala/kws-go/internal/logger"
	"github.com/tphakala/kws-go/internal/mqtt"
	"github.com/tphakala/kws-go/internal/myaudio"
	"github.com/tphakala/kws-go/internal/observability"
	"github.com/tphakala/kws-go/internal/pipeline"
	"github.com/tphakala/kws-go/internal/sink"
)

const (
	sinkQueueSize   = 16
	sinkTimeout     = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// GetLogger returns the analysis logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("analysis")
}

// Engine is one assembled keyword spotter: the capture ring, the pipeline
// and everything it reports to.
type Engine struct {
	Settings  *conf.Settings
	Ring      *myaudio.AudioRingBuffer
	Detector  *detection.Detector
	Pipeline  *pipeline.Pipeline
	Metrics   *observability.Metrics
	Sinks     *sink.Multi
	Indicator *sink.IndicatorSink
	History   datastore.Interface // nil when the store is disabled
	MQTT      mqtt.Client         // nil unless live sinks are enabled

	classifier   classifier.Classifier
	telemetry    *debugstream.Worker
	telemetryOut io.WriteCloser
	async        []*sink.Async

	pushed    atomic.Int64 // bytes pushed through Push, for the audio clock
	closeOnce atomic.Bool
}

// Option configures NewEngine.
type Option func(*options)

type options struct {
	classifier classifier.Classifier
	metrics    *observability.Metrics
	display    sink.Display
	source     string
	liveSinks  bool
	audioClock bool
	clockStart time.Time
	maxSlices  int
	extraSinks []sink.DetectionSink
}

// WithClassifier uses c instead of loading the model from the settings.
func WithClassifier(c classifier.Classifier) Option {
	return func(o *options) { o.classifier = c }
}

// WithMetrics records into m instead of a fresh registry.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithDisplay drives d from the indicator sink instead of the log.
func WithDisplay(d sink.Display) Option {
	return func(o *options) { o.display = d }
}

// WithSourceName sets the source recorded with stored and published detections.
func WithSourceName(name string) Option {
	return func(o *options) { o.source = name }
}

// WithLiveSinks enables the MQTT and push notification sinks.
func WithLiveSinks() Option {
	return func(o *options) { o.liveSinks = true }
}

// WithAudioClock timestamps detections by the position of the consumed
// audio, counted from start, instead of the wall clock. Audio must then be
// fed through Engine.Push.
func WithAudioClock(start time.Time) Option {
	return func(o *options) {
		o.audioClock = true
		o.clockStart = start
	}
}

// WithMaxSlicesPerCycle overrides the per-cycle slice budget.
func WithMaxSlicesPerCycle(n int) Option {
	return func(o *options) { o.maxSlices = n }
}

// WithDetectionSink adds s to the detection sinks.
func WithDetectionSink(s sink.DetectionSink) Option {
	return func(o *options) { o.extraSinks = append(o.extraSinks, s) }
}

// NewEngine builds every component the settings enable. On error whatever
// was already opened is closed again.
func NewEngine(settings *conf.Settings, opts ...Option) (e *Engine, err error) {
	o := options{source: settings.Audio.Source, maxSlices: settings.Pipeline.MaxSlicesPerCycle}
	for _, opt := range opts {
		opt(&o)
	}
	if o.source == "" {
		o.source = "default"
	}

	e = &Engine{Settings: settings}
	built := e
	defer func() {
		if err != nil {
			_ = built.Close()
		}
	}()

	if e.Metrics = o.metrics; e.Metrics == nil {
		if e.Metrics, err = observability.NewMetrics(); err != nil {
			return nil, errors.New(err).Component("analysis").Category(errors.CategorySystem).Build()
		}
	}

	if e.Ring, err = myaudio.NewAudioRingBuffer(settings.Audio.RingCapacity); err != nil {
		return nil, err
	}

	extractor, err := features.NewLogMelExtractor(features.Config{
		SampleRate:     settings.Audio.SampleRate,
		WindowSize:     settings.Audio.WindowSize,
		FFTSize:        settings.Features.FFTSize,
		NumBands:       settings.Features.SliceWidth,
		LowerBandLimit: settings.Features.LowerBandLimit,
		UpperBandLimit: settings.Features.UpperBandLimit,
	})
	if err != nil {
		return nil, errors.New(err).Component("analysis").Category(errors.CategoryConfiguration).Build()
	}

	if e.classifier = o.classifier; e.classifier == nil {
		threads := classifier.OptimalThreads(settings.Model.Threads)
		if e.classifier, err = classifier.NewTFLiteClassifier(settings.Model.Path, threads); err != nil {
			return nil, err
		}
	}

	var detectorOpts []detection.Option
	if o.audioClock {
		detectorOpts = append(detectorOpts, detection.WithClock(func() time.Time {
			return o.clockStart.Add(built.consumedAudio())
		}))
	}
	e.Detector, err = detection.NewDetector(settings.Model.Labels, settings.Detection.Depth,
		settings.Detection.PerFrameThreshold, settings.Detection.Suppression, detectorOpts...)
	if err != nil {
		return nil, err
	}

	if err = e.buildSinks(&o); err != nil {
		return nil, err
	}

	var telemetry pipeline.Telemetry
	if settings.DebugOut.Enabled {
		if e.telemetryOut, err = debugstream.OpenOutput(settings.DebugOut.Output); err != nil {
			return nil, err
		}
		e.telemetry = debugstream.NewWorker(e.telemetryOut, settings.DebugOut.QueueSize,
			debugstream.WithMetrics(e.Metrics.Sinks))
		telemetry = e.telemetry
	}

	deps := pipeline.Deps{
		Ring:          e.Ring,
		Extractor:     extractor,
		Classifier:    e.classifier,
		Detector:      e.Detector,
		DetectionSink: e.Sinks,
		Telemetry:     telemetry,
		Metrics:       e.Metrics.Detection,
		AudioMetrics:  e.Metrics.Audio,
	}
	if e.Indicator != nil {
		deps.StateSink = e.Sinks
	}

	e.Pipeline, err = pipeline.New(pipeline.Config{
		WindowSize:        settings.Audio.WindowSize,
		WindowStride:      settings.Audio.WindowStride,
		SliceCount:        settings.Features.SliceCount,
		SliceWidth:        settings.Features.SliceWidth,
		MaxSlicesPerCycle: o.maxSlices,
		PollInterval:      settings.Pipeline.PollInterval,
	}, deps)
	if err != nil {
		return nil, err
	}

	GetLogger().Info("keyword spotter assembled",
		logger.String("source", o.source),
		logger.Any("labels", settings.Model.Labels),
		logger.Int("trigger_threshold", e.Detector.Threshold()),
		logger.Duration("suppression", settings.Detection.Suppression),
		logger.Any("sinks", e.Sinks.Names()))

	return e, nil
}

func (e *Engine) buildSinks(o *options) error {
	settings := e.Settings
	e.Sinks = sink.NewMulti(e.Metrics.Sinks)
	e.Sinks.AddDetectionSink(sink.NewLogSink(nil))

	if settings.Indicator.Enabled {
		display := o.display
		if display == nil {
			display = sink.LogDisplay{}
		}
		e.Indicator = sink.NewIndicatorSink(settings.Model.Labels, display)
		e.Sinks.AddEventSink(e.Indicator)
	}

	if settings.Store.Enabled {
		store, err := datastore.OpenFromSettings(settings.Store)
		if err != nil {
			return err
		}
		e.History = store
		e.Sinks.AddDetectionSink(sink.NewStoreSink(store, settings.Main.Name, o.source))
	}

	if o.liveSinks && settings.MQTT.Enabled {
		e.MQTT = mqtt.NewClient(mqtt.ConfigFromSettings(settings), e.Metrics.MQTT)
		e.addAsync(sink.NewMQTTSink(e.MQTT, settings.MQTT.Topic, settings.Main.Name, o.source))
	}

	if o.liveSinks && settings.Notify.Enabled {
		notify, err := sink.NewNotifySink(settings)
		if err != nil {
			return err
		}
		e.addAsync(notify)
	}

	for _, s := range o.extraSinks {
		e.Sinks.AddDetectionSink(s)
	}
	return nil
}

func (e *Engine) addAsync(s sink.DetectionSink) {
	a := sink.NewAsync(s, sinkQueueSize, sinkTimeout)
	e.async = append(e.async, a)
	e.Sinks.AddDetectionSink(a)
}

// Push feeds a chunk into the ring and advances the audio clock.
func (e *Engine) Push(chunk []byte) error {
	if err := e.Ring.Push(chunk); err != nil {
		return err
	}
	e.pushed.Add(int64(len(chunk)))
	return nil
}

// consumedAudio is the duration of audio the pipeline has taken from the ring.
func (e *Engine) consumedAudio() time.Duration {
	consumed := e.pushed.Load() - int64(e.Ring.AvailableLen())
	samples := consumed / 2
	return time.Duration(samples) * time.Second / time.Duration(e.Settings.Audio.SampleRate)
}

// ConnectMQTT keeps trying to reach the broker until it succeeds or ctx is
// done. It returns immediately when MQTT is disabled.
func (e *Engine) ConnectMQTT(ctx context.Context, retry time.Duration) {
	if e.MQTT == nil {
		return
	}
	log := GetLogger().With(logger.String("broker", logger.RedactURL(e.Settings.MQTT.Broker)))
	for {
		err := e.MQTT.Connect(ctx)
		if err == nil {
			log.Info("connected to MQTT broker")
			return
		}
		log.Warn("MQTT connection failed, retrying", logger.Error(err), logger.Duration("retry_in", retry))

		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}

// Close stops the telemetry worker and the async sinks, then releases the
// classifier, the broker connection and the store. It is safe to call twice.
func (e *Engine) Close() error {
	if !e.closeOnce.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	for _, a := range e.async {
		if err := a.Close(shutdownTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if e.telemetry != nil {
		if err := e.telemetry.Close(shutdownTimeout); err != nil {
			errs = append(errs, err)
		}
		stats := e.telemetry.Stats()
		GetLogger().Info("telemetry stream closed",
			logger.Uint64("sent", stats.Sent),
			logger.Uint64("dropped", stats.Dropped))
	}
	if e.telemetryOut != nil {
		if err := e.telemetryOut.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing telemetry output: %w", err))
		}
	}
	if e.MQTT != nil {
		e.MQTT.Disconnect()
	}
	if e.History != nil {
		if err := e.History.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.classifier != nil {
		if err := e.classifier.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
