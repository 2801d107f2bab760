package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/kws-go/internal/classifier"
	"github.com/tphakala/kws-go/internal/conf"
	"github.com/tphakala/kws-go/internal/logger"
	"github.com/tphakala/kws-go/internal/myaudio"
	"github.com/tphakala/kws-go/internal/observability"
)

const mqttRetryInterval = 30 * time.Second

// RealtimeAnalysis captures from the configured device and runs the pipeline
// until ctx is cancelled. A failed capture task is logged and not restarted;
// the pipeline keeps classifying the audio it already has.
func RealtimeAnalysis(ctx context.Context, settings *conf.Settings) error {
	logSystemDetails(settings)

	source, err := myaudio.NewMalgoSource(settings.Audio.Source, settings.Audio.SampleRate)
	if err != nil {
		return err
	}
	defer func() {
		if err := source.Close(); err != nil {
			GetLogger().Warn("closing capture device failed", logger.Error(err))
		}
	}()

	return Run(ctx, settings, source, WithSourceName(source.Name()), WithLiveSinks())
}

// Run assembles an engine around source and runs capture, the pipeline and
// the HTTP endpoint until ctx is cancelled.
func Run(ctx context.Context, settings *conf.Settings, source myaudio.Source, opts ...Option) error {
	engine, err := NewEngine(settings, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			GetLogger().Warn("engine shutdown incomplete", logger.Error(err))
		}
	}()

	capture, err := myaudio.NewCaptureTask(source, engine.Ring, settings.Audio.ChunkSize, settings.Audio.ReadTimeout,
		myaudio.WithCaptureMetrics(engine.Metrics.Audio))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// capture failures end only the capture task
		if err := capture.Run(gctx); err != nil {
			GetLogger().Error("audio capture stopped, pipeline continues without new audio", logger.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		return engine.Pipeline.Run(gctx)
	})

	if engine.MQTT != nil {
		g.Go(func() error {
			engine.ConnectMQTT(gctx, mqttRetryInterval)
			return nil
		})
	}

	if settings.Metrics.Enabled {
		endpoint := observability.NewEndpoint(settings.Metrics.Listen, engine.Metrics, engine.Pipeline, engine.Ring, engine.History)
		g.Go(func() error {
			return endpoint.Run(gctx)
		})
	}

	GetLogger().Info("realtime analysis started",
		logger.String("source", source.Name()),
		logger.Int("sample_rate", settings.Audio.SampleRate),
		logger.Bool("metrics", settings.Metrics.Enabled))

	err = g.Wait()
	GetLogger().Info("realtime analysis stopped")
	return err
}

// logSystemDetails prints the host and CPU the analyzer runs on.
func logSystemDetails(settings *conf.Settings) {
	info, err := host.Info()
	if err != nil {
		GetLogger().Warn("error retrieving host info", logger.Error(err))
	} else {
		fmt.Printf("System details: %s %s %s on %s\n", info.OS, info.Platform, info.PlatformVersion, info.KernelArch)
	}

	brand, physical, logical := classifier.CPUDescription()
	threads := classifier.OptimalThreads(settings.Model.Threads)
	fmt.Printf("CPU: %s, %d cores, %d threads, using %d inference threads\n", brand, physical, logical, threads)
	fmt.Printf("Listening for %v, trigger threshold %d, suppression %v\n",
		settings.Model.Labels, settings.Detection.TriggerThreshold(), settings.Detection.Suppression)
}
