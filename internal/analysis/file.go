package analysis

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/tphakala/kws-go/internal/conf"
	"github.com/tphakala/kws-go/internal/detection"
	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/logger"
	"github.com/tphakala/kws-go/internal/myaudio"
)

// FileReport summarizes one file replay.
type FileReport struct {
	Path       string
	Info       myaudio.AudioInfo
	Cycles     int
	Detections []detection.Event
	Elapsed    time.Duration
}

// collector keeps every detection in arrival order.
type collector struct {
	mu     sync.Mutex
	events []detection.Event
}

func (c *collector) Name() string { return "report" }

func (c *collector) Deliver(_ context.Context, ev detection.Event) error {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	return nil
}

func (c *collector) list() []detection.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]detection.Event(nil), c.events...)
}

// FileAnalysis replays settings.InputFile through the pipeline and prints
// the detections. Timestamps are offsets into the file.
func FileAnalysis(ctx context.Context, settings *conf.Settings, opts ...Option) (*FileReport, error) {
	if err := validateAudioFile(settings.InputFile); err != nil {
		return nil, err
	}

	source, err := myaudio.NewFileSource(settings.InputFile, settings.Audio.SampleRate)
	if err != nil {
		return nil, err
	}
	defer func() { _ = source.Close() }()

	report, err := AnalyzeSource(ctx, settings, source, opts...)
	if err != nil {
		return nil, err
	}
	report.Path = settings.InputFile
	report.Info = source.Info()

	if err := WriteReport(os.Stdout, report); err != nil {
		return report, err
	}
	return report, nil
}

// AnalyzeSource drives the pipeline from a finite source without a capture
// goroutine: a chunk is pushed whenever it fits and the pipeline steps
// otherwise, one slice per cycle. At end of stream the ring is drained.
func AnalyzeSource(ctx context.Context, settings *conf.Settings, source myaudio.Source, opts ...Option) (*FileReport, error) {
	start := time.Now()
	found := &collector{}

	opts = append([]Option{
		WithSourceName(source.Name()),
		WithAudioClock(time.Time{}),
		WithMaxSlicesPerCycle(1),
		WithDetectionSink(found),
	}, opts...)

	engine, err := NewEngine(settings, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			GetLogger().Warn("engine shutdown incomplete", logger.Error(err))
		}
	}()

	report := &FileReport{}
	stride := engine.Pipeline.StrideBytes()
	chunk := make([]byte, settings.Audio.ChunkSize)

	step := func() (int, error) {
		res, err := engine.Pipeline.Step(ctx)
		if err != nil {
			return 0, err
		}
		report.Cycles++
		return res.Slices, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if engine.Ring.Free() < len(chunk) {
			slices, err := step()
			if err != nil {
				return nil, err
			}
			if slices == 0 {
				return nil, errors.Newf("ring of %d bytes cannot hold a %d byte chunk and a %d byte stride",
					engine.Ring.Capacity(), len(chunk), stride).
					Component("analysis").
					Category(errors.CategoryConfiguration).
					Build()
			}
			continue
		}

		n, err := source.Read(ctx, chunk)
		if errors.Is(err, io.EOF) || (err == nil && n == 0) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := engine.Push(chunk[:n]); err != nil {
			return nil, err
		}
	}

	for engine.Ring.AvailableLen() >= stride {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := step(); err != nil {
			return nil, err
		}
	}

	report.Detections = found.list()
	report.Elapsed = time.Since(start)

	GetLogger().Info("file analysis complete",
		logger.String("source", source.Name()),
		logger.Int("cycles", report.Cycles),
		logger.Int("detections", len(report.Detections)),
		logger.Duration("elapsed", report.Elapsed))

	return report, nil
}

// WriteReport prints the detections as a table. Event timestamps from an
// audio clock are offsets from the zero time.
func WriteReport(w io.Writer, r *FileReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "file:\t%s\n", filepath.Base(r.Path))
	if r.Info.SampleRate > 0 {
		fmt.Fprintf(tw, "format:\t%d Hz, %d bit, %d ch, %s\n",
			r.Info.SampleRate, r.Info.BitDepth, r.Info.NumChannels, r.Info.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(tw, "cycles:\t%d\n", r.Cycles)
	fmt.Fprintf(tw, "elapsed:\t%s\n\n", r.Elapsed.Round(time.Millisecond))

	if len(r.Detections) == 0 {
		fmt.Fprintln(tw, "no detections")
		return tw.Flush()
	}

	fmt.Fprintln(tw, "OFFSET\tLABEL\tSCORE\tCONFIDENCE")
	for _, ev := range r.Detections {
		offset := ev.Timestamp.Sub(time.Time{})
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\n", offset.Round(time.Millisecond), ev.Label, ev.Score, ev.Confidence)
	}
	return tw.Flush()
}

// validateAudioFile checks that path is a non-empty regular file.
func validateAudioFile(path string) error {
	if path == "" {
		return errors.Newf("no input file given").
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}

	info, err := os.Stat(path)
	if err != nil {
		return errors.New(fmt.Errorf("error accessing file %s: %w", filepath.Base(path), err)).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Build()
	}
	if info.IsDir() {
		return errors.Newf("the path %s is a directory, not a file", filepath.Base(path)).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}
	if info.Size() == 0 {
		return errors.Newf("file %s is empty (0 bytes)", filepath.Base(path)).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}
