// capture.go: the background task that moves chunks from a Source into the ring.
package myaudio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/logger"
	"github.com/tphakala/kws-go/internal/observability/metrics"
)

// Source delivers 16-bit little-endian mono PCM. Read fills p completely or
// returns the number of bytes it managed before ctx expired. io.EOF marks the
// end of a finite source.
type Source interface {
	Name() string
	Read(ctx context.Context, p []byte) (int, error)
	Close() error
}

// CaptureTask reads fixed-size chunks from a Source with a bounded wait and
// pushes each one into the ring. A short read or a ring overflow ends the
// task; it is not restarted.
type CaptureTask struct {
	source      Source
	ring        *AudioRingBuffer
	chunkSize   int
	readTimeout time.Duration
	metrics     *metrics.AudioMetrics

	running atomic.Bool
	errMu   sync.Mutex
	err     error
}

// CaptureOption configures a CaptureTask.
type CaptureOption func(*CaptureTask)

// WithCaptureMetrics records chunk, level and overflow metrics.
func WithCaptureMetrics(m *metrics.AudioMetrics) CaptureOption {
	return func(t *CaptureTask) {
		t.metrics = m
	}
}

// NewCaptureTask creates a capture task. chunkSize must be a positive even
// byte count no larger than the ring.
func NewCaptureTask(source Source, ring *AudioRingBuffer, chunkSize int, readTimeout time.Duration, opts ...CaptureOption) (*CaptureTask, error) {
	if source == nil || ring == nil {
		return nil, errors.Newf("capture task requires a source and a ring buffer").
			Component("myaudio").
			Category(errors.CategoryValidation).
			Build()
	}
	if chunkSize <= 0 || chunkSize%2 != 0 || chunkSize > ring.Capacity() {
		return nil, errors.Newf("invalid capture chunk size %d for ring of %d bytes", chunkSize, ring.Capacity()).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Build()
	}
	if readTimeout <= 0 {
		return nil, errors.Newf("invalid capture read timeout %v", readTimeout).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Build()
	}

	t := &CaptureTask{
		source:      source,
		ring:        ring,
		chunkSize:   chunkSize,
		readTimeout: readTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Run captures until ctx is cancelled, the source ends, or a transfer fails.
// Cancellation and end of stream return nil. A failed transfer returns a
// capture-transfer error, which is also kept for Err.
func (t *CaptureTask) Run(ctx context.Context) error {
	log := GetLogger().With(logger.String("source", t.source.Name()))
	t.running.Store(true)
	defer t.running.Store(false)

	log.Info("capture started",
		logger.Int("chunk_bytes", t.chunkSize),
		logger.Duration("read_timeout", t.readTimeout))

	chunk := make([]byte, t.chunkSize)
	for {
		if ctx.Err() != nil {
			log.Info("capture stopped")
			return nil
		}

		readCtx, cancel := context.WithTimeout(ctx, t.readTimeout)
		start := time.Now()
		n, err := t.source.Read(readCtx, chunk)
		cancel()

		if ctx.Err() != nil {
			log.Info("capture stopped")
			return nil
		}
		if n == 0 && errors.Is(err, io.EOF) {
			log.Info("capture source exhausted")
			return nil
		}
		if n != len(chunk) || (err != nil && !errors.Is(err, io.EOF)) {
			cause := fmt.Errorf("%w: %d of %d bytes", ErrShortRead, n, len(chunk))
			if err != nil {
				cause = fmt.Errorf("%w: %d of %d bytes: %w", ErrShortRead, n, len(chunk), err)
			}
			return t.fail(log, errors.New(cause).
				Component("myaudio").
				Category(errors.CategoryCaptureTransfer).
				Context("source", t.source.Name()).
				Context("bytes_read", n).
				Timing("capture_read", time.Since(start)).
				Build())
		}

		if err := t.ring.Push(chunk); err != nil {
			t.metrics.RecordOverflow(t.source.Name())
			return t.fail(log, errors.New(err).
				Component("myaudio").
				Category(errors.CategoryCaptureTransfer).
				Context("source", t.source.Name()).
				Context("ring_capacity", t.ring.Capacity()).
				Build())
		}

		if t.metrics != nil {
			level := CalculateAudioLevel(chunk)
			t.metrics.RecordChunk(t.source.Name(), n, level.DBFS, level.Clipping)
			t.metrics.SetRingFill(t.ring.AvailableLen(), t.ring.Capacity())
		}
	}
}

func (t *CaptureTask) fail(log logger.Logger, err error) error {
	t.errMu.Lock()
	t.err = err
	t.errMu.Unlock()

	t.metrics.RecordCaptureStopped(t.source.Name())
	log.Error("capture task stopped", logger.Error(err))
	return err
}

// Running reports whether Run is executing.
func (t *CaptureTask) Running() bool {
	return t.running.Load()
}

// Err returns the transfer error that ended the task, if any.
func (t *CaptureTask) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}
