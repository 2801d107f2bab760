package debugstream

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/logger"
	"github.com/tphakala/kws-go/internal/observability/metrics"
)

// GetLogger returns the telemetry logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("debugstream")
}

// Stats holds worker counters.
type Stats struct {
	Sent    uint64
	Dropped uint64
	Queued  int
	Failed  bool
}

// Worker writes telemetry packets from a bounded queue on its own
// goroutine. A full queue drops the newest packet. A failed or short write
// stops the worker and nothing else.
type Worker struct {
	out     io.Writer
	queue   chan []byte
	metrics *metrics.SinkMetrics

	mu     sync.RWMutex
	closed bool

	failed  atomic.Bool
	err     atomic.Pointer[errors.EnhancedError]
	sent    atomic.Uint64
	dropped atomic.Uint64

	done chan struct{}
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithMetrics records packet outcomes.
func WithMetrics(m *metrics.SinkMetrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

// NewWorker starts a worker writing to out.
func NewWorker(out io.Writer, queueSize int, opts ...WorkerOption) *Worker {
	w := &Worker{
		out:   out,
		queue: make(chan []byte, max(queueSize, 1)),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.run()
	return w
}

// Submit encodes one packet and queues it without blocking. It returns
// false when the packet was dropped.
func (w *Worker) Submit(features []int8, posteriors []uint8) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed || w.failed.Load() {
		w.drop()
		return false
	}

	select {
	case w.queue <- Encode(features, posteriors):
		w.metrics.SetTelemetryQueueLength(len(w.queue))
		return true
	default:
		w.drop()
		return false
	}
}

func (w *Worker) drop() {
	if w.dropped.Add(1) == 1 {
		GetLogger().Warn("telemetry packet dropped, further drops are only counted")
	}
	w.metrics.RecordTelemetryPacket(metrics.StatusDropped)
}

func (w *Worker) run() {
	defer close(w.done)

	for packet := range w.queue {
		w.metrics.SetTelemetryQueueLength(len(w.queue))
		if w.failed.Load() {
			continue
		}

		start := time.Now()
		n, err := w.out.Write(packet)
		if err == nil && n < len(packet) {
			err = io.ErrShortWrite
		}
		if err != nil {
			w.fail(err, n, len(packet), time.Since(start))
			continue
		}

		w.sent.Add(1)
		w.metrics.RecordTelemetryPacket(metrics.StatusSuccess)
	}
}

func (w *Worker) fail(err error, written, want int, elapsed time.Duration) {
	ee := errors.New(fmt.Errorf("telemetry packet transfer: %w", err)).
		Component("debugstream").
		Category(errors.CategoryTelemetryTransfer).
		Context("bytes_written", written).
		Context("packet_size", want).
		Timing("telemetry-write", elapsed).
		Build()

	w.err.Store(ee)
	w.failed.Store(true)
	w.metrics.RecordTelemetryPacket(metrics.StatusError)

	GetLogger().Error("telemetry stream stopped",
		logger.Error(ee),
		logger.Int("bytes_written", written),
		logger.Int("packet_size", want))
}

// Err returns the error that stopped the worker, if any.
func (w *Worker) Err() error {
	if ee := w.err.Load(); ee != nil {
		return ee
	}
	return nil
}

// Stats returns the worker counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Sent:    w.sent.Load(),
		Dropped: w.dropped.Load(),
		Queued:  len(w.queue),
		Failed:  w.failed.Load(),
	}
}

// Close stops accepting packets, writes what is queued and waits for the
// worker goroutine, giving up after timeout.
func (w *Worker) Close(timeout time.Duration) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return w.Err()
	case <-time.After(timeout):
		return fmt.Errorf("telemetry worker did not stop within %v", timeout)
	}
}

// OpenOutput opens the telemetry destination. "-" selects stdout.
func OpenOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec // G304: path is from settings
	if err != nil {
		return nil, errors.New(err).
			Component("debugstream").
			Category(errors.CategoryFileIO).
			Context("operation", "open-telemetry-output").
			Build()
	}
	return f, nil
}

// OpenInput opens a telemetry capture for reading. "-" selects stdin.
func OpenInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path) //nolint:gosec // G304: path is a command argument
	if err != nil {
		return nil, errors.New(err).
			Component("debugstream").
			Category(errors.CategoryFileIO).
			Context("operation", "open-telemetry-input").
			Build()
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
