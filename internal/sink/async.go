package sink

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/kws-go/internal/detection"
	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/logger"
)

// Async runs a slow DetectionSink on its own goroutine behind a bounded
// queue, so network sinks never hold up the pipeline. A full queue drops
// the newest detection.
type Async struct {
	inner   DetectionSink
	queue   chan detection.Event
	timeout time.Duration

	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
	done    chan struct{}
}

// NewAsync starts a worker delivering to inner. Each delivery is bounded by
// timeout.
func NewAsync(inner DetectionSink, queueSize int, timeout time.Duration) *Async {
	a := &Async{
		inner:   inner,
		queue:   make(chan detection.Event, max(queueSize, 1)),
		timeout: timeout,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Name implements DetectionSink.
func (a *Async) Name() string { return a.inner.Name() }

// Deliver queues ev. It never blocks and returns ErrSkipped when dropped.
func (a *Async) Deliver(_ context.Context, ev detection.Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return ErrSkipped
	}
	select {
	case a.queue <- ev:
		return nil
	default:
		a.dropped.Add(1)
		GetLogger().Warn("detection dropped, sink queue full",
			logger.String("sink", a.inner.Name()),
			logger.String("label", ev.Label))
		return ErrSkipped
	}
}

// Dropped returns the number of detections dropped on a full queue.
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.inner.Deliver(ctx, ev); err != nil && !errors.Is(err, ErrSkipped) {
			GetLogger().Warn("async delivery failed",
				logger.String("sink", a.inner.Name()),
				logger.String("label", ev.Label),
				logger.Error(err))
		}
		cancel()
	}
}

// Close delivers what is queued and stops the worker, giving up after timeout.
func (a *Async) Close(timeout time.Duration) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("sink %s did not stop within %v", a.inner.Name(), timeout)
	}
}
