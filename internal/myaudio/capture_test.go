package myaudio

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/observability/metrics"
)

// scriptedSource replays a fixed list of reads. After the script it either
// returns io.EOF or blocks until the read context expires.
type scriptedSource struct {
	mu     sync.Mutex
	reads  [][]byte
	block  bool
	closed bool
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Read(ctx context.Context, p []byte) (int, error) {
	s.mu.Lock()
	if len(s.reads) > 0 {
		next := s.reads[0]
		s.reads = s.reads[1:]
		s.mu.Unlock()
		return copy(p, next), nil
	}
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return 0, io.EOF
}

func (s *scriptedSource) Close() error {
	s.closed = true
	return nil
}

func TestNewCaptureTaskValidation(t *testing.T) {
	ring, err := NewAudioRingBuffer(1024)
	require.NoError(t, err)
	src := &scriptedSource{}

	_, err = NewCaptureTask(nil, ring, 512, time.Millisecond)
	require.Error(t, err)

	_, err = NewCaptureTask(src, ring, 511, time.Millisecond)
	require.Error(t, err)

	_, err = NewCaptureTask(src, ring, 2048, time.Millisecond)
	require.Error(t, err)

	_, err = NewCaptureTask(src, ring, 512, 0)
	require.Error(t, err)
}

func TestCaptureTaskPushesChunksUntilEOF(t *testing.T) {
	ring, err := NewAudioRingBuffer(4096)
	require.NoError(t, err)

	src := &scriptedSource{reads: [][]byte{seq(0, 8), seq(8, 8), seq(16, 8)}}
	task, err := NewCaptureTask(src, ring, 8, 50*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, task.Run(t.Context()))
	assert.NoError(t, task.Err())
	assert.False(t, task.Running())

	got, ok := ring.TryTake(24)
	require.True(t, ok)
	assert.Equal(t, seq(0, 24), got)
}

func TestCaptureTaskShortReadIsFatal(t *testing.T) {
	ring, err := NewAudioRingBuffer(4096)
	require.NoError(t, err)

	src := &scriptedSource{reads: [][]byte{seq(0, 8), seq(8, 5)}}
	task, err := NewCaptureTask(src, ring, 8, 50*time.Millisecond)
	require.NoError(t, err)

	err = task.Run(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShortRead)
	assert.True(t, errors.IsCategory(err, errors.CategoryCaptureTransfer))
	assert.Equal(t, err, task.Err())

	// the first full chunk made it, the short one did not
	assert.Equal(t, 8, ring.AvailableLen())
}

func TestCaptureTaskReadTimeoutIsFatal(t *testing.T) {
	ring, err := NewAudioRingBuffer(4096)
	require.NoError(t, err)

	src := &scriptedSource{block: true}
	task, err := NewCaptureTask(src, ring, 8, 5*time.Millisecond)
	require.NoError(t, err)

	err = task.Run(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShortRead)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, errors.IsCategory(err, errors.CategoryCaptureTransfer))
}

func TestCaptureTaskOverflowIsFatal(t *testing.T) {
	ring, err := NewAudioRingBuffer(16)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	audioMetrics, err := metrics.NewAudioMetrics(registry)
	require.NoError(t, err)

	src := &scriptedSource{reads: [][]byte{seq(0, 8), seq(8, 8), seq(16, 8)}}
	task, err := NewCaptureTask(src, ring, 8, 50*time.Millisecond, WithCaptureMetrics(audioMetrics))
	require.NoError(t, err)

	err = task.Run(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverflow)
	assert.True(t, errors.IsCategory(err, errors.CategoryCaptureTransfer))
	assert.Equal(t, 16, ring.AvailableLen())

	count, err := testutil.GatherAndCount(registry, "kws_audio_ring_overflows_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCaptureTaskStopsOnCancel(t *testing.T) {
	ring, err := NewAudioRingBuffer(4096)
	require.NoError(t, err)

	src := &scriptedSource{block: true}
	task, err := NewCaptureTask(src, ring, 8, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- task.Run(ctx) }()

	require.Eventually(t, task.Running, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("capture task did not stop after cancel")
	}
	assert.NoError(t, task.Err())
}
