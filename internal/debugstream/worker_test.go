package debugstream

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kwserrors "github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/observability/metrics"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf.Bytes()...)
}

// gateWriter blocks every write until release is closed.
type gateWriter struct {
	release chan struct{}
	syncBuffer
}

func (g *gateWriter) Write(p []byte) (int, error) {
	<-g.release
	return g.syncBuffer.Write(p)
}

type shortWriter struct{ writes int }

func (s *shortWriter) Write(p []byte) (int, error) {
	s.writes++
	return len(p) - 1, nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("pipe closed") }

func TestWorkerWritesPacketsInOrder(t *testing.T) {
	out := &syncBuffer{}
	w := NewWorker(out, 8)

	for i := range 5 {
		require.True(t, w.Submit([]int8{int8(i), 1}, []uint8{2}))
	}
	require.NoError(t, w.Close(time.Second))

	d := NewDecoder(bytes.NewReader(out.Bytes()), 2, 1)
	for i := range 5 {
		p, err := d.Next()
		require.NoError(t, err)
		assert.Equal(t, int8(i), p.Features[0])
	}
	assert.Equal(t, uint64(5), w.Stats().Sent)
}

func TestWorkerDropsNewestWhenFull(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewSinkMetrics(reg)
	require.NoError(t, err)

	out := &gateWriter{release: make(chan struct{})}
	w := NewWorker(out, 2, WithMetrics(m))

	// first packet may be taken by the goroutine and block in Write
	accepted := 0
	for i := range 10 {
		if w.Submit([]int8{int8(i)}, []uint8{0}) {
			accepted++
		}
	}
	assert.GreaterOrEqual(t, accepted, 2)
	assert.LessOrEqual(t, accepted, 3)

	close(out.release)
	require.NoError(t, w.Close(time.Second))

	stats := w.Stats()
	assert.Equal(t, uint64(accepted), stats.Sent)
	assert.Equal(t, uint64(10-accepted), stats.Dropped)

	d := NewDecoder(bytes.NewReader(out.Bytes()), 1, 1)
	for i := range accepted {
		p, err := d.Next()
		require.NoError(t, err)
		assert.Equal(t, int8(i), p.Features[0], "oldest packets survive")
	}
	expected := fmt.Sprintf(`
# HELP kws_telemetry_packets_total Total number of telemetry packets by outcome
# TYPE kws_telemetry_packets_total counter
kws_telemetry_packets_total{status="dropped"} %d
kws_telemetry_packets_total{status="success"} %d
`, 10-accepted, accepted)
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "kws_telemetry_packets_total"))
}

func TestWorkerShortWriteStopsTelemetryOnly(t *testing.T) {
	out := &shortWriter{}
	w := NewWorker(out, 4)

	require.True(t, w.Submit([]int8{1, 2, 3}, []uint8{4}))
	require.Eventually(t, func() bool { return w.Stats().Failed }, time.Second, time.Millisecond)

	assert.False(t, w.Submit([]int8{1, 2, 3}, []uint8{4}), "failed worker rejects packets")

	err := w.Close(time.Second)
	require.Error(t, err)
	assert.True(t, kwserrors.IsCategory(err, kwserrors.CategoryTelemetryTransfer))
	assert.Equal(t, 1, out.writes)
}

func TestWorkerWriteErrorIsTelemetryTransfer(t *testing.T) {
	w := NewWorker(failingWriter{}, 1)
	w.Submit([]int8{1}, []uint8{1})

	err := w.Close(time.Second)
	require.Error(t, err)
	assert.True(t, kwserrors.IsCategory(err, kwserrors.CategoryTelemetryTransfer))
	assert.Contains(t, err.Error(), "pipe closed")
}

func TestWorkerSubmitAfterClose(t *testing.T) {
	w := NewWorker(&syncBuffer{}, 1)
	require.NoError(t, w.Close(time.Second))
	require.NoError(t, w.Close(time.Second), "close is idempotent")

	assert.False(t, w.Submit([]int8{1}, []uint8{1}))
}

func TestOpenOutputCreatesFile(t *testing.T) {
	path := t.TempDir() + "/telemetry.bin"
	out, err := OpenOutput(path)
	require.NoError(t, err)
	_, err = out.Write(Encode([]int8{1}, []uint8{2}))
	require.NoError(t, err)
	require.NoError(t, out.Close())

	in, err := OpenInput(path)
	require.NoError(t, err)
	defer in.Close()

	p, err := NewDecoder(in, 1, 1).Next()
	require.NoError(t, err)
	assert.Equal(t, []uint8{2}, p.Posteriors)
}
