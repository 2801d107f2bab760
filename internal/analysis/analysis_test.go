package analysis

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/kws-go/internal/classifier"
	"github.com/tphakala/kws-go/internal/conf"
	"github.com/tphakala/kws-go/internal/datastore"
	"github.com/tphakala/kws-go/internal/debugstream"
	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/sink"
)

// bytesPerSecond of 16 kHz mono s16le.
const bytesPerSecond = 32000

func testSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Main.Name = "test-node"
	s.Audio = conf.AudioSettings{
		SampleRate:   16000,
		ChunkSize:    512,
		ReadTimeout:  100 * time.Millisecond,
		RingCapacity: 65536,
		WindowSize:   480,
		WindowStride: 320,
	}
	s.Features = conf.FeatureSettings{FFTSize: 512, SliceWidth: 40, SliceCount: 49, LowerBandLimit: 125, UpperBandLimit: 7500}
	s.Model = conf.ModelSettings{Path: "unused.tflite", Labels: []string{"silence", "unknown", "yes", "no"}}
	s.Detection = conf.DetectionSettings{Depth: 3, PerFrameThreshold: 200, Suppression: 1500 * time.Millisecond}
	s.Pipeline = conf.PipelineSettings{PollInterval: 10 * time.Millisecond}
	return s
}

// fixedClassifier always scores the same way.
type fixedClassifier struct {
	mu       sync.Mutex
	contract classifier.Contract
	scores   []uint8
	calls    int
	closed   bool
}

func newFixed(scores ...uint8) *fixedClassifier {
	return &fixedClassifier{
		contract: classifier.Contract{
			InputDims:  []int{1, 49 * 40},
			InputType:  classifier.ElementInt8,
			OutputLen:  len(scores),
			OutputType: classifier.ElementUInt8,
		},
		scores: scores,
	}
}

func (c *fixedClassifier) Contract() classifier.Contract { return c.contract }

func (c *fixedClassifier) Classify([]int8) ([]uint8, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return append([]uint8(nil), c.scores...), nil
}

func (c *fixedClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// silenceSource yields a fixed amount of zero audio, then io.EOF.
type silenceSource struct {
	remaining int
	pace      time.Duration // per Read, zero for as fast as possible
}

func (s *silenceSource) Name() string { return "silence" }
func (s *silenceSource) Close() error { return nil }

func (s *silenceSource) Read(ctx context.Context, p []byte) (int, error) {
	if s.pace > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(s.pace):
		}
	}
	if s.remaining <= 0 {
		return 0, io.EOF
	}
	n := min(len(p), s.remaining)
	clear(p[:n])
	s.remaining -= n
	return n, nil
}

// recordingDisplay keeps every color it was asked to show.
type recordingDisplay struct {
	mu     sync.Mutex
	colors []string
}

func (d *recordingDisplay) SetColor(c sink.Color) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.colors = append(d.colors, c.Name)
	return nil
}

func TestAnalyzeSourceReportsKeyword(t *testing.T) {
	settings := testSettings()
	source := &silenceSource{remaining: bytesPerSecond}

	report, err := AnalyzeSource(context.Background(), settings, source, WithClassifier(newFixed(0, 0, 255, 0)))
	require.NoError(t, err)

	// one second is 50 strides of 20 ms, one slice per cycle
	assert.Equal(t, 50, report.Cycles)
	require.Len(t, report.Detections, 1)

	ev := report.Detections[0]
	assert.Equal(t, "yes", ev.Label)
	assert.Equal(t, 765, ev.Score)
	// the accumulator first reaches 600 on the third cycle
	assert.Equal(t, 60*time.Millisecond, ev.Timestamp.Sub(time.Time{}))
}

func TestAnalyzeSourceSuppressionOnAudioClock(t *testing.T) {
	settings := testSettings()
	// four seconds overflow the ring, so pushes and steps interleave
	source := &silenceSource{remaining: 4 * bytesPerSecond}

	report, err := AnalyzeSource(context.Background(), settings, source, WithClassifier(newFixed(0, 0, 255, 0)))
	require.NoError(t, err)

	assert.Equal(t, 200, report.Cycles)
	var offsets []time.Duration
	for _, ev := range report.Detections {
		offsets = append(offsets, ev.Timestamp.Sub(time.Time{}))
	}
	assert.Equal(t, []time.Duration{60 * time.Millisecond, 1560 * time.Millisecond, 3060 * time.Millisecond}, offsets)
}

func TestAnalyzeSourceBelowThreshold(t *testing.T) {
	settings := testSettings()
	source := &silenceSource{remaining: bytesPerSecond}

	report, err := AnalyzeSource(context.Background(), settings, source, WithClassifier(newFixed(55, 0, 199, 0)))
	require.NoError(t, err)
	assert.Empty(t, report.Detections)
}

func TestAnalyzeSourceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := AnalyzeSource(ctx, testSettings(), &silenceSource{remaining: bytesPerSecond}, WithClassifier(newFixed(0, 0, 255, 0)))
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewEngineRejectsContractMismatch(t *testing.T) {
	fake := newFixed(0, 0, 255) // three scores for four labels

	_, err := NewEngine(testSettings(), WithClassifier(fake))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryClassifierContract))
	assert.ErrorIs(t, err, classifier.ErrContractViolation)
	assert.True(t, fake.closed, "classifier released on failed startup")
}

func TestEngineStoreAndIndicator(t *testing.T) {
	settings := testSettings()
	settings.Store = conf.StoreSettings{Enabled: true, Path: ":memory:"}
	settings.Indicator.Enabled = true
	display := &recordingDisplay{}

	engine, err := NewEngine(settings,
		WithClassifier(newFixed(0, 0, 255, 0)),
		WithDisplay(display),
		WithMaxSlicesPerCycle(1))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, engine.Close()) })

	assert.Equal(t, []string{"log", "store"}, engine.Sinks.Names())

	require.NoError(t, engine.Push(make([]byte, 3*engine.Pipeline.StrideBytes())))
	for range 3 {
		_, err := engine.Pipeline.Step(context.Background())
		require.NoError(t, err)
	}

	rows, err := engine.History.List(context.Background(), datastore.ListOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "yes", rows[0].Label)
	assert.Equal(t, "test-node", rows[0].SourceNode)

	label, color := engine.Indicator.Current()
	assert.Equal(t, "yes", label)
	assert.Equal(t, "green", color.Name)
	assert.Contains(t, display.colors, "green")
}

func TestAnalyzeSourceWritesTelemetry(t *testing.T) {
	settings := testSettings()
	out := filepath.Join(t.TempDir(), "telemetry.bin")
	settings.DebugOut = conf.DebugSettings{Enabled: true, Output: out, QueueSize: 512}

	report, err := AnalyzeSource(context.Background(), settings, &silenceSource{remaining: bytesPerSecond / 2},
		WithClassifier(newFixed(0, 0, 255, 0)))
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, data, report.Cycles*debugstream.PacketLen(49*40, 4))

	dec := debugstream.NewDecoder(bytes.NewReader(data), 49*40, 4)
	packets := 0
	for {
		p, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, 2, p.Top())
		packets++
	}
	assert.Equal(t, report.Cycles, packets)
}

func TestWriteReport(t *testing.T) {
	settings := testSettings()
	report, err := AnalyzeSource(context.Background(), settings, &silenceSource{remaining: bytesPerSecond},
		WithClassifier(newFixed(0, 0, 255, 0)))
	require.NoError(t, err)
	report.Path = "/tmp/recordings/yes.wav"

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, report))

	out := buf.String()
	assert.Contains(t, out, "yes.wav")
	assert.Contains(t, out, "OFFSET")
	assert.Contains(t, out, "60ms")

	buf.Reset()
	require.NoError(t, WriteReport(&buf, &FileReport{Path: "quiet.wav"}))
	assert.Contains(t, buf.String(), "no detections")
}

func TestValidateAudioFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.wav")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	tests := []struct {
		name     string
		path     string
		category errors.ErrorCategory
	}{
		{"no path", "", errors.CategoryValidation},
		{"missing", filepath.Join(dir, "absent.wav"), errors.CategoryFileIO},
		{"directory", dir, errors.CategoryValidation},
		{"empty", empty, errors.CategoryValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAudioFile(tt.path)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, tt.category), "got %v", err)
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	settings := testSettings()
	source := &silenceSource{remaining: 10 * bytesPerSecond, pace: 16 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := Run(ctx, settings, source, WithClassifier(newFixed(0, 0, 255, 0)))
	require.NoError(t, err)
}
