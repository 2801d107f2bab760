package myaudio

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestWAV writes interleaved samples as a PCM WAV file and returns its path.
func writeTestWAV(t *testing.T, sampleRate, bitDepth, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: channels},
		SourceBitDepth: bitDepth,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestWavSourceReadsMonoPCM(t *testing.T) {
	data := make([]int, 10)
	for i := range data {
		data[i] = (i + 1) * 100
	}
	path := writeTestWAV(t, 16000, 16, 1, data)

	src, err := NewWavSource(path, 16000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	assert.Equal(t, path, src.Name())
	assert.Equal(t, 16000, src.Info().SampleRate)
	assert.Equal(t, 1, src.Info().NumChannels)

	chunk := make([]byte, 8)
	var samples []int16
	for {
		n, err := src.Read(context.Background(), chunk)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Equal(t, len(chunk), n)
		samples = append(samples, BytesToSamples(chunk)...)
	}

	// 10 samples in chunks of 4, zero padded to 12
	require.Len(t, samples, 12)
	for i := range 10 {
		assert.Equal(t, int16((i+1)*100), samples[i])
	}
	assert.Equal(t, []int16{0, 0}, samples[10:])
}

func TestWavSourceDownmixesStereo(t *testing.T) {
	path := writeTestWAV(t, 16000, 16, 2, []int{100, 300, -200, -400})

	src, err := NewWavSource(path, 16000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	chunk := make([]byte, 4)
	n, err := src.Read(context.Background(), chunk)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	assert.Equal(t, []int16{200, -300}, BytesToSamples(chunk))
}

func TestWavSourceRejectsSampleRateMismatch(t *testing.T) {
	path := writeTestWAV(t, 44100, 16, 1, []int{1, 2, 3, 4})

	_, err := NewWavSource(path, 16000)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWavSourceRejectsNonWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not RIFF data"), 0o600))

	_, err := NewWavSource(path, 16000)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWavSourceMissingFile(t *testing.T) {
	_, err := NewWavSource(filepath.Join(t.TempDir(), "absent.wav"), 16000)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWavSourceHonoursCancelledContext(t *testing.T) {
	path := writeTestWAV(t, 16000, 16, 1, []int{1, 2, 3, 4})
	src, err := NewWavSource(path, 16000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Read(ctx, make([]byte, 4))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWavSourceFeedsCaptureTask(t *testing.T) {
	data := make([]int, 64)
	for i := range data {
		data[i] = i
	}
	src, err := NewWavSource(writeTestWAV(t, 16000, 16, 1, data), 16000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	ring, err := NewAudioRingBuffer(1024)
	require.NoError(t, err)
	task, err := NewCaptureTask(src, ring, 32, 50*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, task.Run(context.Background()))
	raw, ok := ring.TryTake(128)
	require.True(t, ok)
	assert.Equal(t, int16(63), BytesToSamples(raw)[63])
}
