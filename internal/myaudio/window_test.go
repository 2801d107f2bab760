package myaudio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(start, n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(start + i)
	}
	return s
}

func TestNewSlidingAudioWindowValidation(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		overlap int
		wantErr bool
	}{
		{"default geometry", 480, 160, false},
		{"no overlap", 4, 0, false},
		{"overlap equals width", 4, 4, true},
		{"negative overlap", 4, -1, true},
		{"zero width", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewSlidingAudioWindow(tt.width, tt.overlap)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, w.CurrentWindow(), tt.width)
			assert.Equal(t, tt.width-tt.overlap, w.Stride())
		})
	}
}

func TestSlidingAudioWindowAdvance(t *testing.T) {
	w, err := NewSlidingAudioWindow(6, 2)
	require.NoError(t, err)

	require.NoError(t, w.Advance(ramp(1, 4)))
	assert.Equal(t, []int16{0, 0, 1, 2, 3, 4}, w.CurrentWindow())

	require.NoError(t, w.Advance(ramp(5, 4)))
	assert.Equal(t, []int16{3, 4, 5, 6, 7, 8}, w.CurrentWindow())

	require.NoError(t, w.Advance(ramp(9, 4)))
	assert.Equal(t, []int16{7, 8, 9, 10, 11, 12}, w.CurrentWindow())
}

func TestSlidingAudioWindowDefaultGeometryOverlap(t *testing.T) {
	w, err := NewSlidingAudioWindow(480, 160)
	require.NoError(t, err)

	require.NoError(t, w.Advance(ramp(0, 320)))
	require.NoError(t, w.Advance(ramp(320, 320)))

	win := w.CurrentWindow()
	require.Len(t, win, 480)
	// oldest 160 samples are the tail of the first stride
	assert.Equal(t, int16(160), win[0])
	assert.Equal(t, int16(639), win[479])
}

func TestSlidingAudioWindowLengthMismatch(t *testing.T) {
	w, err := NewSlidingAudioWindow(6, 2)
	require.NoError(t, err)
	require.NoError(t, w.Advance(ramp(1, 4)))
	before := append([]int16(nil), w.CurrentWindow()...)

	for _, n := range []int{0, 3, 5} {
		err := w.Advance(ramp(100, n))
		require.ErrorIs(t, err, ErrLengthMismatch)
		assert.Equal(t, before, w.CurrentWindow(), "window must be unchanged after a rejected advance")
	}
}

func TestSlidingAudioWindowAdvanceBytes(t *testing.T) {
	w, err := NewSlidingAudioWindow(4, 2)
	require.NoError(t, err)

	require.NoError(t, w.AdvanceBytes(SamplesToBytes([]int16{-1, 32767})))
	assert.Equal(t, []int16{0, 0, -1, 32767}, w.CurrentWindow())

	require.ErrorIs(t, w.AdvanceBytes([]byte{1, 2, 3}), ErrLengthMismatch)
}

func TestSlidingAudioWindowReset(t *testing.T) {
	w, err := NewSlidingAudioWindow(4, 1)
	require.NoError(t, err)
	require.NoError(t, w.Advance([]int16{1, 2, 3}))

	w.Reset()
	assert.Equal(t, []int16{0, 0, 0, 0}, w.CurrentWindow())
}

func TestSampleByteConversionLittleEndian(t *testing.T) {
	raw := SamplesToBytes([]int16{0x0102, -2})
	assert.Equal(t, []byte{0x02, 0x01, 0xfe, 0xff}, raw)
	assert.Equal(t, []int16{0x0102, -2}, BytesToSamples(raw))
	assert.Equal(t, []int16{0x0102}, BytesToSamples(raw[:3]))
}

func TestCalculateAudioLevel(t *testing.T) {
	silence := CalculateAudioLevel(make([]byte, 64))
	assert.Equal(t, 0, silence.Level)
	assert.False(t, silence.Clipping)

	loud := make([]int16, 32)
	for i := range loud {
		loud[i] = 32767
	}
	clipped := CalculateAudioLevel(SamplesToBytes(loud))
	assert.True(t, clipped.Clipping)
	assert.GreaterOrEqual(t, clipped.Level, 95)

	quiet := make([]int16, 32)
	for i := range quiet {
		quiet[i] = 328 // about -40 dBFS
	}
	level := CalculateAudioLevel(SamplesToBytes(quiet))
	assert.InDelta(t, -40, level.DBFS, 0.5)
	assert.InDelta(t, 40, level.Level, 2)

	assert.Equal(t, 0, CalculateAudioLevel(nil).Level)
}
