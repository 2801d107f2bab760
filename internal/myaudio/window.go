package myaudio

import (
	"encoding/binary"
	"fmt"
)

// SlidingAudioWindow holds the most recent width samples. Each Advance keeps
// the trailing overlap samples of the previous window and appends exactly
// width-overlap new samples after them.
type SlidingAudioWindow struct {
	samples []int16
	overlap int
}

// NewSlidingAudioWindow creates a zero-filled window. overlap must satisfy
// 0 <= overlap < width.
func NewSlidingAudioWindow(width, overlap int) (*SlidingAudioWindow, error) {
	if width <= 0 {
		return nil, fmt.Errorf("invalid window width: %d", width)
	}
	if overlap < 0 || overlap >= width {
		return nil, fmt.Errorf("invalid window overlap: %d, must be in [0, %d)", overlap, width)
	}
	return &SlidingAudioWindow{
		samples: make([]int16, width),
		overlap: overlap,
	}, nil
}

// Stride returns the number of new samples each Advance requires.
func (w *SlidingAudioWindow) Stride() int {
	return len(w.samples) - w.overlap
}

// Width returns the window length in samples.
func (w *SlidingAudioWindow) Width() int {
	return len(w.samples)
}

// Advance slides the window forward by len(newSamples), which must equal the
// stride. On a length mismatch the window is left unchanged.
func (w *SlidingAudioWindow) Advance(newSamples []int16) error {
	stride := w.Stride()
	if len(newSamples) != stride {
		return fmt.Errorf("%w: got %d samples, want %d", ErrLengthMismatch, len(newSamples), stride)
	}
	copy(w.samples, w.samples[stride:])
	copy(w.samples[w.overlap:], newSamples)
	return nil
}

// AdvanceBytes decodes little-endian 16-bit PCM and advances the window.
func (w *SlidingAudioWindow) AdvanceBytes(raw []byte) error {
	if len(raw) != w.Stride()*2 {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrLengthMismatch, len(raw), w.Stride()*2)
	}
	return w.Advance(BytesToSamples(raw))
}

// CurrentWindow returns the window contents, oldest sample first. The slice
// is owned by the window and is overwritten by the next Advance.
func (w *SlidingAudioWindow) CurrentWindow() []int16 {
	return w.samples
}

// Reset zeroes the window.
func (w *SlidingAudioWindow) Reset() {
	clear(w.samples)
}

// BytesToSamples decodes little-endian 16-bit PCM. A trailing odd byte is ignored.
func BytesToSamples(raw []byte) []int16 {
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples
}

// SamplesToBytes encodes samples as little-endian 16-bit PCM.
func SamplesToBytes(samples []int16) []byte {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}
	return raw
}
