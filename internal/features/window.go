package features

import "fmt"

// SlidingFeatureWindow is a FIFO of sliceCount feature slices, each
// sliceWidth values wide, stored contiguously oldest first.
type SlidingFeatureWindow struct {
	data       []int8
	sliceCount int
	sliceWidth int
}

// NewSlidingFeatureWindow creates a zero-filled window.
func NewSlidingFeatureWindow(sliceCount, sliceWidth int) (*SlidingFeatureWindow, error) {
	if sliceCount <= 0 || sliceWidth <= 0 {
		return nil, fmt.Errorf("invalid feature window geometry %dx%d", sliceCount, sliceWidth)
	}
	return &SlidingFeatureWindow{
		data:       make([]int8, sliceCount*sliceWidth),
		sliceCount: sliceCount,
		sliceWidth: sliceWidth,
	}, nil
}

// AppendSlice drops the oldest slice and stores slice as the newest.
func (w *SlidingFeatureWindow) AppendSlice(slice []int8) error {
	if len(slice) != w.sliceWidth {
		return fmt.Errorf("%w: slice has %d values, want %d", ErrLengthMismatch, len(slice), w.sliceWidth)
	}
	copy(w.data, w.data[w.sliceWidth:])
	copy(w.data[len(w.data)-w.sliceWidth:], slice)
	return nil
}

// Flattened returns all slices, oldest first. The slice is owned by the
// window and changes on the next AppendSlice.
func (w *SlidingFeatureWindow) Flattened() []int8 {
	return w.data
}

// Slice returns slice i, where 0 is the oldest.
func (w *SlidingFeatureWindow) Slice(i int) []int8 {
	if i < 0 || i >= w.sliceCount {
		return nil
	}
	return w.data[i*w.sliceWidth : (i+1)*w.sliceWidth]
}

// SliceCount returns the number of slices held.
func (w *SlidingFeatureWindow) SliceCount() int { return w.sliceCount }

// SliceWidth returns the number of values per slice.
func (w *SlidingFeatureWindow) SliceWidth() int { return w.sliceWidth }

// Reset zeroes every slice.
func (w *SlidingFeatureWindow) Reset() {
	clear(w.data)
}
