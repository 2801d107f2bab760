// ringbuffer.go: fixed capacity byte ring shared by the capture task and the pipeline.
package myaudio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/smallnest/ringbuffer"
)

// AudioRingBuffer is a fixed-capacity FIFO of raw PCM bytes. Push and TryTake
// are all-or-nothing: a chunk is either stored completely or not at all, and
// a take either returns exactly the requested bytes or leaves the ring as it
// was.
type AudioRingBuffer struct {
	mu  sync.Mutex
	buf *ringbuffer.RingBuffer

	overflows atomic.Uint64
	underruns atomic.Uint64
}

// RingStats is a point-in-time view of an AudioRingBuffer.
type RingStats struct {
	Capacity  int    `json:"capacity"`
	Available int    `json:"available"`
	Overflows uint64 `json:"overflows"`
	Underruns uint64 `json:"underruns"`
}

// NewAudioRingBuffer allocates a ring holding up to capacity bytes.
func NewAudioRingBuffer(capacity int) (*AudioRingBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid ring capacity: %d, must be greater than 0", capacity)
	}
	buf := ringbuffer.New(capacity)
	if buf == nil {
		return nil, fmt.Errorf("failed to allocate ring buffer of %d bytes", capacity)
	}
	return &AudioRingBuffer{buf: buf}, nil
}

// Push appends chunk to the ring. When the chunk is larger than the free
// space nothing is written and the returned error wraps ErrOverflow.
func (r *AudioRingBuffer) Push(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	free := r.buf.Free()
	if len(chunk) > free {
		r.overflows.Add(1)
		return fmt.Errorf("%w: chunk of %d bytes, %d bytes free of %d",
			ErrOverflow, len(chunk), free, r.buf.Capacity())
	}

	n, err := r.buf.Write(chunk)
	if err != nil {
		return fmt.Errorf("ring write failed after %d bytes: %w", n, err)
	}
	return nil
}

// TryTake removes and returns exactly n bytes in write order. It returns
// false without touching the ring when fewer than n bytes are available.
func (r *AudioRingBuffer) TryTake(n int) ([]byte, bool) {
	if n <= 0 {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.buf.Length() < n {
		r.underruns.Add(1)
		return nil, false
	}

	data := make([]byte, n)
	read, err := r.buf.Read(data)
	if err != nil || read != n {
		// never hand out a partial chunk
		r.underruns.Add(1)
		return nil, false
	}
	return data, true
}

// AvailableLen returns the number of bytes waiting to be taken.
func (r *AudioRingBuffer) AvailableLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Length()
}

// Free returns the number of bytes that can be pushed without overflow.
func (r *AudioRingBuffer) Free() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Free()
}

// Capacity returns the ring size in bytes.
func (r *AudioRingBuffer) Capacity() int {
	return r.buf.Capacity()
}

// Reset discards all buffered bytes. Counters are kept.
func (r *AudioRingBuffer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf.Reset()
}

// Stats returns the current fill level and the overflow and underrun counts.
func (r *AudioRingBuffer) Stats() RingStats {
	r.mu.Lock()
	available := r.buf.Length()
	r.mu.Unlock()

	return RingStats{
		Capacity:  r.buf.Capacity(),
		Available: available,
		Overflows: r.overflows.Load(),
		Underruns: r.underruns.Load(),
	}
}
