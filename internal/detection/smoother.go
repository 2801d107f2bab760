package detection

import "fmt"

// PosteriorSmoother keeps the per-category sum of the last depth score
// vectors. Each update costs O(categories) no matter the depth.
type PosteriorSmoother struct {
	history     [][]uint8
	accumulator []int
	next        int
}

// NewPosteriorSmoother returns a smoother with a zero-filled history, so
// the first depth-1 updates sum only what has been seen so far.
func NewPosteriorSmoother(depth, categories int) (*PosteriorSmoother, error) {
	if depth <= 0 || categories <= 0 {
		return nil, fmt.Errorf("invalid smoother geometry: depth %d, categories %d", depth, categories)
	}

	history := make([][]uint8, depth)
	backing := make([]uint8, depth*categories)
	for i := range history {
		history[i] = backing[i*categories : (i+1)*categories : (i+1)*categories]
	}

	return &PosteriorSmoother{
		history:     history,
		accumulator: make([]int, categories),
	}, nil
}

// Update folds one score vector into the moving sum and returns the index
// of the largest sum together with a snapshot of all sums. Ties go to the
// lowest index.
func (s *PosteriorSmoother) Update(posteriors []uint8) (Category, []int, error) {
	if len(posteriors) != len(s.accumulator) {
		return NoDetection, nil, fmt.Errorf("%w: got %d scores, want %d", ErrLengthMismatch, len(posteriors), len(s.accumulator))
	}

	oldest := s.history[s.next]
	for c, v := range posteriors {
		s.accumulator[c] += int(v) - int(oldest[c])
	}
	copy(oldest, posteriors)
	s.next = (s.next + 1) % len(s.history)

	top := 0
	for c := 1; c < len(s.accumulator); c++ {
		if s.accumulator[c] > s.accumulator[top] {
			top = c
		}
	}

	return Category(top), s.Accumulator(), nil
}

// Accumulator returns a copy of the current sums.
func (s *PosteriorSmoother) Accumulator() []int {
	out := make([]int, len(s.accumulator))
	copy(out, s.accumulator)
	return out
}

// Depth returns the history length.
func (s *PosteriorSmoother) Depth() int { return len(s.history) }

// Categories returns the score vector length.
func (s *PosteriorSmoother) Categories() int { return len(s.accumulator) }

// Reset zeroes the history and the sums.
func (s *PosteriorSmoother) Reset() {
	for _, h := range s.history {
		clear(h)
	}
	clear(s.accumulator)
	s.next = 0
}
