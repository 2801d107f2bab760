package detection

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosteriorSmootherColdStart(t *testing.T) {
	s, err := NewPosteriorSmoother(3, 4)
	require.NoError(t, err)

	want := [][]int{
		{0, 255, 0, 0},
		{0, 510, 0, 0},
		{0, 765, 0, 0},
		{0, 765, 0, 0},
	}
	for i, w := range want {
		top, acc, err := s.Update([]uint8{0, 255, 0, 0})
		require.NoError(t, err)
		assert.Equal(t, Category(1), top)
		assert.Equal(t, w, acc, "frame %d", i)
	}
}

func TestPosteriorSmootherMovingSum(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for _, depth := range []int{1, 2, 3, 7} {
		for _, k := range []int{1, 4, 10} {
			s, err := NewPosteriorSmoother(depth, k)
			require.NoError(t, err)

			var seen [][]uint8
			for range 50 + depth {
				v := make([]uint8, k)
				for c := range v {
					v[c] = uint8(rng.IntN(256))
				}
				seen = append(seen, v)

				_, acc, err := s.Update(v)
				require.NoError(t, err)

				start := max(0, len(seen)-depth)
				for c := range k {
					sum := 0
					for _, past := range seen[start:] {
						sum += int(past[c])
					}
					require.Equal(t, sum, acc[c], "depth %d, k %d, category %d", depth, k, c)
					require.GreaterOrEqual(t, acc[c], 0)
					require.LessOrEqual(t, acc[c], depth*MaxScore)
				}
			}
		}
	}
}

func TestPosteriorSmootherTieBreak(t *testing.T) {
	s, err := NewPosteriorSmoother(2, 4)
	require.NoError(t, err)

	top, _, err := s.Update([]uint8{0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, Category(0), top)

	top, _, err = s.Update([]uint8{10, 90, 10, 90})
	require.NoError(t, err)
	assert.Equal(t, Category(1), top)

	top, _, err = s.Update([]uint8{0, 5, 5, 5})
	require.NoError(t, err)
	assert.Equal(t, Category(1), top, "95 vs 15 vs 95 keeps the lower index")
}

func TestPosteriorSmootherRejectsWrongLength(t *testing.T) {
	s, err := NewPosteriorSmoother(3, 4)
	require.NoError(t, err)

	_, _, err = s.Update([]uint8{255, 255, 255})
	require.ErrorIs(t, err, ErrLengthMismatch)
	assert.Equal(t, []int{0, 0, 0, 0}, s.Accumulator())
}

func TestPosteriorSmootherSnapshotIsCopy(t *testing.T) {
	s, err := NewPosteriorSmoother(3, 2)
	require.NoError(t, err)

	_, acc, err := s.Update([]uint8{1, 2})
	require.NoError(t, err)
	acc[0] = 1000

	assert.Equal(t, []int{1, 2}, s.Accumulator())
}

func TestPosteriorSmootherReset(t *testing.T) {
	s, err := NewPosteriorSmoother(3, 2)
	require.NoError(t, err)

	for range 4 {
		_, _, err = s.Update([]uint8{100, 50})
		require.NoError(t, err)
	}
	s.Reset()
	assert.Equal(t, []int{0, 0}, s.Accumulator())

	_, acc, err := s.Update([]uint8{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, acc)
}

func TestNewPosteriorSmootherInvalid(t *testing.T) {
	_, err := NewPosteriorSmoother(0, 4)
	require.Error(t, err)
	_, err = NewPosteriorSmoother(3, 0)
	require.Error(t, err)
}
