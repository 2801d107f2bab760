package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() Config {
	return Config{
		SampleRate:     16000,
		WindowSize:     480,
		FFTSize:        512,
		NumBands:       40,
		LowerBandLimit: 125,
		UpperBandLimit: 7500,
	}
}

func tone(freq, amplitude float64, n, sampleRate int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(amplitude * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return s
}

func argmax(s []int8) int {
	best := 0
	for i := range s {
		if s[i] > s[best] {
			best = i
		}
	}
	return best
}

func TestNewLogMelExtractorValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"fft not power of two", func(c *Config) { c.FFTSize = 500 }},
		{"fft smaller than window", func(c *Config) { c.FFTSize = 256 }},
		{"no bands", func(c *Config) { c.NumBands = 0 }},
		{"inverted band limits", func(c *Config) { c.LowerBandLimit = 8000 }},
		{"above nyquist", func(c *Config) { c.UpperBandLimit = 9000 }},
		{"no sample rate", func(c *Config) { c.SampleRate = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			_, err := NewLogMelExtractor(cfg)
			assert.Error(t, err)
		})
	}
}

func TestLogMelExtractorSilenceIsFloor(t *testing.T) {
	e, err := NewLogMelExtractor(defaultConfig())
	require.NoError(t, err)

	slice, err := e.Extract(make([]int16, 480))
	require.NoError(t, err)
	require.Len(t, slice, 40)
	for _, v := range slice {
		assert.Equal(t, int8(-128), v)
	}
}

func TestLogMelExtractorTonePeaksInMatchingBand(t *testing.T) {
	e, err := NewLogMelExtractor(defaultConfig())
	require.NoError(t, err)

	low, err := e.Extract(tone(300, 0.5, 480, 16000))
	require.NoError(t, err)
	high, err := e.Extract(tone(4000, 0.5, 480, 16000))
	require.NoError(t, err)

	assert.Less(t, argmax(low), argmax(high))
	assert.Greater(t, low[argmax(low)], int8(0))

	// the band holding the tone sits well above bands far from it
	assert.Greater(t, int(high[argmax(high)])-int(high[0]), 50)
}

func TestLogMelExtractorLouderIsLarger(t *testing.T) {
	e, err := NewLogMelExtractor(defaultConfig())
	require.NoError(t, err)

	quiet, err := e.Extract(tone(1000, 0.01, 480, 16000))
	require.NoError(t, err)
	loud, err := e.Extract(tone(1000, 0.5, 480, 16000))
	require.NoError(t, err)

	band := argmax(loud)
	assert.Greater(t, loud[band], quiet[band])
}

func TestLogMelExtractorRejectsWrongWindow(t *testing.T) {
	e, err := NewLogMelExtractor(defaultConfig())
	require.NoError(t, err)

	_, err = e.Extract(make([]int16, 479))
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestMelFilterBankCoversEveryBand(t *testing.T) {
	bank := melFilterBank(40, 512, 16000, 125, 7500)
	require.Len(t, bank, 40)

	prevStart := -1
	for m, f := range bank {
		assert.NotEmpty(t, f.weights, "band %d", m)
		assert.GreaterOrEqual(t, f.start, prevStart, "band %d", m)
		assert.LessOrEqual(t, f.start+len(f.weights), 257, "band %d", m)
		prevStart = f.start
	}
}

func TestQuantizeClamps(t *testing.T) {
	assert.Equal(t, int8(-128), quantize(-100))
	assert.Equal(t, int8(127), quantize(100))
	assert.Equal(t, int8(-128), quantize(logFloor))
	assert.Equal(t, int8(127), quantize(logCeiling))
}
