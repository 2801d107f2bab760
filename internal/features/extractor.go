package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Quantization of natural-log mel energies into int8. A full-scale tone
// reaches about ln(1.4e4); the floor keeps silence at the bottom code.
const (
	energyFloor = 1e-6
	logFloor    = -13.8
	logCeiling  = 10.2
)

// Extractor computes one feature slice from an analysis window.
type Extractor interface {
	Extract(window []int16) ([]int8, error)
	SliceWidth() int
}

// Config controls log mel extraction.
type Config struct {
	SampleRate     int
	WindowSize     int     // samples per analysis window
	FFTSize        int     // power of two, >= WindowSize
	NumBands       int     // mel bands per slice
	LowerBandLimit float64 // Hz
	UpperBandLimit float64 // Hz
}

// LogMelExtractor computes quantized log mel energies with a Hann window and
// a real FFT. It keeps scratch buffers and must not be shared between
// goroutines.
type LogMelExtractor struct {
	cfg     Config
	fft     *fourier.FFT
	window  []float64
	melBank []melFilter
	frame   []float64
	coeffs  []complex128
	power   []float64
}

// melFilter is one triangular filter stored as a dense weight run starting at bin start.
type melFilter struct {
	start   int
	weights []float64
}

// NewLogMelExtractor validates cfg and precomputes the window and filterbank.
func NewLogMelExtractor(cfg Config) (*LogMelExtractor, error) {
	switch {
	case cfg.SampleRate <= 0:
		return nil, fmt.Errorf("invalid sample rate %d", cfg.SampleRate)
	case cfg.WindowSize <= 0:
		return nil, fmt.Errorf("invalid window size %d", cfg.WindowSize)
	case cfg.FFTSize < cfg.WindowSize || cfg.FFTSize&(cfg.FFTSize-1) != 0:
		return nil, fmt.Errorf("fft size %d must be a power of two >= window size %d", cfg.FFTSize, cfg.WindowSize)
	case cfg.NumBands <= 0:
		return nil, fmt.Errorf("invalid band count %d", cfg.NumBands)
	case cfg.LowerBandLimit <= 0 || cfg.UpperBandLimit <= cfg.LowerBandLimit:
		return nil, fmt.Errorf("invalid band limits %.0f-%.0f Hz", cfg.LowerBandLimit, cfg.UpperBandLimit)
	case cfg.UpperBandLimit > float64(cfg.SampleRate)/2:
		return nil, fmt.Errorf("upper band limit %.0f Hz above Nyquist", cfg.UpperBandLimit)
	}

	bins := cfg.FFTSize/2 + 1
	return &LogMelExtractor{
		cfg:     cfg,
		fft:     fourier.NewFFT(cfg.FFTSize),
		window:  hannWindow(cfg.WindowSize),
		melBank: melFilterBank(cfg.NumBands, cfg.FFTSize, cfg.SampleRate, cfg.LowerBandLimit, cfg.UpperBandLimit),
		frame:   make([]float64, cfg.FFTSize),
		coeffs:  make([]complex128, bins),
		power:   make([]float64, bins),
	}, nil
}

// SliceWidth returns the number of mel bands.
func (e *LogMelExtractor) SliceWidth() int {
	return e.cfg.NumBands
}

// Extract computes the feature slice for one analysis window.
func (e *LogMelExtractor) Extract(window []int16) ([]int8, error) {
	if len(window) != e.cfg.WindowSize {
		return nil, fmt.Errorf("%w: window has %d samples, want %d", ErrLengthMismatch, len(window), e.cfg.WindowSize)
	}

	for i, s := range window {
		e.frame[i] = float64(s) / 32768.0 * e.window[i]
	}
	clear(e.frame[len(window):])

	e.coeffs = e.fft.Coefficients(e.coeffs, e.frame)
	for k, c := range e.coeffs {
		e.power[k] = real(c)*real(c) + imag(c)*imag(c)
	}

	slice := make([]int8, len(e.melBank))
	for m, f := range e.melBank {
		sum := 0.0
		for j, w := range f.weights {
			sum += w * e.power[f.start+j]
		}
		slice[m] = quantize(math.Log(sum + energyFloor))
	}
	return slice, nil
}

// quantize maps a log energy linearly from [logFloor, logCeiling] onto [-128, 127].
func quantize(logEnergy float64) int8 {
	scaled := (logEnergy-logFloor)*(255.0/(logCeiling-logFloor)) - 128
	return int8(math.Max(-128, math.Min(127, math.Round(scaled))))
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melFilterBank builds numBands triangular filters spaced evenly on the mel
// scale between low and high.
func melFilterBank(numBands, fftSize, sampleRate int, low, high float64) []melFilter {
	lowMel, highMel := hzToMel(low), hzToMel(high)
	binHz := float64(sampleRate) / float64(fftSize)
	bins := fftSize/2 + 1

	edges := make([]float64, numBands+2)
	for i := range edges {
		edges[i] = melToHz(lowMel + (highMel-lowMel)*float64(i)/float64(numBands+1))
	}

	bank := make([]melFilter, numBands)
	for m := range numBands {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		first := int(math.Ceil(left / binHz))
		last := min(int(math.Floor(right/binHz)), bins-1)

		f := melFilter{start: first}
		for k := first; k <= last; k++ {
			hz := float64(k) * binHz
			var w float64
			if hz <= center {
				w = (hz - left) / (center - left)
			} else {
				w = (right - hz) / (right - center)
			}
			f.weights = append(f.weights, math.Max(0, w))
		}
		// Narrow low bands can fall between bins; give them the nearest bin.
		if len(f.weights) == 0 {
			f.start = min(int(math.Round(center/binHz)), bins-1)
			f.weights = []float64{1}
		}
		bank[m] = f
	}
	return bank
}

var _ Extractor = (*LogMelExtractor)(nil)
