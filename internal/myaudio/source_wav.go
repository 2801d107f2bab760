package myaudio

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/kws-go/internal/errors"
)

// decodeBufferSamples is the number of interleaved samples decoded per PCMBuffer call.
const decodeBufferSamples = 4096

// AudioInfo describes a decoded input file.
type AudioInfo struct {
	SampleRate  int
	NumChannels int
	BitDepth    int
	Duration    time.Duration
}

// WavSource replays a PCM WAV file as a capture source. Multi-channel input
// is averaged down to mono and 24 or 32 bit input is reduced to 16 bits. The
// final partial chunk is zero padded; the next Read returns io.EOF.
type WavSource struct {
	path    string
	file    *os.File
	decoder *wav.Decoder
	buf     *audio.IntBuffer
	info    AudioInfo
	pending []byte
	eof     bool
}

// NewWavSource opens path and checks that it can be fed to a pipeline
// running at sampleRate.
func NewWavSource(path string, sampleRate int) (*WavSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryFileIO).
			Context("operation", "open_input").
			Build()
	}

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		_ = file.Close()
		return nil, errors.New(fmt.Errorf("%w: %s is not a valid WAV file", ErrUnsupportedFormat, path)).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Build()
	}

	info := AudioInfo{
		SampleRate:  int(decoder.SampleRate),
		NumChannels: int(decoder.NumChans),
		BitDepth:    int(decoder.BitDepth),
	}
	if d, err := decoder.Duration(); err == nil {
		info.Duration = d
	}

	if err := checkWavFormat(info, sampleRate); err != nil {
		_ = file.Close()
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Context("sample_rate", info.SampleRate).
			Context("channels", info.NumChannels).
			Context("bit_depth", info.BitDepth).
			Build()
	}

	return &WavSource{
		path:    path,
		file:    file,
		decoder: decoder,
		info:    info,
		buf: &audio.IntBuffer{
			Data:   make([]int, decodeBufferSamples*info.NumChannels),
			Format: &audio.Format{SampleRate: info.SampleRate, NumChannels: info.NumChannels},
		},
	}, nil
}

func checkWavFormat(info AudioInfo, sampleRate int) error {
	if info.SampleRate != sampleRate {
		return fmt.Errorf("%w: sample rate %d Hz, pipeline runs at %d Hz", ErrUnsupportedFormat, info.SampleRate, sampleRate)
	}
	switch info.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: bit depth %d", ErrUnsupportedFormat, info.BitDepth)
	}
	if info.NumChannels < 1 || info.NumChannels > 2 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, info.NumChannels)
	}
	return nil
}

// Name returns the input file path.
func (s *WavSource) Name() string {
	return s.path
}

// Info returns the format of the input file.
func (s *WavSource) Info() AudioInfo {
	return s.info
}

// Read fills p with mono 16-bit PCM from the file.
func (s *WavSource) Read(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	for len(s.pending) < len(p) && !s.eof {
		if err := s.decodeMore(); err != nil {
			return 0, errors.New(err).
				Component("myaudio").
				Category(errors.CategoryFileIO).
				Context("operation", "decode_wav").
				Build()
		}
	}

	if len(s.pending) == 0 {
		return 0, io.EOF
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	if n < len(p) {
		clear(p[n:])
		n = len(p)
	}
	return n, nil
}

func (s *WavSource) decodeMore() error {
	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if n == 0 {
		s.eof = true
		return nil
	}

	channels := s.info.NumChannels
	shift := uint(s.info.BitDepth - 16)
	samples := make([]int16, 0, n/channels)
	for i := 0; i+channels <= n; i += channels {
		sum := 0
		for c := range channels {
			sum += s.buf.Data[i+c]
		}
		samples = append(samples, int16((sum/channels)>>shift))
	}
	s.pending = append(s.pending, SamplesToBytes(samples)...)
	return nil
}

// Close closes the underlying file.
func (s *WavSource) Close() error {
	return s.file.Close()
}

var _ Source = (*WavSource)(nil)
