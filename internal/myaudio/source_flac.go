package myaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tphakala/flac"

	"github.com/tphakala/kws-go/internal/errors"
)

// FileSource is a finite capture source backed by an audio file.
type FileSource interface {
	Source
	Info() AudioInfo
}

// NewFileSource opens path with the decoder matching its extension.
func NewFileSource(path string, sampleRate int) (FileSource, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		src, err := NewWavSource(path, sampleRate)
		if err != nil {
			return nil, err
		}
		return src, nil
	case ".flac":
		src, err := NewFlacSource(path, sampleRate)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, errors.New(fmt.Errorf("%w: file extension %q", ErrUnsupportedFormat, ext)).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Context("file_extension", ext).
			Build()
	}
}

// FlacSource replays a FLAC file as a capture source, with the same
// conversions and padding as WavSource.
type FlacSource struct {
	path    string
	file    *os.File
	decoder *flac.Decoder
	info    AudioInfo
	pending []byte
	eof     bool
}

// NewFlacSource opens path and checks that it can be fed to a pipeline
// running at sampleRate.
func NewFlacSource(path string, sampleRate int) (*FlacSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryFileIO).
			Context("operation", "open_input").
			Build()
	}

	decoder, err := flac.NewDecoder(file)
	if err != nil {
		_ = file.Close()
		return nil, errors.New(fmt.Errorf("%w: %s is not a valid FLAC file: %w", ErrUnsupportedFormat, path, err)).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Build()
	}

	info := AudioInfo{
		SampleRate:  decoder.SampleRate,
		NumChannels: decoder.NChannels,
		BitDepth:    decoder.BitsPerSample,
	}
	if decoder.SampleRate > 0 {
		info.Duration = time.Duration(decoder.TotalSamples) * time.Second / time.Duration(decoder.SampleRate)
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

	return &FlacSource{path: path, file: file, decoder: decoder, info: info}, nil
}

// Name returns the input file path.
func (s *FlacSource) Name() string {
	return s.path
}

// Info returns the format of the input file.
func (s *FlacSource) Info() AudioInfo {
	return s.info
}

// Read fills p with mono 16-bit PCM from the file.
func (s *FlacSource) Read(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	for len(s.pending) < len(p) && !s.eof {
		frame, err := s.decoder.Next()
		if errors.Is(err, io.EOF) {
			s.eof = true
			break
		}
		if err != nil {
			return 0, errors.New(err).
				Component("myaudio").
				Category(errors.CategoryFileIO).
				Context("operation", "decode_flac").
				Build()
		}
		s.pending = append(s.pending, SamplesToBytes(downmixFrame(frame, s.info.BitDepth, s.info.NumChannels))...)
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

// Close closes the underlying file.
func (s *FlacSource) Close() error {
	return s.file.Close()
}

// downmixFrame converts interleaved little-endian frame bytes to mono
// 16-bit samples.
func downmixFrame(frame []byte, bitDepth, channels int) []int16 {
	width := bitDepth / 8
	stride := width * channels
	shift := uint(bitDepth - 16)

	out := make([]int16, 0, len(frame)/stride)
	for i := 0; i+stride <= len(frame); i += stride {
		var sum int64
		for c := range channels {
			sum += int64(decodeSample(frame[i+c*width:], bitDepth))
		}
		out = append(out, int16((sum/int64(channels))>>shift))
	}
	return out
}

func decodeSample(b []byte, bitDepth int) int32 {
	switch bitDepth {
	case 16:
		return int32(int16(binary.LittleEndian.Uint16(b)))
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		// sign extend from bit 23
		return (v << 8) >> 8
	default:
		return int32(binary.LittleEndian.Uint32(b))
	}
}

var _ FileSource = (*FlacSource)(nil)
