package myaudio

import (
	"github.com/tphakala/kws-go/internal/errors"
)

// Error sentinel values for the audio path. Callers match them with errors.Is;
// the capture task wraps them into capture-transfer errors.
var (
	// ErrOverflow is returned by Push when a chunk does not fit in the ring.
	ErrOverflow = errors.NewStd("audio ring buffer overflow")

	// ErrLengthMismatch is returned when a window is advanced with the wrong
	// number of samples.
	ErrLengthMismatch = errors.NewStd("sample count does not match window stride")

	// ErrShortRead is returned when a source delivers fewer bytes than a
	// full chunk within the read timeout.
	ErrShortRead = errors.NewStd("short read from capture source")

	// ErrUnsupportedFormat is returned for input files the pipeline cannot consume.
	ErrUnsupportedFormat = errors.NewStd("unsupported audio format")
)
