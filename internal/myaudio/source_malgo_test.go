package myaudio

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesDevice(t *testing.T) {
	assert.True(t, matchesDevice("hw:1,0", "USB Audio", false, "hw:1,0"))
	assert.True(t, matchesDevice("hw:1,0", "USB Audio Device", false, "USB Audio"))
	assert.False(t, matchesDevice("hw:1,0", "USB Audio", false, "hw:2,0"))
	if runtime.GOOS == "windows" {
		assert.True(t, matchesDevice("x", "Mic", true, "sysdefault"))
	}
}

func TestHexToASCII(t *testing.T) {
	got, err := hexToASCII("68773a312c3000")
	require.NoError(t, err)
	assert.Equal(t, "hw:1,0", got)

	_, err = hexToASCII("zz")
	assert.Error(t, err)
}

// The device callback and Read are exercised without opening hardware.
func TestMalgoSourceReadAssemblesFrames(t *testing.T) {
	s := &MalgoSource{name: "test", frames: make(chan []byte, 4)}

	s.onFrames(nil, []byte{1, 2, 3}, 0)
	s.onFrames(nil, []byte{4, 5, 6}, 0)

	p := make([]byte, 4)
	n, err := s.Read(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{1, 2, 3, 4}, p)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	n, err = s.Read(ctx, p)
	assert.Equal(t, 2, n, "leftover bytes are returned with the timeout")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []byte{5, 6}, p[:2])
}

func TestMalgoSourceDropsWhenQueueFull(t *testing.T) {
	s := &MalgoSource{name: "test", frames: make(chan []byte, 1)}

	s.onFrames(nil, []byte{1}, 0)
	s.onFrames(nil, []byte{2}, 0)

	assert.Equal(t, uint64(1), s.Dropped())
}
