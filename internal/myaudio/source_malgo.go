package myaudio

import (
	"context"
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/logger"
)

// frameQueueDepth is the number of device callbacks buffered between the
// audio thread and Read.
const frameQueueDepth = 64

// DeviceInfo describes a capture device.
type DeviceInfo struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	ID        string `json:"id"`
	IsDefault bool   `json:"is_default"`
}

// MalgoSource captures from a sound card through miniaudio.
type MalgoSource struct {
	name    string
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	frames  chan []byte
	pending []byte

	dropped   atomic.Uint64
	closeOnce sync.Once
	closeErr  error
}

// NewMalgoSource opens and starts the capture device matching deviceName,
// or the system default when deviceName is empty.
func NewMalgoSource(deviceName string, sampleRate int) (*MalgoSource, error) {
	mctx, err := malgo.InitContext(captureBackends(), malgo.ContextConfig{}, func(message string) {
		GetLogger().Debug("miniaudio", logger.String("message", strings.TrimSpace(message)))
	})
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Context("operation", "init_context").
			Build()
	}

	s := &MalgoSource{
		name:   "default",
		mctx:   mctx,
		frames: make(chan []byte, frameQueueDepth),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if deviceName != "" {
		selected, err := selectCaptureDevice(mctx, deviceName)
		if err != nil {
			s.releaseContext()
			return nil, err
		}
		deviceConfig.Capture.DeviceID = selected.pointer
		s.name = selected.name
	}

	callbacks := malgo.DeviceCallbacks{
		Data: s.onFrames,
	}

	s.device, err = malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		s.releaseContext()
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Context("operation", "init_device").
			Context("device", s.name).
			Build()
	}

	if err := s.device.Start(); err != nil {
		s.device.Uninit()
		s.releaseContext()
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Context("operation", "start_device").
			Context("device", s.name).
			Build()
	}

	GetLogger().Info("listening on capture device",
		logger.String("device", s.name),
		logger.Int("sample_rate", sampleRate))
	return s, nil
}

// onFrames runs on the audio thread. The input slice is reused by miniaudio,
// so it is copied before it leaves the callback.
func (s *MalgoSource) onFrames(_, input []byte, _ uint32) {
	if len(input) == 0 {
		return
	}
	frame := make([]byte, len(input))
	copy(frame, input)

	select {
	case s.frames <- frame:
	default:
		if s.dropped.Add(1)%100 == 1 {
			GetLogger().Warn("capture frame queue full, dropping device frames",
				logger.String("device", s.name),
				logger.Uint64("dropped_total", s.dropped.Load()))
		}
	}
}

// Name returns the capture device name.
func (s *MalgoSource) Name() string {
	return s.name
}

// Read blocks until p is full or ctx is done.
func (s *MalgoSource) Read(ctx context.Context, p []byte) (int, error) {
	filled := copy(p, s.pending)
	s.pending = s.pending[filled:]

	for filled < len(p) {
		select {
		case <-ctx.Done():
			return filled, ctx.Err()
		case frame := <-s.frames:
			n := copy(p[filled:], frame)
			filled += n
			if n < len(frame) {
				s.pending = frame[n:]
			}
		}
	}
	return filled, nil
}

// Dropped returns the number of device frames lost to a full queue.
func (s *MalgoSource) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops the device and releases the miniaudio context.
func (s *MalgoSource) Close() error {
	s.closeOnce.Do(func() {
		if s.device != nil {
			if err := s.device.Stop(); err != nil {
				s.closeErr = fmt.Errorf("failed to stop capture device: %w", err)
			}
			s.device.Uninit()
		}
		s.releaseContext()
	})
	return s.closeErr
}

func (s *MalgoSource) releaseContext() {
	if s.mctx == nil {
		return
	}
	_ = s.mctx.Uninit()
	s.mctx.Free()
	s.mctx = nil
}

var _ Source = (*MalgoSource)(nil)

type captureDevice struct {
	name    string
	id      string
	pointer unsafe.Pointer
}

// captureBackends picks the native backend per platform, nil lets miniaudio choose.
func captureBackends() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return nil
	}
}

func selectCaptureDevice(mctx *malgo.AllocatedContext, deviceName string) (captureDevice, error) {
	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return captureDevice{}, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Context("operation", "list_devices").
			Build()
	}

	for i := range infos {
		decodedID, err := hexToASCII(infos[i].ID.String())
		if err != nil {
			GetLogger().Debug("skipping device with undecodable id",
				logger.Int("index", i),
				logger.Error(err))
			continue
		}
		if matchesDevice(decodedID, infos[i].Name(), infos[i].IsDefault == 1, deviceName) {
			return captureDevice{
				name:    infos[i].Name(),
				id:      decodedID,
				pointer: infos[i].ID.Pointer(),
			}, nil
		}
	}

	return captureDevice{}, errors.Newf("no capture device matches %q", deviceName).
		Component("myaudio").
		Category(errors.CategoryAudioSource).
		Context("available_devices", len(infos)).
		Build()
}

// matchesDevice reports whether a device matches the configured name. On
// Windows "sysdefault" selects the default device.
func matchesDevice(decodedID, name string, isDefault bool, want string) bool {
	if want == "sysdefault" && runtime.GOOS == "windows" {
		return isDefault
	}
	return decodedID == want || strings.Contains(name, want)
}

// ListCaptureDevices returns the capture devices miniaudio can open.
func ListCaptureDevices() ([]DeviceInfo, error) {
	mctx, err := malgo.InitContext(captureBackends(), malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Context("operation", "init_context").
			Build()
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Context("operation", "list_devices").
			Build()
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		decodedID, err := hexToASCII(infos[i].ID.String())
		if err != nil {
			decodedID = infos[i].ID.String()
		}
		devices = append(devices, DeviceInfo{
			Index:     i,
			Name:      infos[i].Name(),
			ID:        decodedID,
			IsDefault: infos[i].IsDefault == 1,
		})
	}
	return devices, nil
}

// hexToASCII converts a hexadecimal string to an ASCII string.
func hexToASCII(hexStr string) (string, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00"), nil
}
