package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Audio = AudioSettings{
		SampleRate:   16000,
		ChunkSize:    512,
		ReadTimeout:  100 * time.Millisecond,
		RingCapacity: 65536,
		WindowSize:   480,
		WindowStride: 320,
	}
	s.Features = FeatureSettings{FFTSize: 512, SliceWidth: 40, SliceCount: 49, LowerBandLimit: 125, UpperBandLimit: 7500}
	s.Model = ModelSettings{Path: "model/kws.tflite", Labels: []string{"silence", "unknown", "yes", "no"}}
	s.Detection = DetectionSettings{Depth: 3, PerFrameThreshold: 200, Suppression: 1500 * time.Millisecond}
	s.Pipeline = PipelineSettings{PollInterval: 10 * time.Millisecond}
	return s
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"valid defaults", func(*Settings) {}, ""},
		{"odd chunk size", func(s *Settings) { s.Audio.ChunkSize = 511 }, "audio.chunksize"},
		{"stride wider than window", func(s *Settings) { s.Audio.WindowStride = 481 }, "audio.windowstride"},
		{"zero overlap allowed", func(s *Settings) { s.Audio.WindowStride = 480 }, ""},
		{"ring smaller than chunk", func(s *Settings) { s.Audio.RingCapacity = 256 }, "audio.ringcapacity"},
		{"fft not power of two", func(s *Settings) { s.Features.FFTSize = 500 }, "features.fftsize"},
		{"fft smaller than window", func(s *Settings) { s.Features.FFTSize = 256 }, "smaller than audio.windowsize"},
		{"band above nyquist", func(s *Settings) { s.Features.UpperBandLimit = 9000 }, "Nyquist"},
		{"single label", func(s *Settings) { s.Model.Labels = []string{"yes"} }, "model.labels"},
		{"too many labels", func(s *Settings) {
			s.Model.Labels = []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}
		}, "model.labels"},
		{"duplicate label", func(s *Settings) { s.Model.Labels = []string{"yes", "yes"} }, "duplicate"},
		{"threshold above byte range", func(s *Settings) { s.Detection.PerFrameThreshold = 256 }, "perframethreshold"},
		{"zero depth", func(s *Settings) { s.Detection.Depth = 0 }, "detection.depth"},
		{"negative suppression", func(s *Settings) { s.Detection.Suppression = -time.Second }, "suppression"},
		{"zero poll interval", func(s *Settings) { s.Pipeline.PollInterval = 0 }, "pollinterval"},
		{"debug without queue", func(s *Settings) {
			s.DebugOut = DebugSettings{Enabled: true, Output: "-", QueueSize: 0}
		}, "debugstream.queuesize"},
		{"mqtt bad broker", func(s *Settings) {
			s.MQTT = MQTTSettings{Enabled: true, Broker: "localhost", Topic: "kws"}
		}, "mqtt.broker"},
		{"notify without urls", func(s *Settings) { s.Notify.Enabled = true }, "notify.urls"},
		{"store without path", func(s *Settings) { s.Store.Enabled = true }, "store.path"},
		{"mysql without host", func(s *Settings) {
			s.Store = StoreSettings{Enabled: true, Type: StoreMySQL, MySQL: MySQLSettings{Database: "kws"}}
		}, "store.mysql.host"},
		{"unknown store type", func(s *Settings) {
			s.Store = StoreSettings{Enabled: true, Type: "postgres", Path: "x"}
		}, "store.type"},
		{"metrics bad listen", func(s *Settings) {
			s.Metrics = MetricsSettings{Enabled: true, Listen: "8090"}
		}, "metrics.listen"},
		{"sentry without dsn", func(s *Settings) { s.Sentry.Enabled = true }, "sentry.dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)

			err := ValidateSettings(s)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSettingsCollectsAllErrors(t *testing.T) {
	s := validSettings()
	s.Audio.SampleRate = 0
	s.Detection.Depth = 0
	s.Model.Path = ""

	err := ValidateSettings(s)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 3)
}
