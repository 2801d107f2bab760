package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromEmbeddedDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	data, err := DefaultConfigYAML()
	require.NoError(t, err)

	settings, err := LoadFrom(writeConfig(t, string(data)))
	require.NoError(t, err)

	assert.Equal(t, 16000, settings.Audio.SampleRate)
	assert.Equal(t, 512, settings.Audio.ChunkSize)
	assert.Equal(t, 100*time.Millisecond, settings.Audio.ReadTimeout)
	assert.Equal(t, 65536, settings.Audio.RingCapacity)
	assert.Equal(t, 160, settings.Audio.Overlap())
	assert.Equal(t, 640, settings.Audio.StrideBytes())
	assert.Equal(t, 40, settings.Features.SliceWidth)
	assert.Equal(t, 49, settings.Features.SliceCount)
	assert.Equal(t, []string{"silence", "unknown", "yes", "no"}, settings.Model.Labels)
	assert.Equal(t, 600, settings.Detection.TriggerThreshold())
	assert.Equal(t, 1500*time.Millisecond, settings.Detection.Suppression)
	assert.Equal(t, 10*time.Millisecond, settings.Pipeline.PollInterval)
	assert.True(t, settings.Logging.Console.Enabled)
	assert.Same(t, settings, GetSettings())
}

func TestLoadFromOverridesDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := writeConfig(t, `
model:
  path: /opt/models/custom.tflite
  labels: [silence, unknown, "on", "off", stop]
detection:
  depth: 5
  perframethreshold: 150
  suppression: 2s
mqtt:
  enabled: true
  broker: tcp://broker.local:1883
  topic: home/kws
`)

	settings, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/models/custom.tflite", settings.Model.Path)
	assert.Len(t, settings.Model.Labels, 5)
	assert.Equal(t, 750, settings.Detection.TriggerThreshold())
	assert.Equal(t, 2*time.Second, settings.Detection.Suppression)
	assert.True(t, settings.MQTT.Enabled)
	assert.Equal(t, "home/kws", settings.MQTT.Topic)
	// untouched keys keep their defaults
	assert.Equal(t, 480, settings.Audio.WindowSize)
}

func TestLoadFromEnvironmentOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("KWS_DETECTION_SUPPRESSION", "750ms")

	settings, err := LoadFrom(writeConfig(t, "debug: false\n"))
	require.NoError(t, err)

	assert.Equal(t, 750*time.Millisecond, settings.Detection.Suppression)
}

func TestLoadFromRejectsInvalidConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := LoadFrom(writeConfig(t, `
audio:
  windowstride: 600
detection:
  perframethreshold: 300
`))
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
}

func TestLoadFromMissingFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestMarshalYAMLMasksSecrets(t *testing.T) {
	s := &Settings{}
	s.MQTT.Password = "hunter2"
	s.Store.MySQL.Password = "correcthorse"
	s.Sentry.DSN = "https://key@sentry.example/1"
	s.Notify.URLs = []string{"telegram://token@telegram?chats=1"}

	out, err := MarshalYAML(s)
	require.NoError(t, err)

	assert.NotContains(t, string(out), "hunter2")
	assert.NotContains(t, string(out), "correcthorse")
	assert.NotContains(t, string(out), "sentry.example")
	assert.NotContains(t, string(out), "token@")
	assert.Equal(t, "hunter2", s.MQTT.Password, "original settings untouched")

	var roundTrip map[string]any
	require.NoError(t, yaml.Unmarshal(out, &roundTrip))
	assert.Contains(t, roundTrip, "detection")
}
