// conf/validate.go

package conf

import (
	"fmt"
	"math/bits"
	"net"
	"net/url"
	"strings"
)

// MaxLabels is the number of categories the indicator palette can show.
const MaxLabels = 10

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateAudioSettings,
		validateFeatureSettings,
		validateModelSettings,
		validateDetectionSettings,
		validatePipelineSettings,
		validateDebugSettings,
		validateMQTTSettings,
		validateNotifySettings,
		validateStoreSettings,
		validateMetricsSettings,
		validateSentrySettings,
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateAudioSettings(s *Settings) error {
	a := &s.Audio
	var errs []string

	if a.SampleRate <= 0 {
		errs = append(errs, "audio.samplerate must be positive")
	}
	if a.ChunkSize <= 0 || a.ChunkSize%2 != 0 {
		errs = append(errs, "audio.chunksize must be a positive even number of bytes")
	}
	if a.ReadTimeout <= 0 {
		errs = append(errs, "audio.readtimeout must be positive")
	}
	if a.WindowSize <= 0 {
		errs = append(errs, "audio.windowsize must be positive")
	}
	if a.WindowStride <= 0 || a.WindowStride > a.WindowSize {
		errs = append(errs, "audio.windowstride must be between 1 and audio.windowsize")
	}
	if a.RingCapacity < a.ChunkSize || a.RingCapacity < a.StrideBytes() {
		errs = append(errs, "audio.ringcapacity must hold at least one capture chunk and one stride")
	}

	return joinErrors("audio", errs)
}

func validateFeatureSettings(s *Settings) error {
	f := &s.Features
	var errs []string

	if f.FFTSize <= 0 || bits.OnesCount(uint(f.FFTSize)) != 1 {
		errs = append(errs, "features.fftsize must be a power of two")
	} else if f.FFTSize < s.Audio.WindowSize {
		errs = append(errs, "features.fftsize must not be smaller than audio.windowsize")
	}
	if f.SliceWidth <= 0 {
		errs = append(errs, "features.slicewidth must be positive")
	}
	if f.SliceCount <= 0 {
		errs = append(errs, "features.slicecount must be positive")
	}
	if f.LowerBandLimit <= 0 || f.UpperBandLimit <= f.LowerBandLimit {
		errs = append(errs, "features band limits must satisfy 0 < lower < upper")
	}
	if s.Audio.SampleRate > 0 && f.UpperBandLimit > float64(s.Audio.SampleRate)/2 {
		errs = append(errs, "features.upperbandlimit must not exceed the Nyquist frequency")
	}

	return joinErrors("features", errs)
}

func validateModelSettings(s *Settings) error {
	m := &s.Model
	var errs []string

	if m.Path == "" {
		errs = append(errs, "model.path is required")
	}
	if m.Threads < 0 {
		errs = append(errs, "model.threads must not be negative")
	}
	if len(m.Labels) < 2 || len(m.Labels) > MaxLabels {
		errs = append(errs, fmt.Sprintf("model.labels must list between 2 and %d categories", MaxLabels))
	}
	seen := make(map[string]struct{}, len(m.Labels))
	for _, label := range m.Labels {
		if strings.TrimSpace(label) == "" {
			errs = append(errs, "model.labels must not contain empty labels")
			continue
		}
		if _, dup := seen[label]; dup {
			errs = append(errs, fmt.Sprintf("model.labels contains duplicate label %q", label))
		}
		seen[label] = struct{}{}
	}

	return joinErrors("model", errs)
}

func validateDetectionSettings(s *Settings) error {
	d := &s.Detection
	var errs []string

	if d.Depth <= 0 {
		errs = append(errs, "detection.depth must be positive")
	}
	if d.PerFrameThreshold < 0 || d.PerFrameThreshold > 255 {
		errs = append(errs, "detection.perframethreshold must be between 0 and 255")
	}
	if d.Suppression < 0 {
		errs = append(errs, "detection.suppression must not be negative")
	}

	return joinErrors("detection", errs)
}

func validatePipelineSettings(s *Settings) error {
	p := &s.Pipeline
	var errs []string

	if p.PollInterval <= 0 {
		errs = append(errs, "pipeline.pollinterval must be positive")
	}
	if p.MaxSlicesPerCycle < 0 {
		errs = append(errs, "pipeline.maxslicespercycle must not be negative")
	}

	return joinErrors("pipeline", errs)
}

func validateDebugSettings(s *Settings) error {
	if !s.DebugOut.Enabled {
		return nil
	}
	var errs []string
	if s.DebugOut.Output == "" {
		errs = append(errs, "debugstream.output is required when enabled")
	}
	if s.DebugOut.QueueSize <= 0 {
		errs = append(errs, "debugstream.queuesize must be positive")
	}
	return joinErrors("debugstream", errs)
}

func validateMQTTSettings(s *Settings) error {
	if !s.MQTT.Enabled {
		return nil
	}
	var errs []string
	if s.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required when enabled")
	} else if u, err := url.Parse(s.MQTT.Broker); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "mqtt.broker must be a URL such as tcp://host:1883")
	}
	if s.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required when enabled")
	}
	return joinErrors("mqtt", errs)
}

func validateNotifySettings(s *Settings) error {
	if !s.Notify.Enabled {
		return nil
	}
	var errs []string
	if len(s.Notify.URLs) == 0 {
		errs = append(errs, "notify.urls must contain at least one URL when enabled")
	}
	if s.Notify.Cooldown < 0 {
		errs = append(errs, "notify.cooldown must not be negative")
	}
	return joinErrors("notify", errs)
}

func validateStoreSettings(s *Settings) error {
	if !s.Store.Enabled {
		return nil
	}
	var errs []string
	switch s.Store.Type {
	case "", StoreSQLite:
		if s.Store.Path == "" {
			errs = append(errs, "store.path is required for sqlite")
		}
	case StoreMySQL:
		if s.Store.MySQL.Host == "" || s.Store.MySQL.Database == "" {
			errs = append(errs, "store.mysql.host and store.mysql.database are required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.type %q must be sqlite or mysql", s.Store.Type))
	}
	return joinErrors("store", errs)
}

func validateMetricsSettings(s *Settings) error {
	if !s.Metrics.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.Metrics.Listen); err != nil {
		return fmt.Errorf("metrics.listen must be host:port: %w", err)
	}
	return nil
}

func validateSentrySettings(s *Settings) error {
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		return fmt.Errorf("sentry.dsn is required when enabled")
	}
	return nil
}

func joinErrors(section string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %s", section, strings.Join(errs, "; "))
}
