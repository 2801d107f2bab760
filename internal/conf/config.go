// config.go: settings struct for the keyword spotter and the functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/kws-go/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// AudioSettings describes the capture stream and the analysis window cut from it.
type AudioSettings struct {
	Source       string        `yaml:"source"`       // capture device name, empty for system default
	SampleRate   int           `yaml:"samplerate"`   // Hz, mono s16le
	ChunkSize    int           `yaml:"chunksize"`    // bytes per capture read
	ReadTimeout  time.Duration `yaml:"readtimeout"`  // bounded wait for one capture read
	RingCapacity int           `yaml:"ringcapacity"` // capture ring buffer size in bytes
	WindowSize   int           `yaml:"windowsize"`   // analysis window width in samples
	WindowStride int           `yaml:"windowstride"` // new samples per cycle
}

// Overlap returns the number of samples carried from one window to the next.
func (a *AudioSettings) Overlap() int {
	return a.WindowSize - a.WindowStride
}

// StrideBytes returns the byte length of one cycle's new samples.
func (a *AudioSettings) StrideBytes() int {
	return a.WindowStride * 2
}

// FeatureSettings configures the spectral frontend and the feature window.
type FeatureSettings struct {
	FFTSize        int     `yaml:"fftsize"`
	SliceWidth     int     `yaml:"slicewidth"` // mel bands per slice
	SliceCount     int     `yaml:"slicecount"` // slices per classifier input
	LowerBandLimit float64 `yaml:"lowerbandlimit"`
	UpperBandLimit float64 `yaml:"upperbandlimit"`
}

// ModelSettings configures the classifier.
type ModelSettings struct {
	Path    string   `yaml:"path"`
	Threads int      `yaml:"threads"` // 0 selects from CPU topology
	Labels  []string `yaml:"labels"`  // index order matches model output
}

// DetectionSettings configures smoothing and debouncing.
type DetectionSettings struct {
	Depth             int           `yaml:"depth"`             // posterior history length
	PerFrameThreshold int           `yaml:"perframethreshold"` // 0..255, multiplied by depth
	Suppression       time.Duration `yaml:"suppression"`       // refractory period per category
}

// TriggerThreshold returns the accumulator level that fires a detection.
func (d *DetectionSettings) TriggerThreshold() int {
	return d.PerFrameThreshold * d.Depth
}

// PipelineSettings controls the foreground loop.
type PipelineSettings struct {
	PollInterval      time.Duration `yaml:"pollinterval"`
	MaxSlicesPerCycle int           `yaml:"maxslicespercycle"` // 0 means one feature window worth
}

// DebugSettings controls the telemetry side channel.
type DebugSettings struct {
	Enabled   bool   `yaml:"enabled"`
	Output    string `yaml:"output"` // file path, "-" for stdout
	QueueSize int    `yaml:"queuesize"`
}

// IndicatorSettings controls the color indicator sink.
type IndicatorSettings struct {
	Enabled bool `yaml:"enabled"`
}

// MQTTSettings contains settings for MQTT publishing.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Retain   bool   `yaml:"retain"`
}

// NotifySettings contains settings for push notifications via shoutrrr.
type NotifySettings struct {
	Enabled      bool          `yaml:"enabled"`
	URLs         []string      `yaml:"urls"`
	Cooldown     time.Duration `yaml:"cooldown"`     // per-label minimum spacing
	IgnoreLabels []string      `yaml:"ignorelabels"` // labels never notified
	Timeout      time.Duration `yaml:"timeout"`
}

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMySQL  = "mysql"
)

// StoreSettings configures the detection history database.
type StoreSettings struct {
	Enabled bool          `yaml:"enabled"`
	Type    string        `yaml:"type"` // sqlite or mysql
	Path    string        `yaml:"path"` // SQLite file
	MySQL   MySQLSettings `yaml:"mysql"`
}

// MySQLSettings contains settings for a MySQL history database.
type MySQLSettings struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// MetricsSettings configures the HTTP endpoint serving metrics and state.
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Settings contains all configuration options for the application.
type Settings struct {
	Debug bool `yaml:"debug"`

	Main struct {
		Name string `yaml:"name"`
	} `yaml:"main"`

	Logging   logger.LoggingConfig `yaml:"logging"`
	Audio     AudioSettings        `yaml:"audio"`
	Features  FeatureSettings      `yaml:"features"`
	Model     ModelSettings        `yaml:"model"`
	Detection DetectionSettings    `yaml:"detection"`
	Pipeline  PipelineSettings     `yaml:"pipeline"`
	DebugOut  DebugSettings        `yaml:"debugstream" mapstructure:"debugstream"`
	Indicator IndicatorSettings    `yaml:"indicator"`
	MQTT      MQTTSettings         `yaml:"mqtt"`
	Notify    NotifySettings       `yaml:"notify"`
	Store     StoreSettings        `yaml:"store"`
	Metrics   MetricsSettings      `yaml:"metrics"`
	Sentry    SentrySettings       `yaml:"sentry"`

	InputFile string `yaml:"-" mapstructure:"-"` // runtime value, file command argument
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration from the default search path.
func Load() (*Settings, error) {
	return LoadFrom("")
}

// LoadFrom reads the configuration from configFile, or from the default
// search path when configFile is empty. Environment variables prefixed with
// KWS_ override file values (KWS_DETECTION_SUPPRESSION=2s).
func LoadFrom(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

func initViper(configFile string) error {
	setDefaultConfig()

	viper.SetEnvPrefix("KWS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml into dir and reads it back.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	return viper.ReadInConfig()
}

// DefaultConfigYAML returns the embedded default configuration.
func DefaultConfigYAML() ([]byte, error) {
	return fs.ReadFile(configFiles, "config.yaml")
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// MarshalYAML renders settings as YAML with secrets masked.
func MarshalYAML(settings *Settings) ([]byte, error) {
	masked := *settings
	if masked.MQTT.Password != "" {
		masked.MQTT.Password = "********"
	}
	if masked.Store.MySQL.Password != "" {
		masked.Store.MySQL.Password = "********"
	}
	if masked.Sentry.DSN != "" {
		masked.Sentry.DSN = "********"
	}
	masked.Notify.URLs = make([]string, len(settings.Notify.URLs))
	for i, u := range settings.Notify.URLs {
		masked.Notify.URLs[i] = logger.RedactURL(u)
	}
	return yaml.Marshal(&masked)
}
