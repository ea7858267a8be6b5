// config.go: settings struct and functions to load and save the settings.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/capuchin-go/internal/errors"
	"github.com/tphakala/capuchin-go/internal/logger"
)

// ModelSettings describes the classifier model and its runtime.
type ModelSettings struct {
	Path     string // path to the .tflite model file
	Threads  int    // interpreter threads, 0 for automatic
	XNNPACK  bool   // true to use the XNNPACK delegate
	Strict   bool   // strict determinism: one thread, no delegate
	Seed     int64  // stored with each run record, inference does not read it
	InputMel int    // expected mel bins of the model input, 0 to skip the check
}

// DetectorSettings holds the two-stage scan parameters.
type DetectorSettings struct {
	ThresholdStage1 float64 // Stage 1 decision threshold
	ThresholdStage2 float64 // Stage 2 decision threshold
	OuterWindow     float64 // outer window length in seconds
	InnerStep       float64 // inner chunk length in seconds
	InnerOverlap    float64 // fractional overlap of inner chunks, [0,1)
	Stage1Frames    int     // time frames of the Stage 1 spectrogram
	NMels           int     // mel bins
	NFFT            int     // FFT size
	HopLength       int     // STFT hop in samples
	PadValue        float64 // dB value used to pad short Stage 1 windows, 0 pads at the segment maximum
	MaxFailureRate  float64 // classification failure ratio that aborts a scan
	Workers         int     // outer windows scanned concurrently, 1 for sequential
}

// InputConfig holds runtime input selection, not stored in the config file.
type InputConfig struct {
	Path      string `yaml:"-"` // path to input file or directory
	Recursive bool   `yaml:"-"` // true for recursive directory analysis
}

// MQTTSettings contains settings for MQTT publishing.
type MQTTSettings struct {
	Enabled  bool   // true to publish detection summaries
	Broker   string // MQTT broker URL (tcp://host:port)
	Topic    string // base topic; summaries go to <topic>/calls
	ClientID string // client identifier, generated when empty
	Username string
	Password string
	Timeout  int // publish timeout in seconds
}

// SentrySettings contains settings for error telemetry.
type SentrySettings struct {
	Enabled bool   // true to report errors to Sentry
	DSN     string // Sentry DSN
	Debug   bool
}

// MetricsSettings contains settings for Prometheus metrics export.
type MetricsSettings struct {
	TextFile string // write metrics in text exposition format to this file when set
	Listen   string // serve /metrics on this address while a run is active, e.g. :9090
}

// Settings contains all configuration options for capuchin-go.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"`
	BuildDate string `yaml:"-"`

	Main struct {
		Name string // node name, recorded as the source of stored runs
	}

	Logging logger.LoggingConfig

	Model    ModelSettings
	Detector DetectorSettings

	Input InputConfig `yaml:"-"`

	Output struct {
		File struct {
			Path string `yaml:"-"` // directory to output results
			Type string `yaml:"-"` // table, csv or json
		}

		Log struct {
			Enabled bool   // true to append each scan narrative to Path
			Path    string // scan narrative log file
		}

		SQLite struct {
			Enabled bool   // true to store runs in sqlite
			Path    string // path to sqlite database
		}

		MySQL struct {
			Enabled  bool
			Username string
			Password string
			Database string
			Host     string
			Port     string
		}

		MQTT MQTTSettings
	}

	Sentry  SentrySettings
	Metrics MetricsSettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file, environment variables and bound flags
// into a new Settings instance and validates it.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_settings").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error validating settings: %w", err)).
			Category(errors.CategoryConfiguration).
			Build()
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, environment binding and reads the configuration file.
// A missing configuration file is not an error; defaults apply.
func initViper() error {
	viper.SetConfigName(ConfigFileName)
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			GetLogger().Debug("no config file found, using defaults",
				logger.String("search_paths", strings.Join(configPaths, ",")))
			return nil
		}
		return errors.New(fmt.Errorf("fatal error reading config file: %w", err)).
			Category(errors.CategoryConfiguration).
			Context("operation", "read_config").
			Build()
	}

	GetLogger().Debug("config file loaded", logger.String("path", viper.ConfigFileUsed()))
	return nil
}

// GetSettings returns the most recently loaded settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath as YAML. The file is written to
// a temporary file first and renamed into place. Comments are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName) //nolint:errcheck // removed after rename succeeds

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		// cross-device rename, fall back to copy
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	return nil
}

// DetectionSource returns the node name recorded with stored runs.
func (s *Settings) DetectionSource() string {
	if s.Main.Name != "" {
		return s.Main.Name
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return AppName
}
