// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

var (
	validLogLevels   = []string{"trace", "debug", "info", "warn", "warning", "error"}
	validOutputTypes = []string{"", "table", "csv", "json"}
)

// ValidateSettings validates the entire Settings struct and reports every problem at once
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		func(s *Settings) error { return validateDetectorSettings(&s.Detector) },
		func(s *Settings) error { return validateModelSettings(&s.Model) },
		validateOutputSettings,
		func(s *Settings) error { return validateMQTTSettings(&s.Output.MQTT) },
		func(s *Settings) error { return validateSentrySettings(&s.Sentry) },
		func(s *Settings) error { return validateMetricsSettings(&s.Metrics) },
		validateLoggingSettings,
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

// validateDetectorSettings validates the two-stage scan parameters
func validateDetectorSettings(settings *DetectorSettings) error {
	var errs []string

	if settings.ThresholdStage1 < 0 || settings.ThresholdStage1 > 1 {
		errs = append(errs, "stage 1 threshold must be between 0 and 1")
	}
	if settings.ThresholdStage2 < 0 || settings.ThresholdStage2 > 1 {
		errs = append(errs, "stage 2 threshold must be between 0 and 1")
	}
	if settings.OuterWindow <= 0 {
		errs = append(errs, "outer window duration must be positive")
	}
	if settings.InnerStep <= 0 {
		errs = append(errs, "inner step duration must be positive")
	}
	if settings.InnerOverlap < 0 || settings.InnerOverlap >= 1 {
		errs = append(errs, "inner overlap must be in [0, 1)")
	}
	if settings.Stage1Frames <= 0 || settings.NMels <= 0 || settings.NFFT <= 0 || settings.HopLength <= 0 {
		errs = append(errs, "stage1 frames, mel bins, FFT size and hop length must be positive")
	}
	if settings.InnerStep > 0 && settings.InnerOverlap >= 0 && settings.InnerOverlap < 1 &&
		int(settings.InnerStep*SampleRate*(1-settings.InnerOverlap)) < 1 {
		errs = append(errs, "inner step and overlap leave an inner hop of zero samples")
	}
	if settings.MaxFailureRate <= 0 || settings.MaxFailureRate > 1 {
		errs = append(errs, "max failure rate must be in (0, 1]")
	}
	if settings.Workers < 1 {
		errs = append(errs, "workers must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("detector settings errors: %v", errs)
	}
	return nil
}

// validateModelSettings validates the classifier model settings
func validateModelSettings(settings *ModelSettings) error {
	var errs []string

	if strings.TrimSpace(settings.Path) == "" {
		errs = append(errs, "model path must not be empty")
	}
	if settings.Threads < 0 {
		errs = append(errs, "model threads must be at least 0")
	}
	if settings.InputMel < 0 {
		errs = append(errs, "model input mel bins must be at least 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("model settings errors: %v", errs)
	}
	return nil
}

// validateOutputSettings validates result output and persistence settings
func validateOutputSettings(settings *Settings) error {
	var errs []string

	if !slices.Contains(validOutputTypes, strings.ToLower(settings.Output.File.Type)) {
		errs = append(errs, fmt.Sprintf("output type %q must be one of table, csv, json", settings.Output.File.Type))
	}
	if settings.Output.Log.Enabled && settings.Output.Log.Path == "" {
		errs = append(errs, "scan log path must not be empty when the scan log is enabled")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		errs = append(errs, "sqlite path must not be empty when sqlite output is enabled")
	}
	if settings.Output.MySQL.Enabled {
		if settings.Output.MySQL.Host == "" || settings.Output.MySQL.Database == "" {
			errs = append(errs, "mysql host and database must be set when mysql output is enabled")
		}
		if settings.Output.SQLite.Enabled {
			errs = append(errs, "only one of sqlite and mysql output can be enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("output settings errors: %v", errs)
	}
	return nil
}

// validateMQTTSettings validates the MQTT publisher settings
func validateMQTTSettings(settings *MQTTSettings) error {
	if !settings.Enabled {
		return nil
	}

	var errs []string

	if settings.Broker == "" {
		errs = append(errs, "MQTT broker URL is required when MQTT is enabled")
	} else if u, err := url.Parse(settings.Broker); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("invalid MQTT broker URL %q", settings.Broker))
	}
	if settings.Topic == "" {
		errs = append(errs, "MQTT topic is required when MQTT is enabled")
	}
	if settings.Timeout <= 0 {
		errs = append(errs, "MQTT timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("MQTT settings errors: %v", errs)
	}
	return nil
}

// validateSentrySettings validates the telemetry settings
func validateSentrySettings(settings *SentrySettings) error {
	if settings.Enabled && settings.DSN == "" {
		return fmt.Errorf("sentry DSN is required when sentry is enabled")
	}
	return nil
}

// validateMetricsSettings checks the metrics listen address
func validateMetricsSettings(settings *MetricsSettings) error {
	if settings.Listen == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		return fmt.Errorf("invalid metrics listen address %q: %w", settings.Listen, err)
	}
	return nil
}

// validateLoggingSettings validates configured log levels
func validateLoggingSettings(settings *Settings) error {
	var errs []string

	check := func(name, level string) {
		if level != "" && !slices.Contains(validLogLevels, strings.ToLower(level)) {
			errs = append(errs, fmt.Sprintf("invalid %s log level %q", name, level))
		}
	}

	cfg := &settings.Logging
	check("default", cfg.DefaultLevel)
	if cfg.Console != nil {
		check("console", cfg.Console.Level)
	}
	if cfg.FileOutput != nil {
		check("file", cfg.FileOutput.Level)
		if cfg.FileOutput.Enabled && cfg.FileOutput.Path == "" {
			errs = append(errs, "log file path must not be empty when file logging is enabled")
		}
	}
	for module, level := range cfg.ModuleLevels {
		check("module "+module, level)
	}

	if len(errs) > 0 {
		return fmt.Errorf("logging settings errors: %v", errs)
	}
	return nil
}
