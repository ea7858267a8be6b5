package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/capuchin-go/internal/errors"
)

// isolateViper points config discovery at an empty temp directory and
// resets the global viper instance.
func isolateViper(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	viper.Reset()
	t.Cleanup(viper.Reset)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolateViper(t)

	settings, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.5, settings.Detector.ThresholdStage1, 1e-9)
	assert.InDelta(t, 0.6, settings.Detector.ThresholdStage2, 1e-9)
	assert.InDelta(t, 6.0, settings.Detector.OuterWindow, 1e-9)
	assert.InDelta(t, 0.3, settings.Detector.InnerStep, 1e-9)
	assert.InDelta(t, 0.0, settings.Detector.InnerOverlap, 1e-9)
	assert.Equal(t, 157, settings.Detector.Stage1Frames)
	assert.Equal(t, 128, settings.Detector.NMels)
	assert.Equal(t, 2048, settings.Detector.NFFT)
	assert.Equal(t, 512, settings.Detector.HopLength)
	assert.InDelta(t, -80.0, settings.Detector.PadValue, 1e-9)
	assert.Equal(t, 1, settings.Detector.Workers)
	assert.Equal(t, "table", settings.Output.File.Type)
	assert.False(t, settings.Output.MQTT.Enabled)
	assert.Equal(t, "info", settings.Logging.DefaultLevel)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
	assert.Same(t, settings, GetSettings())
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	dir := isolateViper(t)

	yamlConfig := `
detector:
  thresholdstage2: 0.75
  inneroverlap: 0.5
  workers: 4
model:
  path: /models/capuchin.tflite
  strict: true
logging:
  default_level: debug
  module_levels:
    detector: trace
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlConfig), 0o600))

	settings, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.75, settings.Detector.ThresholdStage2, 1e-9)
	assert.InDelta(t, 0.5, settings.Detector.InnerOverlap, 1e-9)
	assert.Equal(t, 4, settings.Detector.Workers)
	assert.InDelta(t, 0.5, settings.Detector.ThresholdStage1, 1e-9, "unset keys keep defaults")
	assert.Equal(t, "/models/capuchin.tflite", settings.Model.Path)
	assert.True(t, settings.Model.Strict)
	assert.Equal(t, "debug", settings.Logging.DefaultLevel)
	assert.Equal(t, "trace", settings.Logging.ModuleLevels["detector"])
}

func TestLoadEnvironmentOverride(t *testing.T) {
	isolateViper(t)
	t.Setenv("CAPUCHIN_DETECTOR_THRESHOLDSTAGE1", "0.42")

	settings, err := Load()
	require.NoError(t, err)
	assert.InDelta(t, 0.42, settings.Detector.ThresholdStage1, 1e-9)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := isolateViper(t)

	yamlConfig := `
detector:
  inneroverlap: 1.0
  thresholdstage1: 1.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlConfig), 0o600))

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Errors, 1)
	assert.Contains(t, ve.Errors[0], "inner overlap")
	assert.Contains(t, ve.Errors[0], "stage 1 threshold")
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	dir := isolateViper(t)

	settings, err := Load()
	require.NoError(t, err)
	settings.Detector.ThresholdStage2 = 0.7
	settings.Output.MQTT.Topic = "forest/station-1"

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, SaveYAMLConfig(configPath, settings))

	viper.Reset()
	reloaded, err := Load()
	require.NoError(t, err)
	assert.InDelta(t, 0.7, reloaded.Detector.ThresholdStage2, 1e-9)
	assert.Equal(t, "forest/station-1", reloaded.Output.MQTT.Topic)

	found, err := FindConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", filepath.Base(found))
}

func TestDetectionSource(t *testing.T) {
	t.Parallel()

	s := &Settings{}
	s.Main.Name = "station-7"
	assert.Equal(t, "station-7", s.DetectionSource())

	assert.NotEmpty(t, (&Settings{}).DetectionSource())
}
