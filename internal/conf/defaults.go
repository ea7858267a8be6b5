// conf/defaults.go default values for settings
package conf

import (
	"path/filepath"

	"github.com/spf13/viper"
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "")

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.console.stderr", true)
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/capuchin.log")
	viper.SetDefault("logging.file_output.level", "debug")

	viper.SetDefault("model.path", filepath.Join(DefaultModelDir, "capuchin.tflite"))
	viper.SetDefault("model.threads", 0)
	viper.SetDefault("model.xnnpack", false)
	viper.SetDefault("model.strict", false)
	viper.SetDefault("model.seed", 42)
	viper.SetDefault("model.inputmel", MelBins)

	viper.SetDefault("detector.thresholdstage1", 0.5)
	viper.SetDefault("detector.thresholdstage2", 0.6)
	viper.SetDefault("detector.outerwindow", OuterWindowSeconds)
	viper.SetDefault("detector.innerstep", InnerStepSeconds)
	viper.SetDefault("detector.inneroverlap", 0.0)
	viper.SetDefault("detector.stage1frames", Stage1Frames)
	viper.SetDefault("detector.nmels", MelBins)
	viper.SetDefault("detector.nfft", FFTSize)
	viper.SetDefault("detector.hoplength", HopLength)
	viper.SetDefault("detector.padvalue", -TopDB)
	viper.SetDefault("detector.maxfailurerate", 0.5)
	viper.SetDefault("detector.workers", 1)

	viper.SetDefault("output.file.path", "")
	viper.SetDefault("output.file.type", "table")

	viper.SetDefault("output.log.enabled", false)
	viper.SetDefault("output.log.path", "logs/scans.log")

	viper.SetDefault("output.sqlite.enabled", false)
	viper.SetDefault("output.sqlite.path", "capuchin.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "capuchin")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("output.mqtt.enabled", false)
	viper.SetDefault("output.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("output.mqtt.topic", "capuchin")
	viper.SetDefault("output.mqtt.clientid", "")
	viper.SetDefault("output.mqtt.username", "")
	viper.SetDefault("output.mqtt.password", "")
	viper.SetDefault("output.mqtt.timeout", 10)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.debug", false)

	viper.SetDefault("metrics.textfile", "")
	viper.SetDefault("metrics.listen", "")
}
