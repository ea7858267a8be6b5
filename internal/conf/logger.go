// Package conf provides configuration management for capuchin-go.
package conf

import "github.com/tphakala/capuchin-go/internal/logger"

// GetLogger returns the config package logger scoped to the config module.
// The logger is fetched from the global logger each time so it follows the
// central logger once that has been configured.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
