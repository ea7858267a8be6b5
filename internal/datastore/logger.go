package datastore

import (
	"time"

	"github.com/tphakala/capuchin-go/internal/logger"
)

// slowStatementThreshold is the duration above which SQL statements are logged as slow.
const slowStatementThreshold = 200 * time.Millisecond

// GetLogger returns the datastore package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

// gormLogger routes GORM statement logging through the datastore module logger.
func gormLogger() *logger.GormLoggerAdapter {
	return logger.NewGormLoggerAdapter(GetLogger(), slowStatementThreshold)
}
