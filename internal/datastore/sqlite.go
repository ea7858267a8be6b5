package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/capuchin-go/internal/conf"
	"github.com/tphakala/capuchin-go/internal/logger"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// sqliteDSN enables foreign keys so deleting a run cascades to its events.
func sqliteDSN(path string) string {
	return path + "?_foreign_keys=on"
}

// Open sets up the SQLite database connection and migrates the schema.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Output.SQLite.Path
	if path == "" {
		return dbError(fmt.Errorf("sqlite path is empty"), "open").Build()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return dbError(fmt.Errorf("failed to create database directory: %w", err), "open").
				Context("path", path).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{Logger: gormLogger()})
	if err != nil {
		return dbError(fmt.Errorf("failed to open SQLite database: %w", err), "open").
			Context("path", path).
			Build()
	}

	store.DB = db
	GetLogger().Debug("sqlite database opened", logger.String("path", path))
	return store.performAutoMigration("SQLite")
}
