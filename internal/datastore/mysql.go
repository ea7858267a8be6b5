package datastore

import (
	"fmt"
	"net"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/capuchin-go/internal/conf"
	"github.com/tphakala/capuchin-go/internal/logger"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func mysqlDSN(settings *conf.Settings) string {
	m := settings.Output.MySQL
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		m.Username, m.Password, net.JoinHostPort(m.Host, m.Port), m.Database)
}

// Open sets up the MySQL database connection and migrates the schema.
func (store *MySQLStore) Open() error {
	m := store.Settings.Output.MySQL

	db, err := gorm.Open(mysql.Open(mysqlDSN(store.Settings)), &gorm.Config{Logger: gormLogger()})
	if err != nil {
		GetLogger().Error("failed to open MySQL database",
			logger.String("host", m.Host),
			logger.String("port", m.Port),
			logger.String("database", m.Database),
			logger.Error(err))
		return dbError(fmt.Errorf("failed to open MySQL database: %w", err), "open").
			Context("host", m.Host).
			Context("database", m.Database).
			Build()
	}

	store.DB = db
	return store.performAutoMigration("MySQL")
}
