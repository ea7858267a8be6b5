// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/capuchin-go/internal/conf"
	"github.com/tphakala/capuchin-go/internal/errors"
	"github.com/tphakala/capuchin-go/internal/logger"
	"github.com/tphakala/capuchin-go/internal/observability/metrics"
)

// defaultListLimit caps ListRuns when no limit is given.
const defaultListLimit = 100

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB      *gorm.DB // GORM database instance
	metrics *Metrics
}

// New returns the store selected by settings, or nil when persistence is
// disabled. SQLite takes precedence when both backends are enabled.
func New(settings *conf.Settings, m *Metrics) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{DataStore: DataStore{metrics: m}, Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{DataStore: DataStore{metrics: m}, Settings: settings}
	default:
		return nil
	}
}

// SaveRun stores a run and its events in a single transaction.
func (ds *DataStore) SaveRun(ctx context.Context, run *Run) (err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpSaveRun, start, err) }()

	if ds.DB == nil {
		return notOpenError("save_run")
	}

	err = ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// events are inserted explicitly below
		if err := tx.Omit("Events").Create(run).Error; err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		if len(run.Events) == 0 {
			return nil
		}
		for i := range run.Events {
			run.Events[i].RunID = run.ID
		}
		if err := tx.Create(&run.Events).Error; err != nil {
			return fmt.Errorf("saving call events: %w", err)
		}
		return nil
	})
	if err != nil {
		return dbError(err, "save_run").Context("run_id", run.ID).Build()
	}

	GetLogger().Debug("run saved",
		logger.String("run_id", run.ID),
		logger.Int("calls", run.CallCount))
	return nil
}

// GetRun retrieves a run with its events ordered by call index.
func (ds *DataStore) GetRun(ctx context.Context, id string) (run *Run, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpGetRun, start, err) }()

	if ds.DB == nil {
		return nil, notOpenError("get_run")
	}

	var r Run
	err = ds.DB.WithContext(ctx).
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("call_index ASC") }).
		First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Newf("run %s not found", id).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("run_id", id).
			Build()
	}
	if err != nil {
		return nil, dbError(err, "get_run").Context("run_id", id).Build()
	}
	return &r, nil
}

// ListRuns returns the most recent runs without their events.
func (ds *DataStore) ListRuns(ctx context.Context, limit int) (runs []Run, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpListRuns, start, err) }()

	if ds.DB == nil {
		return nil, notOpenError("list_runs")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	if err = ds.DB.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, dbError(err, "list_runs").Build()
	}
	return runs, nil
}

// Close closes the underlying database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return notOpenError("close")
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close").Build()
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close").Build()
	}
	return nil
}

// performAutoMigration creates or updates the schema.
func (ds *DataStore) performAutoMigration(dbType string) (err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpMigrate, start, err) }()

	if err = ds.DB.AutoMigrate(&Run{}, &CallEvent{}); err != nil {
		return dbError(fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err), "migrate").
			Context("db_type", dbType).
			Build()
	}

	GetLogger().Debug("database migrated", logger.String("db_type", dbType))
	return nil
}

func dbError(err error, operation string) *errors.ErrorBuilder {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)
}

func notOpenError(operation string) error {
	return errors.Newf("database connection is not initialized").
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
