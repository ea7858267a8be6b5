package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tphakala/capuchin-go/internal/datastore"
)

// Migrator copies runs and call events between two databases.
type Migrator struct {
	cfg      Config
	sourceDB *gorm.DB
	targetDB *gorm.DB
	out      io.Writer
}

// MigrationStats tracks migration statistics.
type MigrationStats struct {
	StartTime time.Time
	EndTime   time.Time
	Tables    []TableStats
}

// TableStats tracks per-table migration statistics.
type TableStats struct {
	Name      string
	Migrated  int64
	Skipped   int64
	Errors    int64
	Duration  time.Duration
	BatchSize int
}

// Print writes the migration statistics to w.
func (s *MigrationStats) Print(w io.Writer) {
	fmt.Fprintln(w, "\n=== Migration Summary ===")
	fmt.Fprintf(w, "Duration: %s\n\n", s.EndTime.Sub(s.StartTime).Round(time.Millisecond))

	fmt.Fprintf(w, "%-25s %10s %10s %10s %12s\n", "Table", "Migrated", "Skipped", "Errors", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", 70))

	var totalMigrated, totalSkipped, totalErrors int64
	for _, t := range s.Tables {
		fmt.Fprintf(w, "%-25s %10d %10d %10d %12s\n",
			t.Name, t.Migrated, t.Skipped, t.Errors, t.Duration.Round(time.Millisecond))
		totalMigrated += t.Migrated
		totalSkipped += t.Skipped
		totalErrors += t.Errors
	}

	fmt.Fprintln(w, strings.Repeat("─", 70))
	fmt.Fprintf(w, "%-25s %10d %10d %10d\n", "TOTAL", totalMigrated, totalSkipped, totalErrors)
}

// NewMigrator opens the SQLite source and MySQL target databases.
func NewMigrator(cfg *Config) (*Migrator, error) {
	gormConfig := gormConfig(cfg.Verbose)

	sourceDB, err := gorm.Open(sqlite.Open(cfg.SQLitePath), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	targetDB, err := gorm.Open(mysql.Open(cfg.GetMySQLDSN()), gormConfig)
	if err != nil {
		closeDB(sourceDB)
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	m := newMigrator(cfg, sourceDB, targetDB)
	if err := m.ping(); err != nil {
		m.Close()
		return nil, err
	}

	fmt.Fprintln(m.out, "Database connections established successfully")
	return m, nil
}

func newMigrator(cfg *Config, sourceDB, targetDB *gorm.DB) *Migrator {
	return &Migrator{cfg: *cfg, sourceDB: sourceDB, targetDB: targetDB, out: io.Discard}
}

func gormConfig(verbose bool) *gorm.Config {
	logLevel := logger.Silent
	if verbose {
		logLevel = logger.Info
	}
	return &gorm.Config{Logger: logger.Default.LogMode(logLevel)}
}

func (m *Migrator) ping() error {
	for name, db := range map[string]*gorm.DB{"source": m.sourceDB, "target": m.targetDB} {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to get %s connection: %w", name, err)
		}
		if err := sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to ping %s database: %w", name, err)
		}
	}
	return nil
}

// Close closes both database connections.
func (m *Migrator) Close() {
	closeDB(m.sourceDB)
	closeDB(m.targetDB)
}

func closeDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Run creates the target tables and copies every run with its call events.
func (m *Migrator) Run() (*MigrationStats, error) {
	stats := &MigrationStats{StartTime: time.Now()}

	fmt.Fprintln(m.out, "Creating tables in target database...")
	if err := m.targetDB.AutoMigrate(&datastore.Run{}, &datastore.CallEvent{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	if m.cfg.Clean {
		if err := m.cleanTables(); err != nil {
			return nil, fmt.Errorf("failed to clean tables: %w", err)
		}
	}

	runs, events, err := m.migrateRuns()
	stats.Tables = append(stats.Tables, *runs, *events)
	if err != nil {
		return stats, fmt.Errorf("failed to migrate runs: %w", err)
	}

	stats.EndTime = time.Now()
	return stats, nil
}

// cleanTables deletes target rows, children first.
func (m *Migrator) cleanTables() error {
	fmt.Fprintln(m.out, "Cleaning target tables...")
	for _, table := range []string{"call_events", "runs"} {
		if err := m.targetDB.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("could not clean table %s: %w", table, err)
		}
		if m.cfg.Verbose {
			fmt.Fprintf(m.out, "  Cleaned: %s\n", table)
		}
	}
	return nil
}

// migrateRuns copies runs in batches together with their call events. Runs
// whose ID already exists in the target are skipped. Event IDs are assigned
// by the target, as they are only unique within one database.
func (m *Migrator) migrateRuns() (runStats, eventStats *TableStats, err error) {
	start := time.Now()
	runStats = &TableStats{Name: "runs", BatchSize: m.cfg.BatchSize}
	eventStats = &TableStats{Name: "call_events", BatchSize: m.cfg.BatchSize}

	fmt.Fprintln(m.out, "Migrating runs...")

	var sourceCount int64
	if err := m.sourceDB.Model(&datastore.Run{}).Count(&sourceCount).Error; err != nil {
		return runStats, eventStats, fmt.Errorf("failed to count source records: %w", err)
	}
	if sourceCount == 0 {
		fmt.Fprintln(m.out, "  runs: no records to migrate")
		return runStats, eventStats, nil
	}

	var processed int64
	batchNum := 0

	err = m.sourceDB.Model(&datastore.Run{}).Preload("Events", func(db *gorm.DB) *gorm.DB {
		return db.Order("call_index")
	}).FindInBatches(new([]datastore.Run), m.cfg.BatchSize, func(tx *gorm.DB, batch int) error {
		batchNum++
		records := *tx.Statement.Dest.(*[]datastore.Run)
		processed += int64(len(records))

		fresh, err := m.newRuns(records)
		if err != nil {
			return err
		}
		runStats.Skipped += int64(len(records) - len(fresh))

		for i := range fresh {
			run := &fresh[i]
			for j := range run.Events {
				run.Events[j].ID = 0
			}

			txErr := m.targetDB.Transaction(func(tx *gorm.DB) error {
				if err := tx.Omit("Events").Create(run).Error; err != nil {
					return err
				}
				if len(run.Events) == 0 {
					return nil
				}
				return tx.Create(&run.Events).Error
			})
			if txErr != nil {
				runStats.Errors++
				eventStats.Errors += int64(len(run.Events))
				fmt.Fprintf(m.out, "  Run %s error: %v\n", run.ID, txErr)
				continue
			}
			runStats.Migrated++
			eventStats.Migrated += int64(len(run.Events))
		}

		if m.cfg.Verbose || batchNum%10 == 0 {
			fmt.Fprintf(m.out, "  runs: %d/%d (%.1f%%)\n", processed, sourceCount,
				float64(processed)/float64(sourceCount)*100)
		}
		return nil
	}).Error

	runStats.Duration = time.Since(start)
	eventStats.Duration = runStats.Duration
	if err != nil {
		return runStats, eventStats, err
	}

	fmt.Fprintf(m.out, "  runs: completed (%d migrated, %d skipped, %d errors) in %s\n",
		runStats.Migrated, runStats.Skipped, runStats.Errors, runStats.Duration.Round(time.Millisecond))

	return runStats, eventStats, nil
}

// newRuns filters out runs already present in the target.
func (m *Migrator) newRuns(runs []datastore.Run) ([]datastore.Run, error) {
	ids := make([]string, len(runs))
	for i := range runs {
		ids[i] = runs[i].ID
	}

	var existing []string
	if err := m.targetDB.Model(&datastore.Run{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
		return nil, fmt.Errorf("failed to look up existing runs: %w", err)
	}
	if len(existing) == 0 {
		return runs, nil
	}

	seen := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}

	fresh := make([]datastore.Run, 0, len(runs)-len(existing))
	for i := range runs {
		if _, ok := seen[runs[i].ID]; !ok {
			fresh = append(fresh, runs[i])
		}
	}
	return fresh, nil
}
