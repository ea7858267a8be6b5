package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tphakala/capuchin-go/internal/conf"
	"github.com/tphakala/capuchin-go/internal/datastore"
	"github.com/tphakala/capuchin-go/internal/detector"
)

func openStore(t *testing.T, name string) *datastore.SQLiteStore {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), name)

	store, ok := datastore.New(settings, nil).(*datastore.SQLiteStore)
	require.True(t, ok)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func saveRun(t *testing.T, store *datastore.SQLiteStore, file string, confidences ...float64) *datastore.Run {
	t.Helper()

	events := make([]detector.Event, len(confidences))
	for i, c := range confidences {
		start := float64(i) * 6
		events[i] = detector.Event{StartTime: start, EndTime: start + 6, MidTime: start + 3, Confidence: c}
	}
	report, err := detector.NewReport(len(events), events, nil)
	require.NoError(t, err)

	run := datastore.NewRun("field-unit", file, report, datastore.RunParams{})
	require.NoError(t, store.SaveRun(context.Background(), run))
	return run
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestMigratorCopiesRunsAndEvents(t *testing.T) {
	t.Parallel()

	source := openStore(t, "source.db")
	target := openStore(t, "target.db")

	saveRun(t, target, "other-device.wav", 0.65)
	saveRun(t, source, "a.wav", 0.9, 0.8)
	saveRun(t, source, "b.wav", 0.7)
	saveRun(t, source, "c.wav")

	m := newMigrator(&Config{BatchSize: 2}, source.DB, target.DB)
	stats, err := m.Run()
	require.NoError(t, err)
	require.Len(t, stats.Tables, 2)

	assert.Equal(t, "runs", stats.Tables[0].Name)
	assert.Equal(t, int64(3), stats.Tables[0].Migrated)
	assert.Equal(t, "call_events", stats.Tables[1].Name)
	assert.Equal(t, int64(3), stats.Tables[1].Migrated)

	assert.Equal(t, int64(4), countRows(t, target.DB, &datastore.Run{}))
	assert.Equal(t, int64(4), countRows(t, target.DB, &datastore.CallEvent{}))
	require.NoError(t, NewVerifier(source.DB, target.DB).Verify())

	// the local run keeps its event
	var local datastore.Run
	require.NoError(t, target.DB.Preload("Events").First(&local, "input_file = ?", "other-device.wav").Error)
	require.Len(t, local.Events, 1)
	assert.InDelta(t, 0.65, local.Events[0].Confidence, 1e-12)

	// exporting again copies nothing
	stats, err = m.Run()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Tables[0].Migrated)
	assert.Equal(t, int64(3), stats.Tables[0].Skipped)
	assert.Equal(t, int64(4), countRows(t, target.DB, &datastore.CallEvent{}))

	var out bytes.Buffer
	stats.Print(&out)
	assert.Contains(t, out.String(), "=== Migration Summary ===")
	assert.Regexp(t, `TOTAL\s+0\s+3\s+0`, out.String())
}

func TestMigratorClean(t *testing.T) {
	t.Parallel()

	source := openStore(t, "source.db")
	target := openStore(t, "target.db")
	saveRun(t, source, "a.wav", 0.9)
	saveRun(t, target, "stale.wav", 0.9, 0.9)

	m := newMigrator(&Config{BatchSize: 100, Clean: true}, source.DB, target.DB)
	_, err := m.Run()
	require.NoError(t, err)

	assert.Equal(t, int64(1), countRows(t, target.DB, &datastore.Run{}))
	assert.Equal(t, int64(1), countRows(t, target.DB, &datastore.CallEvent{}))
}

func TestVerifierDetectsMissingRuns(t *testing.T) {
	t.Parallel()

	source := openStore(t, "source.db")
	target := openStore(t, "target.db")
	saveRun(t, source, "a.wav", 0.9)

	err := NewVerifier(source.DB, target.DB).Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runs")
}

func TestConfigDSN(t *testing.T) {
	t.Parallel()

	c := &Config{MySQLUser: "capuchin", MySQLPass: "secret", MySQLHost: "db.local", MySQLPort: 3307, MySQLDatabase: "calls"}
	assert.Equal(t, "capuchin:secret@tcp(db.local:3307)/calls?charset=utf8mb4&parseTime=True&loc=Local", c.GetMySQLDSN())
	assert.Equal(t, "capuchin:****@tcp(db.local:3307)/calls?charset=utf8mb4&parseTime=True&loc=Local", c.GetSanitizedMySQLDSN())

	c.MySQLDSN = "u:p@tcp(h:1)/d"
	assert.Equal(t, "u:p@tcp(h:1)/d", c.GetMySQLDSN())
}

func TestConfigLoadValidates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := &Config{SQLitePath: filepath.Join(dir, "missing.db"), MySQLHost: "localhost", BatchSize: 10, ConfigPath: filepath.Join(dir, "none.yaml")}
	require.ErrorContains(t, c.Load(), "not found")

	store := openStore(t, "exists.db")
	c.SQLitePath = store.Settings.Output.SQLite.Path
	c.BatchSize = 0
	require.ErrorContains(t, c.Load(), "batch-size")

	c.BatchSize = 10
	require.NoError(t, c.Load())
}
